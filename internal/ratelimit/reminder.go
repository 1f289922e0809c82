package ratelimit

import (
	"context"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/doseline/doseline/internal/config"
)

const (
	// Manual reminder sends per user: steady one per minute, short
	// bursts of five.
	reminderRate  = 1.0 / 60.0
	reminderBurst = 5
)

// ReminderLimiter throttles the manual "remind me now" action per
// user. A nil limiter (no redis) allows everything; the endpoint is
// already premium-gated, so the limiter is abuse control, not billing.
type ReminderLimiter struct {
	bucket *TokenBucket
}

func NewReminderLimiter(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *ReminderLimiter {
	if cfg.RedisAddr == "" {
		log.Info("reminder rate limiting disabled, no redis configured")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			return client.Close()
		},
	})

	return &ReminderLimiter{bucket: NewTokenBucket(client)}
}

// Allow reports whether the user may trigger another manual reminder.
// Limiter failures fail open: a redis outage must not take the
// endpoint down.
func (l *ReminderLimiter) Allow(ctx context.Context, userID snowflake.ID) (bool, error) {
	if l == nil || l.bucket == nil {
		return true, nil
	}

	res, err := l.bucket.Allow(ctx, "doseline:ratelimit:remind:"+userID.String(), reminderRate, reminderBurst)
	if err != nil {
		return true, err
	}
	return res.Allowed, nil
}

var Module = fx.Module("ratelimit", fx.Provide(NewReminderLimiter))
