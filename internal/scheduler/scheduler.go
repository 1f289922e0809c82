package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/clock"
	appconfig "github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/joblock"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/notification"
	obsmetrics "github.com/doseline/doseline/internal/observability/metrics"
	riskdomain "github.com/doseline/doseline/internal/risk/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Clock        clock.Clock
	Config       Config `optional:"true"`
	Holder       *appconfig.AdherenceConfigHolder
	MedRepo      meddomain.Repository
	AdherenceSvc adherencedomain.Service
	RiskSvc      riskdomain.Service
	Dispatcher   notification.Dispatcher
	Locker       *joblock.Locker `optional:"true"`
}

// Scheduler owns the batch entry points. It keeps no cron state of its
// own: RunOnce can be driven externally (Kubernetes CronJob, systemd
// timer, a test) and RunForever is just RunOnce on a ticker.
type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	clock        clock.Clock
	holder       *appconfig.AdherenceConfigHolder
	medRepo      meddomain.Repository
	adherenceSvc adherencedomain.Service
	riskSvc      riskdomain.Service
	dispatcher   notification.Dispatcher
	locker       *joblock.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Holder == nil ||
		p.MedRepo == nil || p.AdherenceSvc == nil || p.RiskSvc == nil || p.Dispatcher == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		clock:        p.Clock,
		holder:       p.Holder,
		medRepo:      p.MedRepo,
		adherenceSvc: p.AdherenceSvc,
		riskSvc:      p.RiskSvc,
		dispatcher:   p.Dispatcher,
		locker:       p.Locker,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	token, acquired, err := s.locker.TryLock(parent, "doseline:job:"+name, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("job lock unavailable, running unlocked",
			zap.String("job", name),
			zap.Error(err),
		)
	} else if !acquired {
		s.log.Debug("job held by another replica", zap.String("job", name))
		return nil
	}
	if token != "" {
		defer func() {
			if releaseErr := s.locker.Release(context.WithoutCancel(parent), "doseline:job:"+name, token); releaseErr != nil {
				s.log.Warn("job lock release failed",
					zap.String("job", name),
					zap.Error(releaseErr),
				)
			}
		}()
	}

	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	jobMetrics := obsmetrics.Jobs()
	jobMetrics.IncJobRun(name)

	err = fn(ctx)
	jobMetrics.ObserveJobDuration(name, time.Since(start))
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		jobMetrics.IncJobTimeout(name)
	}
	jobMetrics.IncJobError(name, err)
	if isTimeout {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job exactly once. Job failures are
// joined, not fatal: one broken job never blocks the others.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"topup_generation", func(ctx context.Context) error {
			return s.runJob(ctx, "topup_generation", s.cfg.JobTimeout, s.TopUpGenerationJob)
		}},
		{"missed_sweep", func(ctx context.Context) error {
			return s.runJob(ctx, "missed_sweep", s.cfg.JobTimeout, s.MissedSweepJob)
		}},
		{"risk_scoring", func(ctx context.Context) error {
			return s.runJob(ctx, "risk_scoring", s.cfg.JobTimeout, s.RiskScoringJob)
		}},
		{"reminder_dispatch", func(ctx context.Context) error {
			return s.runJob(ctx, "reminder_dispatch", s.cfg.JobTimeout, s.ReminderDispatchJob)
		}},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	jobMetrics := obsmetrics.Jobs()

	for {
		runLag := time.Since(nextRun)
		if runLag > 0 {
			jobMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
