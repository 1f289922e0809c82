package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/observability/metrics"
	"github.com/doseline/doseline/internal/premium"
	"github.com/doseline/doseline/internal/userctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound        = errors.New("not_found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidID       = errors.New("invalid_id")
	ErrPremiumRequired = errors.New("premium_required")
)

// DispatchResult summarizes one reminder dispatch pass.
type DispatchResult struct {
	Scanned int `json:"scanned"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// Dispatcher pushes reminders for doses coming due, and serves the
// premium "remind me now" action.
type Dispatcher interface {
	DispatchDueReminders(ctx context.Context, now time.Time) (DispatchResult, error)
	SendNow(ctx context.Context, doseID string) error
}

type DispatcherParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Config   config.Config
	Sender   Sender
	Premium  premium.Checker
	DoseRepo adherencedomain.Repository
	MedRepo  meddomain.Repository
}

type dispatcher struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	sender   Sender
	premium  premium.Checker
	doseRepo adherencedomain.Repository
	medRepo  meddomain.Repository
}

func NewDispatcher(p DispatcherParams) Dispatcher {
	return &dispatcher{
		db:       p.DB,
		log:      p.Log.Named("notification.dispatcher"),
		clock:    p.Clock,
		cfg:      p.Config,
		sender:   p.Sender,
		premium:  p.Premium,
		doseRepo: p.DoseRepo,
		medRepo:  p.MedRepo,
	}
}

// DispatchDueReminders sends a reminder for every pending dose whose
// scheduled time falls within the lead window and that has not been
// reminded yet. The reminder_sent flag is flipped with a conditional
// update, so overlapping dispatchers do not double-send.
func (d *dispatcher) DispatchDueReminders(ctx context.Context, now time.Time) (DispatchResult, error) {
	var res DispatchResult

	lead := time.Duration(d.cfg.ReminderLeadMinutes) * time.Minute
	if lead <= 0 {
		lead = 30 * time.Minute
	}

	due, err := d.doseRepo.FindPendingDueBetween(ctx, d.db, now, now.Add(lead), 500)
	if err != nil {
		return res, err
	}

	var errs []error
	for _, inst := range due {
		res.Scanned++

		rows, err := d.doseRepo.MarkReminderSent(ctx, d.db, inst.ID)
		if err != nil {
			res.Failed++
			d.log.Error("marking reminder failed",
				zap.String("dose_instance_id", inst.ID.String()),
				zap.String("user_id", inst.UserID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("instance %s: %w", inst.ID, err))
			continue
		}
		if rows == 0 {
			// Another dispatcher claimed it.
			continue
		}

		if err := d.send(ctx, inst); err != nil {
			res.Failed++
			d.log.Error("reminder send failed",
				zap.String("dose_instance_id", inst.ID.String()),
				zap.String("user_id", inst.UserID.String()),
				zap.String("medication_id", inst.MedicationID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("instance %s: %w", inst.ID, err))
			continue
		}
		res.Sent++
		metrics.Jobs().IncReminderSent()
	}

	return res, errors.Join(errs...)
}

func (d *dispatcher) SendNow(ctx context.Context, doseID string) error {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return ErrUnauthorized
	}

	isPremium, err := d.premium.IsPremium(ctx, userID)
	if err != nil {
		return err
	}
	if !isPremium {
		return ErrPremiumRequired
	}

	id, err := snowflake.ParseString(strings.TrimSpace(doseID))
	if err != nil || id == 0 {
		return ErrInvalidID
	}

	inst, err := d.doseRepo.FindByID(ctx, d.db, id)
	if err != nil {
		return err
	}
	if inst == nil {
		return ErrNotFound
	}
	if inst.UserID != userID {
		return ErrUnauthorized
	}

	if err := d.send(ctx, inst); err != nil {
		return err
	}
	if _, err := d.doseRepo.MarkReminderSent(ctx, d.db, inst.ID); err != nil {
		d.log.Warn("marking reminder after manual send failed",
			zap.String("dose_instance_id", inst.ID.String()),
			zap.Error(err),
		)
	}
	metrics.Jobs().IncReminderSent()
	return nil
}

func (d *dispatcher) send(ctx context.Context, inst *adherencedomain.DoseInstance) error {
	med, err := d.medRepo.FindByID(ctx, d.db, inst.UserID, inst.MedicationID)
	if err != nil {
		return err
	}
	if med == nil {
		return ErrNotFound
	}

	email, err := d.userEmail(ctx, inst.UserID)
	if err != nil {
		return err
	}

	return d.sender.SendDoseReminder(ctx, DoseReminder{
		UserID:         inst.UserID,
		Email:          email,
		MedicationName: med.Name,
		DosageAmount:   inst.DosageAmount,
		DosageUnit:     inst.DosageUnit,
		ScheduledAt:    inst.ScheduledAt,
		Timezone:       med.Timezone,
	})
}

func (d *dispatcher) userEmail(ctx context.Context, userID snowflake.ID) (string, error) {
	var email string
	err := d.db.WithContext(ctx).Raw(
		`SELECT email FROM users WHERE id = ?`,
		userID,
	).Scan(&email).Error
	return email, err
}
