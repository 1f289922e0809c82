package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	obsmetrics "github.com/doseline/doseline/internal/observability/metrics"
	"github.com/doseline/doseline/internal/timeutil"
	"go.uber.org/zap"
)

// TopUpGenerationJob extends every active medication's dose instances
// out to the forward horizon. It runs daily but tolerates any cadence:
// generation is idempotent, so frequent runs just find nothing to add.
func (s *Scheduler) TopUpGenerationJob(ctx context.Context) error {
	meds, err := s.medRepo.FindActive(ctx, s.db)
	if err != nil {
		return fmt.Errorf("loading active medications: %w", err)
	}

	var jobErr error
	generated := 0
	for _, med := range meds {
		if ctx.Err() != nil {
			return errors.Join(jobErr, ctx.Err())
		}

		loc := timeutil.ResolveLocation(med.Timezone, "")
		today := timeutil.DateOf(s.clock.Now(), loc)
		res, err := s.adherenceSvc.Generate(ctx, med, today, today.AddDays(s.cfg.HorizonDays))
		generated += res.Generated
		if err != nil {
			s.log.Warn("top-up generation incomplete",
				zap.String("medication_id", med.ID.String()),
				zap.String("user_id", med.UserID.String()),
				zap.Int("failed", res.Failed),
				zap.Error(err),
			)
			jobErr = errors.Join(jobErr, err)
		}
	}

	jobMetrics := obsmetrics.Jobs()
	jobMetrics.AddDosesGenerated("topup", generated)
	jobMetrics.AddBatchProcessed("topup_generation", len(meds))

	s.log.Info("top-up generation finished",
		zap.Int("medications", len(meds)),
		zap.Int("generated", generated),
	)
	return jobErr
}

// MissedSweepJob reconciles overdue pending doses to missed using the
// hot-reloadable grace period.
func (s *Scheduler) MissedSweepJob(ctx context.Context) error {
	grace := time.Duration(s.holder.Get().GracePeriodMinutes) * time.Minute

	res, err := s.adherenceSvc.SweepMissed(ctx, s.clock.Now(), grace)
	obsmetrics.Jobs().AddBatchProcessed("missed_sweep", res.Processed)

	s.log.Info("missed sweep finished",
		zap.Int("processed", res.Processed),
		zap.Int("updated", res.Updated),
		zap.Int("failed", res.Failed),
		zap.Duration("grace", grace),
	)
	return err
}

// RiskScoringJob computes today's risk score for premium users.
func (s *Scheduler) RiskScoringJob(ctx context.Context) error {
	res, err := s.riskSvc.RunDaily(ctx)
	obsmetrics.Jobs().AddBatchProcessed("risk_scoring", res.Medications)

	s.log.Info("risk scoring finished",
		zap.Int("users", res.Users),
		zap.Int("medications", res.Medications),
		zap.Int("scored", res.Scored),
		zap.Int("failed", res.Failed),
	)
	return err
}

// ReminderDispatchJob sends reminders for doses coming due.
func (s *Scheduler) ReminderDispatchJob(ctx context.Context) error {
	res, err := s.dispatcher.DispatchDueReminders(ctx, s.clock.Now())
	obsmetrics.Jobs().AddBatchProcessed("reminder_dispatch", res.Scanned)

	s.log.Info("reminder dispatch finished",
		zap.Int("scanned", res.Scanned),
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
	)
	return err
}
