package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/observability/metrics"
	"go.uber.org/zap"
)

// SweepMissed reconciles overdue pending instances to missed. Each row
// is transitioned with a conditional update, so a dose the user
// confirms mid-sweep is left alone; zero rows affected is not an error.
func (s *Service) SweepMissed(ctx context.Context, now time.Time, grace time.Duration) (domain.SweepResult, error) {
	var res domain.SweepResult

	cutoff := now.Add(-grace)
	batchSize := s.cfg.SweepBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	var errs []error
	afterID := snowflake.ID(0)
	for {
		batch, err := s.repo.FindPendingOlderThan(ctx, s.db, cutoff, afterID, batchSize)
		if err != nil {
			// Total storage failure: abort, keeping whatever progress
			// already landed.
			return res, err
		}
		for _, inst := range batch {
			res.Processed++
			rows, err := s.repo.TransitionStatus(ctx, s.db, inst.ID,
				domain.StatusPending, domain.StatusMissed,
				domain.TransitionDetails{Now: now})
			if err != nil {
				res.Failed++
				s.log.Error("missed transition failed",
					zap.String("dose_instance_id", inst.ID.String()),
					zap.String("user_id", inst.UserID.String()),
					zap.String("medication_id", inst.MedicationID.String()),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("instance %s: %w", inst.ID, err))
				continue
			}
			if rows > 0 {
				res.Updated++
			}
		}
		if len(batch) < batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	metrics.Jobs().AddDosesMissed(res.Updated)
	return res, errors.Join(errs...)
}
