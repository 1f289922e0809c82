package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/doseline/doseline/internal/adherence/domain"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/timeutil"
	"go.uber.org/zap"
)

// Generate expands the medication's schedule into concrete dose
// instances over [windowStart, windowEnd]. The effective window is the
// intersection with the medication's own start/end range, floored at
// today in the medication's zone; slots at or before the current
// instant are never materialized. Existing instances are skipped, so
// the operation is idempotent and safe to re-run.
func (s *Service) Generate(ctx context.Context, med *meddomain.Medication, windowStart, windowEnd timeutil.Date) (domain.GenerationResult, error) {
	var res domain.GenerationResult
	if med == nil {
		return res, nil
	}

	loc := timeutil.ResolveLocation(med.Timezone, s.cfg.DefaultTimezone)
	now := s.clock.Now()
	today := timeutil.DateOf(now, loc)

	start := timeutil.DateOf(med.StartDate, time.UTC)
	var end timeutil.Date
	if med.EndDate != nil {
		end = timeutil.DateOf(*med.EndDate, time.UTC)
	}

	lo, hi := timeutil.ClampWindow(windowStart, windowEnd, start, end)
	if lo.Before(today) {
		lo = today
	}
	if hi.Before(lo) {
		return res, nil
	}

	times := make([]string, len(med.ScheduleTimes))
	copy(times, med.ScheduleTimes)
	sort.Strings(times)

	log := s.log.With(
		zap.String("medication_id", med.ID.String()),
		zap.String("user_id", med.UserID.String()),
	)

	var errs []error
	for _, date := range timeutil.DatesBetween(lo, hi) {
		if !meddomain.OccursOn(med, date) {
			continue
		}
		for _, timeOfDay := range times {
			instant, err := timeutil.ToAbsoluteInstant(date, timeOfDay, loc)
			if err != nil {
				res.Failed++
				log.Error("unparseable schedule time",
					zap.String("date", date.String()),
					zap.String("time_of_day", timeOfDay),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("slot %s %s: %w", date, timeOfDay, err))
				continue
			}
			if !instant.After(now) {
				res.Skipped++
				continue
			}

			exists, err := s.repo.Exists(ctx, s.db, med.UserID, med.ID, instant)
			if err != nil {
				res.Failed++
				log.Error("existence check failed",
					zap.Time("scheduled_at", instant),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("slot %s %s: %w", date, timeOfDay, err))
				continue
			}
			if exists {
				res.Skipped++
				continue
			}

			inst := domain.DoseInstance{
				ID:           s.genID.Generate(),
				UserID:       med.UserID,
				MedicationID: med.ID,
				ScheduledAt:  instant,
				Status:       domain.StatusPending,
				DosageAmount: med.DosageAmount,
				DosageUnit:   med.DosageUnit,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if err := s.repo.Insert(ctx, s.db, &inst); err != nil {
				if errors.Is(err, domain.ErrDuplicateInstance) {
					// Lost a race with a concurrent generator; the
					// instance exists, which is all we wanted.
					res.Skipped++
					continue
				}
				res.Failed++
				log.Error("insert failed",
					zap.Time("scheduled_at", instant),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("slot %s %s: %w", date, timeOfDay, err))
				continue
			}
			res.Generated++
			res.Created = append(res.Created, inst)
		}
	}

	return res, errors.Join(errs...)
}
