package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/premium"
	"github.com/doseline/doseline/internal/risk/domain"
	"github.com/doseline/doseline/internal/timeutil"
	"github.com/doseline/doseline/internal/userctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Repo     domain.Repository
	DoseRepo adherencedomain.Repository
	MedRepo  meddomain.Repository
	Premium  premium.Checker
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	cfg      config.Config
	repo     domain.Repository
	doseRepo adherencedomain.Repository
	medRepo  meddomain.Repository
	premium  premium.Checker
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("risk.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		cfg:      p.Config,
		repo:     p.Repo,
		doseRepo: p.DoseRepo,
		medRepo:  p.MedRepo,
		premium:  p.Premium,
	}
}

func (s *Service) ScoreMedication(ctx context.Context, userID, medicationID snowflake.ID, asOf timeutil.Date) (domain.RiskScore, error) {
	med, err := s.medRepo.FindByID(ctx, s.db, userID, medicationID)
	if err != nil {
		return domain.RiskScore{}, err
	}
	if med == nil {
		return domain.RiskScore{}, domain.ErrNotFound
	}
	return s.scoreMedication(ctx, med, asOf)
}

func (s *Service) scoreMedication(ctx context.Context, med *meddomain.Medication, asOf timeutil.Date) (domain.RiskScore, error) {
	loc := timeutil.ResolveLocation(med.Timezone, s.cfg.DefaultTimezone)
	windowStart := asOf.AddDays(-(domain.WindowDays - 1))

	taken, err := s.doseRepo.CountTakenForMedication(ctx, s.db, med.UserID, med.ID,
		timeutil.StartOfDay(windowStart, loc), timeutil.EndOfDay(asOf, loc))
	if err != nil {
		return domain.RiskScore{}, err
	}

	score := domain.RiskScore{
		ID:           s.genID.Generate(),
		UserID:       med.UserID,
		MedicationID: med.ID,
		ScoreDate:    asOf.UTCMidnight(),
		Score:        domain.Score(int(taken)),
		TakenCount:   int(taken),
		WindowDays:   domain.WindowDays,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, s.db, &score); err != nil {
		if errors.Is(err, domain.ErrDuplicateScore) {
			// Already scored today; a rerun changes nothing.
			return score, nil
		}
		return domain.RiskScore{}, err
	}
	return score, nil
}

// RunDaily scores every active medication of every premium user as of
// today. Failures are isolated per medication so one broken pair does
// not starve the rest of the fleet.
func (s *Service) RunDaily(ctx context.Context) (domain.RunResult, error) {
	var res domain.RunResult

	userIDs, err := s.premium.ListPremiumUserIDs(ctx)
	if err != nil {
		return res, err
	}
	res.Users = len(userIDs)

	var errs []error
	for _, userID := range userIDs {
		meds, err := s.medRepo.FindActiveByUser(ctx, s.db, userID)
		if err != nil {
			res.Failed++
			s.log.Error("loading medications failed",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
			continue
		}
		for _, med := range meds {
			res.Medications++
			loc := timeutil.ResolveLocation(med.Timezone, s.cfg.DefaultTimezone)
			asOf := timeutil.DateOf(s.clock.Now(), loc)
			if _, err := s.scoreMedication(ctx, med, asOf); err != nil {
				res.Failed++
				s.log.Error("scoring failed",
					zap.String("user_id", userID.String()),
					zap.String("medication_id", med.ID.String()),
					zap.Error(err),
				)
				errs = append(errs, fmt.Errorf("medication %s: %w", med.ID, err))
				continue
			}
			res.Scored++
		}
	}

	return res, errors.Join(errs...)
}

func (s *Service) History(ctx context.Context, req domain.HistoryRequest) (domain.HistoryResponse, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.HistoryResponse{}, domain.ErrUnauthorized
	}

	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 90
	}

	items, err := s.repo.ListByUser(ctx, s.db, userID, limit)
	if err != nil {
		return domain.HistoryResponse{}, err
	}

	scores := make([]domain.RiskScore, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		scores = append(scores, *item)
	}
	return domain.HistoryResponse{Scores: scores}, nil
}
