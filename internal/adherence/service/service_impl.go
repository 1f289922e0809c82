package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/timeutil"
	"github.com/doseline/doseline/internal/userctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Repo   domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("adherence.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config,
		repo:  p.Repo,
	}
}

func (s *Service) Confirm(ctx context.Context, req domain.ConfirmDoseRequest) (domain.DoseInstance, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.DoseInstance{}, domain.ErrUnauthorized
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.DoseInstance{}, err
	}

	inst, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.DoseInstance{}, err
	}
	if inst == nil {
		return domain.DoseInstance{}, domain.ErrNotFound
	}
	if inst.UserID != userID {
		return domain.DoseInstance{}, domain.ErrUnauthorized
	}
	if inst.Status != domain.StatusPending {
		return domain.DoseInstance{}, domain.ErrInvalidState
	}

	now := s.clock.Now()
	details := domain.TransitionDetails{
		TakenAt:      &now,
		Notes:        strings.TrimSpace(req.Notes),
		SideEffects:  req.SideEffects,
		DosageAmount: req.DosageAmount,
		DosageUnit:   strings.TrimSpace(req.DosageUnit),
		Now:          now,
	}

	rows, err := s.repo.TransitionStatus(ctx, s.db, id, domain.StatusPending, domain.StatusTaken, details)
	if err != nil {
		return domain.DoseInstance{}, err
	}
	if rows == 0 {
		// A concurrent action already moved this instance.
		return domain.DoseInstance{}, domain.ErrInvalidState
	}

	inst.Status = domain.StatusTaken
	inst.TakenAt = &now
	inst.Notes = details.Notes
	inst.SideEffects = datatypes.NewJSONSlice(req.SideEffects)
	inst.DosageAmount = details.DosageAmount
	inst.DosageUnit = details.DosageUnit
	inst.UpdatedAt = now
	return *inst, nil
}

func (s *Service) Skip(ctx context.Context, req domain.SkipDoseRequest) (domain.DoseInstance, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.DoseInstance{}, domain.ErrUnauthorized
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.DoseInstance{}, err
	}

	inst, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.DoseInstance{}, err
	}
	if inst == nil {
		return domain.DoseInstance{}, domain.ErrNotFound
	}
	if inst.UserID != userID {
		return domain.DoseInstance{}, domain.ErrUnauthorized
	}
	if inst.Status != domain.StatusPending {
		return domain.DoseInstance{}, domain.ErrInvalidState
	}

	now := s.clock.Now()
	details := domain.TransitionDetails{
		Notes: strings.TrimSpace(req.Notes),
		Now:   now,
	}

	rows, err := s.repo.TransitionStatus(ctx, s.db, id, domain.StatusPending, domain.StatusSkipped, details)
	if err != nil {
		return domain.DoseInstance{}, err
	}
	if rows == 0 {
		return domain.DoseInstance{}, domain.ErrInvalidState
	}

	inst.Status = domain.StatusSkipped
	inst.Notes = details.Notes
	inst.UpdatedAt = now
	return *inst, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDosesRequest) (domain.ListDosesResponse, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.ListDosesResponse{}, domain.ErrUnauthorized
	}

	fromDate, err := timeutil.ParseDate(strings.TrimSpace(req.From))
	if err != nil {
		return domain.ListDosesResponse{}, domain.ErrInvalidRange
	}
	toDate, err := timeutil.ParseDate(strings.TrimSpace(req.To))
	if err != nil {
		return domain.ListDosesResponse{}, domain.ErrInvalidRange
	}
	if toDate.Before(fromDate) {
		return domain.ListDosesResponse{}, domain.ErrInvalidRange
	}

	loc := timeutil.ResolveLocation(req.Timezone, s.cfg.DefaultTimezone)
	from := timeutil.StartOfDay(fromDate, loc)
	to := timeutil.EndOfDay(toDate, loc)

	instances, err := s.repo.FindByUserInRange(ctx, s.db, userID, from, to)
	if err != nil {
		return domain.ListDosesResponse{}, err
	}

	status := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	doses := make([]domain.DoseInstance, 0, len(instances))
	for _, inst := range instances {
		if inst == nil {
			continue
		}
		if status != "" && inst.Status != status {
			continue
		}
		doses = append(doses, *inst)
	}
	return domain.ListDosesResponse{Doses: doses}, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
