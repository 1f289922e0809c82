package service

import (
	"context"

	"github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/observability/metrics"
	"github.com/doseline/doseline/internal/timeutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PlannerParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Config  config.Config
	Repo    domain.Repository
	Service domain.Service
}

// Planner adapts the generation service to the medication module's
// planning contract: schedule changes fan out here.
type Planner struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	cfg   config.Config
	repo  domain.Repository
	svc   domain.Service
}

func NewPlanner(p PlannerParams) meddomain.InstancePlanner {
	return &Planner{
		db:    p.DB,
		log:   p.Log.Named("adherence.planner"),
		clock: p.Clock,
		cfg:   p.Config,
		repo:  p.Repo,
		svc:   p.Service,
	}
}

func (p *Planner) PlanForward(ctx context.Context, med *meddomain.Medication) error {
	loc := timeutil.ResolveLocation(med.Timezone, p.cfg.DefaultTimezone)
	today := timeutil.DateOf(p.clock.Now(), loc)

	horizon := p.cfg.GenerationHorizonDays
	if horizon <= 0 {
		horizon = 7
	}

	res, err := p.svc.Generate(ctx, med, today, today.AddDays(horizon))
	metrics.Jobs().AddDosesGenerated("schedule_change", res.Generated)
	return err
}

func (p *Planner) Replan(ctx context.Context, med *meddomain.Medication) error {
	deleted, err := p.repo.DeleteFuturePending(ctx, p.db, med.UserID, med.ID, p.clock.Now())
	if err != nil {
		return err
	}
	p.log.Info("future pending instances discarded",
		zap.String("medication_id", med.ID.String()),
		zap.String("user_id", med.UserID.String()),
		zap.Int64("deleted", deleted),
	)
	return p.PlanForward(ctx, med)
}

func (p *Planner) Discard(ctx context.Context, med *meddomain.Medication) error {
	deleted, err := p.repo.DeleteByMedication(ctx, p.db, med.UserID, med.ID)
	if err != nil {
		return err
	}
	p.log.Info("dose instances discarded",
		zap.String("medication_id", med.ID.String()),
		zap.String("user_id", med.UserID.String()),
		zap.Int64("deleted", deleted),
	)
	return nil
}
