package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/timeutil"
	"github.com/doseline/doseline/internal/userctx"
	"github.com/doseline/doseline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  config.Config
	Repo    domain.Repository
	Planner domain.InstancePlanner
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	repo    domain.Repository
	planner domain.InstancePlanner
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("medication.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Config,
		repo:    p.Repo,
		planner: p.Planner,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMedicationRequest) (domain.Medication, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Medication{}, domain.ErrUnauthorized
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Medication{}, domain.ErrInvalidName
	}

	schedule, err := s.buildSchedule(req)
	if err != nil {
		return domain.Medication{}, err
	}

	now := s.clock.Now().UTC()
	med := domain.Medication{
		ID:             s.genID.Generate(),
		UserID:         userID,
		Name:           name,
		DosageAmount:   req.DosageAmount,
		DosageUnit:     strings.TrimSpace(req.DosageUnit),
		ScheduleTimes:  schedule.times,
		RecurrenceType: schedule.recurrenceType,
		Weekdays:       schedule.weekdays,
		IntervalDays:   schedule.intervalDays,
		AnchorDate:     schedule.anchorDate,
		StartDate:      schedule.startDate,
		EndDate:        schedule.endDate,
		Timezone:       schedule.timezone,
		Active:         true,
		Instructions:   strings.TrimSpace(req.Instructions),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Insert(ctx, s.db, &med); err != nil {
		return domain.Medication{}, err
	}

	// Instances the planner cannot create now are picked up by the daily
	// top-up job, so a planner failure does not fail the create.
	if err := s.planner.PlanForward(ctx, &med); err != nil {
		s.log.Warn("forward planning failed after create",
			zap.String("medication_id", med.ID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	return med, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateMedicationRequest) (domain.Medication, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Medication{}, domain.ErrUnauthorized
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Medication{}, err
	}

	med, err := s.repo.FindByID(ctx, s.db, userID, id)
	if err != nil {
		return domain.Medication{}, err
	}
	if med == nil {
		return domain.Medication{}, domain.ErrNotFound
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Medication{}, domain.ErrInvalidName
	}

	schedule, err := s.buildSchedule(req.CreateMedicationRequest)
	if err != nil {
		return domain.Medication{}, err
	}

	med.Name = name
	med.DosageAmount = req.DosageAmount
	med.DosageUnit = strings.TrimSpace(req.DosageUnit)
	med.ScheduleTimes = schedule.times
	med.RecurrenceType = schedule.recurrenceType
	med.Weekdays = schedule.weekdays
	med.IntervalDays = schedule.intervalDays
	med.AnchorDate = schedule.anchorDate
	med.StartDate = schedule.startDate
	med.EndDate = schedule.endDate
	med.Timezone = schedule.timezone
	med.Instructions = strings.TrimSpace(req.Instructions)
	if req.Active != nil {
		med.Active = *req.Active
	}
	med.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.Update(ctx, s.db, med); err != nil {
		return domain.Medication{}, err
	}

	// A schedule change invalidates future pending instances; replan them
	// against the updated descriptor. Already-confirmed history is kept.
	if err := s.planner.Replan(ctx, med); err != nil {
		s.log.Warn("replanning failed after update",
			zap.String("medication_id", med.ID.String()),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}

	return *med, nil
}

func (s *Service) Delete(ctx context.Context, req domain.DeleteMedicationRequest) error {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.ErrUnauthorized
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return err
	}

	med, err := s.repo.FindByID(ctx, s.db, userID, id)
	if err != nil {
		return err
	}
	if med == nil {
		return domain.ErrNotFound
	}

	if err := s.planner.Discard(ctx, med); err != nil {
		return err
	}

	rows, err := s.repo.Delete(ctx, s.db, userID, id)
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) GetByID(ctx context.Context, req domain.GetMedicationRequest) (domain.Medication, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Medication{}, domain.ErrUnauthorized
	}

	id, err := s.parseID(req.ID)
	if err != nil {
		return domain.Medication{}, err
	}

	med, err := s.repo.FindByID(ctx, s.db, userID, id)
	if err != nil {
		return domain.Medication{}, err
	}
	if med == nil {
		return domain.Medication{}, domain.ErrNotFound
	}
	return *med, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMedicationRequest) (domain.ListMedicationResponse, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.ListMedicationResponse{}, domain.ErrUnauthorized
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, userID, domain.ListMedicationFilter{
		Name:       strings.TrimSpace(req.Name),
		ActiveOnly: req.ActiveOnly,
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListMedicationResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(med *domain.Medication) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        med.ID.String(),
			CreatedAt: med.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	meds := make([]domain.Medication, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		meds = append(meds, *item)
	}

	resp := domain.ListMedicationResponse{Medications: meds}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

type scheduleFields struct {
	times          datatypes.JSONSlice[string]
	recurrenceType string
	weekdays       datatypes.JSONSlice[string]
	intervalDays   int
	anchorDate     *time.Time
	startDate      time.Time
	endDate        *time.Time
	timezone       string
}

var validWeekdays = map[string]struct{}{
	"monday": {}, "tuesday": {}, "wednesday": {}, "thursday": {},
	"friday": {}, "saturday": {}, "sunday": {},
}

func (s *Service) buildSchedule(req domain.CreateMedicationRequest) (scheduleFields, error) {
	var out scheduleFields

	if len(req.ScheduleTimes) == 0 {
		return out, domain.ErrInvalidSchedule
	}
	seen := map[string]struct{}{}
	times := make([]string, 0, len(req.ScheduleTimes))
	for _, raw := range req.ScheduleTimes {
		normalized, err := timeutil.NormalizeTimeOfDay(raw)
		if err != nil {
			return out, err
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		times = append(times, normalized)
	}
	sort.Strings(times)
	out.times = datatypes.NewJSONSlice(times)

	recurrence := strings.ToLower(strings.TrimSpace(req.RecurrenceType))
	if recurrence == "" {
		recurrence = domain.RecurrenceDaily
	}
	switch recurrence {
	case domain.RecurrenceDaily:
	case domain.RecurrenceWeekdays:
		if len(req.Weekdays) == 0 {
			return out, domain.ErrInvalidSchedule
		}
		days := make([]string, 0, len(req.Weekdays))
		for _, raw := range req.Weekdays {
			day := strings.ToLower(strings.TrimSpace(raw))
			if _, valid := validWeekdays[day]; !valid {
				return out, domain.ErrInvalidSchedule
			}
			days = append(days, day)
		}
		out.weekdays = datatypes.NewJSONSlice(days)
	case domain.RecurrenceInterval:
		if req.IntervalDays <= 0 {
			return out, domain.ErrInvalidSchedule
		}
		out.intervalDays = req.IntervalDays
	default:
		return out, domain.ErrInvalidSchedule
	}
	out.recurrenceType = recurrence

	startDate, err := timeutil.ParseDate(strings.TrimSpace(req.StartDate))
	if err != nil {
		return out, domain.ErrInvalidSchedule
	}
	out.startDate = startDate.UTCMidnight()

	if trimmed := strings.TrimSpace(req.EndDate); trimmed != "" {
		endDate, err := timeutil.ParseDate(trimmed)
		if err != nil {
			return out, domain.ErrInvalidSchedule
		}
		if endDate.Before(startDate) {
			return out, domain.ErrInvalidSchedule
		}
		end := endDate.UTCMidnight()
		out.endDate = &end
	}

	if trimmed := strings.TrimSpace(req.AnchorDate); trimmed != "" {
		anchorDate, err := timeutil.ParseDate(trimmed)
		if err != nil {
			return out, domain.ErrInvalidSchedule
		}
		anchor := anchorDate.UTCMidnight()
		out.anchorDate = &anchor
	}

	zone := strings.TrimSpace(req.Timezone)
	if zone == "" {
		zone = s.cfg.DefaultTimezone
	}
	if zone == "" {
		zone = "UTC"
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return out, domain.ErrInvalidSchedule
	}
	out.timezone = zone

	return out, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
