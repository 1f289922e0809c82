package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/stats/domain"
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
	Clock    clock.Clock
	Config   config.Config
	Holder   *config.AdherenceConfigHolder
	DoseRepo adherencedomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	cfg      config.Config
	holder   *config.AdherenceConfigHolder
	doseRepo adherencedomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("stats.service"),
		clock:    p.Clock,
		cfg:      p.Config,
		holder:   p.Holder,
		doseRepo: p.DoseRepo,
	}
}

func (s *Service) Range(ctx context.Context, req domain.RangeRequest) (domain.StatsReport, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.StatsReport{}, domain.ErrUnauthorized
	}

	fromDate, err := timeutil.ParseDate(strings.TrimSpace(req.From))
	if err != nil {
		return domain.StatsReport{}, domain.ErrInvalidRange
	}
	toDate, err := timeutil.ParseDate(strings.TrimSpace(req.To))
	if err != nil {
		return domain.StatsReport{}, domain.ErrInvalidRange
	}
	if toDate.Before(fromDate) {
		return domain.StatsReport{}, domain.ErrInvalidRange
	}

	loc := timeutil.ResolveLocation(req.Timezone, s.cfg.DefaultTimezone)
	return s.report(ctx, userID, fromDate, toDate, loc)
}

func (s *Service) Overview(ctx context.Context, req domain.OverviewRequest) (domain.Overview, error) {
	userID, ok := userctx.UserIDFromContext(ctx)
	if !ok || userID == 0 {
		return domain.Overview{}, domain.ErrUnauthorized
	}

	loc := timeutil.ResolveLocation(req.Timezone, s.cfg.DefaultTimezone)
	today := timeutil.DateOf(s.clock.Now(), loc)

	todayReport, err := s.report(ctx, userID, today, today, loc)
	if err != nil {
		return domain.Overview{}, err
	}

	weekStart, weekEnd := weekBounds(today, loc)
	weekReport, err := s.report(ctx, userID, weekStart, weekEnd, loc)
	if err != nil {
		return domain.Overview{}, err
	}

	monthStart, monthEnd := monthBounds(today)
	monthReport, err := s.report(ctx, userID, monthStart, monthEnd, loc)
	if err != nil {
		return domain.Overview{}, err
	}

	return domain.Overview{
		Today:   todayReport,
		Week:    weekReport,
		Month:   monthReport,
		Ranking: s.holder.Get().RankFor(monthReport.AdherenceRate),
	}, nil
}

func (s *Service) report(ctx context.Context, userID snowflake.ID, from, to timeutil.Date, loc *time.Location) (domain.StatsReport, error) {
	fromInstant := timeutil.StartOfDay(from, loc)
	toInstant := timeutil.EndOfDay(to, loc)

	statusCounts, err := s.doseRepo.CountByStatusInRange(ctx, s.db, userID, fromInstant, toInstant)
	if err != nil {
		return domain.StatsReport{}, err
	}
	medCounts, err := s.doseRepo.CountByMedicationInRange(ctx, s.db, userID, fromInstant, toInstant)
	if err != nil {
		return domain.StatsReport{}, err
	}

	report := domain.StatsReport{
		From:     from.String(),
		To:       to.String(),
		Timezone: loc.String(),
	}
	for _, row := range statusCounts {
		report.Total += row.Count
		switch row.Status {
		case adherencedomain.StatusTaken:
			report.Taken = row.Count
		case adherencedomain.StatusMissed:
			report.Missed = row.Count
		case adherencedomain.StatusSkipped:
			report.Skipped = row.Count
		case adherencedomain.StatusPending:
			report.Pending = row.Count
		}
	}
	report.AdherenceRate = adherenceRate(report.Taken, report.Missed, report.Skipped)

	byMed := map[snowflake.ID]*domain.MedicationStats{}
	for _, row := range medCounts {
		entry, ok := byMed[row.MedicationID]
		if !ok {
			entry = &domain.MedicationStats{
				MedicationID:   row.MedicationID,
				MedicationName: row.MedicationName,
			}
			byMed[row.MedicationID] = entry
		}
		entry.Total += row.Count
		switch row.Status {
		case adherencedomain.StatusTaken:
			entry.Taken = row.Count
		case adherencedomain.StatusMissed:
			entry.Missed = row.Count
		case adherencedomain.StatusSkipped:
			entry.Skipped = row.Count
		case adherencedomain.StatusPending:
			entry.Pending = row.Count
		}
	}
	for _, entry := range byMed {
		entry.AdherenceRate = adherenceRate(entry.Taken, entry.Missed, entry.Skipped)
		report.ByMedication = append(report.ByMedication, *entry)
	}
	sort.Slice(report.ByMedication, func(i, j int) bool {
		return report.ByMedication[i].MedicationName < report.ByMedication[j].MedicationName
	})

	return report, nil
}

// adherenceRate is taken over resolved doses as a percentage. A range
// with nothing resolved yet reports zero rather than dividing by zero.
func adherenceRate(taken, missed, skipped int64) float64 {
	denominator := taken + missed + skipped
	if denominator == 0 {
		return 0
	}
	return float64(taken) / float64(denominator) * 100
}

// weekBounds returns the Monday-start week containing the date.
func weekBounds(date timeutil.Date, loc *time.Location) (timeutil.Date, timeutil.Date) {
	weekday := timeutil.WeekdayOf(date, loc)
	offset := (int(weekday) + 6) % 7
	start := date.AddDays(-offset)
	return start, start.AddDays(6)
}

func monthBounds(date timeutil.Date) (timeutil.Date, timeutil.Date) {
	start := timeutil.NewDate(date.Year, date.Month, 1)
	end := start.AddDays(32)
	end = timeutil.NewDate(end.Year, end.Month, 1).AddDays(-1)
	return start, end
}
