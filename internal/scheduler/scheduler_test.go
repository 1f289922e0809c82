package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	adherencerepo "github.com/doseline/doseline/internal/adherence/repository"
	adherenceservice "github.com/doseline/doseline/internal/adherence/service"
	"github.com/doseline/doseline/internal/clock"
	appconfig "github.com/doseline/doseline/internal/config"
	meddomain "github.com/doseline/doseline/internal/medication/domain"
	medrepo "github.com/doseline/doseline/internal/medication/repository"
	"github.com/doseline/doseline/internal/notification"
	obsmetrics "github.com/doseline/doseline/internal/observability/metrics"
	riskdomain "github.com/doseline/doseline/internal/risk/domain"
	"github.com/doseline/doseline/internal/timeutil"
)

// Mocks for jobs whose internals are covered by their own package tests.

type mockRiskSvc struct {
	runs int
}

func (m *mockRiskSvc) ScoreMedication(ctx context.Context, userID, medicationID snowflake.ID, asOf timeutil.Date) (riskdomain.RiskScore, error) {
	return riskdomain.RiskScore{}, nil
}

func (m *mockRiskSvc) RunDaily(ctx context.Context) (riskdomain.RunResult, error) {
	m.runs++
	return riskdomain.RunResult{Users: 1, Medications: 2, Scored: 2}, nil
}

func (m *mockRiskSvc) History(ctx context.Context, req riskdomain.HistoryRequest) (riskdomain.HistoryResponse, error) {
	return riskdomain.HistoryResponse{}, nil
}

type mockDispatcher struct {
	runs int
}

func (m *mockDispatcher) DispatchDueReminders(ctx context.Context, now time.Time) (notification.DispatchResult, error) {
	m.runs++
	return notification.DispatchResult{}, nil
}

func (m *mockDispatcher) SendNow(ctx context.Context, doseID string) error {
	return nil
}

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		obsmetrics.ResetJobMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			require.NotNil(t, metric.Counter, "metric %s is not a counter", name)
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}

func openSchedulerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	require.NoError(t, db.Exec(`CREATE TABLE medications (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		dosage_amount REAL NOT NULL DEFAULT 0,
		dosage_unit TEXT,
		schedule_times TEXT NOT NULL DEFAULT '[]',
		recurrence_type TEXT NOT NULL DEFAULT 'daily',
		weekdays TEXT NOT NULL DEFAULT '[]',
		interval_days INTEGER NOT NULL DEFAULT 0,
		anchor_date DATETIME,
		start_date DATETIME NOT NULL,
		end_date DATETIME,
		timezone TEXT NOT NULL DEFAULT 'UTC',
		active BOOLEAN NOT NULL DEFAULT 1,
		instructions TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)

	require.NoError(t, db.Exec(`CREATE TABLE dose_instances (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		medication_id INTEGER NOT NULL,
		scheduled_at DATETIME NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		taken_at DATETIME,
		notes TEXT,
		side_effects TEXT NOT NULL DEFAULT '[]',
		dosage_amount REAL NOT NULL DEFAULT 0,
		dosage_unit TEXT,
		reminder_sent BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`).Error)

	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX uidx_dose_instances_slot
		ON dose_instances(user_id, medication_id, scheduled_at)`).Error)

	return db
}

type schedulerFixture struct {
	sched      *Scheduler
	db         *gorm.DB
	node       *snowflake.Node
	clk        *clock.FakeClock
	riskSvc    *mockRiskSvc
	dispatcher *mockDispatcher
}

func setupScheduler(t *testing.T, clk *clock.FakeClock, cfg Config) *schedulerFixture {
	t.Helper()

	db := openSchedulerDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder, err := appconfig.NewAdherenceConfigHolder()
	require.NoError(t, err)

	adherenceSvc := adherenceservice.New(adherenceservice.Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  clk,
		Config: appconfig.Config{DefaultTimezone: "UTC", SweepBatchSize: 50},
		Repo:   adherencerepo.Provide(),
	})

	riskSvc := &mockRiskSvc{}
	dispatcher := &mockDispatcher{}

	sched, err := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Clock:        clk,
		Config:       cfg,
		Holder:       holder,
		MedRepo:      medrepo.Provide(),
		AdherenceSvc: adherenceSvc,
		RiskSvc:      riskSvc,
		Dispatcher:   dispatcher,
	})
	require.NoError(t, err)

	return &schedulerFixture{
		sched:      sched,
		db:         db,
		node:       node,
		clk:        clk,
		riskSvc:    riskSvc,
		dispatcher: dispatcher,
	}
}

func seedDailyMedication(t *testing.T, f *schedulerFixture, times []string, start time.Time) *meddomain.Medication {
	t.Helper()
	med := &meddomain.Medication{
		ID:             f.node.Generate(),
		UserID:         f.node.Generate(),
		Name:           "metformin",
		DosageAmount:   500,
		DosageUnit:     "mg",
		ScheduleTimes:  datatypes.NewJSONSlice(times),
		RecurrenceType: meddomain.RecurrenceDaily,
		StartDate:      start,
		Timezone:       "UTC",
		Active:         true,
		CreatedAt:      start,
		UpdatedAt:      start,
	}
	require.NoError(t, f.db.Exec(
		`INSERT INTO medications (
		    id, user_id, name, dosage_amount, dosage_unit, schedule_times,
		    recurrence_type, weekdays, interval_days, anchor_date,
		    start_date, end_date, timezone, active, instructions,
		    created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		med.ID, med.UserID, med.Name, med.DosageAmount, med.DosageUnit,
		med.ScheduleTimes, med.RecurrenceType, med.Weekdays,
		med.IntervalDays, med.AnchorDate, med.StartDate, med.EndDate,
		med.Timezone, med.Active, med.Instructions,
		med.CreatedAt, med.UpdatedAt,
	).Error)
	return med
}

func countDosesByStatus(t *testing.T, db *gorm.DB, status adherencedomain.Status) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Raw(
		`SELECT COUNT(1) FROM dose_instances WHERE status = ?`, status,
	).Scan(&count).Error)
	return count
}

// Simulate three days of scheduler ticks against a real database and
// verify the pipeline end to end: top-up keeps the horizon filled,
// unconfirmed doses age into missed, and the delegated jobs run.
func TestSchedulerRunOnceFakeClockThreeDays(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetJobMetricsForTest()
	obsmetrics.JobsWithConfig(obsmetrics.Config{ServiceName: "test", Environment: "test"})

	start := time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	f := setupScheduler(t, clk, Config{HorizonDays: 7})
	seedDailyMedication(t, f, []string{"08:00", "20:00"}, start)

	ctx := context.Background()
	require.NoError(t, f.sched.RunOnce(ctx))

	// Day 0 at 06:00: June 1 through June 8 inclusive, both slots still ahead.
	assert.EqualValues(t, 16, countDosesByStatus(t, f.db, adherencedomain.StatusPending))
	assert.Equal(t, 1, f.riskSvc.runs)
	assert.Equal(t, 1, f.dispatcher.runs)

	// Two more daily ticks. Each extends the horizon by one day (2 doses)
	// and ages anything older than the 2h grace into missed.
	for day := 0; day < 2; day++ {
		clk.Advance(24 * time.Hour)
		require.NoError(t, f.sched.RunOnce(ctx))
	}

	// June 1 and June 2 slots (4 doses) are now past grace.
	assert.EqualValues(t, 4, countDosesByStatus(t, f.db, adherencedomain.StatusMissed))
	assert.EqualValues(t, 16, countDosesByStatus(t, f.db, adherencedomain.StatusPending))
	assert.Equal(t, 3, f.riskSvc.runs)
	assert.Equal(t, 3, f.dispatcher.runs)

	constLabels := map[string]string{"service": "test", "env": "test"}
	topup := map[string]string{"service": "test", "env": "test", "trigger": "topup"}
	assert.EqualValues(t, 20, getCounterValue(t, registry, "doseline_doses_generated_total", topup))
	assert.EqualValues(t, 4, getCounterValue(t, registry, "doseline_doses_missed_total", constLabels))
}

func TestSchedulerRunOnceIsIdempotentWithinADay(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetJobMetricsForTest()
	obsmetrics.JobsWithConfig(obsmetrics.Config{ServiceName: "test", Environment: "test"})

	start := time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	f := setupScheduler(t, clk, Config{HorizonDays: 3})
	seedDailyMedication(t, f, []string{"09:00"}, start)

	ctx := context.Background()
	require.NoError(t, f.sched.RunOnce(ctx))
	assert.EqualValues(t, 4, countDosesByStatus(t, f.db, adherencedomain.StatusPending))

	// The run loop fires far more often than the horizon moves.
	for i := 0; i < 5; i++ {
		clk.Advance(time.Minute)
		require.NoError(t, f.sched.RunOnce(ctx))
	}
	assert.EqualValues(t, 4, countDosesByStatus(t, f.db, adherencedomain.StatusPending))
}

func TestSchedulerEnabledJobsFilter(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	obsmetrics.ResetJobMetricsForTest()
	obsmetrics.JobsWithConfig(obsmetrics.Config{ServiceName: "test", Environment: "test"})

	start := time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(start)
	f := setupScheduler(t, clk, Config{EnabledJobs: []string{"missed_sweep"}})
	seedDailyMedication(t, f, []string{"08:00"}, start)

	require.NoError(t, f.sched.RunOnce(context.Background()))

	// Only the sweep ran: no generation, no risk scoring, no reminders.
	assert.EqualValues(t, 0, countDosesByStatus(t, f.db, adherencedomain.StatusPending))
	assert.Zero(t, f.riskSvc.runs)
	assert.Zero(t, f.dispatcher.runs)
}

func TestSchedulerNewRejectsMissingDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
