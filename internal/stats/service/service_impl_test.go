package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	adherencerepo "github.com/doseline/doseline/internal/adherence/repository"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/stats/domain"
	"github.com/doseline/doseline/internal/userctx"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupStats(t *testing.T, clk clock.Clock) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(`CREATE TABLE medications (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL,
		name TEXT NOT NULL
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

	holder, err := config.NewAdherenceConfigHolder()
	require.NoError(t, err)

	svc := &Service{
		db:       db,
		log:      zap.NewNop(),
		clock:    clk,
		cfg:      config.Config{DefaultTimezone: "UTC"},
		holder:   holder,
		doseRepo: adherencerepo.Provide(),
	}
	return svc, db, node
}

func seedMed(t *testing.T, db *gorm.DB, id, userID snowflake.ID, name string) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO medications (id, user_id, name) VALUES (?, ?, ?)`,
		id, userID, name,
	).Error)
}

func seedDose(t *testing.T, db *gorm.DB, node *snowflake.Node, userID, medID snowflake.ID, at time.Time, status adherencedomain.Status) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO dose_instances (
		    id, user_id, medication_id, scheduled_at, status,
		    side_effects, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '[]', ?, ?)`,
		node.Generate(), userID, medID, at, status, at, at,
	).Error)
}

func TestRangeComputesAdherenceRate(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupStats(t, clk)

	userID := node.Generate()
	medID := node.Generate()
	seedMed(t, db, medID, userID, "metformin")

	day := time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)
	seedDose(t, db, node, userID, medID, day, adherencedomain.StatusTaken)
	seedDose(t, db, node, userID, medID, day.Add(6*time.Hour), adherencedomain.StatusTaken)
	seedDose(t, db, node, userID, medID, day.Add(12*time.Hour), adherencedomain.StatusMissed)
	seedDose(t, db, node, userID, medID, day.Add(13*time.Hour), adherencedomain.StatusSkipped)
	seedDose(t, db, node, userID, medID, day.Add(14*time.Hour), adherencedomain.StatusPending)

	report, err := svc.Range(userctx.WithUserID(context.Background(), userID), domain.RangeRequest{
		From:     "2024-06-10",
		To:       "2024-06-10",
		Timezone: "UTC",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 5, report.Total)
	assert.EqualValues(t, 2, report.Taken)
	assert.EqualValues(t, 1, report.Missed)
	assert.EqualValues(t, 1, report.Skipped)
	assert.EqualValues(t, 1, report.Pending)
	// Pending doses are excluded from the denominator: 2/(2+1+1).
	assert.InDelta(t, 50.0, report.AdherenceRate, 0.0001)

	require.Len(t, report.ByMedication, 1)
	assert.Equal(t, "metformin", report.ByMedication[0].MedicationName)
	assert.InDelta(t, 50.0, report.ByMedication[0].AdherenceRate, 0.0001)
}

func TestRangeZeroDenominator(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupStats(t, clk)

	userID := node.Generate()
	medID := node.Generate()
	seedMed(t, db, medID, userID, "metformin")
	seedDose(t, db, node, userID, medID,
		time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC), adherencedomain.StatusPending)

	report, err := svc.Range(userctx.WithUserID(context.Background(), userID), domain.RangeRequest{
		From:     "2024-06-10",
		To:       "2024-06-10",
		Timezone: "UTC",
	})
	require.NoError(t, err)
	assert.Zero(t, report.AdherenceRate, "nothing resolved means rate 0, not NaN")
}

func TestRangeLocalDayBoundaries(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupStats(t, clk)

	userID := node.Generate()
	medID := node.Generate()
	seedMed(t, db, medID, userID, "enalapril")

	// 02:30 UTC on June 11 is still 23:30 on June 10 in Buenos Aires.
	lateLocal := time.Date(2024, time.June, 11, 2, 30, 0, 0, time.UTC)
	seedDose(t, db, node, userID, medID, lateLocal, adherencedomain.StatusTaken)
	// 03:30 UTC on June 11 is already June 11 locally.
	nextLocal := time.Date(2024, time.June, 11, 3, 30, 0, 0, time.UTC)
	seedDose(t, db, node, userID, medID, nextLocal, adherencedomain.StatusMissed)

	report, err := svc.Range(userctx.WithUserID(context.Background(), userID), domain.RangeRequest{
		From:     "2024-06-10",
		To:       "2024-06-10",
		Timezone: "America/Argentina/Buenos_Aires",
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Total, "only the dose inside the local day")
	assert.EqualValues(t, 1, report.Taken)
}

func TestOverviewWeekStartsMonday(t *testing.T) {
	// 2024-06-12 is a Wednesday; its week is June 10 through June 16.
	clk := clock.NewFakeClock(time.Date(2024, time.June, 12, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupStats(t, clk)

	userID := node.Generate()
	medID := node.Generate()
	seedMed(t, db, medID, userID, "metformin")

	seedDose(t, db, node, userID, medID,
		time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC), adherencedomain.StatusTaken)
	// Sunday June 9 belongs to the previous week.
	seedDose(t, db, node, userID, medID,
		time.Date(2024, time.June, 9, 8, 0, 0, 0, time.UTC), adherencedomain.StatusMissed)

	overview, err := svc.Overview(userctx.WithUserID(context.Background(), userID), domain.OverviewRequest{
		Timezone: "UTC",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-06-10", overview.Week.From)
	assert.Equal(t, "2024-06-16", overview.Week.To)
	assert.EqualValues(t, 1, overview.Week.Total)
	assert.EqualValues(t, 1, overview.Week.Taken)
}

func TestOverviewRanking(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2024, time.June, 12, 12, 0, 0, 0, time.UTC))
	svc, db, node := setupStats(t, clk)

	userID := node.Generate()
	medID := node.Generate()
	seedMed(t, db, medID, userID, "metformin")

	// 9 taken, 1 missed across the month: 90%, the excellent floor.
	base := time.Date(2024, time.June, 3, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 9; i++ {
		seedDose(t, db, node, userID, medID, base.AddDate(0, 0, i), adherencedomain.StatusTaken)
	}
	seedDose(t, db, node, userID, medID, base.AddDate(0, 0, 9), adherencedomain.StatusMissed)

	overview, err := svc.Overview(userctx.WithUserID(context.Background(), userID), domain.OverviewRequest{
		Timezone: "UTC",
	})
	require.NoError(t, err)
	assert.InDelta(t, 90.0, overview.Month.AdherenceRate, 0.0001)
	assert.Equal(t, "excellent", overview.Ranking)
}
