package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/clock"
	"github.com/doseline/doseline/internal/config"
	"github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/medication/repository"
	"github.com/doseline/doseline/internal/userctx"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubPlanner struct {
	planned   int
	replanned int
	discarded int
}

func (p *stubPlanner) PlanForward(ctx context.Context, med *domain.Medication) error {
	p.planned++
	return nil
}

func (p *stubPlanner) Replan(ctx context.Context, med *domain.Medication) error {
	p.replanned++
	return nil
}

func (p *stubPlanner) Discard(ctx context.Context, med *domain.Medication) error {
	p.discarded++
	return nil
}

func openMedicationDB(t *testing.T) *gorm.DB {
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

	return db
}

func setupMedicationService(t *testing.T, clk clock.Clock) (*Service, *stubPlanner, *snowflake.Node) {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	planner := &stubPlanner{}
	svc := &Service{
		db:      openMedicationDB(t),
		log:     zap.NewNop(),
		genID:   node,
		clock:   clk,
		cfg:     config.Config{DefaultTimezone: "UTC"},
		repo:    repository.Provide(),
		planner: planner,
	}
	return svc, planner, node
}

func medCtx(userID snowflake.ID) context.Context {
	return userctx.WithUserID(context.Background(), userID)
}

func TestCreateStampsTimesFromClock(t *testing.T) {
	created := time.Date(2024, time.June, 1, 6, 30, 0, 0, time.UTC)
	clk := clock.NewFakeClock(created)
	svc, planner, node := setupMedicationService(t, clk)

	med, err := svc.Create(medCtx(node.Generate()), domain.CreateMedicationRequest{
		Name:          "metformin",
		DosageAmount:  500,
		DosageUnit:    "mg",
		ScheduleTimes: []string{"08:00"},
		StartDate:     "2024-06-01",
	})
	require.NoError(t, err)

	assert.Equal(t, created, med.CreatedAt)
	assert.Equal(t, created, med.UpdatedAt)
	assert.Equal(t, 1, planner.planned)
}

func TestUpdateStampsUpdatedAtFromClock(t *testing.T) {
	created := time.Date(2024, time.June, 1, 6, 30, 0, 0, time.UTC)
	clk := clock.NewFakeClock(created)
	svc, planner, node := setupMedicationService(t, clk)
	ctx := medCtx(node.Generate())

	med, err := svc.Create(ctx, domain.CreateMedicationRequest{
		Name:          "metformin",
		ScheduleTimes: []string{"08:00"},
		StartDate:     "2024-06-01",
	})
	require.NoError(t, err)

	clk.Advance(48 * time.Hour)

	updated, err := svc.Update(ctx, domain.UpdateMedicationRequest{
		ID: med.ID.String(),
		CreateMedicationRequest: domain.CreateMedicationRequest{
			Name:          "metformin",
			ScheduleTimes: []string{"08:00", "20:00"},
			StartDate:     "2024-06-01",
		},
	})
	require.NoError(t, err)

	assert.True(t, created.Equal(updated.CreatedAt), "create stamp survives updates")
	assert.Equal(t, clk.Now(), updated.UpdatedAt)
	assert.Equal(t, 1, planner.replanned)
}
