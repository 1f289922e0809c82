package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StatusCount is one row of a per-status aggregate.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int64  `json:"count"`
}

// MedicationStatusCount is one row of a per-medication, per-status
// aggregate, with the medication name joined in.
type MedicationStatusCount struct {
	MedicationID   snowflake.ID `json:"medication_id"`
	MedicationName string       `json:"medication_name"`
	Status         Status       `json:"status"`
	Count          int64        `json:"count"`
}

// TransitionDetails carries the column values written alongside a
// status transition. Zero values leave the row's metadata empty, which
// is what the sweep and plain confirmations want.
type TransitionDetails struct {
	TakenAt      *time.Time
	Notes        string
	SideEffects  []string
	DosageAmount float64
	DosageUnit   string
	Now          time.Time
}

type Repository interface {
	Exists(ctx context.Context, db *gorm.DB, userID, medicationID snowflake.ID, scheduledAt time.Time) (bool, error)
	// Insert persists a new instance. A uniqueness violation on
	// (user_id, medication_id, scheduled_at) surfaces as
	// ErrDuplicateInstance.
	Insert(ctx context.Context, db *gorm.DB, inst *DoseInstance) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*DoseInstance, error)
	FindByUserInRange(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) ([]*DoseInstance, error)
	// FindPendingOlderThan pages through pending instances scheduled
	// strictly before cutoff, ordered by id, resuming after afterID.
	FindPendingOlderThan(ctx context.Context, db *gorm.DB, cutoff time.Time, afterID snowflake.ID, limit int) ([]*DoseInstance, error)
	// FindPendingDueBetween returns pending, not-yet-reminded instances
	// scheduled inside [from, to].
	FindPendingDueBetween(ctx context.Context, db *gorm.DB, from, to time.Time, limit int) ([]*DoseInstance, error)
	// TransitionStatus performs a conditional update guarded by the
	// expected current status and reports rows affected. Zero rows
	// means somebody else won the race; callers decide whether that is
	// an error.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, details TransitionDetails) (int64, error)
	MarkReminderSent(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	DeleteFuturePending(ctx context.Context, db *gorm.DB, userID, medicationID snowflake.ID, after time.Time) (int64, error)
	DeleteByMedication(ctx context.Context, db *gorm.DB, userID, medicationID snowflake.ID) (int64, error)
	CountByStatusInRange(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) ([]StatusCount, error)
	CountByMedicationInRange(ctx context.Context, db *gorm.DB, userID snowflake.ID, from, to time.Time) ([]MedicationStatusCount, error)
	CountTakenForMedication(ctx context.Context, db *gorm.DB, userID, medicationID snowflake.ID, from, to time.Time) (int64, error)
}
