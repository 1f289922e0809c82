package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Status is the lifecycle state of a dose instance. Instances are born
// pending and move exactly once, to taken, skipped or missed.
type Status string

const (
	StatusPending Status = "pending"
	StatusTaken   Status = "taken"
	StatusMissed  Status = "missed"
	StatusSkipped Status = "skipped"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped:
		return true
	default:
		return false
	}
}

// DoseInstance is a single expected intake of a medication at a
// concrete UTC instant. ScheduledAt is the source of truth; any local
// rendering derives from it and the medication's timezone.
type DoseInstance struct {
	ID           snowflake.ID                `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID                `gorm:"not null;index" json:"user_id"`
	MedicationID snowflake.ID                `gorm:"not null;index" json:"medication_id"`
	ScheduledAt  time.Time                   `gorm:"not null" json:"scheduled_at"`
	Status       Status                      `gorm:"not null;default:'pending'" json:"status"`
	TakenAt      *time.Time                  `json:"taken_at,omitempty"`
	Notes        string                      `json:"notes,omitempty"`
	SideEffects  datatypes.JSONSlice[string] `gorm:"not null;default:'[]'" json:"side_effects,omitempty"`
	DosageAmount float64                     `gorm:"not null;default:0" json:"dosage_amount,omitempty"`
	DosageUnit   string                      `json:"dosage_unit,omitempty"`
	ReminderSent bool                        `gorm:"not null;default:false" json:"reminder_sent"`
	CreatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	// MedicationName is populated by queries that join the medications
	// table; it is never written back.
	MedicationName string `gorm:"->" json:"medication_name,omitempty"`
}

func (DoseInstance) TableName() string { return "dose_instances" }
