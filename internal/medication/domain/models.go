package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	RecurrenceDaily    = "daily"
	RecurrenceWeekdays = "weekdays"
	RecurrenceInterval = "interval"
)

type Medication struct {
	ID             snowflake.ID                 `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID                 `gorm:"not null;index" json:"user_id"`
	Name           string                       `gorm:"not null" json:"name"`
	DosageAmount   float64                      `gorm:"not null;default:0" json:"dosage_amount"`
	DosageUnit     string                       `json:"dosage_unit,omitempty"`
	ScheduleTimes  datatypes.JSONSlice[string]  `gorm:"not null;default:'[]'" json:"schedule_times"`
	RecurrenceType string                       `gorm:"not null;default:'daily'" json:"recurrence_type"`
	Weekdays       datatypes.JSONSlice[string]  `gorm:"not null;default:'[]'" json:"weekdays,omitempty"`
	IntervalDays   int                          `gorm:"not null;default:0" json:"interval_days,omitempty"`
	AnchorDate     *time.Time                   `json:"anchor_date,omitempty"`
	StartDate      time.Time                    `gorm:"not null" json:"start_date"`
	EndDate        *time.Time                   `json:"end_date,omitempty"`
	Timezone       string                       `gorm:"not null;default:'UTC'" json:"timezone"`
	Active         bool                         `gorm:"not null;default:true" json:"active"`
	Instructions   string                       `json:"instructions,omitempty"`
	CreatedAt      time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
