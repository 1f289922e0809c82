package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RiskScore is one day's non-adherence score for one medication:
// 0 means every expected dose in the trailing window was taken, 1 means
// none were. Rows are append-only; history is the point.
type RiskScore struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID       snowflake.ID `gorm:"not null;index" json:"user_id"`
	MedicationID snowflake.ID `gorm:"not null;index" json:"medication_id"`
	ScoreDate    time.Time    `gorm:"not null" json:"score_date"`
	Score        float64      `gorm:"not null" json:"score"`
	TakenCount   int          `gorm:"not null" json:"taken_count"`
	WindowDays   int          `gorm:"not null" json:"window_days"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (RiskScore) TableName() string { return "risk_scores" }
