package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/timeutil"
	"gorm.io/gorm"
)

// WindowDays is the trailing window the score looks back over.
const WindowDays = 14

type Repository interface {
	// Insert persists a score row. A duplicate (user, medication, date)
	// surfaces as ErrDuplicateScore so reruns stay idempotent.
	Insert(ctx context.Context, db *gorm.DB, score *RiskScore) error
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, limit int) ([]*RiskScore, error)
}

// RunResult summarizes one daily scoring pass.
type RunResult struct {
	Users       int `json:"users"`
	Medications int `json:"medications"`
	Scored      int `json:"scored"`
	Failed      int `json:"failed"`
}

type HistoryRequest struct {
	Limit int
}

type HistoryResponse struct {
	Scores []RiskScore `json:"scores"`
}

type Service interface {
	// ScoreMedication computes and persists the risk score for one
	// user/medication pair as of the given date.
	ScoreMedication(ctx context.Context, userID, medicationID snowflake.ID, asOf timeutil.Date) (RiskScore, error)
	// RunDaily scores every active medication of every premium user.
	RunDaily(ctx context.Context) (RunResult, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrDuplicateScore = errors.New("duplicate_score")
)

// Score maps a taken count over the window to [0, 1].
func Score(takenCount int) float64 {
	score := 1 - float64(takenCount)/float64(WindowDays)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
