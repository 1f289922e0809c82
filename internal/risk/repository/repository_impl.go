package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/risk/domain"
	"github.com/doseline/doseline/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, score *domain.RiskScore) error {
	err := gdb.WithContext(ctx).Exec(
		`INSERT INTO risk_scores (
		    id, user_id, medication_id, score_date, score,
		    taken_count, window_days, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		score.ID,
		score.UserID,
		score.MedicationID,
		score.ScoreDate,
		score.Score,
		score.TakenCount,
		score.WindowDays,
		score.CreatedAt,
	).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateScore
	}
	return err
}

func (r *repo) ListByUser(ctx context.Context, gdb *gorm.DB, userID snowflake.ID, limit int) ([]*domain.RiskScore, error) {
	var scores []*domain.RiskScore
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM risk_scores
		 WHERE user_id = ?
		 ORDER BY score_date DESC, medication_id
		 LIMIT ?`,
		userID,
		limit,
	).Scan(&scores).Error
	if err != nil {
		return nil, err
	}
	return scores, nil
}
