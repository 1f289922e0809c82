package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/pkg/db/option"
	"github.com/doseline/doseline/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, med *domain.Medication) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO medications (
		    id, user_id, name, dosage_amount, dosage_unit, schedule_times,
		    recurrence_type, weekdays, interval_days, anchor_date,
		    start_date, end_date, timezone, active, instructions,
		    created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		med.ID,
		med.UserID,
		med.Name,
		med.DosageAmount,
		med.DosageUnit,
		med.ScheduleTimes,
		med.RecurrenceType,
		med.Weekdays,
		med.IntervalDays,
		med.AnchorDate,
		med.StartDate,
		med.EndDate,
		med.Timezone,
		med.Active,
		med.Instructions,
		med.CreatedAt,
		med.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, med *domain.Medication) error {
	return db.WithContext(ctx).Exec(
		`UPDATE medications SET
		    name = ?, dosage_amount = ?, dosage_unit = ?, schedule_times = ?,
		    recurrence_type = ?, weekdays = ?, interval_days = ?, anchor_date = ?,
		    start_date = ?, end_date = ?, timezone = ?, active = ?,
		    instructions = ?, updated_at = ?
		 WHERE user_id = ? AND id = ?`,
		med.Name,
		med.DosageAmount,
		med.DosageUnit,
		med.ScheduleTimes,
		med.RecurrenceType,
		med.Weekdays,
		med.IntervalDays,
		med.AnchorDate,
		med.StartDate,
		med.EndDate,
		med.Timezone,
		med.Active,
		med.Instructions,
		med.UpdatedAt,
		med.UserID,
		med.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM medications WHERE user_id = ? AND id = ?`,
		userID,
		id,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*domain.Medication, error) {
	var med domain.Medication
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM medications WHERE user_id = ? AND id = ?`,
		userID,
		id,
	).Scan(&med).Error
	if err != nil {
		return nil, err
	}
	if med.ID == 0 {
		return nil, nil
	}
	return &med, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter domain.ListMedicationFilter, page pagination.Pagination) ([]*domain.Medication, error) {
	var meds []*domain.Medication
	stmt := db.WithContext(ctx).
		Model(&domain.Medication{}).
		Where("user_id = ?", userID)
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.ActiveOnly {
		stmt = stmt.Where("active = ?", true)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&meds).Error
	if err != nil {
		return nil, err
	}
	return meds, nil
}

func (r *repo) FindActive(ctx context.Context, db *gorm.DB) ([]*domain.Medication, error) {
	var meds []*domain.Medication
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM medications WHERE active = ? ORDER BY user_id, id`,
		true,
	).Scan(&meds).Error
	if err != nil {
		return nil, err
	}
	return meds, nil
}

func (r *repo) FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*domain.Medication, error) {
	var meds []*domain.Medication
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM medications WHERE user_id = ? AND active = ? ORDER BY id`,
		userID,
		true,
	).Scan(&meds).Error
	if err != nil {
		return nil, err
	}
	return meds, nil
}
