package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/internal/adherence/domain"
	"github.com/doseline/doseline/pkg/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Exists(ctx context.Context, gdb *gorm.DB, userID, medicationID snowflake.ID, scheduledAt time.Time) (bool, error) {
	var count int64
	err := gdb.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM dose_instances
		 WHERE user_id = ? AND medication_id = ? AND scheduled_at = ?`,
		userID,
		medicationID,
		scheduledAt,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, inst *domain.DoseInstance) error {
	err := gdb.WithContext(ctx).Exec(
		`INSERT INTO dose_instances (
		    id, user_id, medication_id, scheduled_at, status, taken_at,
		    notes, side_effects, dosage_amount, dosage_unit,
		    reminder_sent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID,
		inst.UserID,
		inst.MedicationID,
		inst.ScheduledAt,
		inst.Status,
		inst.TakenAt,
		inst.Notes,
		inst.SideEffects,
		inst.DosageAmount,
		inst.DosageUnit,
		inst.ReminderSent,
		inst.CreatedAt,
		inst.UpdatedAt,
	).Error
	if err != nil && db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateInstance
	}
	return err
}

func (r *repo) FindByID(ctx context.Context, gdb *gorm.DB, id snowflake.ID) (*domain.DoseInstance, error) {
	var inst domain.DoseInstance
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM dose_instances WHERE id = ?`,
		id,
	).Scan(&inst).Error
	if err != nil {
		return nil, err
	}
	if inst.ID == 0 {
		return nil, nil
	}
	return &inst, nil
}

func (r *repo) FindByUserInRange(ctx context.Context, gdb *gorm.DB, userID snowflake.ID, from, to time.Time) ([]*domain.DoseInstance, error) {
	var instances []*domain.DoseInstance
	err := gdb.WithContext(ctx).Raw(
		`SELECT di.*, m.name AS medication_name
		 FROM dose_instances di
		 JOIN medications m ON m.id = di.medication_id
		 WHERE di.user_id = ? AND di.scheduled_at >= ? AND di.scheduled_at <= ?
		 ORDER BY di.scheduled_at, di.id`,
		userID,
		from,
		to,
	).Scan(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *repo) FindPendingOlderThan(ctx context.Context, gdb *gorm.DB, cutoff time.Time, afterID snowflake.ID, limit int) ([]*domain.DoseInstance, error) {
	var instances []*domain.DoseInstance
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM dose_instances
		 WHERE status = ? AND scheduled_at < ? AND id > ?
		 ORDER BY id
		 LIMIT ?`,
		domain.StatusPending,
		cutoff,
		afterID,
		limit,
	).Scan(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *repo) FindPendingDueBetween(ctx context.Context, gdb *gorm.DB, from, to time.Time, limit int) ([]*domain.DoseInstance, error) {
	var instances []*domain.DoseInstance
	err := gdb.WithContext(ctx).Raw(
		`SELECT di.*, m.name AS medication_name
		 FROM dose_instances di
		 JOIN medications m ON m.id = di.medication_id
		 WHERE di.status = ? AND di.reminder_sent = ?
		   AND di.scheduled_at >= ? AND di.scheduled_at <= ?
		 ORDER BY di.scheduled_at, di.id
		 LIMIT ?`,
		domain.StatusPending,
		false,
		from,
		to,
		limit,
	).Scan(&instances).Error
	if err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *repo) TransitionStatus(ctx context.Context, gdb *gorm.DB, id snowflake.ID, from, to domain.Status, details domain.TransitionDetails) (int64, error) {
	sideEffects := datatypes.NewJSONSlice(details.SideEffects)
	if details.SideEffects == nil {
		sideEffects = datatypes.NewJSONSlice([]string{})
	}
	result := gdb.WithContext(ctx).Exec(
		`UPDATE dose_instances SET
		    status = ?, taken_at = ?, notes = ?, side_effects = ?,
		    dosage_amount = ?, dosage_unit = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		details.TakenAt,
		details.Notes,
		sideEffects,
		details.DosageAmount,
		details.DosageUnit,
		details.Now,
		id,
		from,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkReminderSent(ctx context.Context, gdb *gorm.DB, id snowflake.ID) (int64, error) {
	result := gdb.WithContext(ctx).Exec(
		`UPDATE dose_instances SET reminder_sent = ? WHERE id = ? AND reminder_sent = ?`,
		true,
		id,
		false,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteFuturePending(ctx context.Context, gdb *gorm.DB, userID, medicationID snowflake.ID, after time.Time) (int64, error) {
	// A pending dose due exactly now belongs to the future set: the old
	// schedule must not leave it behind after a replan.
	result := gdb.WithContext(ctx).Exec(
		`DELETE FROM dose_instances
		 WHERE user_id = ? AND medication_id = ? AND status = ? AND scheduled_at >= ?`,
		userID,
		medicationID,
		domain.StatusPending,
		after,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DeleteByMedication(ctx context.Context, gdb *gorm.DB, userID, medicationID snowflake.ID) (int64, error) {
	result := gdb.WithContext(ctx).Exec(
		`DELETE FROM dose_instances WHERE user_id = ? AND medication_id = ?`,
		userID,
		medicationID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) CountByStatusInRange(ctx context.Context, gdb *gorm.DB, userID snowflake.ID, from, to time.Time) ([]domain.StatusCount, error) {
	var counts []domain.StatusCount
	err := gdb.WithContext(ctx).Raw(
		`SELECT status, COUNT(1) AS count FROM dose_instances
		 WHERE user_id = ? AND scheduled_at >= ? AND scheduled_at <= ?
		 GROUP BY status`,
		userID,
		from,
		to,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) CountByMedicationInRange(ctx context.Context, gdb *gorm.DB, userID snowflake.ID, from, to time.Time) ([]domain.MedicationStatusCount, error) {
	var counts []domain.MedicationStatusCount
	err := gdb.WithContext(ctx).Raw(
		`SELECT di.medication_id, m.name AS medication_name, di.status, COUNT(1) AS count
		 FROM dose_instances di
		 JOIN medications m ON m.id = di.medication_id
		 WHERE di.user_id = ? AND di.scheduled_at >= ? AND di.scheduled_at <= ?
		 GROUP BY di.medication_id, m.name, di.status
		 ORDER BY m.name`,
		userID,
		from,
		to,
	).Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *repo) CountTakenForMedication(ctx context.Context, gdb *gorm.DB, userID, medicationID snowflake.ID, from, to time.Time) (int64, error) {
	var count int64
	err := gdb.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM dose_instances
		 WHERE user_id = ? AND medication_id = ? AND status = ?
		   AND scheduled_at >= ? AND scheduled_at <= ?`,
		userID,
		medicationID,
		domain.StatusTaken,
		from,
		to,
	).Scan(&count).Error
	return count, err
}
