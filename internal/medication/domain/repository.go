package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/doseline/doseline/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, med *Medication) error
	Update(ctx context.Context, db *gorm.DB, med *Medication) error
	Delete(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, userID, id snowflake.ID) (*Medication, error)
	List(ctx context.Context, db *gorm.DB, userID snowflake.ID, filter ListMedicationFilter, page pagination.Pagination) ([]*Medication, error)
	FindActive(ctx context.Context, db *gorm.DB) ([]*Medication, error)
	FindActiveByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]*Medication, error)
}
