package premium

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Checker answers the single billing fact the adherence core needs:
// whether a user is on the premium plan. Plans, invoices and payment
// state live with the billing provider, not here.
type Checker interface {
	IsPremium(ctx context.Context, userID snowflake.ID) (bool, error)
	ListPremiumUserIDs(ctx context.Context) ([]snowflake.ID, error)
}

type checker struct {
	db *gorm.DB
}

func New(db *gorm.DB) Checker {
	return &checker{db: db}
}

func (c *checker) IsPremium(ctx context.Context, userID snowflake.ID) (bool, error) {
	var premium bool
	err := c.db.WithContext(ctx).Raw(
		`SELECT premium FROM users WHERE id = ?`,
		userID,
	).Scan(&premium).Error
	if err != nil {
		return false, err
	}
	return premium, nil
}

func (c *checker) ListPremiumUserIDs(ctx context.Context) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := c.db.WithContext(ctx).Raw(
		`SELECT id FROM users WHERE premium = ? ORDER BY id`,
		true,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

var Module = fx.Module("premium", fx.Provide(New))
