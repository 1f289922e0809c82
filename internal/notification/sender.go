package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DoseReminder is everything a channel needs to nudge a user about an
// upcoming dose.
type DoseReminder struct {
	UserID         snowflake.ID
	Email          string
	MedicationName string
	DosageAmount   float64
	DosageUnit     string
	ScheduledAt    time.Time
	Timezone       string
}

// Sender delivers dose reminders over some channel. Implementations
// must be safe for concurrent use.
type Sender interface {
	SendDoseReminder(ctx context.Context, reminder DoseReminder) error
}

// NoopSender swallows reminders; the default when no channel is
// configured.
type NoopSender struct{}

func (NoopSender) SendDoseReminder(ctx context.Context, reminder DoseReminder) error {
	return nil
}
