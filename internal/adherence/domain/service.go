package domain

import (
	"context"
	"errors"
	"time"

	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/internal/timeutil"
)

// GenerationResult summarizes one generation run for one medication.
// Created holds the new instances in ascending scheduled order.
type GenerationResult struct {
	Created   []DoseInstance `json:"created"`
	Generated int            `json:"generated"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
}

// SweepResult summarizes one missed-dose reconciliation pass.
type SweepResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
}

type ConfirmDoseRequest struct {
	ID           string   `json:"-"`
	Notes        string   `json:"notes"`
	SideEffects  []string `json:"side_effects"`
	DosageAmount float64  `json:"dosage_amount"`
	DosageUnit   string   `json:"dosage_unit"`
}

type SkipDoseRequest struct {
	ID    string `json:"-"`
	Notes string `json:"notes"`
}

type ListDosesRequest struct {
	From     string // YYYY-MM-DD, user-local
	To       string // YYYY-MM-DD, user-local
	Timezone string
	Status   string
}

type ListDosesResponse struct {
	Doses []DoseInstance `json:"doses"`
}

type Service interface {
	// Generate materializes dose instances for med over the calendar
	// window [windowStart, windowEnd], clamped to the medication's own
	// active range and never behind the current instant. Duplicate
	// instances are skipped, per-slot failures are counted, and the
	// run keeps going.
	Generate(ctx context.Context, med *meddomain.Medication, windowStart, windowEnd timeutil.Date) (GenerationResult, error)
	Confirm(ctx context.Context, req ConfirmDoseRequest) (DoseInstance, error)
	Skip(ctx context.Context, req SkipDoseRequest) (DoseInstance, error)
	List(ctx context.Context, req ListDosesRequest) (ListDosesResponse, error)
	// SweepMissed transitions pending instances whose scheduled time is
	// more than grace behind now to missed.
	SweepMissed(ctx context.Context, now time.Time, grace time.Duration) (SweepResult, error)
}

var (
	ErrNotFound          = errors.New("not_found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidState      = errors.New("invalid_state")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidRange      = errors.New("invalid_range")
	ErrDuplicateInstance = errors.New("duplicate_instance")
)
