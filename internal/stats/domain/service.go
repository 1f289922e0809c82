package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// MedicationStats is the per-medication slice of a report.
type MedicationStats struct {
	MedicationID   snowflake.ID `json:"medication_id"`
	MedicationName string       `json:"medication_name"`
	Total          int64        `json:"total"`
	Taken          int64        `json:"taken"`
	Missed         int64        `json:"missed"`
	Skipped        int64        `json:"skipped"`
	Pending        int64        `json:"pending"`
	AdherenceRate  float64      `json:"adherence_rate"`
}

// StatsReport aggregates dose outcomes over one local calendar range.
// The adherence rate counts resolved doses only; pending doses are
// reported but do not drag the rate down.
type StatsReport struct {
	From          string            `json:"from"`
	To            string            `json:"to"`
	Timezone      string            `json:"timezone"`
	Total         int64             `json:"total"`
	Taken         int64             `json:"taken"`
	Missed        int64             `json:"missed"`
	Skipped       int64             `json:"skipped"`
	Pending       int64             `json:"pending"`
	AdherenceRate float64           `json:"adherence_rate"`
	ByMedication  []MedicationStats `json:"by_medication"`
}

// Overview is the dashboard rollup: today, the Monday-start week and
// the calendar month, plus a qualitative ranking of the month rate.
type Overview struct {
	Today   StatsReport `json:"today"`
	Week    StatsReport `json:"week"`
	Month   StatsReport `json:"month"`
	Ranking string      `json:"ranking"`
}

type RangeRequest struct {
	From     string // YYYY-MM-DD, local
	To       string // YYYY-MM-DD, local
	Timezone string
}

type OverviewRequest struct {
	Timezone string
}

type Service interface {
	Range(ctx context.Context, req RangeRequest) (StatsReport, error)
	Overview(ctx context.Context, req OverviewRequest) (Overview, error)
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidRange = errors.New("invalid_range")
)
