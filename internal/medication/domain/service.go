package domain

import (
	"context"
	"errors"

	"github.com/doseline/doseline/pkg/db/pagination"
)

type CreateMedicationRequest struct {
	Name           string   `json:"name"`
	DosageAmount   float64  `json:"dosage_amount"`
	DosageUnit     string   `json:"dosage_unit"`
	ScheduleTimes  []string `json:"schedule_times"`
	RecurrenceType string   `json:"recurrence_type"`
	Weekdays       []string `json:"weekdays"`
	IntervalDays   int      `json:"interval_days"`
	AnchorDate     string   `json:"anchor_date"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	Timezone       string   `json:"timezone"`
	Instructions   string   `json:"instructions"`
}

type UpdateMedicationRequest struct {
	ID string `json:"-"`
	CreateMedicationRequest
	Active *bool `json:"active"`
}

type GetMedicationRequest struct {
	ID string
}

type DeleteMedicationRequest struct {
	ID string
}

type ListMedicationRequest struct {
	PageToken  string
	PageSize   int32
	Name       string
	ActiveOnly bool
}

type ListMedicationFilter struct {
	Name       string
	ActiveOnly bool
}

type ListMedicationResponse struct {
	pagination.PageInfo
	Medications []Medication `json:"medications"`
}

type Service interface {
	Create(context.Context, CreateMedicationRequest) (Medication, error)
	Update(context.Context, UpdateMedicationRequest) (Medication, error)
	Delete(context.Context, DeleteMedicationRequest) error
	GetByID(context.Context, GetMedicationRequest) (Medication, error)
	List(context.Context, ListMedicationRequest) (ListMedicationResponse, error)
}

// InstancePlanner is the downstream collaborator that materializes dose
// instances for a medication's schedule. The adherence module provides
// the implementation; declaring the contract here keeps the dependency
// pointing in one direction.
type InstancePlanner interface {
	// PlanForward generates instances over the standing forward horizon.
	PlanForward(ctx context.Context, med *Medication) error
	// Replan discards future pending instances and regenerates them from
	// the (possibly changed) schedule.
	Replan(ctx context.Context, med *Medication) error
	// Discard removes every instance belonging to the medication.
	Discard(ctx context.Context, med *Medication) error
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidSchedule = errors.New("invalid_schedule")
	ErrNotFound        = errors.New("not_found")
)
