package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	meddomain "github.com/doseline/doseline/internal/medication/domain"
	"github.com/doseline/doseline/pkg/db/pagination"
)

type medicationRequest struct {
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

func (r medicationRequest) toCreate() meddomain.CreateMedicationRequest {
	return meddomain.CreateMedicationRequest{
		Name:           strings.TrimSpace(r.Name),
		DosageAmount:   r.DosageAmount,
		DosageUnit:     strings.TrimSpace(r.DosageUnit),
		ScheduleTimes:  r.ScheduleTimes,
		RecurrenceType: strings.TrimSpace(r.RecurrenceType),
		Weekdays:       r.Weekdays,
		IntervalDays:   r.IntervalDays,
		AnchorDate:     strings.TrimSpace(r.AnchorDate),
		StartDate:      strings.TrimSpace(r.StartDate),
		EndDate:        strings.TrimSpace(r.EndDate),
		Timezone:       strings.TrimSpace(r.Timezone),
		Instructions:   strings.TrimSpace(r.Instructions),
	}
}

func (s *Server) CreateMedication(c *gin.Context) {
	var req medicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.medicationSvc.Create(c.Request.Context(), req.toCreate())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) UpdateMedication(c *gin.Context) {
	var req struct {
		medicationRequest
		Active *bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.medicationSvc.Update(c.Request.Context(), meddomain.UpdateMedicationRequest{
		ID:                      strings.TrimSpace(c.Param("id")),
		CreateMedicationRequest: req.toCreate(),
		Active:                  req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteMedication(c *gin.Context) {
	err := s.medicationSvc.Delete(c.Request.Context(), meddomain.DeleteMedicationRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetMedicationByID(c *gin.Context) {
	resp, err := s.medicationSvc.GetByID(c.Request.Context(), meddomain.GetMedicationRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMedications(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name       string `form:"name"`
		ActiveOnly bool   `form:"active_only"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.medicationSvc.List(c.Request.Context(), meddomain.ListMedicationRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		Name:       strings.TrimSpace(query.Name),
		ActiveOnly: query.ActiveOnly,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
