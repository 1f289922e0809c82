package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	adherencedomain "github.com/doseline/doseline/internal/adherence/domain"
	obslogger "github.com/doseline/doseline/internal/observability/logger"
	"github.com/doseline/doseline/internal/userctx"
)

func (s *Server) ListDoses(c *gin.Context) {
	var query struct {
		From     string `form:"from"`
		To       string `form:"to"`
		Timezone string `form:"timezone"`
		Status   string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.doseSvc.List(c.Request.Context(), adherencedomain.ListDosesRequest{
		From:     strings.TrimSpace(query.From),
		To:       strings.TrimSpace(query.To),
		Timezone: strings.TrimSpace(query.Timezone),
		Status:   strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type confirmDoseRequest struct {
	Notes        string   `json:"notes"`
	SideEffects  []string `json:"side_effects"`
	DosageAmount float64  `json:"dosage_amount"`
	DosageUnit   string   `json:"dosage_unit"`
}

func (s *Server) ConfirmDose(c *gin.Context) {
	var req confirmDoseRequest
	// The body is optional: a bare confirm takes the scheduled dosage.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.doseSvc.Confirm(c.Request.Context(), adherencedomain.ConfirmDoseRequest{
		ID:           strings.TrimSpace(c.Param("id")),
		Notes:        strings.TrimSpace(req.Notes),
		SideEffects:  req.SideEffects,
		DosageAmount: req.DosageAmount,
		DosageUnit:   strings.TrimSpace(req.DosageUnit),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SkipDose(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	resp, err := s.doseSvc.Skip(c.Request.Context(), adherencedomain.SkipDoseRequest{
		ID:    strings.TrimSpace(c.Param("id")),
		Notes: strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SendReminderNow(c *gin.Context) {
	ctx := c.Request.Context()

	if userID, ok := userctx.UserIDFromContext(ctx); ok {
		allowed, err := s.remindLimiter.Allow(ctx, userID)
		if err != nil {
			// Fail open; the limiter already returned allowed=true.
			obslogger.FromContext(ctx).Warn("reminder rate limiter unavailable", zap.Error(err))
		}
		if !allowed {
			AbortWithError(c, ErrRateLimited)
			return
		}
	}

	err := s.dispatcher.SendNow(ctx, strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"sent": true}})
}
