package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	statsdomain "github.com/doseline/doseline/internal/stats/domain"
)

func (s *Server) GetStatsRange(c *gin.Context) {
	var query struct {
		From     string `form:"from"`
		To       string `form:"to"`
		Timezone string `form:"timezone"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.statsSvc.Range(c.Request.Context(), statsdomain.RangeRequest{
		From:     strings.TrimSpace(query.From),
		To:       strings.TrimSpace(query.To),
		Timezone: strings.TrimSpace(query.Timezone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetStatsOverview(c *gin.Context) {
	var query struct {
		Timezone string `form:"timezone"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.statsSvc.Overview(c.Request.Context(), statsdomain.OverviewRequest{
		Timezone: strings.TrimSpace(query.Timezone),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
