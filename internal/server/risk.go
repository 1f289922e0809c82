package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	riskdomain "github.com/doseline/doseline/internal/risk/domain"
)

func (s *Server) GetRiskHistory(c *gin.Context) {
	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.riskSvc.History(c.Request.Context(), riskdomain.HistoryRequest{
		Limit: query.Limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
