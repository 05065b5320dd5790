package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunSweep triggers the daily transition sweep on demand. Per-clinic failures
// are part of the summary; only setup failures return an error status.
func (s *Server) RunSweep(c *gin.Context) {
	if s.sweeper == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	summary, err := s.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		s.log.Error("manual sweep failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
