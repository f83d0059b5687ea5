package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"

	httperr "github.com/sitepulse-io/sitepulse/internal/core/errors"
)

// RegisterRoutes registers the live-traffic route. The response carries a
// hint for the client's polling cadence.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/analytics/realtime", s.SnapshotHandler)
}

func (s *Service) SnapshotHandler(c *gin.Context) {
	snapshot, err := s.Snapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load realtime snapshot",
			Details:   err.Error(),
		})
		return
	}
	c.Header("Cache-Control", "max-age=30")
	c.JSON(http.StatusOK, snapshot)
}
