package rollup

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	httperr "github.com/sitepulse-io/sitepulse/internal/core/errors"
)

// queryTimeout bounds one rollup read. The scan loop already caps work per
// request; this is the backstop for a slow database.
const queryTimeout = 15 * time.Second

// RegisterRoutes registers the analytics read API.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/analytics/overview", s.OverviewHandler)
	r.GET("/v1/analytics/views", s.ViewSeriesHandler)
	r.GET("/v1/analytics/engagement", s.EngagementHandler)
	r.GET("/v1/analytics/top-content", s.TopContentHandler)
	r.GET("/v1/analytics/top-authors", s.TopAuthorsHandler)
	r.GET("/v1/analytics/breakdown", s.BreakdownHandler)
}

func (s *Service) OverviewHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	overview, err := s.Overview(ctx)
	if err != nil {
		respondQueryError(c, err, "Failed to load overview")
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Service) ViewSeriesHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	points, err := s.ViewSeries(ctx, c.Query("period"))
	if err != nil {
		respondQueryError(c, err, "Failed to load view series")
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

func (s *Service) EngagementHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	summary, err := s.Engagement(ctx, c.Query("period"))
	if err != nil {
		respondQueryError(c, err, "Failed to load engagement summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Service) TopContentHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	ranked, err := s.TopContent(ctx, c.Query("period"), limit)
	if err != nil {
		respondQueryError(c, err, "Failed to load top content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": ranked})
}

func (s *Service) TopAuthorsHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	ranked, err := s.TopAuthors(ctx, c.Query("period"), limit)
	if err != nil {
		respondQueryError(c, err, "Failed to load top authors")
		return
	}
	c.JSON(http.StatusOK, gin.H{"authors": ranked})
}

func (s *Service) BreakdownHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	breakdowns, err := s.Breakdown(ctx, c.Query("period"))
	if err != nil {
		respondQueryError(c, err, "Failed to load breakdown")
		return
	}
	c.JSON(http.StatusOK, breakdowns)
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid limit parameter",
			Details:   err.Error(),
		})
		return 0, false
	}
	return limit, true
}

func respondQueryError(c *gin.Context, err error, message string) {
	if errors.Is(err, ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidQueryError,
			Message:   "Invalid analytics query",
			Details:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
		ErrorType: httperr.HttpInternalError,
		Message:   message,
		Details:   err.Error(),
	})
}
