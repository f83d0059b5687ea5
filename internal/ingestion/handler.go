package ingestion

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
	httperr "github.com/sitepulse-io/sitepulse/internal/core/errors"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

// TrackRequest is the wire shape of one tracking call. The same endpoint
// serves both the initial page view (no duration) and the engagement
// close-out (duration > 0, sent on page-leave after >= 5s on page).
type TrackRequest struct {
	Path               string  `json:"path"`
	ContentRef         string  `json:"content_ref"`
	SessionID          string  `json:"session_id"`
	DurationSeconds    float64 `json:"duration_seconds"`
	ScrollDepthPercent float64 `json:"scroll_depth_percent"`
}

// RecordVisitHandler handles POST /v1/visits.
//
// A missing path is the only input that is rejected; every other failure is
// logged server-side and the client still sees 202. Losing a tracking event
// is acceptable, failing a page render is not.
func (s *Service) RecordVisitHandler(c *gin.Context) {
	req, ok := s.parseTrackRequest(c)
	if !ok {
		return
	}

	if req.DurationSeconds > 0 {
		s.closeOutVisit(c, req)
	} else {
		s.recordPageView(c, req)
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

func (s *Service) parseTrackRequest(c *gin.Context) (*TrackRequest, bool) {
	limited := io.LimitReader(c.Request.Body, int64(s.opts.MaxBodySizeBytes)+1)
	bodyBytes, err := io.ReadAll(limited)
	if err != nil {
		slog.Error("Failed to read tracking request body", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to read request body",
		})
		return nil, false
	}
	if len(bodyBytes) > s.opts.MaxBodySizeBytes {
		slog.Warn("Tracking request body exceeds maximum size", "size", len(bodyBytes))
		c.JSON(http.StatusRequestEntityTooLarge, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Request body exceeds maximum allowed size",
		})
		return nil, false
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("Invalid tracking JSON received", "error", err)
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "Invalid JSON body",
		})
		return nil, false
	}

	if req.Path == "" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidJsonError,
			Message:   "path is required",
		})
		return nil, false
	}

	// Normalize rather than reject: the tracker is not a validation surface.
	if req.DurationSeconds < 0 {
		req.DurationSeconds = 0
	}
	if req.ScrollDepthPercent < 0 {
		req.ScrollDepthPercent = 0
	}
	if req.ScrollDepthPercent > 100 {
		req.ScrollDepthPercent = 100
	}

	return &req, true
}

// recordPageView creates the VisitEvent and nudges the accumulator.
func (s *Service) recordPageView(c *gin.Context, req *TrackRequest) {
	ctx := c.Request.Context()
	cls := s.classify.Classify(c.Request.UserAgent(), c.Request.Referer())

	visit := &v1.VisitEvent{
		ID:                 uuid.New().String(),
		ContentRef:         req.ContentRef,
		ActorRef:           c.GetHeader("X-Actor-ID"),
		SessionID:          req.SessionID,
		Path:               req.Path,
		OccurredAt:         s.nowFn(),
		IPAddress:          c.ClientIP(),
		UserAgent:          c.Request.UserAgent(),
		ReferrerURL:        c.Request.Referer(),
		Country:            c.GetHeader("CF-IPCountry"),
		Region:             c.GetHeader("CF-Region"),
		City:               c.GetHeader("CF-IPCity"),
		DeviceClass:        cls.Device,
		Browser:            cls.Browser,
		OS:                 cls.OS,
		ReferrerSource:     cls.ReferrerSource,
		DurationSeconds:    0,
		ScrollDepthPercent: 0,
	}

	if err := visit.Validate(); err != nil {
		slog.Warn("Dropping invalid visit event", "error", err, "path", req.Path)
		return
	}

	if err := s.events.SaveVisit(ctx, visit); err != nil {
		slog.Error("Failed to persist visit, event dropped",
			"error", err, "path", visit.Path, "session_id", visit.SessionID)
		return
	}

	if visit.ContentRef == "" {
		return
	}

	unique := s.markUnique(ctx, visit.ContentRef, visit.SessionID)
	if err := s.stats.RecordView(ctx, visit.ContentRef, visit.OccurredAt, unique); err != nil {
		slog.Error("Failed to update content accumulator",
			"error", err, "content_ref", visit.ContentRef)
	}
}

// closeOutVisit attaches engagement to the matching open visit and folds
// the sample into the accumulator's running means.
func (s *Service) closeOutVisit(c *gin.Context, req *TrackRequest) {
	ctx := c.Request.Context()

	visit, err := s.events.AttachEngagement(ctx, req.SessionID, req.Path, req.DurationSeconds, req.ScrollDepthPercent)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Debug("Engagement close-out with no matching open visit",
				"path", req.Path, "session_id", req.SessionID)
		} else {
			slog.Error("Failed to attach engagement", "error", err, "path", req.Path)
		}
		return
	}

	if visit.ContentRef == "" {
		return
	}
	if err := s.stats.RecordEngagement(ctx, visit.ContentRef, req.DurationSeconds, req.ScrollDepthPercent); err != nil {
		slog.Error("Failed to fold engagement into accumulator",
			"error", err, "content_ref", visit.ContentRef)
	}
}

// ContentStatsHandler handles GET /v1/content/:content_id/stats.
func (s *Service) ContentStatsHandler(c *gin.Context) {
	stats, err := s.stats.Get(c.Request.Context(), c.Param("content_id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, httperr.ErrorResponse{
				ErrorType: httperr.HttpNotFoundError,
				Message:   "No stats recorded for this content",
			})
			return
		}
		slog.Error("Failed to load content stats", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to load content stats",
		})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// DeleteContentStatsHandler handles DELETE /v1/content/:content_id/stats,
// the teardown hook the host platform calls when a content item is deleted.
func (s *Service) DeleteContentStatsHandler(c *gin.Context) {
	if err := s.stats.Delete(c.Request.Context(), c.Param("content_id")); err != nil {
		slog.Error("Failed to delete content stats", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to delete content stats",
		})
		return
	}
	c.Status(http.StatusNoContent)
}
