package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sitepulse-io/sitepulse/internal/classifier"
	"github.com/sitepulse-io/sitepulse/internal/counters"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

// Options tune the tracking endpoint.
type Options struct {
	// MaxBodySizeBytes caps the request body read on the hot path.
	MaxBodySizeBytes int

	// DedupTTL is how long one (content, session) pair stays counted for
	// unique-view purposes. This is the approximate rollup-window dedup of
	// the unique_views metric.
	DedupTTL time.Duration

	// RateLimitPerMinute is the per-client ceiling on tracking calls.
	// Zero disables the limiter.
	RateLimitPerMinute int
}

func (o Options) normalized() Options {
	n := o
	if n.MaxBodySizeBytes <= 0 {
		n.MaxBodySizeBytes = 64 * 1024
	}
	if n.DedupTTL <= 0 {
		n.DedupTTL = 24 * time.Hour
	}
	return n
}

// Service is the tracking ingestion endpoint: it validates and normalizes
// one incoming visit, classifies it, appends it to the event store and
// nudges the per-content accumulator. Everything past input validation is
// best-effort: failures are logged and swallowed, never surfaced to the
// visitor.
type Service struct {
	events   storage.EventStore
	stats    storage.StatsStore
	counters counters.Store
	classify *classifier.Cache
	opts     Options
	nowFn    func() time.Time
}

func NewService(events storage.EventStore, stats storage.StatsStore, counterStore counters.Store, opts Options) *Service {
	if events == nil {
		panic("ingestion: event store must not be nil")
	}
	if stats == nil {
		panic("ingestion: stats store must not be nil")
	}
	if counterStore == nil {
		panic("ingestion: counter store must not be nil")
	}
	return &Service{
		events:   events,
		stats:    stats,
		counters: counterStore,
		classify: classifier.NewCache(),
		opts:     opts.normalized(),
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRoutes registers the tracking and accumulator routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/visits", s.rateLimitMiddleware(), s.RecordVisitHandler)

	// Per-content accumulator: snapshot for the host dashboard, teardown on
	// content deletion.
	r.GET("/v1/content/:content_id/stats", s.ContentStatsHandler)
	r.DELETE("/v1/content/:content_id/stats", s.DeleteContentStatsHandler)
}

// markUnique reports whether this session has not yet been counted against
// this content inside the dedup window. The check is approximate: a counter
// store failure just means the view counts as non-unique.
func (s *Service) markUnique(ctx context.Context, contentID, sessionID string) bool {
	if sessionID == "" {
		return false
	}
	n, err := s.counters.Increment(ctx, "uv:"+contentID+":"+sessionID, s.opts.DedupTTL)
	if err != nil {
		slog.Warn("Unique-view dedup check failed, counting as repeat view",
			"content_ref", contentID, "error", err)
		return false
	}
	return n == 1
}
