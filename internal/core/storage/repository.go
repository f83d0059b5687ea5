package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sitepulse-io/sitepulse/internal/accumulator"
	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
)

// ErrNotFound is returned when a lookup resolves to nothing: an unknown
// accumulator, or an engagement close-out with no matching open visit.
var ErrNotFound = errors.New("not found")

// EventStore is the append-only visit log, the single source of truth for
// every derived number in the system.
type EventStore interface {
	// SaveVisit appends one visit and populates visit.IngestSeq.
	SaveVisit(ctx context.Context, visit *v1.VisitEvent) error

	// AttachEngagement performs the single permitted mutation: it fills the
	// engagement fields of the most recent open visit (duration still zero)
	// for (sessionID, path) and returns the updated event. ErrNotFound when
	// no open visit matches.
	AttachEngagement(ctx context.Context, sessionID, path string, durationSeconds, scrollPercent float64) (*v1.VisitEvent, error)

	// RetrieveVisitsAfterCursor pages through visits with
	// occurred_at in [start, end) in strict ingest_seq order.
	// cursor=0 means "from the beginning".
	RetrieveVisitsAfterCursor(ctx context.Context, cursor int64, start, end time.Time, limit int) ([]*v1.VisitEvent, error)

	// RetrieveVisitsSince returns all visits with occurred_at >= since.
	// Serves the trailing real-time window, so result sets are small.
	RetrieveVisitsSince(ctx context.Context, since time.Time) ([]*v1.VisitEvent, error)

	// CountVisitsBetween counts visits with occurred_at in [start, end).
	CountVisitsBetween(ctx context.Context, start, end time.Time) (int64, error)

	// CountVisits counts all visits ever recorded.
	CountVisits(ctx context.Context) (int64, error)
}

// StatsStore owns the per-content accumulators. Every mutation is an atomic
// find-or-create-then-mutate keyed by content id; implementations serialize
// concurrent writers per content item (row lock or per-entry mutex) so no
// increment is lost and the view-history bound holds at all times.
type StatsStore interface {
	RecordView(ctx context.Context, contentID string, day time.Time, unique bool) error
	RecordEngagement(ctx context.Context, contentID string, durationSeconds, scrollPercent float64) error

	// Get returns a snapshot of the accumulator, ErrNotFound if the content
	// item has never been viewed.
	Get(ctx context.Context, contentID string) (*accumulator.ContentStats, error)

	// Delete tears the accumulator down when the content item is deleted.
	Delete(ctx context.Context, contentID string) error
}

// ContentInfo is what the post/comment core exposes about one content item.
type ContentInfo struct {
	Title      string
	AuthorID   string
	AuthorName string
}

// Totals are the host platform's all-time entity counts for the overview.
type Totals struct {
	Posts    int64
	Users    int64
	Comments int64
}

// DayCount is one point of an interaction series.
type DayCount struct {
	Date  time.Time `json:"date"`
	Count int64     `json:"count"`
}

// Interaction kinds served by Directory.InteractionSeries.
const (
	InteractionComment = "comment"
	InteractionLike    = "like"
)

// Directory is the read-only boundary to the post/comment/user core.
// Content and author refs are opaque foreign keys; ids that fail to resolve
// are simply absent from the result.
type Directory interface {
	ResolveContent(ctx context.Context, ids []string) (map[string]ContentInfo, error)
	Totals(ctx context.Context) (Totals, error)
	InteractionSeries(ctx context.Context, kind string, start, end time.Time) ([]DayCount, error)
}
