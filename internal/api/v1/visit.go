package v1

import (
	"fmt"
	"time"
)

// Device classes produced by the classifier. Anything the rules cannot
// place lands in DeviceUnknown.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

// VisitEvent is the atomic unit of the system: one page impression.
// It is append-only: after creation the only permitted mutation is a single
// engagement close-out that fills DurationSeconds and ScrollDepthPercent.
type VisitEvent struct {
	// ID is the unique identifier assigned at ingestion (server-side UUID).
	ID string `json:"id"`

	// ContentRef optionally references the viewed content item. It is an
	// opaque foreign key owned by the post/comment core; dangling values are
	// tolerated everywhere downstream.
	ContentRef string `json:"content_ref,omitempty"`

	// ActorRef optionally references an authenticated visitor. Empty for
	// anonymous visits.
	ActorRef string `json:"actor_ref,omitempty"`

	// SessionID is client-generated and stable for one browsing session.
	// It is the unit of "visitor" for dedup and bounce-rate purposes. It may
	// be empty; sessionless visits are stored but never counted as unique.
	SessionID string `json:"session_id"`

	Path string `json:"path"`

	// OccurredAt is the creation time of the visit. It never changes and is
	// the sole basis for time-bucketing.
	OccurredAt time.Time `json:"occurred_at"`

	// Visitor context captured from the request.
	IPAddress   string `json:"ip_address,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
	ReferrerURL string `json:"referrer_url,omitempty"`

	// Classified fields, computed once at ingestion and never recomputed.
	Country        string `json:"country,omitempty"`
	Region         string `json:"region,omitempty"`
	City           string `json:"city,omitempty"`
	DeviceClass    string `json:"device_class"`
	Browser        string `json:"browser"`
	OS             string `json:"os"`
	ReferrerSource string `json:"referrer_source"`

	// Engagement fields, zero until close-out.
	DurationSeconds    float64 `json:"duration_seconds"`
	ScrollDepthPercent float64 `json:"scroll_depth_percent"`

	// IngestSeq is a monotonic sequence number assigned by the store.
	// It provides strict total ordering for rollup scan pagination.
	// Not exposed in the public API.
	IngestSeq int64 `json:"-"`
}

// Validate ensures the event has all required attributes before persistence.
func (e *VisitEvent) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("id is required")
	}
	if e.Path == "" {
		return fmt.Errorf("path is required")
	}
	if e.OccurredAt.IsZero() {
		return fmt.Errorf("occurred_at is required")
	}
	if e.DurationSeconds < 0 {
		return fmt.Errorf("duration_seconds must be >= 0")
	}
	if e.ScrollDepthPercent < 0 || e.ScrollDepthPercent > 100 {
		return fmt.Errorf("scroll_depth_percent must be 0-100")
	}
	return nil
}
