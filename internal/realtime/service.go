package realtime

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

// DefaultWindow is the trailing span a visitor counts as active in.
const DefaultWindow = 5 * time.Minute

const maxTopPaths = 10

// ActivePath is one currently-viewed path, ranked by distinct sessions.
type ActivePath struct {
	Path     string `json:"path"`
	Visitors int64  `json:"visitors"`
}

// Snapshot is the live-traffic card. Clients poll it; nothing is cached or
// evicted server-side, every call recomputes from the trailing window.
type Snapshot struct {
	ActiveVisitors int64        `json:"activeVisitors"`
	PageViews      int64        `json:"pageViews"`
	ActivePages    int64        `json:"activePages"`
	TopActivePaths []ActivePath `json:"topActivePaths"`
}

// Service computes the real-time snapshot from the visit log's trailing
// window.
type Service struct {
	events storage.EventStore
	window time.Duration
	nowFn  func() time.Time
}

func NewService(events storage.EventStore, window time.Duration) *Service {
	if events == nil {
		panic("realtime: event store must not be nil")
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		events: events,
		window: window,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Snapshot returns the current live-traffic numbers. Sessionless visits
// count as page views but not as visitors.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	since := s.nowFn().Add(-s.window)
	visits, err := s.events.RetrieveVisitsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("load trailing window: %w", err)
	}

	sessions := make(map[string]struct{})
	pathSessions := make(map[string]map[string]struct{})
	for _, visit := range visits {
		if visit.SessionID != "" {
			sessions[visit.SessionID] = struct{}{}
		}
		ps := pathSessions[visit.Path]
		if ps == nil {
			ps = make(map[string]struct{})
			pathSessions[visit.Path] = ps
		}
		if visit.SessionID != "" {
			ps[visit.SessionID] = struct{}{}
		}
	}

	top := make([]ActivePath, 0, len(pathSessions))
	for path, ps := range pathSessions {
		top = append(top, ActivePath{Path: path, Visitors: int64(len(ps))})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Visitors != top[j].Visitors {
			return top[i].Visitors > top[j].Visitors
		}
		return top[i].Path < top[j].Path
	})
	if len(top) > maxTopPaths {
		top = top[:maxTopPaths]
	}

	return &Snapshot{
		ActiveVisitors: int64(len(sessions)),
		PageViews:      int64(len(visits)),
		ActivePages:    int64(len(pathSessions)),
		TopActivePaths: top,
	}, nil
}
