// Package memory holds in-process implementations of the storage
// interfaces. They back the test suites and the standalone dev mode; the
// postgres adapters are the production path.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sitepulse-io/sitepulse/internal/accumulator"
	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

// EventStore is an append-only in-memory visit log. Events are stored as
// copies; readers get copies back, so no caller ever shares mutable state
// with the log.
type EventStore struct {
	mu     sync.RWMutex
	visits []*v1.VisitEvent
	seq    int64
}

func NewEventStore() *EventStore {
	return &EventStore{}
}

func (s *EventStore) SaveVisit(_ context.Context, visit *v1.VisitEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	visit.IngestSeq = s.seq

	stored := *visit
	s.visits = append(s.visits, &stored)
	return nil
}

func (s *EventStore) AttachEngagement(_ context.Context, sessionID, path string, durationSeconds, scrollPercent float64) (*v1.VisitEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Most recent open visit for this session+path wins.
	for i := len(s.visits) - 1; i >= 0; i-- {
		visit := s.visits[i]
		if visit.SessionID == sessionID && visit.Path == path && visit.DurationSeconds == 0 {
			visit.DurationSeconds = durationSeconds
			visit.ScrollDepthPercent = scrollPercent
			updated := *visit
			return &updated, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *EventStore) RetrieveVisitsAfterCursor(_ context.Context, cursor int64, start, end time.Time, limit int) ([]*v1.VisitEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*v1.VisitEvent
	for _, visit := range s.visits {
		if visit.IngestSeq <= cursor {
			continue
		}
		if visit.OccurredAt.Before(start) || !visit.OccurredAt.Before(end) {
			continue
		}
		cp := *visit
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *EventStore) RetrieveVisitsSince(_ context.Context, since time.Time) ([]*v1.VisitEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*v1.VisitEvent
	for _, visit := range s.visits {
		if visit.OccurredAt.Before(since) {
			continue
		}
		cp := *visit
		out = append(out, &cp)
	}
	return out, nil
}

func (s *EventStore) CountVisitsBetween(_ context.Context, start, end time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, visit := range s.visits {
		if !visit.OccurredAt.Before(start) && visit.OccurredAt.Before(end) {
			n++
		}
	}
	return n, nil
}

func (s *EventStore) CountVisits(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.visits)), nil
}

// StatsStore keeps one accumulator per content id. The map mutex covers
// find-or-create; each entry's own mutex is the per-accumulator
// serialization point, so writers to different content items never contend.
type StatsStore struct {
	mu      sync.Mutex
	entries map[string]*statsEntry
}

type statsEntry struct {
	mu    sync.Mutex
	stats *accumulator.ContentStats
}

func NewStatsStore() *StatsStore {
	return &StatsStore{entries: make(map[string]*statsEntry)}
}

func (s *StatsStore) entry(contentID string) *statsEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[contentID]
	if !ok {
		e = &statsEntry{stats: &accumulator.ContentStats{ContentID: contentID}}
		s.entries[contentID] = e
	}
	return e
}

func (s *StatsStore) RecordView(_ context.Context, contentID string, day time.Time, unique bool) error {
	e := s.entry(contentID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.RecordView(day, unique)
	e.stats.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *StatsStore) RecordEngagement(_ context.Context, contentID string, durationSeconds, scrollPercent float64) error {
	e := s.entry(contentID)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.RecordEngagement(durationSeconds, scrollPercent)
	e.stats.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *StatsStore) Get(_ context.Context, contentID string) (*accumulator.ContentStats, error) {
	s.mu.Lock()
	e, ok := s.entries[contentID]
	s.mu.Unlock()
	if !ok {
		return nil, storage.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.Clone(), nil
}

func (s *StatsStore) Delete(_ context.Context, contentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, contentID)
	return nil
}

// Directory is an in-memory stand-in for the post/comment core boundary.
// Tests seed it directly.
type Directory struct {
	mu           sync.RWMutex
	content      map[string]storage.ContentInfo
	totals       storage.Totals
	interactions []interaction
}

type interaction struct {
	kind       string
	occurredAt time.Time
}

func NewDirectory() *Directory {
	return &Directory{content: make(map[string]storage.ContentInfo)}
}

func (d *Directory) AddContent(id string, info storage.ContentInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.content[id] = info
}

func (d *Directory) SetTotals(t storage.Totals) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.totals = t
}

func (d *Directory) AddInteraction(kind string, occurredAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interactions = append(d.interactions, interaction{kind: kind, occurredAt: occurredAt})
}

func (d *Directory) ResolveContent(_ context.Context, ids []string) (map[string]storage.ContentInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make(map[string]storage.ContentInfo, len(ids))
	for _, id := range ids {
		if info, ok := d.content[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func (d *Directory) Totals(_ context.Context) (storage.Totals, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.totals, nil
}

func (d *Directory) InteractionSeries(_ context.Context, kind string, start, end time.Time) ([]storage.DayCount, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	byDay := make(map[time.Time]int64)
	for _, it := range d.interactions {
		if it.kind != kind || it.occurredAt.Before(start) || !it.occurredAt.Before(end) {
			continue
		}
		byDay[it.occurredAt.UTC().Truncate(24*time.Hour)]++
	}

	out := make([]storage.DayCount, 0, len(byDay))
	for day, count := range byDay {
		out = append(out, storage.DayCount{Date: day, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
