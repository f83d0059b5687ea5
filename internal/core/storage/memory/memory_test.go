package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitepulse-io/sitepulse/internal/accumulator"
	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

func visitAt(session, path string, at time.Time) *v1.VisitEvent {
	return &v1.VisitEvent{
		ID:         fmt.Sprintf("%s-%s-%d", session, path, at.UnixNano()),
		SessionID:  session,
		Path:       path,
		OccurredAt: at,
	}
}

func TestEventStore_SaveAssignsMonotonicSeq(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	now := time.Now().UTC()

	first := visitAt("s1", "/a", now)
	second := visitAt("s1", "/b", now)
	require.NoError(t, s.SaveVisit(ctx, first))
	require.NoError(t, s.SaveVisit(ctx, second))
	require.Equal(t, int64(1), first.IngestSeq)
	require.Equal(t, int64(2), second.IngestSeq)
}

func TestEventStore_CursorPaging(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveVisit(ctx, visitAt("s1", "/a", base.Add(time.Duration(i)*time.Minute))))
	}

	page, err := s.RetrieveVisitsAfterCursor(ctx, 0, base, base.AddDate(0, 0, 1), 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	rest, err := s.RetrieveVisitsAfterCursor(ctx, page[1].IngestSeq, base, base.AddDate(0, 0, 1), 100)
	require.NoError(t, err)
	require.Len(t, rest, 3)
}

func TestEventStore_AttachEngagement(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	now := time.Now().UTC()

	require.NoError(t, s.SaveVisit(ctx, visitAt("s1", "/post/1", now.Add(-time.Hour))))
	require.NoError(t, s.SaveVisit(ctx, visitAt("s1", "/post/1", now)))

	updated, err := s.AttachEngagement(ctx, "s1", "/post/1", 30, 80)
	require.NoError(t, err)
	require.Equal(t, 30.0, updated.DurationSeconds)

	// Most recent open visit got the engagement, not the older one.
	visits, err := s.RetrieveVisitsSince(ctx, now.Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, visits, 2)
	require.Zero(t, visits[0].DurationSeconds)
	require.Equal(t, 30.0, visits[1].DurationSeconds)

	// The older visit is now the only remaining open one.
	_, err = s.AttachEngagement(ctx, "s1", "/post/1", 10, 20)
	require.NoError(t, err)

	_, err = s.AttachEngagement(ctx, "s1", "/post/1", 5, 10)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventStore_Counts(t *testing.T) {
	ctx := context.Background()
	s := NewEventStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveVisit(ctx, visitAt("s1", "/a", base)))
	require.NoError(t, s.SaveVisit(ctx, visitAt("s2", "/a", base.AddDate(0, 0, 1))))

	total, err := s.CountVisits(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	dayOne, err := s.CountVisitsBetween(ctx, base, base.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, int64(1), dayOne)
}

func TestStatsStore_ConcurrentRecordView(t *testing.T) {
	ctx := context.Background()
	s := NewStatsStore()
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	const k = 100
	var wg sync.WaitGroup
	wg.Add(k)
	for i := 0; i < k; i++ {
		go func() {
			defer wg.Done()
			_ = s.RecordView(ctx, "post-1", day, false)
		}()
	}
	wg.Wait()

	stats, err := s.Get(ctx, "post-1")
	require.NoError(t, err)
	require.Equal(t, int64(k), stats.TotalViews)
	require.LessOrEqual(t, len(stats.ViewHistory), accumulator.HistoryDays)
}

func TestStatsStore_GetUnknownAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStatsStore()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.RecordView(ctx, "post-1", time.Now().UTC(), true))
	require.NoError(t, s.Delete(ctx, "post-1"))

	_, err = s.Get(ctx, "post-1")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDirectory_ResolveAndSeries(t *testing.T) {
	ctx := context.Background()
	d := NewDirectory()
	d.AddContent("post-1", storage.ContentInfo{Title: "Hello", AuthorID: "u1", AuthorName: "Ada"})

	resolved, err := d.ResolveContent(ctx, []string{"post-1", "dangling"})
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	require.Equal(t, "Ada", resolved["post-1"].AuthorName)

	day := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	d.AddInteraction(storage.InteractionComment, day)
	d.AddInteraction(storage.InteractionComment, day.Add(time.Hour))
	d.AddInteraction(storage.InteractionLike, day)

	series, err := d.InteractionSeries(ctx, storage.InteractionComment, day.AddDate(0, 0, -1), day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, series, 1)
	require.Equal(t, int64(2), series[0].Count)
}
