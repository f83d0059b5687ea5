package rollup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

const (
	scanBatchSize     = 5000
	maxScanIterations = 40 // Limit to prevent timeout/OOM on very large windows
	defaultRankLimit  = 10
	maxRankLimit      = 100
	maxCountryRows    = 20
	maxReferrerRows   = 10
)

// ErrInvalidQuery marks request validation errors that should return HTTP 400.
var ErrInvalidQuery = errors.New("invalid analytics query")

func invalidQueryf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidQuery}, args...)...)
}

// Service is the read side of the analytics API: it folds the append-only
// visit log into period-bucketed series, rankings and breakdowns at query
// time. Every operation reads a consistent snapshot of the log by paging it
// in strict ingest order.
type Service struct {
	events    storage.EventStore
	directory storage.Directory
	nowFn     func() time.Time
}

func NewService(events storage.EventStore, directory storage.Directory) *Service {
	if events == nil {
		panic("rollup: event store must not be nil")
	}
	if directory == nil {
		panic("rollup: directory must not be nil")
	}
	return &Service{
		events:    events,
		directory: directory,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// scanVisits pages the visit log for one period in ingest order and hands
// each batch to consume.
func (s *Service) scanVisits(ctx context.Context, p Period, consume func(visits []*v1.VisitEvent)) error {
	var cursor int64
	iterations := 0
	total := 0

	for {
		if iterations >= maxScanIterations {
			slog.Warn("Visit scan reached maximum iteration limit",
				"period", p.Name,
				"iterations", iterations,
				"visits_scanned", total,
			)
			return fmt.Errorf("visit scan exceeded maximum iterations (%d batches, %d visits)",
				maxScanIterations, total)
		}

		visits, err := s.events.RetrieveVisitsAfterCursor(ctx, cursor, p.Start, p.End, scanBatchSize)
		if err != nil {
			return err
		}
		if len(visits) == 0 {
			return nil
		}

		consume(visits)
		total += len(visits)
		iterations++

		cursor = visits[len(visits)-1].IngestSeq
		if len(visits) < scanBatchSize {
			return nil
		}
	}
}

type seriesBucket struct {
	views    int64
	sessions map[string]struct{}
}

// ViewSeries returns the period's ascending views-over-time series. Buckets
// with no views are absent; sessionless visits count as views but never as
// visitors.
func (s *Service) ViewSeries(ctx context.Context, rawPeriod string) ([]SeriesPoint, error) {
	p, err := parsePeriod(rawPeriod, s.nowFn())
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*seriesBucket)
	err = s.scanVisits(ctx, p, func(visits []*v1.VisitEvent) {
		for _, visit := range visits {
			key := p.bucketFor(visit.OccurredAt)
			b := buckets[key]
			if b == nil {
				b = &seriesBucket{sessions: make(map[string]struct{})}
				buckets[key] = b
			}
			b.views++
			if visit.SessionID != "" {
				b.sessions[visit.SessionID] = struct{}{}
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan view series: %w", err)
	}

	keys := make([]time.Time, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	points := make([]SeriesPoint, 0, len(keys))
	for _, key := range keys {
		b := buckets[key]
		points = append(points, SeriesPoint{
			Date:           p.formatBucket(key),
			Views:          b.views,
			UniqueVisitors: int64(len(b.sessions)),
		})
	}
	return points, nil
}

// Engagement returns the period's mean reading behavior plus the bounce rate
// and the host platform's interaction series. Means cover only visits that
// got a close-out; bounce counts sessions with exactly one visit.
func (s *Service) Engagement(ctx context.Context, rawPeriod string) (*EngagementSummary, error) {
	p, err := parsePeriod(rawPeriod, s.nowFn())
	if err != nil {
		return nil, err
	}

	var (
		sumDuration   = decimal.Zero
		sumScroll     = decimal.Zero
		engagedVisits int64
		sessionVisits = make(map[string]int64)
	)
	err = s.scanVisits(ctx, p, func(visits []*v1.VisitEvent) {
		for _, visit := range visits {
			if visit.DurationSeconds > 0 {
				sumDuration = sumDuration.Add(decimal.NewFromFloat(visit.DurationSeconds))
				sumScroll = sumScroll.Add(decimal.NewFromFloat(visit.ScrollDepthPercent))
				engagedVisits++
			}
			if visit.SessionID != "" {
				sessionVisits[visit.SessionID]++
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan engagement: %w", err)
	}

	summary := &EngagementSummary{
		CommentsOverTime: []DayCountPoint{},
		LikesOverTime:    []DayCountPoint{},
	}

	if engagedVisits > 0 {
		n := decimal.NewFromInt(engagedVisits)
		summary.AvgDurationSeconds = sumDuration.Div(n).Round(2).InexactFloat64()
		summary.AvgScrollPercent = sumScroll.Div(n).Round(2).InexactFloat64()
	}

	if len(sessionVisits) > 0 {
		var bounced int64
		for _, count := range sessionVisits {
			if count == 1 {
				bounced++
			}
		}
		summary.BounceRatePercent = decimal.NewFromInt(bounced).
			Div(decimal.NewFromInt(int64(len(sessionVisits)))).
			Mul(decimal.NewFromInt(100)).
			Round(0).IntPart()
	}

	comments, err := s.interactionPoints(ctx, storage.InteractionComment, p)
	if err != nil {
		return nil, err
	}
	likes, err := s.interactionPoints(ctx, storage.InteractionLike, p)
	if err != nil {
		return nil, err
	}
	summary.CommentsOverTime = comments
	summary.LikesOverTime = likes

	return summary, nil
}

func (s *Service) interactionPoints(ctx context.Context, kind string, p Period) ([]DayCountPoint, error) {
	series, err := s.directory.InteractionSeries(ctx, kind, p.Start, p.End)
	if err != nil {
		return nil, fmt.Errorf("load %s series: %w", kind, err)
	}
	points := make([]DayCountPoint, 0, len(series))
	for _, dc := range series {
		points = append(points, DayCountPoint{Date: dc.Date.Format("2006-01-02"), Count: dc.Count})
	}
	return points, nil
}

type contentBucket struct {
	views    int64
	sessions map[string]struct{}
}

func (s *Service) foldByContent(ctx context.Context, p Period) (map[string]*contentBucket, error) {
	buckets := make(map[string]*contentBucket)
	err := s.scanVisits(ctx, p, func(visits []*v1.VisitEvent) {
		for _, visit := range visits {
			if visit.ContentRef == "" {
				continue
			}
			b := buckets[visit.ContentRef]
			if b == nil {
				b = &contentBucket{sessions: make(map[string]struct{})}
				buckets[visit.ContentRef] = b
			}
			b.views++
			if visit.SessionID != "" {
				b.sessions[visit.SessionID] = struct{}{}
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan content views: %w", err)
	}
	return buckets, nil
}

func normalizeRankLimit(limit int) (int, error) {
	if limit == 0 {
		return defaultRankLimit, nil
	}
	if limit < 0 || limit > maxRankLimit {
		return 0, invalidQueryf("limit must be between 1 and %d", maxRankLimit)
	}
	return limit, nil
}

// TopContent ranks content by period views. Ties break on content ref so the
// ranking is stable across identical datasets. Refs the host platform no
// longer knows keep their counts with the join fields empty.
func (s *Service) TopContent(ctx context.Context, rawPeriod string, limit int) ([]RankedContent, error) {
	p, err := parsePeriod(rawPeriod, s.nowFn())
	if err != nil {
		return nil, err
	}
	limit, err = normalizeRankLimit(limit)
	if err != nil {
		return nil, err
	}

	buckets, err := s.foldByContent(ctx, p)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedContent, 0, len(buckets))
	for ref, b := range buckets {
		ranked = append(ranked, RankedContent{
			ContentRef:     ref,
			Views:          b.views,
			UniqueVisitors: int64(len(b.sessions)),
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Views != ranked[j].Views {
			return ranked[i].Views > ranked[j].Views
		}
		return ranked[i].ContentRef < ranked[j].ContentRef
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	refs := make([]string, len(ranked))
	for i := range ranked {
		refs[i] = ranked[i].ContentRef
	}
	resolved, err := s.directory.ResolveContent(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("resolve content refs: %w", err)
	}
	for i := range ranked {
		if info, ok := resolved[ranked[i].ContentRef]; ok {
			ranked[i].Title = info.Title
			ranked[i].AuthorName = info.AuthorName
		}
	}
	return ranked, nil
}

// TopAuthors ranks authors by the summed period views of their content.
// Content refs that do not resolve have no author and are skipped.
func (s *Service) TopAuthors(ctx context.Context, rawPeriod string, limit int) ([]RankedAuthor, error) {
	p, err := parsePeriod(rawPeriod, s.nowFn())
	if err != nil {
		return nil, err
	}
	limit, err = normalizeRankLimit(limit)
	if err != nil {
		return nil, err
	}

	buckets, err := s.foldByContent(ctx, p)
	if err != nil {
		return nil, err
	}

	refs := make([]string, 0, len(buckets))
	for ref := range buckets {
		refs = append(refs, ref)
	}
	resolved, err := s.directory.ResolveContent(ctx, refs)
	if err != nil {
		return nil, fmt.Errorf("resolve content refs: %w", err)
	}

	type authorAgg struct {
		name  string
		views int64
	}
	authors := make(map[string]*authorAgg)
	for ref, b := range buckets {
		info, ok := resolved[ref]
		if !ok || info.AuthorID == "" {
			continue
		}
		a := authors[info.AuthorID]
		if a == nil {
			a = &authorAgg{name: info.AuthorName}
			authors[info.AuthorID] = a
		}
		a.views += b.views
	}

	ranked := make([]RankedAuthor, 0, len(authors))
	for id, a := range authors {
		ranked = append(ranked, RankedAuthor{AuthorID: id, AuthorName: a.name, Views: a.views})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Views != ranked[j].Views {
			return ranked[i].Views > ranked[j].Views
		}
		return ranked[i].AuthorID < ranked[j].AuthorID
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Breakdown groups period views along the dimensions classified at
// ingestion. Countries and referrers are capped; devices and browsers have
// small fixed vocabularies and are returned whole.
func (s *Service) Breakdown(ctx context.Context, rawPeriod string) (*Breakdowns, error) {
	p, err := parsePeriod(rawPeriod, s.nowFn())
	if err != nil {
		return nil, err
	}

	countries := make(map[string]int64)
	devices := make(map[string]int64)
	browsers := make(map[string]int64)
	referrers := make(map[string]int64)

	err = s.scanVisits(ctx, p, func(visits []*v1.VisitEvent) {
		for _, visit := range visits {
			if visit.Country != "" {
				countries[visit.Country]++
			}
			devices[visit.DeviceClass]++
			browsers[visit.Browser]++
			referrers[visit.ReferrerSource]++
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan breakdown: %w", err)
	}

	return &Breakdowns{
		Countries: sortedEntries(countries, maxCountryRows),
		Devices:   sortedEntries(devices, 0),
		Browsers:  sortedEntries(browsers, 0),
		Referrers: sortedEntries(referrers, maxReferrerRows),
	}, nil
}

// sortedEntries flattens a count map, sorted by count desc then key asc.
// A positive limit truncates the result.
func sortedEntries(counts map[string]int64, limit int) []CountEntry {
	entries := make([]CountEntry, 0, len(counts))
	for key, count := range counts {
		entries = append(entries, CountEntry{Key: key, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// Overview assembles the dashboard headline card. The sub-queries are
// independent and fan out concurrently.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	now := s.nowFn()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	var (
		totals     storage.Totals
		totalViews int64
		today      int64
		yesterday  int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		totals, err = s.directory.Totals(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		totalViews, err = s.events.CountVisits(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		today, err = s.events.CountVisitsBetween(gctx, todayStart, todayStart.AddDate(0, 0, 1))
		return err
	})
	g.Go(func() error {
		var err error
		yesterday, err = s.events.CountVisitsBetween(gctx, yesterdayStart, todayStart)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load overview: %w", err)
	}

	return &Overview{
		TotalPosts:     totals.Posts,
		TotalUsers:     totals.Users,
		TotalComments:  totals.Comments,
		TotalViews:     totalViews,
		ViewsToday:     today,
		ViewsYesterday: yesterday,
		GrowthPercent:  growthPercent(today, yesterday),
	}, nil
}

// growthPercent is the day-over-day change. A day that starts from zero has
// no ratio, so any traffic at all reads as 100 percent growth.
func growthPercent(today, yesterday int64) int64 {
	if yesterday == 0 {
		if today > 0 {
			return 100
		}
		return 0
	}
	return decimal.NewFromInt(today - yesterday).
		Div(decimal.NewFromInt(yesterday)).
		Mul(decimal.NewFromInt(100)).
		Round(0).IntPart()
}
