// Package accumulator holds the per-content running counters: total views,
// approximate unique views, incremental engagement means, and a bounded
// 30-day view history. It is pure state-transition logic; serialization of
// concurrent mutations is the job of the owning StatsStore.
package accumulator

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryDays caps the view-history ring. Inserting a 31st day evicts the
// oldest entry in the same mutation.
const HistoryDays = 30

// DayViews is one point of the bounded view history.
type DayViews struct {
	Date  time.Time `json:"date"`
	Views int64     `json:"views"`
}

// ContentStats is the accumulator for one content item. Created lazily on
// first view, deleted only when the content item itself is deleted.
type ContentStats struct {
	ContentID          string     `json:"content_id"`
	TotalViews         int64      `json:"total_views"`
	UniqueViews        int64      `json:"unique_views"`
	AvgDurationSeconds float64    `json:"avg_duration_seconds"`
	AvgScrollPercent   float64    `json:"avg_scroll_depth_percent"`
	EngagementSamples  int64      `json:"engagement_samples"`
	ViewHistory        []DayViews `json:"view_history"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// RecordView applies one page view dated day (truncated to a calendar day).
// unique reports whether the session had not yet been counted against this
// content inside the dedup window.
func (s *ContentStats) RecordView(day time.Time, unique bool) {
	s.TotalViews++
	if unique {
		s.UniqueViews++
	}
	s.pushHistory(day.UTC().Truncate(24 * time.Hour))
}

// RecordEngagement folds one close-out sample into the running means using
// the incremental-mean update: newAvg = oldAvg + (sample - oldAvg) / n.
// The decimal fold keeps long accumulation runs free of float drift.
func (s *ContentStats) RecordEngagement(durationSeconds, scrollPercent float64) {
	s.EngagementSamples++
	n := decimal.NewFromInt(s.EngagementSamples)

	avgDur := decimal.NewFromFloat(s.AvgDurationSeconds)
	avgDur = avgDur.Add(decimal.NewFromFloat(durationSeconds).Sub(avgDur).Div(n))
	s.AvgDurationSeconds = avgDur.InexactFloat64()

	avgScroll := decimal.NewFromFloat(s.AvgScrollPercent)
	avgScroll = avgScroll.Add(decimal.NewFromFloat(scrollPercent).Sub(avgScroll).Div(n))
	s.AvgScrollPercent = avgScroll.InexactFloat64()
}

// pushHistory bumps today's entry or appends a new one, evicting the oldest
// entry when the ring is full. History stays ordered oldest-first and never
// exceeds HistoryDays, even transiently.
func (s *ContentStats) pushHistory(day time.Time) {
	if n := len(s.ViewHistory); n > 0 && s.ViewHistory[n-1].Date.Equal(day) {
		s.ViewHistory[n-1].Views++
		return
	}
	if len(s.ViewHistory) >= HistoryDays {
		s.ViewHistory = append(s.ViewHistory[1:len(s.ViewHistory):len(s.ViewHistory)], DayViews{Date: day, Views: 1})
		return
	}
	s.ViewHistory = append(s.ViewHistory, DayViews{Date: day, Views: 1})
}

// Clone returns a deep copy safe to hand to readers while the original
// keeps mutating under its store's lock.
func (s *ContentStats) Clone() *ContentStats {
	out := *s
	out.ViewHistory = make([]DayViews, len(s.ViewHistory))
	copy(out.ViewHistory, s.ViewHistory)
	return &out
}
