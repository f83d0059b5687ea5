package rollup

import (
	"time"
)

// Period is a resolved reporting window. Start is zero for the unbounded
// all-time window. Windows up to 90 days bucket daily; longer ones monthly.
type Period struct {
	Name    string
	Start   time.Time
	End     time.Time
	Monthly bool
}

func parsePeriod(raw string, now time.Time) (Period, error) {
	if raw == "" {
		raw = "30d"
	}

	end := now
	switch raw {
	case "7d":
		return Period{Name: raw, Start: end.AddDate(0, 0, -7), End: end}, nil
	case "30d":
		return Period{Name: raw, Start: end.AddDate(0, 0, -30), End: end}, nil
	case "90d":
		return Period{Name: raw, Start: end.AddDate(0, 0, -90), End: end}, nil
	case "1y":
		return Period{Name: raw, Start: end.AddDate(-1, 0, 0), End: end, Monthly: true}, nil
	case "all":
		return Period{Name: raw, End: end, Monthly: true}, nil
	default:
		return Period{}, invalidQueryf("unknown period %q (want 7d, 30d, 90d, 1y or all)", raw)
	}
}

// bucketFor truncates a timestamp to the period's bucket boundary in UTC.
func (p Period) bucketFor(t time.Time) time.Time {
	t = t.UTC()
	if p.Monthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (p Period) formatBucket(t time.Time) string {
	if p.Monthly {
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

// SeriesPoint is one non-empty time bucket of the views series.
type SeriesPoint struct {
	Date           string `json:"date"`
	Views          int64  `json:"views"`
	UniqueVisitors int64  `json:"uniqueVisitors"`
}

// DayCountPoint is one day of an interaction series (comments, likes).
type DayCountPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// EngagementSummary aggregates reading behavior over one period.
type EngagementSummary struct {
	AvgDurationSeconds float64         `json:"avgDurationSeconds"`
	AvgScrollPercent   float64         `json:"avgScrollPercent"`
	BounceRatePercent  int64           `json:"bounceRatePercent"`
	CommentsOverTime   []DayCountPoint `json:"commentsOverTime"`
	LikesOverTime      []DayCountPoint `json:"likesOverTime"`
}

// RankedContent is one row of the top-content ranking. Title and AuthorName
// are empty when the content ref no longer resolves.
type RankedContent struct {
	ContentRef     string `json:"contentRef"`
	Title          string `json:"title,omitempty"`
	AuthorName     string `json:"authorName,omitempty"`
	Views          int64  `json:"views"`
	UniqueVisitors int64  `json:"uniqueVisitors"`
}

// RankedAuthor is one row of the top-authors ranking.
type RankedAuthor struct {
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Views      int64  `json:"views"`
}

// CountEntry is one labeled count in a breakdown dimension.
type CountEntry struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Breakdowns groups period views along the classified dimensions.
type Breakdowns struct {
	Countries []CountEntry `json:"countries"`
	Devices   []CountEntry `json:"devices"`
	Browsers  []CountEntry `json:"browsers"`
	Referrers []CountEntry `json:"referrers"`
}

// Overview is the dashboard headline card.
type Overview struct {
	TotalPosts     int64 `json:"totalPosts"`
	TotalUsers     int64 `json:"totalUsers"`
	TotalComments  int64 `json:"totalComments"`
	TotalViews     int64 `json:"totalViews"`
	ViewsToday     int64 `json:"viewsToday"`
	ViewsYesterday int64 `json:"viewsYesterday"`
	GrowthPercent  int64 `json:"growthPercent"`
}
