package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

// DirectoryAdapter reads the host platform's content/user/interaction
// tables. The analytics service never writes them; missing rows are simply
// absent from results (dangling refs are the caller's problem to render).
type DirectoryAdapter struct {
	db *sql.DB
}

func NewDirectoryAdapter(db *sql.DB) *DirectoryAdapter {
	return &DirectoryAdapter{db: db}
}

func (a *DirectoryAdapter) ResolveContent(ctx context.Context, ids []string) (map[string]storage.ContentInfo, error) {
	out := make(map[string]storage.ContentInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := a.db.QueryContext(ctx, queryResolveContent, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("resolve content refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var info storage.ContentInfo
		if err := rows.Scan(&id, &info.Title, &info.AuthorID, &info.AuthorName); err != nil {
			return nil, fmt.Errorf("scan content row: %w", err)
		}
		out[id] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}
	return out, nil
}

func (a *DirectoryAdapter) Totals(ctx context.Context) (storage.Totals, error) {
	var t storage.Totals
	if err := a.db.QueryRowContext(ctx, queryTotalsPosts).Scan(&t.Posts); err != nil {
		return t, fmt.Errorf("count posts: %w", err)
	}
	if err := a.db.QueryRowContext(ctx, queryTotalsUsers).Scan(&t.Users); err != nil {
		return t, fmt.Errorf("count users: %w", err)
	}
	if err := a.db.QueryRowContext(ctx, queryTotalsComments).Scan(&t.Comments); err != nil {
		return t, fmt.Errorf("count comments: %w", err)
	}
	return t, nil
}

func (a *DirectoryAdapter) InteractionSeries(ctx context.Context, kind string, start, end time.Time) ([]storage.DayCount, error) {
	rows, err := a.db.QueryContext(ctx, queryInteractionSeries, kind, start, end)
	if err != nil {
		return nil, fmt.Errorf("query interaction series: %w", err)
	}
	defer rows.Close()

	var out []storage.DayCount
	for rows.Next() {
		var dc storage.DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan interaction row: %w", err)
		}
		out = append(out, dc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating interaction rows: %w", err)
	}
	return out, nil
}
