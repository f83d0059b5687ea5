package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
	"github.com/sitepulse-io/sitepulse/internal/core/storage"
)

func visitRowColumns() []string {
	return []string{
		"id", "content_ref", "actor_ref", "session_id", "path", "occurred_at",
		"ip_address", "user_agent", "referrer_url",
		"country", "region", "city", "device_class", "browser", "os", "referrer_source",
		"duration_seconds", "scroll_depth_percent", "ingest_seq",
	}
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	queries := []string{
		querySaveVisit,
		queryAttachEngagement,
		queryRetrieveVisitsAfterCursor,
		queryRetrieveVisitsSince,
		queryCountVisitsBetween,
		queryCountVisits,
	}
	stmts := make([]*sql.Stmt, len(queries))
	for i, q := range queries {
		mock.ExpectPrepare(regexp.QuoteMeta(q))
		stmt, err := db.Prepare(q)
		require.NoError(t, err)
		stmts[i] = stmt
	}

	adapter := &Adapter{
		db:                 db,
		stmtSaveVisit:      stmts[0],
		stmtAttach:         stmts[1],
		stmtRetrieveCursor: stmts[2],
		stmtRetrieveSince:  stmts[3],
		stmtCountBetween:   stmts[4],
		stmtCountAll:       stmts[5],
	}
	return adapter, mock, db
}

func TestAdapter_SaveVisit(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	visit := &v1.VisitEvent{
		ID:             "v-1",
		ContentRef:     "post-1",
		SessionID:      "s-1",
		Path:           "/posts/hello",
		OccurredAt:     now,
		IPAddress:      "203.0.113.9",
		UserAgent:      "Mozilla/5.0",
		DeviceClass:    v1.DeviceDesktop,
		Browser:        "Chrome",
		OS:             "Windows",
		ReferrerSource: "Direct",
	}

	mock.ExpectQuery(regexp.QuoteMeta(querySaveVisit)).
		WithArgs(
			visit.ID,
			sql.NullString{String: "post-1", Valid: true},
			sql.NullString{},
			visit.SessionID,
			visit.Path,
			visit.OccurredAt,
			visit.IPAddress,
			visit.UserAgent,
			visit.ReferrerURL,
			visit.Country,
			visit.Region,
			visit.City,
			visit.DeviceClass,
			visit.Browser,
			visit.OS,
			visit.ReferrerSource,
			visit.DurationSeconds,
			visit.ScrollDepthPercent,
		).
		WillReturnRows(sqlmock.NewRows([]string{"ingest_seq"}).AddRow(int64(7)))

	require.NoError(t, adapter.SaveVisit(context.Background(), visit))
	require.Equal(t, int64(7), visit.IngestSeq)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_AttachEngagement_NoOpenVisit(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryAttachEngagement)).
		WithArgs("s-1", "/posts/hello", 30.0, 80.0).
		WillReturnRows(sqlmock.NewRows(visitRowColumns()))

	_, err := adapter.AttachEngagement(context.Background(), "s-1", "/posts/hello", 30, 80)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_RetrieveVisitsAfterCursor(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	rows := sqlmock.NewRows(visitRowColumns()).AddRow(
		"v-43", "post-1", nil, "s-1", "/posts/hello", now,
		"203.0.113.9", "Mozilla/5.0", "https://www.google.com/",
		"DE", "", "", v1.DeviceMobile, "Chrome", "Android", "Google",
		0.0, 0.0, int64(43),
	)

	mock.ExpectQuery(regexp.QuoteMeta(queryRetrieveVisitsAfterCursor)).
		WithArgs(int64(0), now.AddDate(0, 0, -7), now, 500).
		WillReturnRows(rows)

	visits, err := adapter.RetrieveVisitsAfterCursor(context.Background(), 0, now.AddDate(0, 0, -7), now, 500)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.Equal(t, "v-43", visits[0].ID)
	require.Equal(t, "post-1", visits[0].ContentRef)
	require.Empty(t, visits[0].ActorRef)
	require.Equal(t, int64(43), visits[0].IngestSeq)
	require.Equal(t, "Google", visits[0].ReferrerSource)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsAdapter_RecordView_TransactionShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	day := time.Date(2026, 6, 1, 15, 30, 0, 0, time.UTC)
	bucket := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertView)).
		WithArgs("post-1", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertViewDay)).
		WithArgs("post-1", bucket).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryEvictViewDays)).
		WithArgs("post-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	adapter := NewStatsAdapter(db)
	require.NoError(t, adapter.RecordView(context.Background(), "post-1", day, true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsAdapter_GetUnknownContent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryGetContentStats)).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	adapter := NewStatsAdapter(db)
	_, getErr := adapter.Get(context.Background(), "missing")
	require.ErrorIs(t, getErr, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
