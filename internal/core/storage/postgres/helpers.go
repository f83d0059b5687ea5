package postgres

import (
	"database/sql"
	"fmt"

	v1 "github.com/sitepulse-io/sitepulse/internal/api/v1"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanVisitRow scans one visits row (visitColumns order) into a VisitEvent.
// Compatible with both sql.Row and sql.Rows.
func scanVisitRow(row scanner) (*v1.VisitEvent, error) {
	var visit v1.VisitEvent
	var contentRef, actorRef sql.NullString

	err := row.Scan(
		&visit.ID,
		&contentRef,
		&actorRef,
		&visit.SessionID,
		&visit.Path,
		&visit.OccurredAt,
		&visit.IPAddress,
		&visit.UserAgent,
		&visit.ReferrerURL,
		&visit.Country,
		&visit.Region,
		&visit.City,
		&visit.DeviceClass,
		&visit.Browser,
		&visit.OS,
		&visit.ReferrerSource,
		&visit.DurationSeconds,
		&visit.ScrollDepthPercent,
		&visit.IngestSeq,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan visit row: %w", err)
	}

	visit.ContentRef = contentRef.String
	visit.ActorRef = actorRef.String
	return &visit, nil
}

func collectVisits(rows *sql.Rows) ([]*v1.VisitEvent, error) {
	var visits []*v1.VisitEvent
	for rows.Next() {
		visit, err := scanVisitRow(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating visits: %w", err)
	}
	return visits, nil
}

// nullStr maps "" to SQL NULL so optional refs stay queryable as IS NULL.
func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
