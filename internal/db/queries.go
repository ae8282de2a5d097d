package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/record"
)

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// InsertElement appends a new element record. A duplicate id is rejected:
// records are immutable and never replaced.
func InsertElement(ctx context.Context, q Querier, r record.Record) error {
	query := `
		INSERT INTO elements (id, html, styles, timestamp, name)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query, r.ID, r.HTML, r.Styles, r.Timestamp, r.Name)
	if err != nil {
		if isUniqueConstraintError(err) {
			return errors.NewDuplicateID(r.ID)
		}
		return errors.NewInternal(err)
	}
	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE/PRIMARY KEY violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}

// GetElement retrieves a single record by id.
func GetElement(ctx context.Context, q Querier, id string) (*record.Record, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, html, styles, timestamp, name
		FROM elements
		WHERE id = ?
	`, id)

	var r record.Record
	err := row.Scan(&r.ID, &r.HTML, &r.Styles, &r.Timestamp, &r.Name)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &r, nil
}

// ElementExists reports whether a record with id is stored.
func ElementExists(ctx context.Context, q Querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM elements WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return true, nil
}

// ListElements returns every record in insertion order.
func ListElements(ctx context.Context, q Querier) ([]record.Record, error) {
	rows, err := StreamElements(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]record.Record, 0)
	for rows.Next() {
		r, err := ScanElement(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return records, nil
}

// StreamElements returns a cursor over all records in insertion order.
// Callers must close the rows.
func StreamElements(ctx context.Context, q Querier) (*sql.Rows, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, html, styles, timestamp, name
		FROM elements
		ORDER BY rowid ASC
	`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// CountElements returns the number of stored records.
func CountElements(ctx context.Context, q Querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM elements`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// ScanElement scans the current row of a StreamElements cursor.
func ScanElement(rows *sql.Rows) (*record.Record, error) {
	var r record.Record
	if err := rows.Scan(&r.ID, &r.HTML, &r.Styles, &r.Timestamp, &r.Name); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListSummaries returns a page of record summaries in insertion order and
// the total number of records.
func ListSummaries(ctx context.Context, q Querier, limit, offset int) ([]record.Summary, int, error) {
	total, err := CountElements(ctx, q)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, timestamp
		FROM elements
		ORDER BY rowid ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	summaries := make([]record.Summary, 0, limit)
	for rows.Next() {
		var s record.Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Timestamp); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return summaries, total, nil
}
