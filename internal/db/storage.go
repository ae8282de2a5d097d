package db

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/elclones/internal/errors"
)

// StorageRow is one key of the persisted storage mapping.
// Rev increases on every write of any key, so readers can ask for
// everything written after the last revision they saw.
type StorageRow struct {
	Key   string
	Value string
	Rev   int64
}

// GetStorage returns the rows for keys. Missing keys are absent from the map.
// With no keys, every row is returned.
func GetStorage(ctx context.Context, q Querier, keys ...string) (map[string]StorageRow, error) {
	query := `SELECT key, value, rev FROM storage`
	args := make([]any, 0, len(keys))
	if len(keys) > 0 {
		query += ` WHERE key IN (?` + strings.Repeat(`, ?`, len(keys)-1) + `)`
		for _, k := range keys {
			args = append(args, k)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	out := make(map[string]StorageRow, len(keys))
	for rows.Next() {
		var r StorageRow
		if err := rows.Scan(&r.Key, &r.Value, &r.Rev); err != nil {
			return nil, errors.NewInternal(err)
		}
		out[r.Key] = r
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// PutStorage writes key=value with the next revision and returns that revision.
// Call inside a transaction when writing several keys.
func PutStorage(ctx context.Context, q Querier, key, value string) (int64, error) {
	var rev int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(rev), 0) + 1 FROM storage`).Scan(&rev)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO storage (key, value, rev) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, rev = excluded.rev
	`, key, value, rev)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return rev, nil
}

// StorageChangedSince returns rows written after rev, oldest first.
func StorageChangedSince(ctx context.Context, q Querier, rev int64) ([]StorageRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT key, value, rev FROM storage WHERE rev > ? ORDER BY rev ASC
	`, rev)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []StorageRow
	for rows.Next() {
		var r StorageRow
		if err := rows.Scan(&r.Key, &r.Value, &r.Rev); err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// MaxStorageRev returns the latest storage revision, 0 when empty.
func MaxStorageRev(ctx context.Context, q Querier) (int64, error) {
	var rev sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(rev) FROM storage`).Scan(&rev); err != nil {
		return 0, errors.NewInternal(err)
	}
	return rev.Int64, nil
}
