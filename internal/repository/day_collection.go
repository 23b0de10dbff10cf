package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// dayCollection implements the per-date persistence boundary shared by the
// block and session stores: one row per calendar date holding the whole day
// bucket as JSON. Batch writes run in a single transaction so that a series
// operation touching many dates is never persisted from stale partial reads.
type dayCollection[T any] struct {
	db    *sqlx.DB
	table string
}

// Load returns every date bucket of the collection.
func (c *dayCollection[T]) Load(ctx context.Context) (map[string][]T, error) {
	query := fmt.Sprintf("SELECT day, payload FROM %s", c.table)
	rows, err := c.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", c.table, err)
	}
	defer rows.Close() //nolint:errcheck

	result := make(map[string][]T)
	for rows.Next() {
		var day string
		var payload []byte
		if err := rows.Scan(&day, &payload); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", c.table, err)
		}
		var bucket []T
		if err := json.Unmarshal(payload, &bucket); err != nil {
			return nil, fmt.Errorf("decode %s bucket %s: %w", c.table, day, err)
		}
		result[day] = bucket
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", c.table, err)
	}
	return result, nil
}

// SaveOne upserts a single date bucket.
func (c *dayCollection[T]) SaveOne(ctx context.Context, day string, bucket []T) error {
	payload, err := json.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("encode %s bucket %s: %w", c.table, day, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (day, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (day) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`, c.table)
	if _, err := c.db.ExecContext(ctx, query, day, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("save %s bucket %s: %w", c.table, day, err)
	}
	return nil
}

// SaveBatch upserts every dirty bucket and removes emptied days in one
// transaction.
func (c *dayCollection[T]) SaveBatch(ctx context.Context, upserts map[string][]T, removals []string) error {
	if len(upserts) == 0 && len(removals) == 0 {
		return nil
	}
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin %s batch: %w", c.table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	upsertQuery := fmt.Sprintf(`INSERT INTO %s (day, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (day) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`, c.table)
	for day, bucket := range upserts {
		payload, err := json.Marshal(bucket)
		if err != nil {
			return fmt.Errorf("encode %s bucket %s: %w", c.table, day, err)
		}
		if _, err := tx.ExecContext(ctx, upsertQuery, day, payload, now); err != nil {
			return fmt.Errorf("batch save %s bucket %s: %w", c.table, day, err)
		}
	}

	removeQuery := fmt.Sprintf("DELETE FROM %s WHERE day = $1", c.table)
	for _, day := range removals {
		if _, err := tx.ExecContext(ctx, removeQuery, day); err != nil {
			return fmt.Errorf("batch remove %s bucket %s: %w", c.table, day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s batch: %w", c.table, err)
	}
	return nil
}

// Remove deletes a single date bucket.
func (c *dayCollection[T]) Remove(ctx context.Context, day string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE day = $1", c.table)
	if _, err := c.db.ExecContext(ctx, query, day); err != nil {
		return fmt.Errorf("remove %s bucket %s: %w", c.table, day, err)
	}
	return nil
}

// ReplaceAll clears the collection and writes the provided snapshot in one
// transaction. Used by archive restore.
func (c *dayCollection[T]) ReplaceAll(ctx context.Context, snapshot map[string][]T) error {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin %s replace: %w", c.table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", c.table)); err != nil {
		return fmt.Errorf("clear %s: %w", c.table, err)
	}
	now := time.Now().UTC()
	query := fmt.Sprintf("INSERT INTO %s (day, payload, updated_at) VALUES ($1, $2, $3)", c.table)
	for day, bucket := range snapshot {
		payload, err := json.Marshal(bucket)
		if err != nil {
			return fmt.Errorf("encode %s bucket %s: %w", c.table, day, err)
		}
		if _, err := tx.ExecContext(ctx, query, day, payload, now); err != nil {
			return fmt.Errorf("replace %s bucket %s: %w", c.table, day, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s replace: %w", c.table, err)
	}
	return nil
}
