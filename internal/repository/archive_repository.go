package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyloop/lernplan-api/internal/models"
)

// ArchiveRepository persists archived plan snapshots.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs an archive repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// Load returns every archived plan keyed by id.
func (r *ArchiveRepository) Load(ctx context.Context) (map[string]models.ArchivedPlan, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT id, payload FROM archived_plans")
	if err != nil {
		return nil, fmt.Errorf("load archived plans: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result := make(map[string]models.ArchivedPlan)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		var archived models.ArchivedPlan
		if err := json.Unmarshal(payload, &archived); err != nil {
			return nil, fmt.Errorf("decode archive %s: %w", id, err)
		}
		result[id] = archived
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archived plans: %w", err)
	}
	return result, nil
}

// SaveOne upserts an archived plan snapshot.
func (r *ArchiveRepository) SaveOne(ctx context.Context, archived models.ArchivedPlan) error {
	payload, err := json.Marshal(archived)
	if err != nil {
		return fmt.Errorf("encode archive %s: %w", archived.ID, err)
	}
	query := `INSERT INTO archived_plans (id, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, archived.ID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("save archive %s: %w", archived.ID, err)
	}
	return nil
}

// Remove deletes an archived plan.
func (r *ArchiveRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM archived_plans WHERE id = $1", id); err != nil {
		return fmt.Errorf("remove archive %s: %w", id, err)
	}
	return nil
}
