package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyloop/lernplan-api/internal/models"
)

// PlanRepository persists topic-hierarchy plans as whole JSON documents.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository constructs a plan repository.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

// Load returns every stored plan keyed by id.
func (r *PlanRepository) Load(ctx context.Context) (map[string]models.Lernplan, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT id, payload FROM plans")
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result := make(map[string]models.Lernplan)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		var plan models.Lernplan
		if err := json.Unmarshal(payload, &plan); err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", id, err)
		}
		result[id] = plan
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return result, nil
}

// SaveOne upserts a single plan document.
func (r *PlanRepository) SaveOne(ctx context.Context, plan models.Lernplan) error {
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", plan.ID, err)
	}
	query := `INSERT INTO plans (id, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, plan.ID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("save plan %s: %w", plan.ID, err)
	}
	return nil
}

// Remove deletes a plan document.
func (r *PlanRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM plans WHERE id = $1", id); err != nil {
		return fmt.Errorf("remove plan %s: %w", id, err)
	}
	return nil
}
