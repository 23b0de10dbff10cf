package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/studyloop/lernplan-api/internal/models"
)

// TodoRepository persists standalone tasks.
type TodoRepository struct {
	db *sqlx.DB
}

// NewTodoRepository constructs a todo repository.
func NewTodoRepository(db *sqlx.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// Load returns every todo keyed by id.
func (r *TodoRepository) Load(ctx context.Context) (map[string]models.Todo, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT id, payload FROM todos")
	if err != nil {
		return nil, fmt.Errorf("load todos: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	result := make(map[string]models.Todo)
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan todo row: %w", err)
		}
		var todo models.Todo
		if err := json.Unmarshal(payload, &todo); err != nil {
			return nil, fmt.Errorf("decode todo %s: %w", id, err)
		}
		result[id] = todo
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return result, nil
}

// SaveOne upserts a single todo.
func (r *TodoRepository) SaveOne(ctx context.Context, todo models.Todo) error {
	payload, err := json.Marshal(todo)
	if err != nil {
		return fmt.Errorf("encode todo %s: %w", todo.ID, err)
	}
	query := `INSERT INTO todos (id, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, todo.ID, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("save todo %s: %w", todo.ID, err)
	}
	return nil
}

// SaveBatch upserts many todos in one transaction.
func (r *TodoRepository) SaveBatch(ctx context.Context, todos []models.Todo) error {
	if len(todos) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin todo batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	query := `INSERT INTO todos (id, payload, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	for _, todo := range todos {
		payload, err := json.Marshal(todo)
		if err != nil {
			return fmt.Errorf("encode todo %s: %w", todo.ID, err)
		}
		if _, err := tx.ExecContext(ctx, query, todo.ID, payload, now); err != nil {
			return fmt.Errorf("batch save todo %s: %w", todo.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit todo batch: %w", err)
	}
	return nil
}

// Remove deletes a todo.
func (r *TodoRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM todos WHERE id = $1", id); err != nil {
		return fmt.Errorf("remove todo %s: %w", id, err)
	}
	return nil
}
