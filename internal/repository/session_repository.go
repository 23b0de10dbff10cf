package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/studyloop/lernplan-api/internal/models"
)

// SessionRepository persists the date-keyed session buckets.
type SessionRepository struct {
	dayCollection[models.Session]
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{dayCollection[models.Session]{db: db, table: "sessions_by_date"}}
}
