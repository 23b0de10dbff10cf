package repository

import (
	"github.com/jmoiron/sqlx"

	"github.com/studyloop/lernplan-api/internal/models"
)

// BlockRepository persists the date-keyed block allocation buckets.
type BlockRepository struct {
	dayCollection[models.BlockAllocation]
}

// NewBlockRepository constructs a block repository.
func NewBlockRepository(db *sqlx.DB) *BlockRepository {
	return &BlockRepository{dayCollection[models.BlockAllocation]{db: db, table: "blocks_by_date"}}
}
