package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/studyloop/lernplan-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBlockRepositoryLoad(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBlockRepository(db)
	bucket := []models.BlockAllocation{{ID: "b-1", Date: "2025-03-03", Position: 1, BlockType: "lernblock", Title: "BGB AT"}}
	payload, err := json.Marshal(bucket)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"day", "payload"}).AddRow("2025-03-03", payload)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT day, payload FROM blocks_by_date")).WillReturnRows(rows)

	days, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, days, 1)
	require.Equal(t, "b-1", days["2025-03-03"][0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockRepositorySaveOne(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBlockRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocks_by_date")).
		WithArgs("2025-03-03", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveOne(context.Background(), "2025-03-03", []models.BlockAllocation{{ID: "b-1"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockRepositorySaveBatchIsTransactional(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBlockRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocks_by_date")).
		WithArgs("2025-03-03", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blocks_by_date WHERE day = $1")).
		WithArgs("2025-03-04").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SaveBatch(context.Background(),
		map[string][]models.BlockAllocation{"2025-03-03": {{ID: "b-1"}}},
		[]string{"2025-03-04"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockRepositorySaveBatchEmptyIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBlockRepository(db)
	err := repo.SaveBatch(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockRepositoryReplaceAll(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewBlockRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blocks_by_date")).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocks_by_date")).
		WithArgs("2025-04-01", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceAll(context.Background(), map[string][]models.BlockAllocation{
		"2025-04-01": {{ID: "b-9"}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlanRepositorySaveAndLoad(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPlanRepository(db)
	plan := models.Lernplan{ID: "p-1", Name: "Examensvorbereitung"}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO plans")).
		WithArgs("p-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SaveOne(context.Background(), plan))

	payload, err := json.Marshal(plan)
	require.NoError(t, err)
	rows := sqlmock.NewRows([]string{"id", "payload"}).AddRow("p-1", payload)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, payload FROM plans")).WillReturnRows(rows)

	plans, err := repo.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Examensvorbereitung", plans["p-1"].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
