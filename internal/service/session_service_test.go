package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/models"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

type stubSessionStore struct {
	days    map[string][]models.Session
	loadErr error
	saveErr error
}

func newStubSessionStore() *stubSessionStore {
	return &stubSessionStore{days: make(map[string][]models.Session)}
}

func (s *stubSessionStore) Load(_ context.Context) (map[string][]models.Session, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return models.CloneSessionDays(s.days), nil
}

func (s *stubSessionStore) SaveBatch(_ context.Context, upserts map[string][]models.Session, removals []string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	for day, bucket := range upserts {
		s.days[day] = bucket
	}
	for _, day := range removals {
		delete(s.days, day)
	}
	return nil
}

func (s *stubSessionStore) ReplaceAll(_ context.Context, snapshot map[string][]models.Session) error {
	s.days = models.CloneSessionDays(snapshot)
	return nil
}

func newSessionService(t *testing.T) *SessionService {
	t.Helper()
	svc := NewSessionService(newStubSessionStore(), nil, nil, nil, zap.NewNop())
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

func TestSessionServiceRejectsShortSessions(t *testing.T) {
	svc := newSessionService(t)

	cases := []struct {
		name       string
		start, end string
	}{
		{"below minimum", "09:00", "09:10"},
		{"zero length", "09:00", "09:00"},
		{"end before start", "10:00", "09:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), dto.CreateSessionRequest{
				Date: "2025-03-03", StartTime: tc.start, EndTime: tc.end,
				BlockType: "lernen", Title: "zu kurz",
			})
			require.Error(t, err)
			assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTimeRange))
		})
	}
}

func TestSessionServiceAcceptsExactMinimum(t *testing.T) {
	svc := newSessionService(t)

	result, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		Date: "2025-03-03", StartTime: "09:00", EndTime: "09:15",
		BlockType: "lernen", Title: "Viertelstunde",
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 1)
}

func TestSessionServiceMultiDayVisibleOnEveryDate(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.CreateSessionRequest{
		Date: "2025-03-03", EndDate: "2025-03-05",
		StartTime: "09:00", EndTime: "17:00",
		BlockType: "klausur", Title: "Probeexamen",
	})
	require.NoError(t, err)

	listed, err := svc.ListRange("2025-03-02", "2025-03-06")
	require.NoError(t, err)

	assert.NotContains(t, listed, "2025-03-02")
	assert.Len(t, listed["2025-03-03"], 1)
	assert.Len(t, listed["2025-03-04"], 1)
	assert.Len(t, listed["2025-03-05"], 1)
	assert.NotContains(t, listed, "2025-03-06")
}

func TestSessionServiceMultiDayRejectsEndBeforeStart(t *testing.T) {
	svc := newSessionService(t)

	_, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		Date: "2025-03-05", EndDate: "2025-03-03",
		StartTime: "09:00", EndTime: "17:00",
		BlockType: "klausur", Title: "rückwärts",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTimeRange))
}

func TestSessionServiceSeriesOccurrencesAreSingleDay(t *testing.T) {
	svc := newSessionService(t)

	result, err := svc.Create(context.Background(), dto.CreateSessionRequest{
		Date: "2025-03-03", EndDate: "2025-03-04",
		StartTime: "09:00", EndTime: "11:00",
		BlockType: "lernen", Title: "Serie",
		RepeatRule: &models.RepeatRule{
			Type:    models.RepeatWeekly,
			EndMode: models.RepeatEndByCount,
			Count:   3,
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)

	assert.Equal(t, "2025-03-04", result.Created[0].EndDate)
	assert.Empty(t, result.Created[1].EndDate)
	assert.Empty(t, result.Created[2].EndDate)
	for i, sess := range result.Created {
		assert.Equal(t, i+1, sess.SeriesIndex)
		assert.Equal(t, 3, sess.SeriesTotal)
	}
}

func TestSessionServiceUpdateRevalidatesTimes(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, dto.CreateSessionRequest{
		Date: "2025-03-03", StartTime: "09:00", EndTime: "10:00",
		BlockType: "lernen", Title: "A",
	})
	require.NoError(t, err)

	short := "09:05"
	_, err = svc.Update(ctx, created.Created[0].ID, dto.UpdateSessionRequest{EndTime: &short})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidTimeRange))

	unchanged, err := svc.Get(created.Created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "10:00", unchanged.EndTime)
}

func TestSessionServiceDeleteSeriesIsIdempotent(t *testing.T) {
	svc := newSessionService(t)
	ctx := context.Background()

	result, err := svc.Create(ctx, dto.CreateSessionRequest{
		Date: "2025-03-03", StartTime: "09:00", EndTime: "10:00",
		BlockType: "lernen", Title: "Serie",
		RepeatRule: &models.RepeatRule{
			Type:    models.RepeatDaily,
			EndMode: models.RepeatEndByCount,
			Count:   4,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, svc.DeleteSeries(ctx, result.Created[0].SeriesID))
	assert.Equal(t, 0, svc.DeleteSeries(ctx, result.Created[0].SeriesID))
}
