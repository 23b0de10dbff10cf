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

type stubArchiveStore struct {
	archives map[string]models.ArchivedPlan
}

func newStubArchiveStore() *stubArchiveStore {
	return &stubArchiveStore{archives: make(map[string]models.ArchivedPlan)}
}

func (s *stubArchiveStore) Load(_ context.Context) (map[string]models.ArchivedPlan, error) {
	out := make(map[string]models.ArchivedPlan, len(s.archives))
	for id, archived := range s.archives {
		out[id] = archived
	}
	return out, nil
}

func (s *stubArchiveStore) SaveOne(_ context.Context, archived models.ArchivedPlan) error {
	s.archives[archived.ID] = archived
	return nil
}

func (s *stubArchiveStore) Remove(_ context.Context, id string) error {
	delete(s.archives, id)
	return nil
}

func newArchiveService(t *testing.T) (*ArchiveService, *BlockService, *SessionService, *PlanService) {
	t.Helper()
	blocks, _ := newBlockService(t)
	sessions := newSessionService(t)
	plans := newPlanService(t)
	cache := NewCacheService(newStubCacheStore(), nil, zap.NewNop(), 0)
	svc := NewArchiveService(newStubArchiveStore(), blocks, sessions, plans, cache, nil, zap.NewNop(), "Mein Lernplan")
	require.NoError(t, svc.Load(context.Background()))
	return svc, blocks, sessions, plans
}

func seedCalendar(t *testing.T, blocks *BlockService, sessions *SessionService) {
	t.Helper()
	ctx := context.Background()
	_, err := blocks.Create(ctx, dto.CreateBlockRequest{
		Date: "2025-03-03", BlockType: "lernen", Title: "Willenserklärung",
		Rechtsgebiet: "Zivilrecht", Unterrechtsgebiet: "BGB AT",
	})
	require.NoError(t, err)
	_, err = sessions.Create(ctx, dto.CreateSessionRequest{
		Date: "2025-03-03", StartTime: "09:00", EndTime: "10:00",
		BlockType: "lernen", Title: "Morgenlektüre",
	})
	require.NoError(t, err)
}

func TestArchiveServiceArchiveClearsLiveState(t *testing.T) {
	svc, blocks, sessions, _ := newArchiveService(t)
	ctx := context.Background()
	seedCalendar(t, blocks, sessions)

	archived, err := svc.Archive(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Mein Lernplan", archived.Name)
	assert.NotNil(t, archived.ArchivedAt)
	assert.Len(t, archived.Blocks["2025-03-03"], 1)
	assert.Len(t, archived.Sessions["2025-03-03"], 1)

	assert.Empty(t, blocks.ListDay("2025-03-03"))
	day, err := sessions.ListDay("2025-03-03")
	require.NoError(t, err)
	assert.Empty(t, day)
}

func TestArchiveServiceRestorePreservesOutgoingState(t *testing.T) {
	svc, blocks, sessions, _ := newArchiveService(t)
	ctx := context.Background()
	seedCalendar(t, blocks, sessions)

	archived, err := svc.Archive(ctx)
	require.NoError(t, err)

	// New live state after archiving.
	_, err = blocks.Create(ctx, dto.CreateBlockRequest{Date: "2025-05-01", BlockType: "wdh", Title: "Neuer Plan"})
	require.NoError(t, err)

	restored, err := svc.Restore(ctx, archived.ID)
	require.NoError(t, err)

	assert.NotNil(t, restored.RestoredAt)
	assert.Nil(t, restored.ArchivedAt)

	// The snapshot is live again.
	assert.Len(t, blocks.ListDay("2025-03-03"), 1)
	assert.Empty(t, blocks.ListDay("2025-05-01"))

	// The consumed archive is gone, the outgoing live state was preserved.
	_, err = svc.Get(archived.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	remaining := svc.List()
	require.Len(t, remaining, 1)
	assert.Len(t, remaining[0].Blocks["2025-05-01"], 1)
}

func TestArchiveServiceConvertToTopicHierarchy(t *testing.T) {
	svc, blocks, _, plans := newArchiveService(t)
	ctx := context.Background()

	mk := func(date, title, rg, urg string, tasks ...models.BlockTask) {
		_, err := blocks.Create(ctx, dto.CreateBlockRequest{
			Date: date, BlockType: "lernen", Title: title,
			Rechtsgebiet: rg, Unterrechtsgebiet: urg, Tasks: tasks,
		})
		require.NoError(t, err)
	}
	mk("2025-03-03", "Willenserklärung", "Zivilrecht", "BGB AT",
		models.BlockTask{ID: "t-1", Text: "Fälle lesen", Completed: true})
	mk("2025-03-04", "Willenserklärung", "Zivilrecht", "BGB AT") // duplicate topic
	mk("2025-03-05", "Vorsatz", "Strafrecht", "AT")

	archived, err := svc.Archive(ctx)
	require.NoError(t, err)

	plan, err := svc.ConvertToTopicHierarchy(ctx, archived.ID)
	require.NoError(t, err)

	assert.True(t, plan.Themenliste)
	require.Len(t, plan.Rechtsgebiete, 2)

	zivil := plan.Rechtsgebiete[0]
	assert.Equal(t, "Zivilrecht", zivil.Name)
	require.Len(t, zivil.Unterrechtsgebiete, 1)
	themen := zivil.Unterrechtsgebiete[0].Kapitel[0].Themen
	require.Len(t, themen, 1, "duplicate block titles collapse into one thema")
	assert.Equal(t, "Willenserklärung", themen[0].Name)
	require.Len(t, themen[0].Aufgaben, 1)
	assert.True(t, themen[0].Aufgaben[0].Completed)

	// The conversion does not consume the archive.
	_, err = svc.Get(archived.ID)
	require.NoError(t, err)

	// The new plan is registered alongside any existing plans.
	_, err = plans.Get(plan.ID)
	require.NoError(t, err)
}

func TestArchiveServiceMetadataTravelsIntoSnapshots(t *testing.T) {
	svc, _, _, _ := newArchiveService(t)
	ctx := context.Background()

	svc.SetMetadata(ctx, models.PlanMetadata{Name: "Examen 2026", ExamDate: "2026-09-01"})

	archived, err := svc.Archive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Examen 2026", archived.Name)
	assert.Equal(t, "2026-09-01", archived.Metadata.ExamDate)
}
