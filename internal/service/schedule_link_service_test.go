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

type stubTodoStore struct {
	todos map[string]models.Todo
}

func newStubTodoStore() *stubTodoStore {
	return &stubTodoStore{todos: make(map[string]models.Todo)}
}

func (s *stubTodoStore) Load(_ context.Context) (map[string]models.Todo, error) {
	out := make(map[string]models.Todo, len(s.todos))
	for id, todo := range s.todos {
		out[id] = todo
	}
	return out, nil
}

func (s *stubTodoStore) SaveOne(_ context.Context, todo models.Todo) error {
	s.todos[todo.ID] = todo
	return nil
}

func (s *stubTodoStore) SaveBatch(_ context.Context, todos []models.Todo) error {
	for _, todo := range todos {
		s.todos[todo.ID] = todo
	}
	return nil
}

func (s *stubTodoStore) Remove(_ context.Context, id string) error {
	delete(s.todos, id)
	return nil
}

func newScheduleLinkService(t *testing.T) (*ScheduleLinkService, *PlanService, *BlockService) {
	t.Helper()
	plans := newPlanService(t)
	blocks, _ := newBlockService(t)
	svc := NewScheduleLinkService(newStubTodoStore(), plans, blocks, nil, zap.NewNop())
	require.NoError(t, svc.Load(context.Background()))
	return svc, plans, blocks
}

func createBlockOn(t *testing.T, blocks *BlockService, date string) models.BlockAllocation {
	t.Helper()
	result, err := blocks.Create(context.Background(), dto.CreateBlockRequest{
		Date: date, BlockType: "lernen", Title: "Lernblock",
	})
	require.NoError(t, err)
	return result.Created[0]
}

func TestScheduleLinkServiceScheduleThemaFillsTitleFromBlock(t *testing.T) {
	svc, plans, blocks := newScheduleLinkService(t)
	ctx := context.Background()
	planID, _, _, _, themaID := buildPlanFixture(t, plans)
	block := createBlockOn(t, blocks, "2025-03-03")

	updated, err := svc.ScheduleThema(ctx, planID, themaID, dto.ScheduleRequest{
		BlockID: block.ID, Date: block.Date,
	})
	require.NoError(t, err)

	link := updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0].ScheduledInBlock
	require.NotNil(t, link)
	assert.Equal(t, "Lernblock", link.BlockTitle)
	assert.Equal(t, models.ScheduleStatusScheduled, link.Status)
	assert.False(t, link.ScheduledAt.IsZero())
}

func TestScheduleLinkServiceRejectsUnknownBlock(t *testing.T) {
	svc, plans, _ := newScheduleLinkService(t)
	planID, _, _, _, themaID := buildPlanFixture(t, plans)

	_, err := svc.ScheduleThema(context.Background(), planID, themaID, dto.ScheduleRequest{
		BlockID: "missing", Date: "2025-03-03",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleLinkServiceTodoLifecycle(t *testing.T) {
	svc, _, blocks := newScheduleLinkService(t)
	ctx := context.Background()
	block := createBlockOn(t, blocks, "2025-03-03")

	todo, err := svc.CreateTodo(ctx, dto.TodoRequest{Text: "Karteikarten"})
	require.NoError(t, err)

	scheduled, err := svc.ScheduleTodo(ctx, todo.ID, dto.ScheduleRequest{BlockID: block.ID, Date: block.Date})
	require.NoError(t, err)
	require.NotNil(t, scheduled.ScheduledInBlock)

	unscheduled, err := svc.UnscheduleTodo(ctx, todo.ID)
	require.NoError(t, err)
	assert.Nil(t, unscheduled.ScheduledInBlock)

	require.NoError(t, svc.DeleteTodo(ctx, todo.ID))
	assert.Empty(t, svc.ListTodos())
}

func TestScheduleLinkServiceCleanupExpiresStaleAcrossStores(t *testing.T) {
	svc, plans, blocks := newScheduleLinkService(t)
	ctx := context.Background()
	planID, _, _, _, themaID := buildPlanFixture(t, plans)
	pastBlock := createBlockOn(t, blocks, "2025-02-01")
	futureBlock := createBlockOn(t, blocks, "2025-04-01")

	_, err := svc.ScheduleThema(ctx, planID, themaID, dto.ScheduleRequest{BlockID: pastBlock.ID, Date: pastBlock.Date})
	require.NoError(t, err)

	expired, err := svc.CreateTodo(ctx, dto.TodoRequest{Text: "alt"})
	require.NoError(t, err)
	_, err = svc.ScheduleTodo(ctx, expired.ID, dto.ScheduleRequest{BlockID: pastBlock.ID, Date: pastBlock.Date})
	require.NoError(t, err)

	done, err := svc.CreateTodo(ctx, dto.TodoRequest{Text: "alt aber erledigt", Completed: true})
	require.NoError(t, err)
	_, err = svc.ScheduleTodo(ctx, done.ID, dto.ScheduleRequest{BlockID: pastBlock.ID, Date: pastBlock.Date})
	require.NoError(t, err)

	current, err := svc.CreateTodo(ctx, dto.TodoRequest{Text: "aktuell"})
	require.NoError(t, err)
	_, err = svc.ScheduleTodo(ctx, current.ID, dto.ScheduleRequest{BlockID: futureBlock.ID, Date: futureBlock.Date})
	require.NoError(t, err)

	result, err := svc.CleanupExpired(ctx, "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expired, "thema link and uncompleted todo link expire")

	todos := svc.ListTodos()
	byText := make(map[string]models.Todo, len(todos))
	for _, todo := range todos {
		byText[todo.Text] = todo
	}
	require.NotNil(t, byText["alt"].ScheduledInBlock)
	assert.Equal(t, models.ScheduleStatusExpired, byText["alt"].ScheduledInBlock.Status)
	require.NotNil(t, byText["alt aber erledigt"].ScheduledInBlock)
	assert.Equal(t, models.ScheduleStatusScheduled, byText["alt aber erledigt"].ScheduledInBlock.Status)
	require.NotNil(t, byText["aktuell"].ScheduledInBlock)
	assert.Equal(t, models.ScheduleStatusScheduled, byText["aktuell"].ScheduledInBlock.Status)

	// A second pass skips links that are already expired.
	again, err := svc.CleanupExpired(ctx, "2025-03-01")
	require.NoError(t, err)
	assert.Zero(t, again.Expired)
}

func TestScheduleLinkServiceCleanupRejectsBadDate(t *testing.T) {
	svc, _, _ := newScheduleLinkService(t)

	_, err := svc.CleanupExpired(context.Background(), "gestern")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
