package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/models"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

// TodoStore is the persistence boundary for standalone tasks.
type TodoStore interface {
	Load(ctx context.Context) (map[string]models.Todo, error)
	SaveOne(ctx context.Context, todo models.Todo) error
	SaveBatch(ctx context.Context, todos []models.Todo) error
	Remove(ctx context.Context, id string) error
}

// ScheduleLinkService links topics, tasks and todos to calendar blocks and
// runs the expiry cleanup pass. Links reference blocks loosely: a deleted
// block leaves its links behind until the next cleanup clears them.
type ScheduleLinkService struct {
	mu    sync.Mutex
	todos map[string]models.Todo

	store   TodoStore
	plans   *PlanService
	blocks  *BlockService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewScheduleLinkService constructs the schedule link service. Call Load
// before use.
func NewScheduleLinkService(store TodoStore, plans *PlanService, blocks *BlockService, metrics *MetricsService, logger *zap.Logger) *ScheduleLinkService {
	return &ScheduleLinkService{
		todos:   make(map[string]models.Todo),
		store:   store,
		plans:   plans,
		blocks:  blocks,
		metrics: metrics,
		logger:  logger,
	}
}

// Load hydrates the todo map from the relational store.
func (s *ScheduleLinkService) Load(ctx context.Context) error {
	todos, err := s.store.Load(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load todos")
	}
	if todos == nil {
		todos = make(map[string]models.Todo)
	}
	s.mu.Lock()
	s.todos = todos
	s.mu.Unlock()
	return nil
}

// ListTodos returns every todo ordered by creation time.
func (s *ScheduleLinkService) ListTodos() []models.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Todo, 0, len(s.todos))
	for _, todo := range s.todos {
		result = append(result, todo)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// CreateTodo stores a new standalone task.
func (s *ScheduleLinkService) CreateTodo(ctx context.Context, req dto.TodoRequest) (*models.Todo, error) {
	now := time.Now().UTC()
	todo := models.Todo{
		ID:        models.NewID(),
		Text:      req.Text,
		Completed: req.Completed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.todos[todo.ID] = todo
	s.mu.Unlock()

	s.persistTodo(ctx, todo)
	return &todo, nil
}

// UpdateTodo patches text and completion state.
func (s *ScheduleLinkService) UpdateTodo(ctx context.Context, id string, req dto.TodoRequest) (*models.Todo, error) {
	s.mu.Lock()
	todo, ok := s.todos[id]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "todo not found")
	}
	todo.Text = req.Text
	todo.Completed = req.Completed
	todo.UpdatedAt = time.Now().UTC()
	s.todos[id] = todo
	s.mu.Unlock()

	s.persistTodo(ctx, todo)
	return &todo, nil
}

// DeleteTodo removes a standalone task.
func (s *ScheduleLinkService) DeleteTodo(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.todos[id]; !ok {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "todo not found")
	}
	delete(s.todos, id)
	s.mu.Unlock()

	if err := s.store.Remove(ctx, id); err != nil {
		s.logger.Warn("todo remove persist failed, memory is authoritative",
			zap.String("todoId", id), zap.Error(err))
	}
	return nil
}

// ScheduleThema links a topic and all of its tasks to a block. The block
// must exist at link time.
func (s *ScheduleLinkService) ScheduleThema(ctx context.Context, planID, themaID string, req dto.ScheduleRequest) (*models.Lernplan, error) {
	link, err := s.buildLink(req)
	if err != nil {
		return nil, err
	}
	return s.plans.ScheduleThema(ctx, planID, themaID, link)
}

// ScheduleAufgabe links a single task to a block.
func (s *ScheduleLinkService) ScheduleAufgabe(ctx context.Context, planID, aufgabeID string, req dto.ScheduleRequest) (*models.Lernplan, error) {
	link, err := s.buildLink(req)
	if err != nil {
		return nil, err
	}
	return s.plans.ScheduleAufgabe(ctx, planID, aufgabeID, link)
}

// Unschedule clears the link of a topic or task.
func (s *ScheduleLinkService) Unschedule(ctx context.Context, planID, nodeID string) (*models.Lernplan, error) {
	return s.plans.Unschedule(ctx, planID, nodeID)
}

// ScheduleTodo links a standalone task to a block.
func (s *ScheduleLinkService) ScheduleTodo(ctx context.Context, todoID string, req dto.ScheduleRequest) (*models.Todo, error) {
	link, err := s.buildLink(req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	todo, ok := s.todos[todoID]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "todo not found")
	}
	todo.ScheduledInBlock = &link
	todo.UpdatedAt = time.Now().UTC()
	s.todos[todoID] = todo
	s.mu.Unlock()

	s.persistTodo(ctx, todo)
	return &todo, nil
}

// UnscheduleTodo clears the link of a standalone task.
func (s *ScheduleLinkService) UnscheduleTodo(ctx context.Context, todoID string) (*models.Todo, error) {
	s.mu.Lock()
	todo, ok := s.todos[todoID]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "todo not found")
	}
	todo.ScheduledInBlock = nil
	todo.UpdatedAt = time.Now().UTC()
	s.todos[todoID] = todo
	s.mu.Unlock()

	s.persistTodo(ctx, todo)
	return &todo, nil
}

// CleanupExpired marks every link dated before today as expired across the
// topic hierarchy and the todos, keeping links on completed items scheduled.
// Runs at startup and on demand; links already expired are skipped, so a
// second pass reports zero.
func (s *ScheduleLinkService) CleanupExpired(ctx context.Context, today string) (*dto.CleanupResult, error) {
	cutoff, err := time.Parse(models.DateLayout, today)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid cleanup date")
	}

	expired := s.plans.CleanupExpiredSchedules(ctx, today)

	s.mu.Lock()
	var dirty []models.Todo
	for id, todo := range s.todos {
		link := todo.ScheduledInBlock
		if link == nil || todo.Completed || link.Status == models.ScheduleStatusExpired {
			continue
		}
		date, err := time.Parse(models.DateLayout, link.Date)
		if err != nil || !date.Before(cutoff) {
			continue
		}
		stale := *link
		stale.Status = models.ScheduleStatusExpired
		todo.ScheduledInBlock = &stale
		todo.UpdatedAt = time.Now().UTC()
		s.todos[id] = todo
		dirty = append(dirty, todo)
		expired++
	}
	s.mu.Unlock()

	if len(dirty) > 0 {
		if err := s.store.SaveBatch(ctx, dirty); err != nil {
			s.logger.Warn("todo cleanup persist failed, memory is authoritative", zap.Error(err))
		}
	}

	s.metrics.RecordExpiredLinksCleaned(expired)
	if expired > 0 {
		s.logger.Info("stale schedule links expired",
			zap.String("cutoff", today),
			zap.Int("expired", expired))
	}
	return &dto.CleanupResult{Expired: expired}, nil
}

// buildLink validates the request against the block store and produces the
// link value stored on the scheduled item.
func (s *ScheduleLinkService) buildLink(req dto.ScheduleRequest) (models.ScheduleLink, error) {
	if _, err := time.Parse(models.DateLayout, req.Date); err != nil {
		return models.ScheduleLink{}, appErrors.Clone(appErrors.ErrValidation, "invalid schedule date")
	}

	title := req.BlockTitle
	block, err := s.blocks.Get(req.BlockID)
	if err != nil {
		return models.ScheduleLink{}, appErrors.Clone(appErrors.ErrNotFound, "scheduled block not found")
	}
	if title == "" {
		title = block.Title
	}

	return models.ScheduleLink{
		BlockID:     req.BlockID,
		Date:        req.Date,
		BlockTitle:  title,
		ScheduledAt: time.Now().UTC(),
		Status:      models.ScheduleStatusScheduled,
	}, nil
}

func (s *ScheduleLinkService) persistTodo(ctx context.Context, todo models.Todo) {
	if err := s.store.SaveOne(ctx, todo); err != nil {
		s.logger.Warn("todo persist failed, memory is authoritative",
			zap.String("todoId", todo.ID), zap.Error(err))
	}
}
