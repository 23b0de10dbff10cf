package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/models"
	"github.com/studyloop/lernplan-api/internal/recurrence"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

const sessionMirrorKey = "mirror:sessions"

// SessionStore is the persistence boundary of the session service.
type SessionStore interface {
	Load(ctx context.Context) (map[string][]models.Session, error)
	SaveBatch(ctx context.Context, upserts map[string][]models.Session, removals []string) error
	ReplaceAll(ctx context.Context, snapshot map[string][]models.Session) error
}

// SessionService is the authoritative in-memory store of time-ranged
// entries. Sessions are keyed by their start date; multi-day sessions are
// expanded at read time instead of being duplicated per day.
type SessionService struct {
	mu    sync.Mutex
	days  map[string][]models.Session
	store SessionStore

	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSessionService constructs an empty session service. Call Load before use.
func NewSessionService(store SessionStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{
		days:      make(map[string][]models.Session),
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Load hydrates memory from the relational store, falling back to the cache
// mirror when the store is unreachable.
func (s *SessionService) Load(ctx context.Context) error {
	days, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("session store unreachable, trying cache mirror", zap.Error(err))
		var mirror map[string][]models.Session
		if !s.cache.Get(ctx, sessionMirrorKey, &mirror) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load sessions")
		}
		days = mirror
	}
	if days == nil {
		days = make(map[string][]models.Session)
	}

	s.mu.Lock()
	s.days = days
	s.mu.Unlock()
	return nil
}

// ListDay returns every session visible on the given date, including
// multi-day sessions that merely span it, ordered by start time.
func (s *SessionService) ListDay(date string) ([]models.Session, error) {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var result []models.Session
	for _, bucket := range s.days {
		for _, sess := range bucket {
			if sessionCovers(sess, day) {
				result = append(result, models.CloneSession(sess))
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartTime < result[j].StartTime })
	return result, nil
}

// ListRange returns sessions keyed by every date they are visible on within
// the closed interval.
func (s *SessionService) ListRange(from, to string) (map[string][]models.Session, error) {
	start, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid range start date")
	}
	end, err := time.Parse(models.DateLayout, to)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid range end date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end before start")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string][]models.Session)
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, 1) {
		date := cursor.Format(models.DateLayout)
		for _, bucket := range s.days {
			for _, sess := range bucket {
				if sessionCovers(sess, cursor) {
					result[date] = append(result[date], models.CloneSession(sess))
				}
			}
		}
		if bucket, ok := result[date]; ok {
			sort.Slice(bucket, func(i, j int) bool { return bucket[i].StartTime < bucket[j].StartTime })
		}
	}
	return result, nil
}

// Get returns one session by id.
func (s *SessionService) Get(id string) (models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bucket := range s.days {
		for _, sess := range bucket {
			if sess.ID == id {
				return models.CloneSession(sess), nil
			}
		}
	}
	return models.Session{}, appErrors.Clone(appErrors.ErrNotFound, "session not found")
}

// Create stores a new session and, when a repeat rule is present, its
// series occurrences. Sessions have no position ceiling so series dates
// are never skipped.
func (s *SessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (*dto.CreateSessionResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := time.Parse(models.DateLayout, req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid session date")
	}
	if err := validateSessionRange(req.Date, req.EndDate, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	var seriesDates []string
	if req.RepeatRule != nil {
		if err := recurrence.ValidateRule(*req.RepeatRule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		generated, err := recurrence.Generate(req.Date, *req.RepeatRule)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "expand repeat rule")
		}
		seriesDates = generated
	}

	now := time.Now().UTC()
	original := models.Session{
		ID:        models.NewID(),
		Date:      req.Date,
		EndDate:   req.EndDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		BlockType: req.BlockType,
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created := []models.Session{original}
	if req.RepeatRule != nil {
		seriesID := models.NewID()
		for _, date := range seriesDates {
			occurrence := original
			occurrence.ID = models.NewID()
			occurrence.Date = date
			// Series occurrences are single-day even when the original spans
			// several days; the repeat cadence already covers the interval.
			occurrence.EndDate = ""
			created = append(created, occurrence)
		}
		total := len(created)
		rule := *req.RepeatRule
		for i := range created {
			created[i].SeriesID = seriesID
			created[i].SeriesIndex = i + 1
			created[i].SeriesTotal = total
			if i == 0 {
				created[i].RepeatRule = &rule
			}
		}
	}

	s.mu.Lock()
	upserts := make(map[string][]models.Session)
	for _, sess := range created {
		s.days[sess.Date] = append(s.days[sess.Date], sess)
		upserts[sess.Date] = cloneSessionBucket(s.days[sess.Date])
	}
	snapshot := models.CloneSessionDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, nil, snapshot)

	if req.RepeatRule != nil {
		s.metrics.RecordSeriesCreated()
	}

	result := make([]models.Session, len(created))
	for i, sess := range created {
		result[i] = models.CloneSession(sess)
	}
	return &dto.CreateSessionResult{Created: result}, nil
}

// Update patches one session. Time changes are revalidated against the
// minimum duration.
func (s *SessionService) Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*models.Session, error) {
	s.mu.Lock()

	date, idx, ok := s.locate(id)
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	sess := s.days[date][idx]

	if req.Title != nil {
		sess.Title = *req.Title
	}
	if req.BlockType != nil {
		sess.BlockType = *req.BlockType
	}
	if req.StartTime != nil {
		sess.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		sess.EndTime = *req.EndTime
	}
	if req.EndDate != nil {
		sess.EndDate = *req.EndDate
	}
	if err := validateSessionRange(sess.Date, sess.EndDate, sess.StartTime, sess.EndTime); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sess.UpdatedAt = time.Now().UTC()
	s.days[date][idx] = sess

	upserts := map[string][]models.Session{date: cloneSessionBucket(s.days[date])}
	snapshot := models.CloneSessionDays(s.days)
	updated := models.CloneSession(sess)
	s.mu.Unlock()

	s.persist(ctx, upserts, nil, snapshot)
	return &updated, nil
}

// Delete removes one session. Emptied days disappear from the store.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()

	date, idx, ok := s.locate(id)
	if !ok {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}

	bucket := s.days[date]
	s.days[date] = append(bucket[:idx], bucket[idx+1:]...)

	upserts := make(map[string][]models.Session)
	var removals []string
	if len(s.days[date]) == 0 {
		delete(s.days, date)
		removals = append(removals, date)
	} else {
		upserts[date] = cloneSessionBucket(s.days[date])
	}
	snapshot := models.CloneSessionDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, removals, snapshot)
	return nil
}

// DeleteSeries removes every session sharing the series id. Deleting a
// series that no longer exists is a no-op.
func (s *SessionService) DeleteSeries(ctx context.Context, seriesID string) int {
	if seriesID == "" {
		return 0
	}

	s.mu.Lock()

	upserts := make(map[string][]models.Session)
	var removals []string
	removed := 0
	for date, bucket := range s.days {
		kept := bucket[:0]
		for _, sess := range bucket {
			if sess.SeriesID == seriesID {
				removed++
				continue
			}
			kept = append(kept, sess)
		}
		if len(kept) == len(bucket) {
			continue
		}
		if len(kept) == 0 {
			delete(s.days, date)
			removals = append(removals, date)
			continue
		}
		s.days[date] = kept
		upserts[date] = cloneSessionBucket(kept)
	}

	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	snapshot := models.CloneSessionDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, removals, snapshot)
	return removed
}

// CollapseSeries removes every session of a series except the kept one,
// which loses its series metadata and becomes standalone. Every affected
// bucket is rewritten from the same locked pass and persisted in one batch.
func (s *SessionService) CollapseSeries(ctx context.Context, seriesID, keepID string) (*models.Session, error) {
	s.mu.Lock()

	upserts := make(map[string][]models.Session)
	var removals []string
	var survivor *models.Session
	for date, bucket := range s.days {
		kept := bucket[:0]
		changed := false
		for _, sess := range bucket {
			if sess.ID == keepID {
				sess.SeriesID = ""
				sess.SeriesIndex = 0
				sess.SeriesTotal = 0
				sess.RepeatRule = nil
				sess.UpdatedAt = time.Now().UTC()
				clone := models.CloneSession(sess)
				survivor = &clone
				changed = true
			} else if sess.SeriesID == seriesID {
				changed = true
				continue
			}
			kept = append(kept, sess)
		}
		if !changed {
			continue
		}
		if len(kept) == 0 {
			delete(s.days, date)
			removals = append(removals, date)
			continue
		}
		s.days[date] = kept
		upserts[date] = cloneSessionBucket(kept)
	}

	if survivor == nil {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	snapshot := models.CloneSessionDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, removals, snapshot)
	return survivor, nil
}

// ListSeries returns every session of a series ordered by series index.
func (s *SessionService) ListSeries(seriesID string) []models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []models.Session
	for _, bucket := range s.days {
		for _, sess := range bucket {
			if sess.SeriesID == seriesID {
				members = append(members, models.CloneSession(sess))
			}
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].SeriesIndex < members[j].SeriesIndex })
	return members
}

// Snapshot returns a deep copy of the full date-keyed state.
func (s *SessionService) Snapshot() map[string][]models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneSessionDays(s.days)
}

// ReplaceAll swaps the full state, used by archive restore.
func (s *SessionService) ReplaceAll(ctx context.Context, days map[string][]models.Session) {
	if days == nil {
		days = make(map[string][]models.Session)
	}
	s.mu.Lock()
	s.days = models.CloneSessionDays(days)
	snapshot := models.CloneSessionDays(s.days)
	s.mu.Unlock()

	if err := s.store.ReplaceAll(ctx, snapshot); err != nil {
		s.logger.Warn("session snapshot replace failed, memory is authoritative", zap.Error(err))
	}
	s.cache.SetPersistent(ctx, sessionMirrorKey, snapshot)
}

func (s *SessionService) locate(id string) (string, int, bool) {
	for date, bucket := range s.days {
		for i, sess := range bucket {
			if sess.ID == id {
				return date, i, true
			}
		}
	}
	return "", 0, false
}

func (s *SessionService) persist(ctx context.Context, upserts map[string][]models.Session, removals []string, snapshot map[string][]models.Session) {
	if err := s.store.SaveBatch(ctx, upserts, removals); err != nil {
		s.logger.Warn("session batch persist failed, memory is authoritative", zap.Error(err))
	}
	s.cache.SetPersistent(ctx, sessionMirrorKey, snapshot)
}

// sessionCovers reports whether a session is visible on the given day.
func sessionCovers(sess models.Session, day time.Time) bool {
	start, err := time.Parse(models.DateLayout, sess.Date)
	if err != nil {
		return false
	}
	end := start
	if sess.EndDate != "" {
		if parsed, err := time.Parse(models.DateLayout, sess.EndDate); err == nil && parsed.After(start) {
			end = parsed
		}
	}
	return !day.Before(start) && !day.After(end)
}

// validateSessionRange enforces the minimum duration and, for multi-day
// sessions, end after start. Multi-day sessions skip the duration check
// since their wall-clock times belong to different days.
func validateSessionRange(date, endDate, startTime, endTime string) error {
	start, err := time.Parse(models.TimeLayout, startTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrInvalidTimeRange, "invalid start time")
	}
	end, err := time.Parse(models.TimeLayout, endTime)
	if err != nil {
		return appErrors.Clone(appErrors.ErrInvalidTimeRange, "invalid end time")
	}

	if endDate != "" && endDate != date {
		startDay, err := time.Parse(models.DateLayout, date)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid session date")
		}
		endDay, err := time.Parse(models.DateLayout, endDate)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, "invalid session end date")
		}
		if endDay.Before(startDay) {
			return appErrors.Clone(appErrors.ErrInvalidTimeRange, "end date before start date")
		}
		return nil
	}

	if end.Sub(start) < models.MinSessionDuration {
		return appErrors.Clone(appErrors.ErrInvalidTimeRange, "session shorter than the 15 minute minimum")
	}
	return nil
}

func cloneSessionBucket(bucket []models.Session) []models.Session {
	out := make([]models.Session, len(bucket))
	for i, sess := range bucket {
		out[i] = models.CloneSession(sess)
	}
	return out
}
