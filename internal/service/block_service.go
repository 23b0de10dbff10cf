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

const blockMirrorKey = "mirror:blocks"

// BlockStore is the persistence boundary of the block service.
type BlockStore interface {
	Load(ctx context.Context) (map[string][]models.BlockAllocation, error)
	SaveBatch(ctx context.Context, upserts map[string][]models.BlockAllocation, removals []string) error
	ReplaceAll(ctx context.Context, snapshot map[string][]models.BlockAllocation) error
}

// BlockService is the authoritative in-memory store of block allocations.
// Every mutation changes memory first and then persists the touched day
// buckets in one batch taken from the same locked snapshot, so a partial
// write can never leave memory and storage describing different days.
type BlockService struct {
	mu    sync.Mutex
	days  map[string][]models.BlockAllocation
	store BlockStore

	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBlockService constructs an empty block service. Call Load before use.
func NewBlockService(store BlockStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BlockService {
	if validate == nil {
		validate = validator.New()
	}
	return &BlockService{
		days:      make(map[string][]models.BlockAllocation),
		store:     store,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Load hydrates memory from the relational store, falling back to the cache
// mirror when the store is unreachable.
func (s *BlockService) Load(ctx context.Context) error {
	days, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("block store unreachable, trying cache mirror", zap.Error(err))
		var mirror map[string][]models.BlockAllocation
		if !s.cache.Get(ctx, blockMirrorKey, &mirror) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load blocks")
		}
		days = mirror
	}
	if days == nil {
		days = make(map[string][]models.BlockAllocation)
	}

	s.mu.Lock()
	s.days = days
	s.mu.Unlock()
	return nil
}

// ListDay returns the allocations of one date ordered by position.
func (s *BlockService) ListDay(date string) []models.BlockAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedByPosition(cloneBucket(s.days[date]))
}

// ListRange returns every allocation in the closed date interval keyed by
// date. Dates without blocks are absent from the result.
func (s *BlockService) ListRange(from, to string) (map[string][]models.BlockAllocation, error) {
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

	result := make(map[string][]models.BlockAllocation)
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, 1) {
		date := cursor.Format(models.DateLayout)
		if bucket, ok := s.days[date]; ok {
			result[date] = sortedByPosition(cloneBucket(bucket))
		}
	}
	return result, nil
}

// Get returns one allocation by id.
func (s *BlockService) Get(id string) (models.BlockAllocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bucket := range s.days {
		for _, b := range bucket {
			if b.ID == id {
				return models.CloneBlock(b), nil
			}
		}
	}
	return models.BlockAllocation{}, appErrors.Clone(appErrors.ErrNotFound, "block not found")
}

// Create places a new allocation on its start date and, when a repeat rule
// is present, expands it into a series. The start date must have a free
// position; later series dates are best effort and full days are reported
// as skipped instead of failing the whole request.
func (s *BlockService) Create(ctx context.Context, req dto.CreateBlockRequest) (*dto.CreateBlockResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := time.Parse(models.DateLayout, req.Date); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid block date")
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

	s.mu.Lock()

	if freePosition(s.days[req.Date]) == 0 {
		s.mu.Unlock()
		return nil, appErrors.ErrCapacityExceeded
	}

	now := time.Now().UTC()
	original := models.BlockAllocation{
		ID:                models.NewID(),
		Date:              req.Date,
		Position:          freePosition(s.days[req.Date]),
		BlockType:         req.BlockType,
		Title:             req.Title,
		Rechtsgebiet:      req.Rechtsgebiet,
		Unterrechtsgebiet: req.Unterrechtsgebiet,
		ContentRef:        req.ContentRef,
		Tasks:             models.CloneTasks(req.Tasks),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created := []models.BlockAllocation{original}
	var skipped []string

	if req.RepeatRule != nil {
		seriesID := models.NewID()
		for _, date := range seriesDates {
			pos := freePosition(s.days[date])
			if pos == 0 {
				skipped = append(skipped, date)
				continue
			}
			occurrence := original
			occurrence.ID = models.NewID()
			occurrence.Date = date
			occurrence.Position = pos
			occurrence.Tasks = models.CloneTasks(req.Tasks)
			occurrence.SeriesID = seriesID
			created = append(created, occurrence)
			s.days[date] = append(s.days[date], occurrence)
		}

		// Series numbering covers the occurrences that actually exist,
		// so skipped dates never leave holes in the index sequence.
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
		original = created[0]
		for _, b := range created[1:] {
			s.setBlockLocked(b)
		}
	}

	s.days[req.Date] = append(s.days[req.Date], original)

	upserts := make(map[string][]models.BlockAllocation, len(created))
	for _, b := range created {
		upserts[b.Date] = cloneBucket(s.days[b.Date])
	}
	snapshot := models.CloneBlockDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, nil, snapshot)

	if req.RepeatRule != nil {
		s.metrics.RecordSeriesCreated()
		s.metrics.RecordSeriesDatesSkipped(len(skipped))
	}

	result := make([]models.BlockAllocation, len(created))
	for i, b := range created {
		result[i] = models.CloneBlock(b)
	}
	return &dto.CreateBlockResult{Created: result, SkippedDates: skipped}, nil
}

// Update patches a single allocation. A position change is validated
// against the day's occupied slots before anything is mutated.
func (s *BlockService) Update(ctx context.Context, id string, req dto.UpdateBlockRequest) (*models.BlockAllocation, error) {
	s.mu.Lock()

	date, idx, ok := s.locate(id)
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "block not found")
	}
	block := s.days[date][idx]

	if req.Position != nil && *req.Position != block.Position {
		if *req.Position < 1 || *req.Position > models.MaxBlocksPerDay {
			s.mu.Unlock()
			return nil, appErrors.Clone(appErrors.ErrValidation, "position out of range")
		}
		for _, other := range s.days[date] {
			if other.ID != id && other.Position == *req.Position {
				s.mu.Unlock()
				return nil, appErrors.ErrInsufficientCapacity
			}
		}
		block.Position = *req.Position
	}
	if req.Title != nil {
		block.Title = *req.Title
	}
	if req.BlockType != nil {
		block.BlockType = *req.BlockType
	}
	if req.Rechtsgebiet != nil {
		block.Rechtsgebiet = *req.Rechtsgebiet
	}
	if req.Unterrechtsgebiet != nil {
		block.Unterrechtsgebiet = *req.Unterrechtsgebiet
	}
	if req.ContentRef != nil {
		block.ContentRef = *req.ContentRef
	}
	if req.Tasks != nil {
		block.Tasks = models.CloneTasks(*req.Tasks)
	}
	block.UpdatedAt = time.Now().UTC()
	s.days[date][idx] = block

	upserts := map[string][]models.BlockAllocation{date: cloneBucket(s.days[date])}
	snapshot := models.CloneBlockDays(s.days)
	updated := models.CloneBlock(block)
	s.mu.Unlock()

	s.persist(ctx, upserts, nil, snapshot)
	return &updated, nil
}

// Delete removes one allocation. Emptied days disappear from the store
// entirely so range listings never report hollow dates.
func (s *BlockService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()

	date, idx, ok := s.locate(id)
	if !ok {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "block not found")
	}

	bucket := s.days[date]
	s.days[date] = append(bucket[:idx], bucket[idx+1:]...)

	upserts := make(map[string][]models.BlockAllocation)
	var removals []string
	if len(s.days[date]) == 0 {
		delete(s.days, date)
		removals = append(removals, date)
	} else {
		upserts[date] = cloneBucket(s.days[date])
	}
	snapshot := models.CloneBlockDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, removals, snapshot)
	return nil
}

// DeleteSeries removes every allocation sharing the series id. Deleting a
// series that no longer exists is a no-op.
func (s *BlockService) DeleteSeries(ctx context.Context, seriesID string) int {
	if seriesID == "" {
		return 0
	}

	s.mu.Lock()

	upserts := make(map[string][]models.BlockAllocation)
	var removals []string
	removed := 0
	for date, bucket := range s.days {
		kept := bucket[:0]
		for _, b := range bucket {
			if b.SeriesID == seriesID {
				removed++
				continue
			}
			kept = append(kept, b)
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
		upserts[date] = cloneBucket(kept)
	}

	if removed == 0 {
		s.mu.Unlock()
		return 0
	}
	snapshot := models.CloneBlockDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, removals, snapshot)
	return removed
}

// CollapseSeries removes every allocation of a series except the kept one,
// which loses its series metadata and becomes standalone. Every affected
// bucket is rewritten from the same locked pass and persisted in one batch.
func (s *BlockService) CollapseSeries(ctx context.Context, seriesID, keepID string) (*models.BlockAllocation, error) {
	s.mu.Lock()

	upserts := make(map[string][]models.BlockAllocation)
	var removals []string
	var survivor *models.BlockAllocation
	for date, bucket := range s.days {
		kept := bucket[:0]
		changed := false
		for _, b := range bucket {
			if b.ID == keepID {
				b.SeriesID = ""
				b.SeriesIndex = 0
				b.SeriesTotal = 0
				b.RepeatRule = nil
				b.UpdatedAt = time.Now().UTC()
				clone := models.CloneBlock(b)
				survivor = &clone
				changed = true
			} else if b.SeriesID == seriesID {
				changed = true
				continue
			}
			kept = append(kept, b)
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
		upserts[date] = cloneBucket(kept)
	}

	if survivor == nil {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "block not found")
	}
	snapshot := models.CloneBlockDays(s.days)
	s.mu.Unlock()

	s.persist(ctx, upserts, removals, snapshot)
	return survivor, nil
}

// ListSeries returns every allocation of a series ordered by series index.
func (s *BlockService) ListSeries(seriesID string) []models.BlockAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []models.BlockAllocation
	for _, bucket := range s.days {
		for _, b := range bucket {
			if b.SeriesID == seriesID {
				members = append(members, models.CloneBlock(b))
			}
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].SeriesIndex < members[j].SeriesIndex })
	return members
}

// Snapshot returns a deep copy of the full date-keyed state.
func (s *BlockService) Snapshot() map[string][]models.BlockAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneBlockDays(s.days)
}

// ReplaceAll swaps the full state, used by archive restore. The relational
// store is rewritten in one transaction.
func (s *BlockService) ReplaceAll(ctx context.Context, days map[string][]models.BlockAllocation) {
	if days == nil {
		days = make(map[string][]models.BlockAllocation)
	}
	s.mu.Lock()
	s.days = models.CloneBlockDays(days)
	snapshot := models.CloneBlockDays(s.days)
	s.mu.Unlock()

	if err := s.store.ReplaceAll(ctx, snapshot); err != nil {
		s.logger.Warn("block snapshot replace failed, memory is authoritative", zap.Error(err))
	}
	s.cache.SetPersistent(ctx, blockMirrorKey, snapshot)
}

// setBlockLocked overwrites a block already present in its day bucket.
// Caller holds the mutex.
func (s *BlockService) setBlockLocked(b models.BlockAllocation) {
	bucket := s.days[b.Date]
	for i := range bucket {
		if bucket[i].ID == b.ID {
			bucket[i] = b
			return
		}
	}
}

// locate finds a block by id. Caller holds the mutex.
func (s *BlockService) locate(id string) (string, int, bool) {
	for date, bucket := range s.days {
		for i, b := range bucket {
			if b.ID == id {
				return date, i, true
			}
		}
	}
	return "", 0, false
}

// persist batch-writes the dirty buckets and refreshes the cache mirror.
// Persistence failures are logged, not surfaced: memory already holds the
// applied state and the mirror keeps a recoverable copy.
func (s *BlockService) persist(ctx context.Context, upserts map[string][]models.BlockAllocation, removals []string, snapshot map[string][]models.BlockAllocation) {
	if err := s.store.SaveBatch(ctx, upserts, removals); err != nil {
		s.logger.Warn("block batch persist failed, memory is authoritative", zap.Error(err))
	}
	s.cache.SetPersistent(ctx, blockMirrorKey, snapshot)
}

// freePosition returns the lowest unoccupied position of a day bucket,
// or 0 when the day is full.
func freePosition(bucket []models.BlockAllocation) int {
	occupied := make(map[int]bool, len(bucket))
	for _, b := range bucket {
		occupied[b.Position] = true
	}
	for pos := 1; pos <= models.MaxBlocksPerDay; pos++ {
		if !occupied[pos] {
			return pos
		}
	}
	return 0
}

func cloneBucket(bucket []models.BlockAllocation) []models.BlockAllocation {
	out := make([]models.BlockAllocation, len(bucket))
	for i, b := range bucket {
		out[i] = models.CloneBlock(b)
	}
	return out
}

func sortedByPosition(bucket []models.BlockAllocation) []models.BlockAllocation {
	sort.Slice(bucket, func(i, j int) bool { return bucket[i].Position < bucket[j].Position })
	return bucket
}
