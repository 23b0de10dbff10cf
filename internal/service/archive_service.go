package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/models"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

const metadataKey = "plan:metadata"

// ArchiveStore is the persistence boundary of the archive service.
type ArchiveStore interface {
	Load(ctx context.Context) (map[string]models.ArchivedPlan, error)
	SaveOne(ctx context.Context, archived models.ArchivedPlan) error
	Remove(ctx context.Context, id string) error
}

// ArchiveService snapshots and restores whole calendar states. It also owns
// the metadata of the currently active plan (name, exam date, wizard
// settings) which travels into every snapshot.
type ArchiveService struct {
	mu       sync.Mutex
	archives map[string]models.ArchivedPlan
	metadata models.PlanMetadata

	store    ArchiveStore
	blocks   *BlockService
	sessions *SessionService
	plans    *PlanService
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewArchiveService constructs the archive service. Call Load before use.
func NewArchiveService(store ArchiveStore, blocks *BlockService, sessions *SessionService, plans *PlanService, cache *CacheService, metrics *MetricsService, logger *zap.Logger, defaultPlanName string) *ArchiveService {
	return &ArchiveService{
		archives: make(map[string]models.ArchivedPlan),
		metadata: models.PlanMetadata{Name: defaultPlanName},
		store:    store,
		blocks:   blocks,
		sessions: sessions,
		plans:    plans,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
	}
}

// Load hydrates the archive map and the active plan metadata.
func (s *ArchiveService) Load(ctx context.Context) error {
	archives, err := s.store.Load(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load archives")
	}
	if archives == nil {
		archives = make(map[string]models.ArchivedPlan)
	}

	var metadata models.PlanMetadata
	if s.cache.Get(ctx, metadataKey, &metadata) && metadata.Name != "" {
		s.mu.Lock()
		s.metadata = metadata
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.archives = archives
	s.mu.Unlock()
	return nil
}

// List returns every archive ordered by archive time, newest first.
func (s *ArchiveService) List() []models.ArchivedPlan {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.ArchivedPlan, 0, len(s.archives))
	for _, archived := range s.archives {
		result = append(result, archived)
	}
	sort.Slice(result, func(i, j int) bool {
		var ti, tj time.Time
		if result[i].ArchivedAt != nil {
			ti = *result[i].ArchivedAt
		}
		if result[j].ArchivedAt != nil {
			tj = *result[j].ArchivedAt
		}
		return tj.Before(ti)
	})
	return result
}

// Get returns one archive by id.
func (s *ArchiveService) Get(id string) (models.ArchivedPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	archived, ok := s.archives[id]
	if !ok {
		return models.ArchivedPlan{}, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
	}
	return archived, nil
}

// Metadata returns the active plan metadata.
func (s *ArchiveService) Metadata() models.PlanMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata
}

// SetMetadata replaces the active plan metadata.
func (s *ArchiveService) SetMetadata(ctx context.Context, metadata models.PlanMetadata) {
	s.mu.Lock()
	s.metadata = metadata
	s.mu.Unlock()
	s.cache.SetPersistent(ctx, metadataKey, metadata)
}

// Archive snapshots the live calendar state under the active plan's name
// and clears the live stores so a fresh plan can start.
func (s *ArchiveService) Archive(ctx context.Context) (*models.ArchivedPlan, error) {
	archived := s.snapshotLive()

	s.mu.Lock()
	s.archives[archived.ID] = archived
	s.mu.Unlock()

	if err := s.store.SaveOne(ctx, archived); err != nil {
		s.logger.Warn("archive persist failed, memory is authoritative",
			zap.String("archiveId", archived.ID), zap.Error(err))
	}

	s.blocks.ReplaceAll(ctx, nil)
	s.sessions.ReplaceAll(ctx, nil)

	s.metrics.RecordPlanArchived()
	s.logger.Info("plan archived",
		zap.String("archiveId", archived.ID),
		zap.String("name", archived.Name))
	return &archived, nil
}

// Restore swaps an archived snapshot back into the live stores. The current
// live state is archived first so nothing is lost, the restored snapshot is
// stamped and the consumed archive deleted.
func (s *ArchiveService) Restore(ctx context.Context, id string) (*models.ArchivedPlan, error) {
	s.mu.Lock()
	target, ok := s.archives[id]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
	}
	s.mu.Unlock()

	// Preserve the outgoing live state before it is overwritten.
	outgoing := s.snapshotLive()
	s.mu.Lock()
	s.archives[outgoing.ID] = outgoing
	delete(s.archives, id)
	s.mu.Unlock()

	if err := s.store.SaveOne(ctx, outgoing); err != nil {
		s.logger.Warn("archive persist failed, memory is authoritative",
			zap.String("archiveId", outgoing.ID), zap.Error(err))
	}
	if err := s.store.Remove(ctx, id); err != nil {
		s.logger.Warn("archive remove persist failed, memory is authoritative",
			zap.String("archiveId", id), zap.Error(err))
	}

	s.blocks.ReplaceAll(ctx, target.Blocks)
	s.sessions.ReplaceAll(ctx, target.Sessions)
	s.SetMetadata(ctx, target.Metadata)

	now := time.Now().UTC()
	target.RestoredAt = &now
	target.ArchivedAt = nil

	s.logger.Info("plan restored",
		zap.String("archiveId", id),
		zap.String("name", target.Name))
	return &target, nil
}

// Delete removes an archive without touching live state.
func (s *ArchiveService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.archives[id]; !ok {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "archive not found")
	}
	delete(s.archives, id)
	s.mu.Unlock()

	if err := s.store.Remove(ctx, id); err != nil {
		s.logger.Warn("archive remove persist failed, memory is authoritative",
			zap.String("archiveId", id), zap.Error(err))
	}
	return nil
}

// ConvertToTopicHierarchy projects an archived calendar into a Themenliste
// plan: blocks grouped by subject and sub-subject, block titles become
// topics, checklist items become tasks. The projection is lossy on purpose;
// dates, positions and series metadata do not survive.
func (s *ArchiveService) ConvertToTopicHierarchy(ctx context.Context, id string) (*models.Lernplan, error) {
	s.mu.Lock()
	archived, ok := s.archives[id]
	s.mu.Unlock()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "archive not found")
	}

	plan, err := s.plans.Create(ctx, archived.Name, true)
	if err != nil {
		return nil, err
	}

	type key struct{ rg, urg string }
	urgIDs := make(map[key]string)
	rgIDs := make(map[string]string)
	kapIDs := make(map[key]string)
	seenThemen := make(map[string]bool)

	dates := make([]string, 0, len(archived.Blocks))
	for date := range archived.Blocks {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	for _, date := range dates {
		for _, block := range archived.Blocks[date] {
			rgName := block.Rechtsgebiet
			if rgName == "" {
				rgName = "Allgemein"
			}
			urgName := block.Unterrechtsgebiet
			if urgName == "" {
				urgName = rgName
			}

			rgID, ok := rgIDs[rgName]
			if !ok {
				updated, err := s.plans.AddRechtsgebiet(ctx, plan.ID, rgName)
				if err != nil {
					return nil, err
				}
				rgID = updated.Rechtsgebiete[len(updated.Rechtsgebiete)-1].ID
				rgIDs[rgName] = rgID
			}

			k := key{rgName, urgName}
			urgID, ok := urgIDs[k]
			if !ok {
				updated, err := s.plans.AddUnterrechtsgebiet(ctx, plan.ID, rgID, urgName)
				if err != nil {
					return nil, err
				}
				urgID = lastUnterrechtsgebietID(updated, rgID)
				urgIDs[k] = urgID
			}

			kapID, ok := kapIDs[k]
			if !ok {
				updated, err := s.plans.AddKapitel(ctx, plan.ID, urgID, urgName)
				if err != nil {
					return nil, err
				}
				kapID = lastKapitelID(updated, urgID)
				kapIDs[k] = kapID
			}

			themaKey := rgName + "/" + urgName + "/" + block.Title
			if seenThemen[themaKey] {
				continue
			}
			seenThemen[themaKey] = true

			updated, err := s.plans.AddThema(ctx, plan.ID, kapID, block.Title)
			if err != nil {
				return nil, err
			}
			themaID := lastThemaID(updated, kapID)
			for _, task := range block.Tasks {
				if _, err := s.plans.AddAufgabe(ctx, plan.ID, themaID, task.Text); err != nil {
					return nil, err
				}
				if task.Completed {
					result, err := s.plans.Get(plan.ID)
					if err != nil {
						return nil, err
					}
					aufgabeID := lastAufgabeID(&result, themaID)
					if _, err := s.plans.SetAufgabeCompleted(ctx, plan.ID, aufgabeID, true); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	result, err := s.plans.Get(plan.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("archive converted to topic hierarchy",
		zap.String("archiveId", id),
		zap.String("planId", plan.ID))
	return &result, nil
}

// snapshotLive captures the current live stores and metadata.
func (s *ArchiveService) snapshotLive() models.ArchivedPlan {
	now := time.Now().UTC()
	s.mu.Lock()
	metadata := s.metadata
	s.mu.Unlock()

	name := metadata.Name
	if name == "" {
		name = "Lernplan"
	}
	return models.ArchivedPlan{
		ID:         models.NewID(),
		Name:       name,
		Blocks:     s.blocks.Snapshot(),
		Sessions:   s.sessions.Snapshot(),
		Metadata:   metadata,
		ArchivedAt: &now,
	}
}

func lastUnterrechtsgebietID(plan *models.Lernplan, rechtsgebietID string) string {
	for _, rg := range plan.Rechtsgebiete {
		if rg.ID == rechtsgebietID && len(rg.Unterrechtsgebiete) > 0 {
			return rg.Unterrechtsgebiete[len(rg.Unterrechtsgebiete)-1].ID
		}
	}
	return ""
}

func lastKapitelID(plan *models.Lernplan, unterrechtsgebietID string) string {
	for _, rg := range plan.Rechtsgebiete {
		for _, urg := range rg.Unterrechtsgebiete {
			if urg.ID == unterrechtsgebietID && len(urg.Kapitel) > 0 {
				return urg.Kapitel[len(urg.Kapitel)-1].ID
			}
		}
	}
	return ""
}

func lastThemaID(plan *models.Lernplan, kapitelID string) string {
	id := ""
	forEachKapitel(plan, func(kap *models.Kapitel) {
		if kap.ID == kapitelID && len(kap.Themen) > 0 {
			id = kap.Themen[len(kap.Themen)-1].ID
		}
	})
	return id
}

func lastAufgabeID(plan *models.Lernplan, themaID string) string {
	id := ""
	forEachThema(plan, func(thema *models.Thema) {
		if thema.ID == themaID && len(thema.Aufgaben) > 0 {
			id = thema.Aufgaben[len(thema.Aufgaben)-1].ID
		}
	})
	return id
}
