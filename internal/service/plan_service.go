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

const planMirrorKey = "mirror:plans"

// PlanStore is the persistence boundary of the plan service.
type PlanStore interface {
	Load(ctx context.Context) (map[string]models.Lernplan, error)
	SaveOne(ctx context.Context, plan models.Lernplan) error
	Remove(ctx context.Context, id string) error
}

// PlanService is the authoritative in-memory store of topic hierarchies.
// Mutations clone the affected plan, apply the change to the clone and swap
// it in, so concurrent readers never observe a half-edited tree.
type PlanService struct {
	mu    sync.Mutex
	plans map[string]models.Lernplan
	store PlanStore

	cache  *CacheService
	logger *zap.Logger
}

// NewPlanService constructs an empty plan service. Call Load before use.
func NewPlanService(store PlanStore, cache *CacheService, logger *zap.Logger) *PlanService {
	return &PlanService{
		plans:  make(map[string]models.Lernplan),
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Load hydrates memory from the relational store, falling back to the cache
// mirror when the store is unreachable.
func (s *PlanService) Load(ctx context.Context) error {
	plans, err := s.store.Load(ctx)
	if err != nil {
		s.logger.Warn("plan store unreachable, trying cache mirror", zap.Error(err))
		var mirror map[string]models.Lernplan
		if !s.cache.Get(ctx, planMirrorKey, &mirror) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "load plans")
		}
		plans = mirror
	}
	if plans == nil {
		plans = make(map[string]models.Lernplan)
	}

	s.mu.Lock()
	s.plans = plans
	s.mu.Unlock()
	return nil
}

// List returns every plan ordered by creation time.
func (s *PlanService) List() []models.Lernplan {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Lernplan, 0, len(s.plans))
	for _, plan := range s.plans {
		result = append(result, models.CloneLernplan(plan))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

// Get returns one plan by id.
func (s *PlanService) Get(id string) (models.Lernplan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[id]
	if !ok {
		return models.Lernplan{}, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	return models.CloneLernplan(plan), nil
}

// Create stores a new empty plan. Themenliste plans are pure topic lists
// without any calendar binding.
func (s *PlanService) Create(ctx context.Context, name string, themenliste bool) (*models.Lernplan, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan name must not be empty")
	}

	now := time.Now().UTC()
	plan := models.Lernplan{
		ID:            models.NewID(),
		Name:          name,
		Themenliste:   themenliste,
		Rechtsgebiete: []models.Rechtsgebiet{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	s.plans[plan.ID] = plan
	mirror := s.mirrorLocked()
	s.mu.Unlock()

	s.persist(ctx, plan, mirror)
	clone := models.CloneLernplan(plan)
	return &clone, nil
}

// Rename changes a plan's name.
func (s *PlanService) Rename(ctx context.Context, id, name string) (*models.Lernplan, error) {
	if name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "plan name must not be empty")
	}
	return s.mutate(ctx, id, func(plan *models.Lernplan) error {
		plan.Name = name
		return nil
	})
}

// Delete removes a plan.
func (s *PlanService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.plans[id]; !ok {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}
	delete(s.plans, id)
	mirror := s.mirrorLocked()
	s.mu.Unlock()

	if err := s.store.Remove(ctx, id); err != nil {
		s.logger.Warn("plan remove persist failed, memory is authoritative",
			zap.String("planId", id), zap.Error(err))
	}
	s.cache.SetPersistent(ctx, planMirrorKey, mirror)
	return nil
}

// AddRechtsgebiet appends a subject area to a plan.
func (s *PlanService) AddRechtsgebiet(ctx context.Context, planID, name string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		plan.Rechtsgebiete = append(plan.Rechtsgebiete, models.Rechtsgebiet{
			ID:                 models.NewID(),
			Name:               name,
			Unterrechtsgebiete: []models.Unterrechtsgebiet{},
		})
		return nil
	})
}

// AddUnterrechtsgebiet appends a sub-area to a subject area.
func (s *PlanService) AddUnterrechtsgebiet(ctx context.Context, planID, rechtsgebietID, name string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		rg := findRechtsgebiet(plan, rechtsgebietID)
		if rg == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "rechtsgebiet not found")
		}
		rg.Unterrechtsgebiete = append(rg.Unterrechtsgebiete, models.Unterrechtsgebiet{
			ID:      models.NewID(),
			Name:    name,
			Kapitel: []models.Kapitel{},
		})
		return nil
	})
}

// AddKapitel appends a chapter to a sub-area.
func (s *PlanService) AddKapitel(ctx context.Context, planID, unterrechtsgebietID, name string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		urg := findUnterrechtsgebiet(plan, unterrechtsgebietID)
		if urg == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "unterrechtsgebiet not found")
		}
		urg.Kapitel = append(urg.Kapitel, models.Kapitel{
			ID:     models.NewID(),
			Name:   name,
			Themen: []models.Thema{},
		})
		return nil
	})
}

// AddThema appends a topic to a chapter.
func (s *PlanService) AddThema(ctx context.Context, planID, kapitelID, name string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		kap := findKapitel(plan, kapitelID)
		if kap == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "kapitel not found")
		}
		kap.Themen = append(kap.Themen, models.Thema{
			ID:       models.NewID(),
			Name:     name,
			Aufgaben: []models.Aufgabe{},
		})
		return nil
	})
}

// AddAufgabe appends a task to a topic.
func (s *PlanService) AddAufgabe(ctx context.Context, planID, themaID, text string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		thema := findThema(plan, themaID)
		if thema == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "thema not found")
		}
		thema.Aufgaben = append(thema.Aufgaben, models.Aufgabe{
			ID:   models.NewID(),
			Text: text,
		})
		return nil
	})
}

// RenameNode renames whichever hierarchy node carries the id. Node ids are
// unique across levels so no level hint is needed.
func (s *PlanService) RenameNode(ctx context.Context, planID, nodeID, name string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		if rg := findRechtsgebiet(plan, nodeID); rg != nil {
			rg.Name = name
			return nil
		}
		if urg := findUnterrechtsgebiet(plan, nodeID); urg != nil {
			urg.Name = name
			return nil
		}
		if kap := findKapitel(plan, nodeID); kap != nil {
			kap.Name = name
			return nil
		}
		if thema := findThema(plan, nodeID); thema != nil {
			thema.Name = name
			return nil
		}
		if aufgabe := findAufgabe(plan, nodeID); aufgabe != nil {
			aufgabe.Text = name
			return nil
		}
		return appErrors.Clone(appErrors.ErrNotFound, "node not found")
	})
}

// DeleteNode removes whichever hierarchy node carries the id, including
// its whole subtree.
func (s *PlanService) DeleteNode(ctx context.Context, planID, nodeID string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		for i, rg := range plan.Rechtsgebiete {
			if rg.ID == nodeID {
				plan.Rechtsgebiete = append(plan.Rechtsgebiete[:i], plan.Rechtsgebiete[i+1:]...)
				return nil
			}
		}
		for r := range plan.Rechtsgebiete {
			rg := &plan.Rechtsgebiete[r]
			for i, urg := range rg.Unterrechtsgebiete {
				if urg.ID == nodeID {
					rg.Unterrechtsgebiete = append(rg.Unterrechtsgebiete[:i], rg.Unterrechtsgebiete[i+1:]...)
					return nil
				}
			}
			for u := range rg.Unterrechtsgebiete {
				urg := &rg.Unterrechtsgebiete[u]
				for i, kap := range urg.Kapitel {
					if kap.ID == nodeID {
						urg.Kapitel = append(urg.Kapitel[:i], urg.Kapitel[i+1:]...)
						return nil
					}
				}
				for k := range urg.Kapitel {
					kap := &urg.Kapitel[k]
					for i, thema := range kap.Themen {
						if thema.ID == nodeID {
							kap.Themen = append(kap.Themen[:i], kap.Themen[i+1:]...)
							return nil
						}
					}
					for t := range kap.Themen {
						thema := &kap.Themen[t]
						for i, aufgabe := range thema.Aufgaben {
							if aufgabe.ID == nodeID {
								thema.Aufgaben = append(thema.Aufgaben[:i], thema.Aufgaben[i+1:]...)
								return nil
							}
						}
					}
				}
			}
		}
		return appErrors.Clone(appErrors.ErrNotFound, "node not found")
	})
}

// SetThemaCompleted toggles a topic's completion state.
func (s *PlanService) SetThemaCompleted(ctx context.Context, planID, themaID string, completed bool) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		thema := findThema(plan, themaID)
		if thema == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "thema not found")
		}
		thema.Completed = completed
		return nil
	})
}

// SetAufgabeCompleted toggles a task's completion state.
func (s *PlanService) SetAufgabeCompleted(ctx context.Context, planID, aufgabeID string, completed bool) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		aufgabe := findAufgabe(plan, aufgabeID)
		if aufgabe == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "aufgabe not found")
		}
		aufgabe.Completed = completed
		return nil
	})
}

// FlattenAllKapitel merges every chapter of each sub-area into a single
// hidden container chapter, preserving topic order. Consumers render the
// topics as a flat list afterwards.
func (s *PlanService) FlattenAllKapitel(ctx context.Context, planID string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		for r := range plan.Rechtsgebiete {
			rg := &plan.Rechtsgebiete[r]
			for u := range rg.Unterrechtsgebiete {
				urg := &rg.Unterrechtsgebiete[u]
				if len(urg.Kapitel) == 0 {
					continue
				}
				var themen []models.Thema
				for _, kap := range urg.Kapitel {
					themen = append(themen, kap.Themen...)
				}
				urg.Kapitel = []models.Kapitel{{
					ID:     models.NewID(),
					Hidden: true,
					Themen: themen,
				}}
			}
		}
		return nil
	})
}

// ImportTree grafts a donor subtree under a subject area as a new sub-area.
// Every imported node receives a fresh id so repeated imports of the same
// template stay disjoint.
func (s *PlanService) ImportTree(ctx context.Context, planID, rechtsgebietID string, tree dto.ImportTree) (*models.Lernplan, error) {
	if tree.Fach == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "import tree has no fach name")
	}
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		rg := findRechtsgebiet(plan, rechtsgebietID)
		if rg == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "rechtsgebiet not found")
		}

		urg := models.Unterrechtsgebiet{
			ID:      models.NewID(),
			Name:    tree.Fach,
			Kapitel: []models.Kapitel{},
		}
		for _, kap := range tree.Kapitel {
			urg.Kapitel = append(urg.Kapitel, importKapitel(kap))
		}
		// Loose topics without a chapter land in a hidden container.
		if len(tree.Themen) > 0 {
			container := models.Kapitel{ID: models.NewID(), Hidden: true}
			for _, thema := range tree.Themen {
				container.Themen = append(container.Themen, importThema(thema))
			}
			urg.Kapitel = append(urg.Kapitel, container)
		}

		rg.Unterrechtsgebiete = append(rg.Unterrechtsgebiete, urg)
		return nil
	})
}

// ScheduleThema marks a topic and all of its tasks as scheduled into the
// given block.
func (s *PlanService) ScheduleThema(ctx context.Context, planID, themaID string, link models.ScheduleLink) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		thema := findThema(plan, themaID)
		if thema == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "thema not found")
		}
		thema.ScheduledInBlock = cloneScheduleLink(link)
		for i := range thema.Aufgaben {
			thema.Aufgaben[i].ScheduledInBlock = cloneScheduleLink(link)
		}
		return nil
	})
}

// ScheduleAufgabe marks a single task as scheduled into the given block.
func (s *PlanService) ScheduleAufgabe(ctx context.Context, planID, aufgabeID string, link models.ScheduleLink) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		aufgabe := findAufgabe(plan, aufgabeID)
		if aufgabe == nil {
			return appErrors.Clone(appErrors.ErrNotFound, "aufgabe not found")
		}
		aufgabe.ScheduledInBlock = cloneScheduleLink(link)
		return nil
	})
}

// Unschedule clears the scheduling link of a topic or task. Unscheduling a
// topic also clears its tasks.
func (s *PlanService) Unschedule(ctx context.Context, planID, nodeID string) (*models.Lernplan, error) {
	return s.mutate(ctx, planID, func(plan *models.Lernplan) error {
		if thema := findThema(plan, nodeID); thema != nil {
			thema.ScheduledInBlock = nil
			for i := range thema.Aufgaben {
				thema.Aufgaben[i].ScheduledInBlock = nil
			}
			return nil
		}
		if aufgabe := findAufgabe(plan, nodeID); aufgabe != nil {
			aufgabe.ScheduledInBlock = nil
			return nil
		}
		return appErrors.Clone(appErrors.ErrNotFound, "node not found")
	})
}

// CleanupExpiredSchedules marks every link pointing at a date before today
// as expired, unless its item was completed. Completed items keep their
// scheduled link as a record of when the work happened. Returns the number
// of links that changed state.
func (s *PlanService) CleanupExpiredSchedules(ctx context.Context, today string) int {
	cutoff, err := time.Parse(models.DateLayout, today)
	if err != nil {
		return 0
	}

	s.mu.Lock()
	expired := 0
	var dirty []models.Lernplan
	for id, plan := range s.plans {
		clone := models.CloneLernplan(plan)
		changed := false
		forEachThema(&clone, func(thema *models.Thema) {
			if expireIfStale(&thema.ScheduledInBlock, thema.Completed, cutoff) {
				expired++
				changed = true
			}
			for i := range thema.Aufgaben {
				aufgabe := &thema.Aufgaben[i]
				if expireIfStale(&aufgabe.ScheduledInBlock, aufgabe.Completed, cutoff) {
					expired++
					changed = true
				}
			}
		})
		if changed {
			clone.UpdatedAt = time.Now().UTC()
			s.plans[id] = clone
			dirty = append(dirty, clone)
		}
	}
	mirror := s.mirrorLocked()
	s.mu.Unlock()

	for _, plan := range dirty {
		s.persist(ctx, plan, nil)
	}
	if len(dirty) > 0 {
		s.cache.SetPersistent(ctx, planMirrorKey, mirror)
	}
	return expired
}

// mutate clones the plan, applies fn and swaps the clone in on success.
func (s *PlanService) mutate(ctx context.Context, planID string, fn func(*models.Lernplan) error) (*models.Lernplan, error) {
	s.mu.Lock()
	current, ok := s.plans[planID]
	if !ok {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrNotFound, "plan not found")
	}

	clone := models.CloneLernplan(current)
	if err := fn(&clone); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	clone.UpdatedAt = time.Now().UTC()
	s.plans[planID] = clone
	mirror := s.mirrorLocked()
	s.mu.Unlock()

	s.persist(ctx, clone, mirror)
	result := models.CloneLernplan(clone)
	return &result, nil
}

// persist writes one plan document and refreshes the mirror when provided.
func (s *PlanService) persist(ctx context.Context, plan models.Lernplan, mirror map[string]models.Lernplan) {
	if err := s.store.SaveOne(ctx, plan); err != nil {
		s.logger.Warn("plan persist failed, memory is authoritative",
			zap.String("planId", plan.ID), zap.Error(err))
	}
	if mirror != nil {
		s.cache.SetPersistent(ctx, planMirrorKey, mirror)
	}
}

// mirrorLocked deep-copies the plan map. Caller holds the mutex.
func (s *PlanService) mirrorLocked() map[string]models.Lernplan {
	mirror := make(map[string]models.Lernplan, len(s.plans))
	for id, plan := range s.plans {
		mirror[id] = models.CloneLernplan(plan)
	}
	return mirror
}

func cloneScheduleLink(link models.ScheduleLink) *models.ScheduleLink {
	out := link
	return &out
}

// expireIfStale moves a scheduled link dated before the cutoff into the
// expired state. Links on completed leaves and links that already expired
// stay untouched, so repeated passes report zero.
func expireIfStale(link **models.ScheduleLink, completed bool, cutoff time.Time) bool {
	if *link == nil || completed || (*link).Status == models.ScheduleStatusExpired {
		return false
	}
	date, err := time.Parse(models.DateLayout, (*link).Date)
	if err != nil || !date.Before(cutoff) {
		return false
	}
	stale := **link
	stale.Status = models.ScheduleStatusExpired
	*link = &stale
	return true
}

func importKapitel(src dto.ImportKapitel) models.Kapitel {
	kap := models.Kapitel{ID: models.NewID(), Name: src.Name}
	for _, thema := range src.Themen {
		kap.Themen = append(kap.Themen, importThema(thema))
	}
	return kap
}

func importThema(src dto.ImportThema) models.Thema {
	thema := models.Thema{ID: models.NewID(), Name: src.Name}
	for _, text := range src.Aufgaben {
		thema.Aufgaben = append(thema.Aufgaben, models.Aufgabe{ID: models.NewID(), Text: text})
	}
	return thema
}

func findRechtsgebiet(plan *models.Lernplan, id string) *models.Rechtsgebiet {
	for i := range plan.Rechtsgebiete {
		if plan.Rechtsgebiete[i].ID == id {
			return &plan.Rechtsgebiete[i]
		}
	}
	return nil
}

func findUnterrechtsgebiet(plan *models.Lernplan, id string) *models.Unterrechtsgebiet {
	for r := range plan.Rechtsgebiete {
		for u := range plan.Rechtsgebiete[r].Unterrechtsgebiete {
			if plan.Rechtsgebiete[r].Unterrechtsgebiete[u].ID == id {
				return &plan.Rechtsgebiete[r].Unterrechtsgebiete[u]
			}
		}
	}
	return nil
}

func findKapitel(plan *models.Lernplan, id string) *models.Kapitel {
	var found *models.Kapitel
	forEachKapitel(plan, func(kap *models.Kapitel) {
		if kap.ID == id {
			found = kap
		}
	})
	return found
}

func findThema(plan *models.Lernplan, id string) *models.Thema {
	var found *models.Thema
	forEachThema(plan, func(thema *models.Thema) {
		if thema.ID == id {
			found = thema
		}
	})
	return found
}

func findAufgabe(plan *models.Lernplan, id string) *models.Aufgabe {
	var found *models.Aufgabe
	forEachThema(plan, func(thema *models.Thema) {
		for i := range thema.Aufgaben {
			if thema.Aufgaben[i].ID == id {
				found = &thema.Aufgaben[i]
			}
		}
	})
	return found
}

func forEachKapitel(plan *models.Lernplan, fn func(*models.Kapitel)) {
	for r := range plan.Rechtsgebiete {
		rg := &plan.Rechtsgebiete[r]
		for u := range rg.Unterrechtsgebiete {
			urg := &rg.Unterrechtsgebiete[u]
			for k := range urg.Kapitel {
				fn(&urg.Kapitel[k])
			}
		}
	}
}

func forEachThema(plan *models.Lernplan, fn func(*models.Thema)) {
	forEachKapitel(plan, func(kap *models.Kapitel) {
		for t := range kap.Themen {
			fn(&kap.Themen[t])
		}
	})
}
