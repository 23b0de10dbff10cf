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

type stubPlanStore struct {
	plans   map[string]models.Lernplan
	loadErr error
}

func newStubPlanStore() *stubPlanStore {
	return &stubPlanStore{plans: make(map[string]models.Lernplan)}
}

func (s *stubPlanStore) Load(_ context.Context) (map[string]models.Lernplan, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]models.Lernplan, len(s.plans))
	for id, plan := range s.plans {
		out[id] = models.CloneLernplan(plan)
	}
	return out, nil
}

func (s *stubPlanStore) SaveOne(_ context.Context, plan models.Lernplan) error {
	s.plans[plan.ID] = models.CloneLernplan(plan)
	return nil
}

func (s *stubPlanStore) Remove(_ context.Context, id string) error {
	delete(s.plans, id)
	return nil
}

func newPlanService(t *testing.T) *PlanService {
	t.Helper()
	svc := NewPlanService(newStubPlanStore(), nil, zap.NewNop())
	require.NoError(t, svc.Load(context.Background()))
	return svc
}

// buildPlanFixture creates plan -> ZivilR -> BGB AT -> Kapitel 1 -> Willenserklärung
// and returns the involved ids.
func buildPlanFixture(t *testing.T, svc *PlanService) (planID, rgID, urgID, kapID, themaID string) {
	t.Helper()
	ctx := context.Background()

	plan, err := svc.Create(ctx, "Examensplan", false)
	require.NoError(t, err)
	planID = plan.ID

	updated, err := svc.AddRechtsgebiet(ctx, planID, "Zivilrecht")
	require.NoError(t, err)
	rgID = updated.Rechtsgebiete[0].ID

	updated, err = svc.AddUnterrechtsgebiet(ctx, planID, rgID, "BGB AT")
	require.NoError(t, err)
	urgID = updated.Rechtsgebiete[0].Unterrechtsgebiete[0].ID

	updated, err = svc.AddKapitel(ctx, planID, urgID, "Kapitel 1")
	require.NoError(t, err)
	kapID = updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].ID

	updated, err = svc.AddThema(ctx, planID, kapID, "Willenserklärung")
	require.NoError(t, err)
	themaID = updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0].ID
	return planID, rgID, urgID, kapID, themaID
}

func TestPlanServiceNestedCRUD(t *testing.T) {
	svc := newPlanService(t)
	ctx := context.Background()
	planID, _, _, kapID, themaID := buildPlanFixture(t, svc)

	updated, err := svc.AddAufgabe(ctx, planID, themaID, "§ 104 ff. lesen")
	require.NoError(t, err)
	thema := updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0]
	require.Len(t, thema.Aufgaben, 1)

	updated, err = svc.RenameNode(ctx, planID, themaID, "Willenserklärung und Zugang")
	require.NoError(t, err)
	assert.Equal(t, "Willenserklärung und Zugang",
		updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0].Name)

	updated, err = svc.DeleteNode(ctx, planID, kapID)
	require.NoError(t, err)
	assert.Empty(t, updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel)
}

func TestPlanServiceMutationsDoNotLeakToReaders(t *testing.T) {
	svc := newPlanService(t)
	ctx := context.Background()
	planID, _, _, _, themaID := buildPlanFixture(t, svc)

	before, err := svc.Get(planID)
	require.NoError(t, err)

	_, err = svc.SetThemaCompleted(ctx, planID, themaID, true)
	require.NoError(t, err)

	// The snapshot taken before the mutation is unaffected.
	assert.False(t, before.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0].Completed)

	after, err := svc.Get(planID)
	require.NoError(t, err)
	assert.True(t, after.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0].Completed)
}

func TestPlanServiceFlattenAllKapitel(t *testing.T) {
	svc := newPlanService(t)
	ctx := context.Background()
	planID, _, urgID, _, _ := buildPlanFixture(t, svc)

	updated, err := svc.AddKapitel(ctx, planID, urgID, "Kapitel 2")
	require.NoError(t, err)
	kap2 := updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[1].ID
	_, err = svc.AddThema(ctx, planID, kap2, "Stellvertretung")
	require.NoError(t, err)

	flattened, err := svc.FlattenAllKapitel(ctx, planID)
	require.NoError(t, err)

	kapitel := flattened.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel
	require.Len(t, kapitel, 1)
	assert.True(t, kapitel[0].Hidden)
	require.Len(t, kapitel[0].Themen, 2)
	assert.Equal(t, "Willenserklärung", kapitel[0].Themen[0].Name)
	assert.Equal(t, "Stellvertretung", kapitel[0].Themen[1].Name)
}

func TestPlanServiceImportTreeRegeneratesIDs(t *testing.T) {
	svc := newPlanService(t)
	ctx := context.Background()
	planID, rgID, _, _, _ := buildPlanFixture(t, svc)

	tree := dto.ImportTree{
		Fach: "Strafrecht AT",
		Kapitel: []dto.ImportKapitel{{
			Name:   "Vorsatz",
			Themen: []dto.ImportThema{{Name: "dolus eventualis", Aufgaben: []string{"Fälle lösen"}}},
		}},
	}

	first, err := svc.ImportTree(ctx, planID, rgID, tree)
	require.NoError(t, err)
	second, err := svc.ImportTree(ctx, planID, rgID, tree)
	require.NoError(t, err)

	urgs := second.Rechtsgebiete[0].Unterrechtsgebiete
	require.Len(t, urgs, 3) // fixture's BGB AT plus two imports

	firstImport := first.Rechtsgebiete[0].Unterrechtsgebiete[1]
	secondImport := urgs[2]
	assert.Equal(t, firstImport.Name, secondImport.Name)
	assert.NotEqual(t, firstImport.ID, secondImport.ID)
	assert.NotEqual(t, firstImport.Kapitel[0].ID, secondImport.Kapitel[0].ID)
	assert.NotEqual(t, firstImport.Kapitel[0].Themen[0].ID, secondImport.Kapitel[0].Themen[0].ID)
}

func TestPlanServiceScheduleThemaCascadesToAufgaben(t *testing.T) {
	svc := newPlanService(t)
	ctx := context.Background()
	planID, _, _, _, themaID := buildPlanFixture(t, svc)

	_, err := svc.AddAufgabe(ctx, planID, themaID, "Aufgabe 1")
	require.NoError(t, err)
	_, err = svc.AddAufgabe(ctx, planID, themaID, "Aufgabe 2")
	require.NoError(t, err)

	link := models.ScheduleLink{BlockID: "b-1", Date: "2025-03-03", Status: models.ScheduleStatusScheduled}
	updated, err := svc.ScheduleThema(ctx, planID, themaID, link)
	require.NoError(t, err)

	thema := updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0]
	require.NotNil(t, thema.ScheduledInBlock)
	for _, aufgabe := range thema.Aufgaben {
		require.NotNil(t, aufgabe.ScheduledInBlock)
		assert.Equal(t, "b-1", aufgabe.ScheduledInBlock.BlockID)
	}

	// Unscheduling one Aufgabe leaves the Thema link alone.
	updated, err = svc.Unschedule(ctx, planID, thema.Aufgaben[0].ID)
	require.NoError(t, err)
	thema = updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0]
	assert.Nil(t, thema.Aufgaben[0].ScheduledInBlock)
	assert.NotNil(t, thema.ScheduledInBlock)
	assert.NotNil(t, thema.Aufgaben[1].ScheduledInBlock)
}

func TestPlanServiceCleanupExpiredSchedulesKeepsCompleted(t *testing.T) {
	svc := newPlanService(t)
	ctx := context.Background()
	planID, _, _, _, themaID := buildPlanFixture(t, svc)

	updated, err := svc.AddAufgabe(ctx, planID, themaID, "erledigt")
	require.NoError(t, err)
	doneID := updated.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0].Aufgaben[0].ID
	_, err = svc.SetAufgabeCompleted(ctx, planID, doneID, true)
	require.NoError(t, err)

	past := models.ScheduleLink{BlockID: "b-1", Date: "2025-02-01", Status: models.ScheduleStatusScheduled}
	_, err = svc.ScheduleThema(ctx, planID, themaID, past)
	require.NoError(t, err)

	expired := svc.CleanupExpiredSchedules(ctx, "2025-03-01")
	assert.Equal(t, 1, expired, "only the uncompleted thema link expires")

	plan, err := svc.Get(planID)
	require.NoError(t, err)
	thema := plan.Rechtsgebiete[0].Unterrechtsgebiete[0].Kapitel[0].Themen[0]
	require.NotNil(t, thema.ScheduledInBlock)
	assert.Equal(t, models.ScheduleStatusExpired, thema.ScheduledInBlock.Status)
	require.NotNil(t, thema.Aufgaben[0].ScheduledInBlock, "completed aufgabe keeps its link")
	assert.Equal(t, models.ScheduleStatusScheduled, thema.Aufgaben[0].ScheduledInBlock.Status)

	// A second pass finds nothing left to expire.
	assert.Zero(t, svc.CleanupExpiredSchedules(ctx, "2025-03-01"))
}

func TestPlanServiceUnknownNodesReturnNotFound(t *testing.T) {
	svc := newPlanService(t)
	ctx := context.Background()
	planID, _, _, _, _ := buildPlanFixture(t, svc)

	_, err := svc.RenameNode(ctx, planID, "missing", "egal")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.AddThema(ctx, planID, "missing", "egal")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Rename(ctx, "missing", "egal")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
