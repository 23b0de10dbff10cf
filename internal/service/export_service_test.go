package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/dto"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
	"github.com/studyloop/lernplan-api/pkg/jobs"
	"github.com/studyloop/lernplan-api/pkg/storage"
)

func newExportService(t *testing.T) (*ExportService, *BlockService, *SessionService, *PlanService) {
	t.Helper()
	blocks, _ := newBlockService(t)
	sessions := newSessionService(t)
	plans := newPlanService(t)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test_secret", time.Hour)

	svc := NewExportService(blocks, sessions, plans, store, signer, zap.NewNop())
	queue := jobs.NewQueue("exports", svc.HandleJob, jobs.QueueConfig{Workers: 1, Logger: zap.NewNop()})
	ctx, cancel := context.WithCancel(context.Background())
	queue.Start(ctx)
	t.Cleanup(func() {
		cancel()
		queue.Stop()
	})
	svc.AttachQueue(queue)
	return svc, blocks, sessions, plans
}

func waitForExport(t *testing.T, svc *ExportService, id string) ExportRecord {
	t.Helper()
	var record *ExportRecord
	require.Eventually(t, func() bool {
		var err error
		record, err = svc.Get(id)
		return err == nil && record.Status != ExportStatusPending
	}, 5*time.Second, 10*time.Millisecond)
	return *record
}

func TestExportServiceWeekPDFRoundTrip(t *testing.T) {
	svc, blocks, sessions, _ := newExportService(t)
	ctx := context.Background()

	_, err := blocks.Create(ctx, dto.CreateBlockRequest{
		Date: "2025-03-03", BlockType: "lernen", Title: "Willenserklärung", Rechtsgebiet: "Zivilrecht",
	})
	require.NoError(t, err)
	_, err = sessions.Create(ctx, dto.CreateSessionRequest{
		Date: "2025-03-04", StartTime: "09:00", EndTime: "10:30",
		BlockType: "wdh", Title: "Wiederholung",
	})
	require.NoError(t, err)

	requested, err := svc.RequestWeekPDF("2025-03-03")
	require.NoError(t, err)

	record := waitForExport(t, svc, requested.ID)
	require.Equal(t, ExportStatusReady, record.Status)
	require.NotEmpty(t, record.Token)

	file, name, err := svc.Download(record.Token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	assert.True(t, strings.HasSuffix(name, ".pdf"))
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestExportServiceTopicCSV(t *testing.T) {
	svc, _, _, plans := newExportService(t)
	ctx := context.Background()
	planID, _, _, _, themaID := buildPlanFixture(t, plans)
	_, err := plans.AddAufgabe(ctx, planID, themaID, "Fälle lesen")
	require.NoError(t, err)

	requested, err := svc.RequestTopicCSV(planID)
	require.NoError(t, err)

	record := waitForExport(t, svc, requested.ID)
	require.Equal(t, ExportStatusReady, record.Status)

	file, _, err := svc.Download(record.Token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Zivilrecht")
	assert.Contains(t, content, "Willenserklärung")
	assert.Contains(t, content, "Fälle lesen")
}

func TestExportServiceRejectsInvalidRequests(t *testing.T) {
	svc, _, _, _ := newExportService(t)

	_, err := svc.RequestWeekPDF("nicht-ein-datum")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.RequestTopicCSV("missing")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestExportServiceDownloadRejectsBadToken(t *testing.T) {
	svc, _, _, _ := newExportService(t)

	_, _, err := svc.Download("kaputt")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
