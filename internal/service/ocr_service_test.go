package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/pkg/config"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

func newOCRService(t *testing.T, handler http.HandlerFunc) *OCRService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOCRService(config.OCRConfig{
		Enabled: true,
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	}, zap.NewNop())
}

func TestOCRServiceStructureImage(t *testing.T) {
	svc := newOCRService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/structure", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("image")
		require.NoError(t, err)
		assert.Equal(t, "syllabus.png", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"fach": "Strafrecht AT",
			"kapitel": [{"name": "Vorsatz", "themen": [{"name": "dolus eventualis", "aufgaben": ["Fälle"]}]}],
			"themen": [{"name": "Irrtümer"}],
			"lines": ["Strafrecht AT"],
			"raw_text": "Strafrecht AT ..."
		}`))
	})

	tree, err := svc.StructureImage(context.Background(), "syllabus.png", strings.NewReader("fake-image"))
	require.NoError(t, err)
	assert.Equal(t, "Strafrecht AT", tree.Fach)
	require.Len(t, tree.Kapitel, 1)
	assert.Equal(t, "dolus eventualis", tree.Kapitel[0].Themen[0].Name)
	require.Len(t, tree.Themen, 1)
}

func TestOCRServiceUpstreamFailure(t *testing.T) {
	svc := newOCRService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := svc.StructureImage(context.Background(), "syllabus.png", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstream))
}

func TestOCRServiceEmptyRecognition(t *testing.T) {
	svc := newOCRService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"fach": "", "kapitel": [], "themen": [], "lines": [], "raw_text": ""}`))
	})

	_, err := svc.StructureImage(context.Background(), "leer.png", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUpstream))
}

func TestOCRServiceDisabled(t *testing.T) {
	svc := NewOCRService(config.OCRConfig{Enabled: false}, zap.NewNop())

	_, err := svc.StructureImage(context.Background(), "x.png", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}
