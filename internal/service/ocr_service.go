package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/pkg/config"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

// OCRService forwards syllabus images to the external structuring service
// and turns its response into an importable subtree.
type OCRService struct {
	cfg    config.OCRConfig
	client *http.Client
	logger *zap.Logger
}

// NewOCRService constructs the OCR client.
func NewOCRService(cfg config.OCRConfig, logger *zap.Logger) *OCRService {
	return &OCRService{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// Enabled reports whether the import endpoint should be exposed.
func (s *OCRService) Enabled() bool {
	return s != nil && s.cfg.Enabled
}

// StructureImage posts an image to the structuring service and returns the
// recognized subtree ready for ImportTree.
func (s *OCRService) StructureImage(ctx context.Context, filename string, image io.Reader) (*dto.ImportTree, error) {
	if !s.Enabled() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ocr import disabled")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build upload")
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "read upload")
	}
	if err := writer.Close(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "finish upload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/structure", body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build ocr request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "ocr service unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("ocr service rejected request", zap.Int("status", resp.StatusCode))
		return nil, appErrors.Clone(appErrors.ErrUpstream, fmt.Sprintf("ocr service returned %d", resp.StatusCode))
	}

	var result dto.OCRResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "decode ocr response")
	}
	if result.Fach == "" && len(result.Kapitel) == 0 && len(result.Themen) == 0 {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "ocr service recognized nothing")
	}

	s.logger.Info("syllabus image structured",
		zap.String("fach", result.Fach),
		zap.Int("kapitel", len(result.Kapitel)),
		zap.Int("themen", len(result.Themen)))
	return &dto.ImportTree{
		Fach:    result.Fach,
		Kapitel: result.Kapitel,
		Themen:  result.Themen,
	}, nil
}
