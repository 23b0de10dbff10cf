package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/studyloop/lernplan-api/internal/dto"
	"github.com/studyloop/lernplan-api/internal/models"
	"github.com/studyloop/lernplan-api/internal/recurrence"
	appErrors "github.com/studyloop/lernplan-api/pkg/errors"
)

// SeriesService coordinates series operations that span the block and
// session stores, in particular the repeat conversions an edit can trigger.
type SeriesService struct {
	blocks   *BlockService
	sessions *SessionService
	logger   *zap.Logger
}

// NewSeriesService constructs a series service.
func NewSeriesService(blocks *BlockService, sessions *SessionService, logger *zap.Logger) *SeriesService {
	return &SeriesService{blocks: blocks, sessions: sessions, logger: logger}
}

// DeleteSeries removes every member of a series id from both stores.
// Unknown ids delete nothing and report zero, so retried deletes are safe.
func (s *SeriesService) DeleteSeries(ctx context.Context, seriesID string) int {
	removed := s.blocks.DeleteSeries(ctx, seriesID)
	removed += s.sessions.DeleteSeries(ctx, seriesID)
	if removed > 0 {
		s.logger.Info("series deleted",
			zap.String("seriesId", seriesID),
			zap.Int("removed", removed))
	}
	return removed
}

// EditBlockRepeat changes the repeat configuration of a block. Three cases:
// removing the rule collapses the series around the edited occurrence,
// changing the rule rebuilds the series from the edited occurrence's date,
// and adding a rule to a standalone block expands it into a new series.
func (s *SeriesService) EditBlockRepeat(ctx context.Context, id string, rule *models.RepeatRule) (*dto.CreateBlockResult, error) {
	block, err := s.blocks.Get(id)
	if err != nil {
		return nil, err
	}

	// The old members are only deleted once the new rule is known to be
	// expandable, otherwise a bad rule would destroy the series and then fail.
	if rule != nil {
		if err := recurrence.ValidateRule(*rule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}

	if rule == nil {
		if block.SeriesID == "" {
			clone := models.CloneBlock(block)
			return &dto.CreateBlockResult{Created: []models.BlockAllocation{clone}}, nil
		}
		survivor, err := s.blocks.CollapseSeries(ctx, block.SeriesID, id)
		if err != nil {
			return nil, err
		}
		return &dto.CreateBlockResult{Created: []models.BlockAllocation{*survivor}}, nil
	}

	// Rebuild: drop the old members first so their slots are free for the
	// new expansion, then create the series fresh from the edited block.
	if block.SeriesID != "" {
		s.blocks.DeleteSeries(ctx, block.SeriesID)
	} else {
		if err := s.blocks.Delete(ctx, id); err != nil {
			return nil, err
		}
	}

	req := dto.CreateBlockRequest{
		Date:              block.Date,
		BlockType:         block.BlockType,
		Title:             block.Title,
		Rechtsgebiet:      block.Rechtsgebiet,
		Unterrechtsgebiet: block.Unterrechtsgebiet,
		ContentRef:        block.ContentRef,
		Tasks:             models.CloneTasks(block.Tasks),
		RepeatRule:        rule,
	}
	result, err := s.blocks.Create(ctx, req)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return result, nil
}

// EditSessionRepeat is the session counterpart of EditBlockRepeat.
func (s *SeriesService) EditSessionRepeat(ctx context.Context, id string, rule *models.RepeatRule) (*dto.CreateSessionResult, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}

	if rule != nil {
		if err := recurrence.ValidateRule(*rule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
	}

	if rule == nil {
		if sess.SeriesID == "" {
			clone := models.CloneSession(sess)
			return &dto.CreateSessionResult{Created: []models.Session{clone}}, nil
		}
		survivor, err := s.sessions.CollapseSeries(ctx, sess.SeriesID, id)
		if err != nil {
			return nil, err
		}
		return &dto.CreateSessionResult{Created: []models.Session{*survivor}}, nil
	}

	if sess.SeriesID != "" {
		s.sessions.DeleteSeries(ctx, sess.SeriesID)
	} else {
		if err := s.sessions.Delete(ctx, id); err != nil {
			return nil, err
		}
	}

	req := dto.CreateSessionRequest{
		Date:       sess.Date,
		EndDate:    sess.EndDate,
		StartTime:  sess.StartTime,
		EndTime:    sess.EndTime,
		BlockType:  sess.BlockType,
		Title:      sess.Title,
		RepeatRule: rule,
	}
	return s.sessions.Create(ctx, req)
}
