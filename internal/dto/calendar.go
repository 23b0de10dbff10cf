package dto

import "github.com/studyloop/lernplan-api/internal/models"

// CreateBlockRequest describes a new block allocation, optionally repeating.
type CreateBlockRequest struct {
	Date              string             `json:"date" validate:"required"`
	BlockType         string             `json:"blockType" validate:"required"`
	Title             string             `json:"title" validate:"required"`
	Rechtsgebiet      string             `json:"rechtsgebiet"`
	Unterrechtsgebiet string             `json:"unterrechtsgebiet"`
	ContentRef        string             `json:"contentRef"`
	Tasks             []models.BlockTask `json:"tasks"`
	RepeatRule        *models.RepeatRule `json:"repeatRule"`
}

// CreateBlockResult reports the created occurrences and the dates that were
// skipped because their day was already full.
type CreateBlockResult struct {
	Created      []models.BlockAllocation `json:"created"`
	SkippedDates []string                 `json:"skippedDates,omitempty"`
}

// UpdateBlockRequest is a partial patch of one allocation. A position change
// is a footprint change and is re-checked against the day's free slots.
type UpdateBlockRequest struct {
	Title             *string             `json:"title"`
	BlockType         *string             `json:"blockType"`
	Rechtsgebiet      *string             `json:"rechtsgebiet"`
	Unterrechtsgebiet *string             `json:"unterrechtsgebiet"`
	ContentRef        *string             `json:"contentRef"`
	Tasks             *[]models.BlockTask `json:"tasks"`
	Position          *int                `json:"position"`
}

// CreateSessionRequest describes a new time-ranged entry.
type CreateSessionRequest struct {
	Date       string             `json:"date" validate:"required"`
	EndDate    string             `json:"endDate"`
	StartTime  string             `json:"startTime" validate:"required"`
	EndTime    string             `json:"endTime" validate:"required"`
	BlockType  string             `json:"blockType" validate:"required"`
	Title      string             `json:"title" validate:"required"`
	RepeatRule *models.RepeatRule `json:"repeatRule"`
}

// CreateSessionResult reports the created occurrences of a session series.
type CreateSessionResult struct {
	Created []models.Session `json:"created"`
}

// UpdateSessionRequest is a partial patch of one session.
type UpdateSessionRequest struct {
	Title     *string `json:"title"`
	BlockType *string `json:"blockType"`
	StartTime *string `json:"startTime"`
	EndTime   *string `json:"endTime"`
	EndDate   *string `json:"endDate"`
}

// EditRepeatRequest changes the repeat configuration of an existing entry.
// A nil rule collapses a series into a standalone entry.
type EditRepeatRequest struct {
	RepeatRule *models.RepeatRule `json:"repeatRule"`
}
