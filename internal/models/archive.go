package models

import (
	"encoding/json"
	"time"
)

// PlanMetadata describes the currently active study plan.
type PlanMetadata struct {
	Name           string          `json:"name"`
	ExamDate       string          `json:"examDate,omitempty"`
	WizardSettings json.RawMessage `json:"wizardSettings,omitempty"`
}

// ArchivedPlan is an immutable snapshot of the full calendar state.
// It is consumed either by restore, which re-materializes it as live state
// and deletes the archive, or by the one-way conversion into a Themenliste.
type ArchivedPlan struct {
	ID         string                       `json:"id"`
	Name       string                       `json:"name"`
	Blocks     map[string][]BlockAllocation `json:"blocks"`
	Sessions   map[string][]Session         `json:"sessions"`
	Metadata   PlanMetadata                 `json:"metadata"`
	ArchivedAt *time.Time                   `json:"archivedAt,omitempty"`
	RestoredAt *time.Time                   `json:"restoredAt,omitempty"`
}
