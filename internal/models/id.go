package models

import "github.com/google/uuid"

// NewID returns a fresh entity identifier. Every generated node, block and
// session id in the system goes through this seam so the strategy can be
// swapped without touching call sites.
func NewID() string {
	return uuid.NewString()
}
