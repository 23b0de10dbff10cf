package dto

// ScheduleRequest links a leaf to a calendar block.
type ScheduleRequest struct {
	BlockID    string `json:"blockId" validate:"required"`
	Date       string `json:"date" validate:"required"`
	BlockTitle string `json:"blockTitle"`
}

// CleanupResult reports how many links a cleanup pass moved to expired.
type CleanupResult struct {
	Expired int `json:"expired"`
}

// TodoRequest creates or updates a standalone task.
type TodoRequest struct {
	Text      string `json:"text" validate:"required"`
	Completed bool   `json:"completed"`
}
