package models

import "time"

// CareTask is one scheduled care reminder owned by the purchasing user.
type CareTask struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	ListingID       string     `json:"listing_id"`
	Title           string     `json:"title"`
	TaskDescription string     `json:"task_description"`
	DueDate         time.Time  `json:"due_date"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at"`
	IsOptional      bool       `json:"is_optional"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SetCompleted toggles completion. completed_at is set when done and cleared otherwise.
func (t *CareTask) SetCompleted(done bool, now time.Time) {
	t.Completed = done
	t.UpdatedAt = now
	if done {
		at := now
		t.CompletedAt = &at
		return
	}
	t.CompletedAt = nil
}

// PlantCareSummary groups the tasks needing attention for one purchased plant.
type PlantCareSummary struct {
	ListingID string     `json:"listing_id"`
	Species   string     `json:"species"`
	Tasks     []CareTask `json:"tasks"`
}
