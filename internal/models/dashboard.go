package models

import "time"

// ProjectStatus is the lifecycle state shown on the dashboard.
type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusReview     ProjectStatus = "review"
	ProjectStatusCompleted  ProjectStatus = "completed"
)

// Valid reports whether s is one of the known statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusInProgress, ProjectStatusReview, ProjectStatusCompleted:
		return true
	}
	return false
}

// Subsections tracks which deliverables of a project are done.
type Subsections struct {
	Report  bool `json:"report"`
	Slides  bool `json:"slides"`
	Gallery bool `json:"gallery"`
}

// Project is a dashboard list item. It has no link to workspaces or media.
type Project struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Discipline  string        `json:"discipline"`
	Status      ProjectStatus `json:"status"`
	Progress    int           `json:"progress"` // 0-100
	Subsections Subsections   `json:"subsections"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
