package models

import "time"

// LayoutMode selects how the gallery is arranged.
type LayoutMode string

const (
	LayoutModeAuto   LayoutMode = "auto"
	LayoutModeManual LayoutMode = "manual"
)

// WorkspaceSummary is the public view of a workspace.
type WorkspaceSummary struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	Project      ProjectData `json:"project"`
	Subject      string      `json:"subject,omitempty"`
	MediaCount   int         `json:"mediaCount"`
	Remaining    int         `json:"remaining"`
	Mode         LayoutMode  `json:"mode"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastAccessed time.Time   `json:"lastAccessed"`
}
