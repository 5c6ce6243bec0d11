package model

import "time"

type Source string

const (
	SourceRelational Source = "relational"
	SourceEphemeral  Source = "ephemeral"
)

// Assignment is one entry of a project's merged threat model list.
type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      Source    `json:"source"`
	Status      string    `json:"status,omitempty"`
	Model       string    `json:"model,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ThreatCount int       `json:"threat_count,omitempty"`
	AssignedBy  string    `json:"assigned_by"`
	AssignedAt  time.Time `json:"assigned_at"`
}
