package model

import "time"

// Subject is an AI-generated threat analysis written to redis by the generation workflow.
type Subject struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
	ThreatCount int       `json:"threat_count"`
}

// SubjectAssignment is the per-(project, subject) metadata hash.
type SubjectAssignment struct {
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}
