package model

import "time"

type ThreatModelStatus string

const (
	ThreatModelDraft      ThreatModelStatus = "draft"
	ThreatModelInProgress ThreatModelStatus = "in_progress"
	ThreatModelCompleted  ThreatModelStatus = "completed"
	ThreatModelArchived   ThreatModelStatus = "archived"
)

type ThreatModel struct {
	ID          string            `gorm:"type:varchar(64);primaryKey" json:"id"`
	Title       string            `gorm:"type:varchar(255);not null" json:"title"`
	Description string            `gorm:"type:text" json:"description"`
	Status      ThreatModelStatus `gorm:"type:varchar(32);not null;default:'draft';index" json:"status"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// ThreatModel <-> Project assignments
	Projects []ProjectThreatModel `gorm:"foreignKey:ThreatModelID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ThreatModel) TableName() string { return "threat_models" }

// ProjectThreatModel is the join row between a project and a persisted threat model.
type ProjectThreatModel struct {
	ProjectID     string    `gorm:"type:varchar(64);primaryKey" json:"project_id"`
	ThreatModelID string    `gorm:"type:varchar(64);primaryKey;index" json:"threat_model_id"`
	AssignedBy    string    `gorm:"type:varchar(255);not null;default:''" json:"assigned_by"`
	AssignedAt    time.Time `gorm:"not null" json:"assigned_at"`
	Notes         *string   `gorm:"type:text" json:"notes,omitempty"`

	Project     *Project     `gorm:"foreignKey:ProjectID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
	ThreatModel *ThreatModel `gorm:"foreignKey:ThreatModelID;references:ID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (ProjectThreatModel) TableName() string { return "project_threat_models" }
