package model

import "time"

// Project is owned by the inventory side of the dashboard. Its ID is either numeric
// or a UUID string; threat models follow the same convention.
type Project struct {
	ID   string `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name string `gorm:"type:varchar(255);not null;default:''" json:"name"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Project <-> ThreatModel assignments
	ThreatModels []ProjectThreatModel `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE,OnUpdate:CASCADE;" json:"-"`
}

func (Project) TableName() string { return "projects" }
