package repo

import (
	"context"

	"github.com/threatlens/threatlens/internal/modules/model"
	"gorm.io/gorm"
)

type ProjectRepo interface {
	Exists(ctx context.Context, projectID string) (bool, error)
}

type projectRepo struct{ db *gorm.DB }

func NewProjectRepo(db *gorm.DB) ProjectRepo {
	return &projectRepo{db: db}
}

func (r *projectRepo) Exists(ctx context.Context, projectID string) (bool, error) {
	var n int64
	err := conn(ctx, r.db).Model(&model.Project{}).Where("id = ?", projectID).Limit(1).Count(&n).Error
	return n > 0, err
}
