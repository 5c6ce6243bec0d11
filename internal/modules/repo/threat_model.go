package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/threatlens/threatlens/internal/modules/model"
	"gorm.io/gorm"
)

// ThreatModelRepo is the relational side of project assignments.
type ThreatModelRepo interface {
	// AssignBatch inserts one join row per id and returns the ids that were not assigned before.
	AssignBatch(ctx context.Context, projectID string, ids []string, assignedBy string) ([]string, error)
	Remove(ctx context.Context, projectID string, threatModelID string) (bool, error)
	ExistingIDs(ctx context.Context, ids []string) ([]string, error)
	ListByProject(ctx context.Context, projectID string, status string) ([]model.Assignment, error)
	CountByProject(ctx context.Context) (map[string]int64, error)
}

type threatModelRepo struct{ db *gorm.DB }

func NewThreatModelRepo(db *gorm.DB) ThreatModelRepo {
	return &threatModelRepo{db: db}
}

func (r *threatModelRepo) AssignBatch(ctx context.Context, projectID string, ids []string, assignedBy string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	var sb strings.Builder
	sb.WriteString("INSERT INTO project_threat_models (project_id, threat_model_id, assigned_by, assigned_at) VALUES ")
	args := make([]any, 0, len(ids)*4)
	for i, id := range ids {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?)")
		args = append(args, projectID, id, assignedBy, now)
	}
	sb.WriteString(" ON CONFLICT (project_id, threat_model_id) DO NOTHING RETURNING threat_model_id")

	var returned []string
	if err := conn(ctx, r.db).Raw(sb.String(), args...).Scan(&returned).Error; err != nil {
		return nil, fmt.Errorf("insert project threat models: %w", err)
	}

	// report in caller order, RETURNING order is not guaranteed
	got := make(map[string]struct{}, len(returned))
	for _, id := range returned {
		got[id] = struct{}{}
	}
	inserted := make([]string, 0, len(returned))
	for _, id := range ids {
		if _, ok := got[id]; ok {
			inserted = append(inserted, id)
			delete(got, id)
		}
	}
	return inserted, nil
}

func (r *threatModelRepo) Remove(ctx context.Context, projectID string, threatModelID string) (bool, error) {
	res := conn(ctx, r.db).
		Where("project_id = ? AND LOWER(threat_model_id) = LOWER(?)", projectID, threatModelID).
		Delete(&model.ProjectThreatModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ExistingIDs matches ids case-insensitively and returns them as stored.
func (r *threatModelRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(ids))
	for i, id := range ids {
		lowered[i] = strings.ToLower(id)
	}
	var found []string
	err := conn(ctx, r.db).Model(&model.ThreatModel{}).Where("LOWER(id) IN ?", lowered).Pluck("id", &found).Error
	return found, err
}

type assignmentRow struct {
	ID         string
	Title      string
	Status     string
	CreatedAt  time.Time
	AssignedBy string
	AssignedAt time.Time
}

func (r *threatModelRepo) ListByProject(ctx context.Context, projectID string, status string) ([]model.Assignment, error) {
	q := conn(ctx, r.db).
		Table("project_threat_models AS ptm").
		Select("tm.id, tm.title, tm.status, tm.created_at, ptm.assigned_by, ptm.assigned_at").
		Joins("JOIN threat_models AS tm ON tm.id = ptm.threat_model_id").
		Where("ptm.project_id = ?", projectID)
	if status != "" {
		q = q.Where("tm.status = ?", status)
	}

	var rows []assignmentRow
	if err := q.Order("tm.created_at DESC, tm.id ASC").Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]model.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.Assignment{
			ID:         row.ID,
			Title:      row.Title,
			Source:     model.SourceRelational,
			Status:     row.Status,
			CreatedAt:  row.CreatedAt,
			AssignedBy: row.AssignedBy,
			AssignedAt: row.AssignedAt,
		})
	}
	return out, nil
}

func (r *threatModelRepo) CountByProject(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ProjectID string
		Total     int64
	}
	err := conn(ctx, r.db).
		Model(&model.ProjectThreatModel{}).
		Select("project_id, COUNT(*) AS total").
		Group("project_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ProjectID] = row.Total
	}
	return out, nil
}
