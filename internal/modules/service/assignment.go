package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/threatlens/threatlens/internal/infra/cache"
	"github.com/threatlens/threatlens/internal/modules/model"
	"github.com/threatlens/threatlens/internal/modules/repo"
	"github.com/threatlens/threatlens/internal/pkg/identifier"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("assignment")

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrProjectNotFound = errors.New("project not found")
	ErrNothingToAssign = errors.New("no assignable threat model ids")
)

const (
	DefaultListTTL          = 5 * time.Minute
	DefaultProjectExistsTTL = time.Hour
)

const (
	EventAssigned = "threat_model.assigned"
	EventRemoved  = "threat_model.removed"
)

type EventPublisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// AssignmentEvent is published after a write changed a project's assignments.
type AssignmentEvent struct {
	Type       string    `json:"type"`
	ProjectID  string    `json:"project_id"`
	IDs        []string  `json:"ids"`
	AssignedBy string    `json:"assigned_by,omitempty"`
	At         time.Time `json:"at"`
}

type ListFilters struct {
	Status string `json:"status"`
}

type AssignmentService interface {
	GetThreatModelsForProject(ctx context.Context, projectID string, filters ListFilters) ([]model.Assignment, error)
	AssignThreatModelsToProject(ctx context.Context, projectID string, ids []any, assignedBy string) ([]string, error)
	RemoveThreatModelFromProject(ctx context.Context, projectID string, id any) (bool, error)
	GetProjectThreatModelCounts(ctx context.Context) (map[string]int64, error)
}

type AssignmentDeps struct {
	Projects     repo.ProjectRepo
	ThreatModels repo.ThreatModelRepo
	Subjects     repo.SubjectRepo
	Tx           repo.Transactor
	Cache        cache.Cache
	Events       EventPublisher
	Classifier   *identifier.Classifier
	Log          *zap.Logger

	ListTTL          time.Duration
	ProjectExistsTTL time.Duration
}

type assignmentService struct {
	projects     repo.ProjectRepo
	threatModels repo.ThreatModelRepo
	subjects     repo.SubjectRepo
	tx           repo.Transactor
	cache        cache.Cache
	events       EventPublisher
	classifier   *identifier.Classifier
	log          *zap.SugaredLogger

	listTTL   time.Duration
	existsTTL time.Duration
}

func NewAssignmentService(d AssignmentDeps) AssignmentService {
	s := &assignmentService{
		projects:     d.Projects,
		threatModels: d.ThreatModels,
		subjects:     d.Subjects,
		tx:           d.Tx,
		cache:        d.Cache,
		events:       d.Events,
		classifier:   d.Classifier,
		listTTL:      d.ListTTL,
		existsTTL:    d.ProjectExistsTTL,
	}
	if s.classifier == nil {
		s.classifier = identifier.NewClassifier()
	}
	if s.cache == nil {
		s.cache = cache.NewMemoryCache()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s.log = d.Log.Sugar()
	if s.listTTL <= 0 {
		s.listTTL = DefaultListTTL
	}
	if s.existsTTL <= 0 {
		s.existsTTL = DefaultProjectExistsTTL
	}
	return s
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func (s *assignmentService) GetThreatModelsForProject(ctx context.Context, projectID string, filters ListFilters) ([]model.Assignment, error) {
	ctx, span := tracer.Start(ctx, "AssignmentService.GetThreatModelsForProject")
	defer span.End()

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, invalidInput("project id is required")
	}
	span.SetAttributes(attribute.String("project_id", projectID))

	key := listCacheKey(projectID, filters.Status)
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warnw("threat model cache read failed", "key", key, "err", err)
	} else if ok {
		var cached []model.Assignment
		if err := sonic.UnmarshalString(raw, &cached); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
		s.log.Warnw("discarding undecodable cache entry", "key", key)
	}

	relational, err := s.threatModels.ListByProject(ctx, projectID, filters.Status)
	if err != nil {
		return nil, fmt.Errorf("list relational threat models: %w", err)
	}

	subjectIDs, err := s.subjects.ListSubjectIDs(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	ephemeral := make([]model.Assignment, 0, len(subjectIDs))
	for _, id := range subjectIDs {
		subject, ok, err := s.subjects.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve subject %s: %w", id, err)
		}
		if !ok {
			// the generation workflow dropped it; the assignment is orphaned
			continue
		}
		meta, err := s.subjects.GetAssignment(ctx, projectID, id)
		if err != nil {
			return nil, fmt.Errorf("read subject assignment %s: %w", id, err)
		}
		ephemeral = append(ephemeral, model.Assignment{
			ID:          subject.ID,
			Title:       subject.Title,
			Source:      model.SourceEphemeral,
			Model:       subject.Model,
			CreatedAt:   subject.CreatedAt,
			ThreatCount: subject.ThreatCount,
			AssignedBy:  meta.AssignedBy,
			AssignedAt:  meta.AssignedAt,
		})
	}

	merged := make([]model.Assignment, 0, len(relational)+len(ephemeral))
	merged = append(merged, relational...)
	merged = append(merged, ephemeral...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	if raw, err := sonic.MarshalString(merged); err != nil {
		s.log.Warnw("encode threat model list", "project_id", projectID, "err", err)
	} else if err := s.cache.Set(ctx, key, raw, s.listTTL); err != nil {
		s.log.Warnw("threat model cache write failed", "key", key, "err", err)
	}

	return merged, nil
}

func (s *assignmentService) AssignThreatModelsToProject(ctx context.Context, projectID string, ids []any, assignedBy string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "AssignmentService.AssignThreatModelsToProject")
	defer span.End()

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, invalidInput("project id is required")
	}
	if len(ids) == 0 {
		return nil, invalidInput("threat model ids must be a non-empty list")
	}
	span.SetAttributes(attribute.String("project_id", projectID), attribute.Int("requested", len(ids)))

	exists, err := s.projectExists(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("check project: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	classified := make([]identifier.ID, 0, len(ids))
	for i, raw := range ids {
		id, err := s.classifier.Classify(raw, projectID)
		if err != nil {
			s.log.Warnw("skipping unclassifiable threat model id", "project_id", projectID, "index", i, "err", err)
			continue
		}
		classified = append(classified, id)
	}
	relational, ephemeral := identifier.Partition(classified)
	if len(relational) == 0 && len(ephemeral) == 0 {
		return nil, ErrNothingToAssign
	}

	if len(relational) > 0 {
		relational, err = s.verifyThreatModels(ctx, projectID, relational)
		if err != nil {
			return nil, err
		}
	}
	if len(relational) == 0 && len(ephemeral) == 0 {
		return []string{}, nil
	}

	var inserted, subjectsAdded []string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if len(relational) > 0 {
			var err error
			if inserted, err = s.threatModels.AssignBatch(ctx, projectID, relational, assignedBy); err != nil {
				return err
			}
		}
		if len(ephemeral) > 0 {
			var err error
			if subjectsAdded, err = s.subjects.AssignBatch(ctx, projectID, ephemeral, assignedBy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// the relational leg rolled back; undo what redis already accepted,
		// even when the failure came from the caller going away
		cleanupCtx := context.WithoutCancel(ctx)
		s.compensateSubjects(cleanupCtx, projectID, subjectsAdded)
		s.invalidate(cleanupCtx, projectID)
		return nil, fmt.Errorf("assign threat models: %w", err)
	}

	s.invalidate(ctx, projectID)

	out := make([]string, 0, len(inserted)+len(ephemeral))
	out = append(out, inserted...)
	out = append(out, ephemeral...)

	if len(inserted) > 0 || len(subjectsAdded) > 0 {
		changed := make([]string, 0, len(inserted)+len(subjectsAdded))
		changed = append(changed, inserted...)
		changed = append(changed, subjectsAdded...)
		s.publish(ctx, AssignmentEvent{
			Type:       EventAssigned,
			ProjectID:  projectID,
			IDs:        changed,
			AssignedBy: assignedBy,
			At:         time.Now().UTC(),
		})
	}

	s.log.Infow("assigned threat models", "project_id", projectID, "relational", len(inserted), "ephemeral", len(ephemeral))
	return out, nil
}

func (s *assignmentService) RemoveThreatModelFromProject(ctx context.Context, projectID string, id any) (bool, error) {
	ctx, span := tracer.Start(ctx, "AssignmentService.RemoveThreatModelFromProject")
	defer span.End()

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return false, invalidInput("project id is required")
	}
	target, err := s.classifier.Classify(id, projectID)
	if err != nil {
		return false, invalidInput("threat model id: " + err.Error())
	}
	span.SetAttributes(attribute.String("project_id", projectID), attribute.String("target", target.String()))

	var removed bool
	switch target.Kind {
	case identifier.Relational:
		removed, err = s.threatModels.Remove(ctx, projectID, target.Value)
	case identifier.Ephemeral:
		removed, err = s.subjects.Remove(ctx, projectID, target.Value)
	}

	s.invalidate(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("remove %s: %w", target, err)
	}

	if removed {
		s.publish(ctx, AssignmentEvent{
			Type:      EventRemoved,
			ProjectID: projectID,
			IDs:       []string{target.Value},
			At:        time.Now().UTC(),
		})
	}
	return removed, nil
}

func (s *assignmentService) GetProjectThreatModelCounts(ctx context.Context) (map[string]int64, error) {
	ctx, span := tracer.Start(ctx, "AssignmentService.GetProjectThreatModelCounts")
	defer span.End()

	if raw, ok, err := s.cache.Get(ctx, countsCacheKey); err != nil {
		s.log.Warnw("count cache read failed", "err", err)
	} else if ok {
		var cached map[string]int64
		if err := sonic.UnmarshalString(raw, &cached); err == nil {
			return cached, nil
		}
	}

	counts, err := s.threatModels.CountByProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("count relational assignments: %w", err)
	}
	subjects, err := s.subjects.CountByProject(ctx)
	if err != nil {
		return nil, fmt.Errorf("count subject assignments: %w", err)
	}
	if counts == nil {
		counts = make(map[string]int64, len(subjects))
	}
	for projectID, n := range subjects {
		counts[projectID] += n
	}

	if raw, err := sonic.MarshalString(counts); err == nil {
		if err := s.cache.Set(ctx, countsCacheKey, raw, s.listTTL); err != nil {
			s.log.Warnw("count cache write failed", "err", err)
		}
	}
	return counts, nil
}

func (s *assignmentService) projectExists(ctx context.Context, projectID string) (bool, error) {
	key := projectExistsCacheKey(projectID)
	if _, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warnw("project existence cache read failed", "key", key, "err", err)
	} else if ok {
		return true, nil
	}

	exists, err := s.projects.Exists(ctx, projectID)
	if err != nil {
		return false, err
	}
	// negative results are not cached so a new project is usable immediately
	if exists {
		if err := s.cache.Set(ctx, key, "1", s.existsTTL); err != nil {
			s.log.Warnw("project existence cache write failed", "key", key, "err", err)
		}
	}
	return exists, nil
}

// verifyThreatModels drops ids with no threat_models row and returns the rest as stored.
// Missing ids are a warning only.
func (s *assignmentService) verifyThreatModels(ctx context.Context, projectID string, ids []string) ([]string, error) {
	found, err := s.threatModels.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("verify threat models: %w", err)
	}
	// classified uuids are lowercase; rows keep the spelling they were stored with
	known := make(map[string]string, len(found))
	for _, id := range found {
		known[strings.ToLower(id)] = id
	}

	verified := make([]string, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if stored, ok := known[strings.ToLower(id)]; ok {
			verified = append(verified, stored)
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		s.log.Warnw("threat models not found, skipping", "project_id", projectID, "ids", missing)
	}
	return verified, nil
}

func (s *assignmentService) compensateSubjects(ctx context.Context, projectID string, subjectIDs []string) {
	for _, id := range subjectIDs {
		if _, err := s.subjects.Remove(ctx, projectID, id); err != nil {
			s.log.Errorw("compensating subject removal failed, stores are inconsistent",
				"project_id", projectID, "subject_id", id, "err", err)
		}
	}
	if len(subjectIDs) > 0 {
		s.log.Warnw("rolled back subject assignments after relational failure", "project_id", projectID, "ids", subjectIDs)
	}
}

func (s *assignmentService) invalidate(ctx context.Context, projectID string) {
	if err := s.cache.InvalidatePattern(ctx, projectCachePattern(projectID)); err != nil {
		s.log.Warnw("cache invalidation failed", "project_id", projectID, "err", err)
	}
	if err := s.cache.InvalidateKeys(ctx, []string{countsCacheKey}); err != nil {
		s.log.Warnw("count cache invalidation failed", "err", err)
	}
}

func (s *assignmentService) publish(ctx context.Context, ev AssignmentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishJSON(ctx, ev); err != nil {
		s.log.Warnw("publish assignment event failed", "type", ev.Type, "project_id", ev.ProjectID, "err", err)
	}
}
