package repo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/threatlens/threatlens/internal/modules/model"
	"github.com/threatlens/threatlens/internal/pkg/threatcount"
)

// Keyspace shared with the generation workflow:
//
//	subject:<id>:{title,model,createdAt,response,threatCount}   strings
//	project:<pid>:subjects                                       set of subject ids
//	project:<pid>:subject:<sid>                                  hash {assigned_by, assigned_at}
const (
	fieldTitle       = "title"
	fieldModel       = "model"
	fieldCreatedAt   = "createdAt"
	fieldResponse    = "response"
	fieldThreatCount = "threatCount"

	hashAssignedBy = "assigned_by"
	hashAssignedAt = "assigned_at"
)

func subjectKey(subjectID string, field string) string {
	return "subject:" + subjectID + ":" + field
}

func projectSubjectsKey(projectID string) string {
	return "project:" + projectID + ":subjects"
}

func projectSubjectKey(projectID string, subjectID string) string {
	return "project:" + projectID + ":subject:" + subjectID
}

// SubjectRepo is the redis side of project assignments.
type SubjectRepo interface {
	GetTitle(ctx context.Context, subjectID string) (string, bool, error)
	GetModel(ctx context.Context, subjectID string) (string, error)
	GetCreatedAt(ctx context.Context, subjectID string) (time.Time, error)
	GetThreatCount(ctx context.Context, subjectID string) (int, error)
	// Get resolves a subject; ok is false once the generation workflow has dropped it.
	Get(ctx context.Context, subjectID string) (s *model.Subject, ok bool, err error)
	GetAssignment(ctx context.Context, projectID string, subjectID string) (*model.SubjectAssignment, error)
	// AssignBatch returns the ids that were not members of the project set before.
	AssignBatch(ctx context.Context, projectID string, subjectIDs []string, assignedBy string) ([]string, error)
	Remove(ctx context.Context, projectID string, subjectID string) (bool, error)
	ListSubjectIDs(ctx context.Context, projectID string) ([]string, error)
	CountByProject(ctx context.Context) (map[string]int64, error)
}

type subjectRepo struct{ rdb *redis.Client }

func NewSubjectRepo(rdb *redis.Client) SubjectRepo {
	return &subjectRepo{rdb: rdb}
}

func (r *subjectRepo) getString(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *subjectRepo) GetTitle(ctx context.Context, subjectID string) (string, bool, error) {
	return r.getString(ctx, subjectKey(subjectID, fieldTitle))
}

func (r *subjectRepo) GetModel(ctx context.Context, subjectID string) (string, error) {
	v, _, err := r.getString(ctx, subjectKey(subjectID, fieldModel))
	return v, err
}

func (r *subjectRepo) GetCreatedAt(ctx context.Context, subjectID string) (time.Time, error) {
	v, _, err := r.getString(ctx, subjectKey(subjectID, fieldCreatedAt))
	if err != nil {
		return time.Time{}, err
	}
	return parseTimestamp(v), nil
}

// GetThreatCount reads the cached count, deriving and persisting it on first use.
// The response text never changes once written, so the count is stored without expiry.
func (r *subjectRepo) GetThreatCount(ctx context.Context, subjectID string) (int, error) {
	cached, ok, err := r.getString(ctx, subjectKey(subjectID, fieldThreatCount))
	if err != nil {
		return 0, err
	}
	if ok {
		if n, err := strconv.Atoi(cached); err == nil {
			return n, nil
		}
	}

	response, ok, err := r.getString(ctx, subjectKey(subjectID, fieldResponse))
	if err != nil || !ok {
		return 0, err
	}
	n := threatcount.Count(response)
	// a failed write only means the next read derives the count again
	_ = r.rdb.Set(ctx, subjectKey(subjectID, fieldThreatCount), n, 0).Err()
	return n, nil
}

func (r *subjectRepo) Get(ctx context.Context, subjectID string) (*model.Subject, bool, error) {
	vals, err := r.rdb.MGet(ctx,
		subjectKey(subjectID, fieldTitle),
		subjectKey(subjectID, fieldModel),
		subjectKey(subjectID, fieldCreatedAt),
	).Result()
	if err != nil {
		return nil, false, err
	}
	title, ok := vals[0].(string)
	if !ok {
		return nil, false, nil
	}
	modelName, _ := vals[1].(string)
	createdAt, _ := vals[2].(string)

	count, err := r.GetThreatCount(ctx, subjectID)
	if err != nil {
		return nil, false, err
	}

	return &model.Subject{
		ID:          subjectID,
		Title:       title,
		Model:       modelName,
		CreatedAt:   parseTimestamp(createdAt),
		ThreatCount: count,
	}, true, nil
}

func (r *subjectRepo) GetAssignment(ctx context.Context, projectID string, subjectID string) (*model.SubjectAssignment, error) {
	h, err := r.rdb.HGetAll(ctx, projectSubjectKey(projectID, subjectID)).Result()
	if err != nil {
		return nil, err
	}
	return &model.SubjectAssignment{
		AssignedBy: h[hashAssignedBy],
		AssignedAt: parseTimestamp(h[hashAssignedAt]),
	}, nil
}

func (r *subjectRepo) AssignBatch(ctx context.Context, projectID string, subjectIDs []string, assignedBy string) ([]string, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	setKey := projectSubjectsKey(projectID)
	adds := make([]*redis.IntCmd, len(subjectIDs))

	// HSETNX keeps the first assignment's metadata on repeated calls
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range subjectIDs {
			key := projectSubjectKey(projectID, id)
			pipe.HSetNX(ctx, key, hashAssignedBy, assignedBy)
			pipe.HSetNX(ctx, key, hashAssignedAt, now)
			adds[i] = pipe.SAdd(ctx, setKey, id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assign subjects: %w", err)
	}

	added := make([]string, 0, len(subjectIDs))
	for i, id := range subjectIDs {
		if adds[i].Val() > 0 {
			added = append(added, id)
		}
	}
	return added, nil
}

func (r *subjectRepo) Remove(ctx context.Context, projectID string, subjectID string) (bool, error) {
	key := projectSubjectKey(projectID, subjectID)
	var exists, removed *redis.IntCmd

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, key)
		pipe.Del(ctx, key)
		removed = pipe.SRem(ctx, projectSubjectsKey(projectID), subjectID)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("remove subject: %w", err)
	}
	return exists.Val() > 0 || removed.Val() > 0, nil
}

// ListSubjectIDs returns the project's members sorted, so callers see a stable order.
func (r *subjectRepo) ListSubjectIDs(ctx context.Context, projectID string) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, projectSubjectsKey(projectID)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *subjectRepo) CountByProject(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	iter := r.rdb.Scan(ctx, 0, "project:*:subjects", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		projectID := strings.TrimSuffix(strings.TrimPrefix(key, "project:"), ":subjects")
		if projectID == "" || strings.Contains(projectID, ":subject:") {
			continue
		}
		n, err := r.rdb.SCard(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out[projectID] = n
		}
	}
	return out, iter.Err()
}

// parseTimestamp accepts RFC 3339 text or unix epoch seconds/milliseconds.
func parseTimestamp(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC()
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n > 1e12 {
			return time.UnixMilli(n).UTC()
		}
		return time.Unix(n, 0).UTC()
	}
	return time.Time{}
}
