package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/threatlens/threatlens/internal/modules/model"
)

// MockProjectRepo is a mock implementation of ProjectRepo
type MockProjectRepo struct {
	mock.Mock
}

func (m *MockProjectRepo) Exists(ctx context.Context, projectID string) (bool, error) {
	args := m.Called(ctx, projectID)
	return args.Bool(0), args.Error(1)
}

// MockThreatModelRepo is a mock implementation of ThreatModelRepo
type MockThreatModelRepo struct {
	mock.Mock
}

func (m *MockThreatModelRepo) AssignBatch(ctx context.Context, projectID string, ids []string, assignedBy string) ([]string, error) {
	args := m.Called(ctx, projectID, ids, assignedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockThreatModelRepo) Remove(ctx context.Context, projectID string, threatModelID string) (bool, error) {
	args := m.Called(ctx, projectID, threatModelID)
	return args.Bool(0), args.Error(1)
}

func (m *MockThreatModelRepo) ExistingIDs(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockThreatModelRepo) ListByProject(ctx context.Context, projectID string, status string) ([]model.Assignment, error) {
	args := m.Called(ctx, projectID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Assignment), args.Error(1)
}

func (m *MockThreatModelRepo) CountByProject(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockSubjectRepo is a mock implementation of SubjectRepo
type MockSubjectRepo struct {
	mock.Mock
}

func (m *MockSubjectRepo) GetTitle(ctx context.Context, subjectID string) (string, bool, error) {
	args := m.Called(ctx, subjectID)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockSubjectRepo) GetModel(ctx context.Context, subjectID string) (string, error) {
	args := m.Called(ctx, subjectID)
	return args.String(0), args.Error(1)
}

func (m *MockSubjectRepo) GetCreatedAt(ctx context.Context, subjectID string) (time.Time, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockSubjectRepo) GetThreatCount(ctx context.Context, subjectID string) (int, error) {
	args := m.Called(ctx, subjectID)
	return args.Int(0), args.Error(1)
}

func (m *MockSubjectRepo) Get(ctx context.Context, subjectID string) (*model.Subject, bool, error) {
	args := m.Called(ctx, subjectID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Subject), args.Bool(1), args.Error(2)
}

func (m *MockSubjectRepo) GetAssignment(ctx context.Context, projectID string, subjectID string) (*model.SubjectAssignment, error) {
	args := m.Called(ctx, projectID, subjectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SubjectAssignment), args.Error(1)
}

func (m *MockSubjectRepo) AssignBatch(ctx context.Context, projectID string, subjectIDs []string, assignedBy string) ([]string, error) {
	args := m.Called(ctx, projectID, subjectIDs, assignedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSubjectRepo) Remove(ctx context.Context, projectID string, subjectID string) (bool, error) {
	args := m.Called(ctx, projectID, subjectID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSubjectRepo) ListSubjectIDs(ctx context.Context, projectID string) ([]string, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSubjectRepo) CountByProject(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockTransactor runs fn inline; its configured error stands in for a failed commit.
type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if err := fn(ctx); err != nil {
		return err
	}
	return args.Error(0)
}

// MockCache is a mock implementation of cache.Cache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, bool, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockCache) InvalidatePattern(ctx context.Context, pattern string) error {
	args := m.Called(ctx, pattern)
	return args.Error(0)
}

func (m *MockCache) InvalidateKeys(ctx context.Context, keys []string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

// MockPublisher is a mock implementation of EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishJSON(ctx context.Context, v any) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}
