package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/threatlens/threatlens/internal/modules/model"
	"github.com/threatlens/threatlens/internal/modules/service"
)

// MockAssignmentService is a mock implementation of AssignmentService
type MockAssignmentService struct {
	mock.Mock
}

func (m *MockAssignmentService) GetThreatModelsForProject(ctx context.Context, projectID string, filters service.ListFilters) ([]model.Assignment, error) {
	args := m.Called(ctx, projectID, filters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Assignment), args.Error(1)
}

func (m *MockAssignmentService) AssignThreatModelsToProject(ctx context.Context, projectID string, ids []any, assignedBy string) ([]string, error) {
	args := m.Called(ctx, projectID, ids, assignedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockAssignmentService) RemoveThreatModelFromProject(ctx context.Context, projectID string, id any) (bool, error) {
	args := m.Called(ctx, projectID, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssignmentService) GetProjectThreatModelCounts(ctx context.Context) (map[string]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

func setupAssignmentRouter(h *AssignmentHandler, actor string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if actor != "" {
		r.Use(func(c *gin.Context) {
			c.Set("actor", actor)
			c.Next()
		})
	}
	r.GET("/project/threat_model_counts", h.GetThreatModelCounts)
	r.GET("/project/:project_id/threat_models", h.GetThreatModels)
	r.POST("/project/:project_id/threat_models", h.AssignThreatModels)
	r.DELETE("/project/:project_id/threat_models/:id", h.RemoveThreatModel)
	return r
}

func TestAssignmentHandler_GetThreatModels(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		query          string
		setup          func(*MockAssignmentService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "merged list",
			setup: func(svc *MockAssignmentService) {
				svc.On("GetThreatModelsForProject", mock.Anything, "42", service.ListFilters{}).Return([]model.Assignment{
					{ID: "abc123", Title: "Generated", Source: model.SourceEphemeral, CreatedAt: created},
					{ID: "5", Title: "Payment flow", Source: model.SourceRelational, Status: "completed", CreatedAt: created},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"source":"ephemeral"`,
		},
		{
			name:  "status filter",
			query: "?status=completed",
			setup: func(svc *MockAssignmentService) {
				svc.On("GetThreatModelsForProject", mock.Anything, "42", service.ListFilters{Status: "completed"}).
					Return([]model.Assignment{}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"data":[]`,
		},
		{
			name:           "unknown status",
			query:          "?status=bogus",
			setup:          func(svc *MockAssignmentService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			setup: func(svc *MockAssignmentService) {
				svc.On("GetThreatModelsForProject", mock.Anything, "42", service.ListFilters{}).
					Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockAssignmentService{}
			tt.setup(svc)
			router := setupAssignmentRouter(NewAssignmentHandler(svc), "")

			req := httptest.NewRequest("GET", "/project/42/threat_models"+tt.query, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAssignmentHandler_AssignThreatModels(t *testing.T) {
	tests := []struct {
		name           string
		actor          string
		body           any
		rawBody        string
		setup          func(*MockAssignmentService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "mixed ids keep their json form",
			body: map[string]any{"ids": []any{5, "subj-abc123"}, "assigned_by": "alice"},
			setup: func(svc *MockAssignmentService) {
				svc.On("AssignThreatModelsToProject", mock.Anything, "42",
					[]any{json.Number("5"), "subj-abc123"}, "alice").
					Return([]string{"5", "abc123"}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"assigned":["5","abc123"]`,
		},
		{
			name:    "large integer ids are not rounded",
			rawBody: `{"ids":[9007199254740993],"assigned_by":"alice"}`,
			setup: func(svc *MockAssignmentService) {
				svc.On("AssignThreatModelsToProject", mock.Anything, "42",
					[]any{json.Number("9007199254740993")}, "alice").
					Return([]string{"9007199254740993"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:  "actor header fills assigned_by",
			actor: "bob",
			body:  map[string]any{"ids": []any{"subj-abc123"}},
			setup: func(svc *MockAssignmentService) {
				svc.On("AssignThreatModelsToProject", mock.Anything, "42", []any{"subj-abc123"}, "bob").
					Return([]string{"abc123"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "no actor at all",
			body: map[string]any{"ids": []any{"subj-abc123"}},
			setup: func(svc *MockAssignmentService) {
				svc.On("AssignThreatModelsToProject", mock.Anything, "42", []any{"subj-abc123"}, defaultActor).
					Return([]string{"abc123"}, nil)
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "empty ids",
			body:           map[string]any{"ids": []any{}},
			setup:          func(svc *MockAssignmentService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed body",
			rawBody:        `{"ids":`,
			setup:          func(svc *MockAssignmentService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown project",
			body: map[string]any{"ids": []any{"subj-abc123"}},
			setup: func(svc *MockAssignmentService) {
				svc.On("AssignThreatModelsToProject", mock.Anything, "42", mock.Anything, mock.Anything).
					Return(nil, service.ErrProjectNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "nothing assignable",
			body: map[string]any{"ids": []any{""}},
			setup: func(svc *MockAssignmentService) {
				svc.On("AssignThreatModelsToProject", mock.Anything, "42", mock.Anything, mock.Anything).
					Return(nil, service.ErrNothingToAssign)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "store failure",
			body: map[string]any{"ids": []any{5}},
			setup: func(svc *MockAssignmentService) {
				svc.On("AssignThreatModelsToProject", mock.Anything, "42", mock.Anything, mock.Anything).
					Return(nil, errors.New("commit failed"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockAssignmentService{}
			tt.setup(svc)
			router := setupAssignmentRouter(NewAssignmentHandler(svc), tt.actor)

			body := []byte(tt.rawBody)
			if tt.body != nil {
				var err error
				body, err = sonic.Marshal(tt.body)
				require.NoError(t, err)
			}
			req := httptest.NewRequest("POST", "/project/42/threat_models", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAssignmentHandler_RemoveThreatModel(t *testing.T) {
	tests := []struct {
		name           string
		id             string
		setup          func(*MockAssignmentService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "removed",
			id:   "subj-abc123",
			setup: func(svc *MockAssignmentService) {
				svc.On("RemoveThreatModelFromProject", mock.Anything, "42", "subj-abc123").Return(true, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"removed":true`,
		},
		{
			name: "not assigned",
			id:   "5",
			setup: func(svc *MockAssignmentService) {
				svc.On("RemoveThreatModelFromProject", mock.Anything, "42", "5").Return(false, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"removed":false`,
		},
		{
			name: "store failure",
			id:   "5",
			setup: func(svc *MockAssignmentService) {
				svc.On("RemoveThreatModelFromProject", mock.Anything, "42", "5").Return(false, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockAssignmentService{}
			tt.setup(svc)
			router := setupAssignmentRouter(NewAssignmentHandler(svc), "")

			req := httptest.NewRequest("DELETE", "/project/42/threat_models/"+tt.id, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, w.Body.String(), tt.expectedBody)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAssignmentHandler_GetThreatModelCounts(t *testing.T) {
	svc := &MockAssignmentService{}
	svc.On("GetProjectThreatModelCounts", mock.Anything).Return(map[string]int64{"42": 3}, nil)
	router := setupAssignmentRouter(NewAssignmentHandler(svc), "")

	req := httptest.NewRequest("GET", "/project/threat_model_counts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"42":3`)
	svc.AssertExpectations(t)
}
