package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/threatlens/threatlens/internal/modules/serializer"
	"github.com/threatlens/threatlens/internal/modules/service"
	"go.opentelemetry.io/otel/trace"
)

// ids keep their JSON number text so large integers survive classification
var numberJSON = sonic.Config{UseNumber: true}.Froze()

const defaultActor = "api"

type AssignmentHandler struct {
	svc service.AssignmentService
}

func NewAssignmentHandler(s service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{svc: s}
}

type GetThreatModelsReq struct {
	Status string `form:"status" json:"status" binding:"omitempty,oneof=draft in_progress completed archived" example:"completed"`
}

type AssignThreatModelsReq struct {
	IDs        []any  `json:"ids" binding:"required,min=1" swaggertype:"array,string" example:"5,subj-abc123"`
	AssignedBy string `json:"assigned_by" example:"alice"`
}

type AssignThreatModelsResp struct {
	Assigned []string `json:"assigned"`
}

type RemoveThreatModelResp struct {
	Removed bool `json:"removed"`
}

// GetThreatModels godoc
//
//	@Summary		List project threat models
//	@Description	Get the merged list of relational threat models and generated subjects assigned to a project, newest first
//	@Tags			assignment
//	@Accept			json
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	Example(42)
//	@Param			status		query	string	false	"Only relational threat models with this status"	Enums(draft, in_progress, completed, archived)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=[]model.Assignment}
//	@Router			/project/{project_id}/threat_models [get]
func (h *AssignmentHandler) GetThreatModels(c *gin.Context) {
	req := GetThreatModelsReq{}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	out, err := h.svc.GetThreatModelsForProject(c.Request.Context(), c.Param("project_id"), service.ListFilters{
		Status: req.Status,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

// AssignThreatModels godoc
//
//	@Summary		Assign threat models
//	@Description	Assign relational threat models and generated subjects to a project. Ids that are unknown or malformed are skipped.
//	@Tags			assignment
//	@Accept			json
//	@Produce		json
//	@Param			project_id	path	string							true	"Project ID"	Example(42)
//	@Param			payload		body	handler.AssignThreatModelsReq	true	"AssignThreatModels payload"
//	@Security		BearerAuth
//	@Success		201	{object}	serializer.Response{data=handler.AssignThreatModelsResp}
//	@Router			/project/{project_id}/threat_models [post]
func (h *AssignmentHandler) AssignThreatModels(c *gin.Context) {
	req := AssignThreatModelsReq{}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	if err := numberJSON.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
		return
	}

	assignedBy := strings.TrimSpace(req.AssignedBy)
	if assignedBy == "" {
		assignedBy = c.GetString("actor")
	}
	if assignedBy == "" {
		assignedBy = defaultActor
	}

	out, err := h.svc.AssignThreatModelsToProject(c.Request.Context(), c.Param("project_id"), req.IDs, assignedBy)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, serializer.Response{Data: AssignThreatModelsResp{Assigned: out}})
}

// RemoveThreatModel godoc
//
//	@Summary		Remove threat model
//	@Description	Remove one threat model or generated subject from a project. Prefixed ids such as subj-abc123 address subjects.
//	@Tags			assignment
//	@Accept			json
//	@Produce		json
//	@Param			project_id	path	string	true	"Project ID"	Example(42)
//	@Param			id			path	string	true	"Threat model or subject ID"	Example(subj-abc123)
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=handler.RemoveThreatModelResp}
//	@Router			/project/{project_id}/threat_models/{id} [delete]
func (h *AssignmentHandler) RemoveThreatModel(c *gin.Context) {
	removed, err := h.svc.RemoveThreatModelFromProject(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: RemoveThreatModelResp{Removed: removed}})
}

// GetThreatModelCounts godoc
//
//	@Summary		Count project threat models
//	@Description	Get the number of assigned threat models per project across both stores
//	@Tags			assignment
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	serializer.Response{data=map[string]int64}
//	@Router			/project/threat_model_counts [get]
func (h *AssignmentHandler) GetThreatModelCounts(c *gin.Context) {
	out, err := h.svc.GetProjectThreatModelCounts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, serializer.Response{Data: out})
}

func (h *AssignmentHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrNothingToAssign):
		c.JSON(http.StatusBadRequest, serializer.ParamErr("", err))
	case errors.Is(err, service.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, serializer.NotFoundErr("project not found", err))
	default:
		res := serializer.DBErr("", err)
		span := trace.SpanFromContext(c.Request.Context())
		if span.SpanContext().IsValid() {
			c.JSON(http.StatusInternalServerError, serializer.Tracked(res, span.SpanContext().TraceID().String()))
			return
		}
		c.JSON(http.StatusInternalServerError, res)
	}
}
