package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
)

// PipelineService defines pipeline reads and the admin configuration operations
type PipelineService interface {
	ListPipelines(ctx context.Context) ([]*models.Pipeline, error)
	GetPipeline(ctx context.Context, id string) (*models.Pipeline, error)
	Board(ctx context.Context, pipelineID string) (*models.Board, error)
	CreatePipeline(ctx context.Context, in services.PipelineInput) (*models.Pipeline, error)
	CreateStage(ctx context.Context, pipelineID string, in services.StageInput) (*models.Stage, error)
	UpdateStage(ctx context.Context, id string, in services.StageInput) (*models.Stage, error)
	DeleteStage(ctx context.Context, id string) error
	CreateTemplate(ctx context.Context, stageID string, in services.TemplateInput) (*models.TaskTemplate, error)
	UpdateTemplate(ctx context.Context, id string, in services.TemplateInput) (*models.TaskTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
}

type PipelineHandler struct {
	svc PipelineService
}

func NewPipelineHandler(svc PipelineService) *PipelineHandler {
	return &PipelineHandler{svc: svc}
}

// List handles GET /api/pipelines
func (h *PipelineHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, "pipelines", func() (interface{}, error) {
		return h.svc.ListPipelines(c.Request.Context())
	})
}

// Get handles GET /api/pipelines/:id (stages and templates included)
func (h *PipelineHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "pipeline", func() (interface{}, error) {
		return h.svc.GetPipeline(c.Request.Context(), c.Param("id"))
	})
}

// Board handles GET /api/pipelines/:id/board
func (h *PipelineHandler) Board(c *gin.Context) {
	HandleGetEnvelope(c, "board", func() (interface{}, error) {
		return h.svc.Board(c.Request.Context(), c.Param("id"))
	})
}

// CreatePipeline handles POST /api/admin/pipelines
func (h *PipelineHandler) CreatePipeline(c *gin.Context) {
	var in services.PipelineInput
	HandleCreateEnvelope(c, "pipeline", "Pipeline created", &in, func() (interface{}, error) {
		return h.svc.CreatePipeline(c.Request.Context(), in)
	})
}

// CreateStage handles POST /api/admin/pipelines/:id/stages
func (h *PipelineHandler) CreateStage(c *gin.Context) {
	var in services.StageInput
	HandleCreateEnvelope(c, "stage", "Stage created", &in, func() (interface{}, error) {
		return h.svc.CreateStage(c.Request.Context(), c.Param("id"), in)
	})
}

// UpdateStage handles PATCH /api/admin/stages/:id
func (h *PipelineHandler) UpdateStage(c *gin.Context) {
	var in services.StageInput
	HandleUpdateEnvelope(c, "stage", "Stage updated", &in, func() (interface{}, error) {
		return h.svc.UpdateStage(c.Request.Context(), c.Param("id"), in)
	})
}

// DeleteStage handles DELETE /api/admin/stages/:id
func (h *PipelineHandler) DeleteStage(c *gin.Context) {
	HandleDeleteEnvelope(c, "Stage deleted", func() error {
		return h.svc.DeleteStage(c.Request.Context(), c.Param("id"))
	})
}

// CreateTemplate handles POST /api/admin/stages/:id/templates
func (h *PipelineHandler) CreateTemplate(c *gin.Context) {
	var in services.TemplateInput
	HandleCreateEnvelope(c, "template", "Task template created", &in, func() (interface{}, error) {
		return h.svc.CreateTemplate(c.Request.Context(), c.Param("id"), in)
	})
}

// UpdateTemplate handles PATCH /api/admin/templates/:id
func (h *PipelineHandler) UpdateTemplate(c *gin.Context) {
	var in services.TemplateInput
	HandleUpdateEnvelope(c, "template", "Task template updated", &in, func() (interface{}, error) {
		return h.svc.UpdateTemplate(c.Request.Context(), c.Param("id"), in)
	})
}

// DeleteTemplate handles DELETE /api/admin/templates/:id
func (h *PipelineHandler) DeleteTemplate(c *gin.Context) {
	HandleDeleteEnvelope(c, "Task template deleted", func() error {
		return h.svc.DeleteTemplate(c.Request.Context(), c.Param("id"))
	})
}
