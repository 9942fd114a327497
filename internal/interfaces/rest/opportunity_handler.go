package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
)

type OpportunityService interface {
	Create(ctx context.Context, in services.OpportunityInput, actorID string) (*models.Opportunity, error)
	Get(ctx context.Context, id string) (*models.Opportunity, error)
	List(ctx context.Context, filter ports.OpportunityFilter) ([]*models.Opportunity, error)
	Update(ctx context.Context, id string, in services.OpportunityInput) (*models.Opportunity, error)
	Delete(ctx context.Context, id string) error
	MoveStage(ctx context.Context, id, stageID, actorID string) (*models.Opportunity, error)
}

type OpportunityHandler struct {
	svc OpportunityService
}

func NewOpportunityHandler(svc OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{svc: svc}
}

// MoveStageRequest moves an opportunity to another column of its pipeline
type MoveStageRequest struct {
	StageID string `json:"stage_id" binding:"required"`
}

// List handles GET /api/opportunities?pipeline_id=&stage_id=&contact_id=&owner_id=
func (h *OpportunityHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	HandleGetEnvelope(c, "opportunities", func() (interface{}, error) {
		return h.svc.List(c.Request.Context(), ports.OpportunityFilter{
			PipelineID: c.Query("pipeline_id"),
			StageID:    c.Query("stage_id"),
			ContactID:  c.Query("contact_id"),
			OwnerID:    c.Query("owner_id"),
			Limit:      limit,
			Offset:     offset,
		})
	})
}

func (h *OpportunityHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "opportunity", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), c.Param("id"))
	})
}

func (h *OpportunityHandler) Create(c *gin.Context) {
	var in services.OpportunityInput
	HandleCreateEnvelope(c, "opportunity", "Opportunity created", &in, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), in, actorID(c))
	})
}

func (h *OpportunityHandler) Update(c *gin.Context) {
	var in services.OpportunityInput
	HandleUpdateEnvelope(c, "opportunity", "Opportunity updated", &in, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), c.Param("id"), in)
	})
}

func (h *OpportunityHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Opportunity deleted", func() error {
		return h.svc.Delete(c.Request.Context(), c.Param("id"))
	})
}

// MoveStage handles POST /api/opportunities/:id/move. Stage automation runs as part of the move.
func (h *OpportunityHandler) MoveStage(c *gin.Context) {
	var req MoveStageRequest
	HandleUpdateEnvelope(c, "opportunity", "Opportunity moved", &req, func() (interface{}, error) {
		return h.svc.MoveStage(c.Request.Context(), c.Param("id"), req.StageID, actorID(c))
	})
}
