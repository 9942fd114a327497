package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

type ContactService interface {
	Create(ctx context.Context, in services.ContactInput, actorID string) (*models.Contact, error)
	Get(ctx context.Context, id string) (*models.Contact, error)
	List(ctx context.Context, filter ports.ContactFilter) ([]*models.Contact, error)
	Update(ctx context.Context, id string, in services.ContactInput) (*models.Contact, error)
	Delete(ctx context.Context, id string) error
}

type ContactHandler struct {
	svc ContactService
}

func NewContactHandler(svc ContactService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

// List handles GET /api/contacts?q=&type=&limit=&offset=
func (h *ContactHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	HandleGetEnvelope(c, "contacts", func() (interface{}, error) {
		return h.svc.List(c.Request.Context(), ports.ContactFilter{
			Query:  c.Query(constants.ParamSearch),
			Type:   c.Query("type"),
			Limit:  limit,
			Offset: offset,
		})
	})
}

func (h *ContactHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "contact", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), c.Param("id"))
	})
}

func (h *ContactHandler) Create(c *gin.Context) {
	var in services.ContactInput
	HandleCreateEnvelope(c, "contact", "Contact created", &in, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), in, actorID(c))
	})
}

func (h *ContactHandler) Update(c *gin.Context) {
	var in services.ContactInput
	HandleUpdateEnvelope(c, "contact", "Contact updated", &in, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), c.Param("id"), in)
	})
}

func (h *ContactHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Contact deleted", func() error {
		return h.svc.Delete(c.Request.Context(), c.Param("id"))
	})
}
