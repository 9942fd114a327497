package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// InvoiceService defines the Confido invoice operations
type InvoiceService interface {
	Create(ctx context.Context, in services.InvoiceInput, actorID string) (*models.Invoice, error)
	List(ctx context.Context, filter ports.InvoiceFilter) ([]*models.Invoice, error)
	Get(ctx context.Context, id string) (*models.Invoice, error)
	Send(ctx context.Context, id string) (*models.Invoice, error)
	Void(ctx context.Context, id string) (*models.Invoice, error)
	HandleWebhook(ctx context.Context, body []byte, sigHeader string) error
}

type InvoiceHandler struct {
	svc InvoiceService
}

func NewInvoiceHandler(svc InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

// List handles GET /api/confido/invoices?contact_id=&status=
func (h *InvoiceHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	HandleGetEnvelope(c, "invoices", func() (interface{}, error) {
		return h.svc.List(c.Request.Context(), ports.InvoiceFilter{
			ContactID: c.Query("contact_id"),
			Status:    c.Query("status"),
			Limit:     limit,
			Offset:    offset,
		})
	})
}

// Get handles GET /api/confido/invoices/:id, refreshing open invoices from Confido
func (h *InvoiceHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "invoice", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), c.Param("id"))
	})
}

// Create handles POST /api/confido/invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var in services.InvoiceInput
	HandleCreateEnvelope(c, "invoice", "Invoice created", &in, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), in, actorID(c))
	})
}

// Send handles POST /api/confido/invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	HandleUpdateEnvelope(c, "invoice", "Invoice sent", nil, func() (interface{}, error) {
		return h.svc.Send(c.Request.Context(), c.Param("id"))
	})
}

// Void handles POST /api/confido/invoices/:id/void
func (h *InvoiceHandler) Void(c *gin.Context) {
	HandleUpdateEnvelope(c, "invoice", "Invoice voided", nil, func() (interface{}, error) {
		return h.svc.Void(c.Request.Context(), c.Param("id"))
	})
}

// Webhook handles POST /api/webhooks/confido
func (h *InvoiceHandler) Webhook(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if err := h.svc.HandleWebhook(c.Request.Context(), body, c.GetHeader(constants.HeaderConfidoSignature)); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
