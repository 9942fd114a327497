package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
)

type ConversationService interface {
	List(ctx context.Context, filter ports.ConversationFilter) ([]*models.Conversation, error)
	Get(ctx context.Context, id string) (*services.ConversationThread, error)
	MarkRead(ctx context.Context, id string) error
	SendMessage(ctx context.Context, conversationID, text, actorID string) (*models.Message, error)
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// SendMessageRequest is an outbound reply in an existing conversation
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// List handles GET /api/conversations?channel=
func (h *ConversationHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	HandleGetEnvelope(c, "conversations", func() (interface{}, error) {
		return h.svc.List(c.Request.Context(), ports.ConversationFilter{
			Channel: c.Query("channel"),
			Limit:   limit,
			Offset:  offset,
		})
	})
}

// Get handles GET /api/conversations/:id with its messages
func (h *ConversationHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "thread", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), c.Param("id"))
	})
}

// MarkRead handles POST /api/conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	HandleDeleteEnvelope(c, "Conversation marked as read", func() error {
		return h.svc.MarkRead(c.Request.Context(), c.Param("id"))
	})
}

// SendMessage handles POST /api/conversations/:id/messages. A provider failure is stored on
// the message and reported as an upstream error.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	HandleCreateEnvelope(c, "message", "Message sent", &req, func() (interface{}, error) {
		return h.svc.SendMessage(c.Request.Context(), c.Param("id"), req.Text, actorID(c))
	})
}
