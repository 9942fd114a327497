package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

type RingCentralService interface {
	Enabled() bool
	SendSMS(ctx context.Context, in services.SMSInput, actorID string) (*models.Message, error)
	Call(ctx context.Context, in services.CallInput) (string, error)
	ListCallLogs(ctx context.Context, limit, offset int) ([]*models.CallLog, error)
	SyncCallLogs(ctx context.Context) (int, error)
	HandleWebhook(ctx context.Context, body []byte, verificationToken string) error
}

type RingCentralHandler struct {
	svc RingCentralService
}

func NewRingCentralHandler(svc RingCentralService) *RingCentralHandler {
	return &RingCentralHandler{svc: svc}
}

// Status handles GET /api/ringcentral/status
func (h *RingCentralHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"enabled": h.svc.Enabled()})
}

// SendSMS handles POST /api/ringcentral/sms
func (h *RingCentralHandler) SendSMS(c *gin.Context) {
	var in services.SMSInput
	HandleCreateEnvelope(c, "message", "SMS sent", &in, func() (interface{}, error) {
		return h.svc.SendSMS(c.Request.Context(), in, actorID(c))
	})
}

// Call handles POST /api/ringcentral/call (RingOut)
func (h *RingCentralHandler) Call(c *gin.Context) {
	var in services.CallInput
	if !BindJSON(c, &in) {
		return
	}
	sessionID, err := h.svc.Call(c.Request.Context(), in)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseMessage: "Call started",
		"callId":                  sessionID,
	})
}

// CallLogs handles GET /api/ringcentral/call-log
func (h *RingCentralHandler) CallLogs(c *gin.Context) {
	limit, offset := paging(c)
	HandleGetEnvelope(c, "calls", func() (interface{}, error) {
		return h.svc.ListCallLogs(c.Request.Context(), limit, offset)
	})
}

// SyncCallLogs handles POST /api/ringcentral/call-log/sync
func (h *RingCentralHandler) SyncCallLogs(c *gin.Context) {
	n, err := h.svc.SyncCallLogs(c.Request.Context())
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": n})
}

// Webhook handles POST /api/webhooks/ringcentral. Subscription setup sends a Validation-Token
// header that must be echoed back.
func (h *RingCentralHandler) Webhook(c *gin.Context) {
	if token := c.GetHeader(constants.HeaderRCValidationToken); token != "" {
		c.Header(constants.HeaderRCValidationToken, token)
		c.Status(http.StatusOK)
		return
	}

	body, err := readBody(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if err := h.svc.HandleWebhook(c.Request.Context(), body, c.GetHeader(constants.HeaderRCVerificationToken)); err != nil {
		RespondAppError(c, err)
		return
	}
	c.Status(http.StatusOK)
}
