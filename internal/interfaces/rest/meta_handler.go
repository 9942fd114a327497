package rest

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/interfaces/middleware"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

// maxWebhookBody caps inbound webhook payloads
const maxWebhookBody = 1 << 20

// where the browser lands after the Meta OAuth dialog
const metaReturnPath = "/settings/integrations"

// MetaService defines the Meta OAuth, page and webhook operations
type MetaService interface {
	ConnectURL(userID string) (string, error)
	HandleCallback(ctx context.Context, state, code string) ([]*models.MetaPage, error)
	VerifySubscription(mode, token, challenge string) (string, bool)
	HandleWebhook(ctx context.Context, body []byte, sigHeader string) (int, error)
	ListPages(ctx context.Context) ([]*models.MetaPage, error)
	DisconnectPage(ctx context.Context, id string) error
}

type MetaHandler struct {
	svc MetaService
}

func NewMetaHandler(svc MetaService) *MetaHandler {
	return &MetaHandler{svc: svc}
}

// Connect handles GET /api/auth/meta/connect by redirecting to the Meta OAuth dialog
func (h *MetaHandler) Connect(c *gin.Context) {
	user := middleware.UserFrom(c)
	if user == nil {
		RespondAppError(c, errors.NewUnauthorizedError("not signed in"))
		return
	}
	target, err := h.svc.ConnectURL(user.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// Callback handles GET /api/auth/meta/callback. Meta sends error=... when the user cancels.
func (h *MetaHandler) Callback(c *gin.Context) {
	if reason := c.Query("error"); reason != "" {
		log.Warn().Str("reason", c.Query("error_reason")).Msg("⚠️ Meta authorization declined")
		c.Redirect(http.StatusFound, metaReturnPath+"?meta=declined")
		return
	}

	pages, err := h.svc.HandleCallback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ Meta connection failed")
		c.Redirect(http.StatusFound, metaReturnPath+"?meta=error&code="+url.QueryEscape(errors.GetErrorCode(err)))
		return
	}
	c.Redirect(http.StatusFound, metaReturnPath+"?meta=connected&pages="+strconv.Itoa(len(pages)))
}

// ListPages handles GET /api/integrations/meta/pages
func (h *MetaHandler) ListPages(c *gin.Context) {
	HandleGetEnvelope(c, "pages", func() (interface{}, error) {
		return h.svc.ListPages(c.Request.Context())
	})
}

// DisconnectPage handles DELETE /api/integrations/meta/pages/:id
func (h *MetaHandler) DisconnectPage(c *gin.Context) {
	HandleDeleteEnvelope(c, "Page disconnected", func() error {
		return h.svc.DisconnectPage(c.Request.Context(), c.Param("id"))
	})
}

// VerifyWebhook handles GET /api/webhooks/meta, echoing hub.challenge for a matching verify token
func (h *MetaHandler) VerifyWebhook(c *gin.Context) {
	challenge, ok := h.svc.VerifySubscription(c.Query("hub.mode"), c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if !ok {
		c.String(http.StatusForbidden, "Forbidden")
		return
	}
	c.String(http.StatusOK, challenge)
}

// ReceiveWebhook handles POST /api/webhooks/meta
func (h *MetaHandler) ReceiveWebhook(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if _, err := h.svc.HandleWebhook(c.Request.Context(), body, c.GetHeader(constants.HeaderMetaSignature)); err != nil {
		RespondAppError(c, err)
		return
	}
	c.String(http.StatusOK, "EVENT_RECEIVED")
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		return nil, errors.NewValidationError("body", "Failed to read request body")
	}
	if len(body) > maxWebhookBody {
		return nil, errors.NewValidationError("body", "Request body too large")
	}
	return body, nil
}
