package rest_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/interfaces/rest"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	apperrors "github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

func rawRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(constants.HeaderContentType, constants.ContentTypeJSON)
	return req
}

func TestMetaHandler_VerifyWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockMetaService)
	h := rest.NewMetaHandler(svc)
	r := gin.New()
	r.GET("/webhooks/meta", h.VerifyWebhook)

	svc.On("VerifySubscription", "subscribe", "verify-me", "12345").Return("12345", true)
	svc.On("VerifySubscription", "subscribe", "wrong", "12345").Return("", false)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/webhooks/meta?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "12345", w.Body.String())

	w = serve(r, httptest.NewRequest(http.MethodGet, "/webhooks/meta?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetaHandler_ReceiveWebhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	payload := `{"object":"page","entry":[]}`

	t.Run("Signed delivery is acknowledged", func(t *testing.T) {
		svc := new(MockMetaService)
		r := gin.New()
		r.POST("/webhooks/meta", rest.NewMetaHandler(svc).ReceiveWebhook)
		svc.On("HandleWebhook", mock.Anything, []byte(payload), "sha256=abc").Return(1, nil)

		req := rawRequest(http.MethodPost, "/webhooks/meta", payload)
		req.Header.Set(constants.HeaderMetaSignature, "sha256=abc")
		w := serve(r, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "EVENT_RECEIVED", w.Body.String())
		svc.AssertExpectations(t)
	})

	t.Run("Bad signature is rejected", func(t *testing.T) {
		svc := new(MockMetaService)
		r := gin.New()
		r.POST("/webhooks/meta", rest.NewMetaHandler(svc).ReceiveWebhook)
		svc.On("HandleWebhook", mock.Anything, mock.Anything, "").Return(0, apperrors.NewUnauthorizedError("invalid signature"))

		w := serve(r, rawRequest(http.MethodPost, "/webhooks/meta", payload))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Oversized body", func(t *testing.T) {
		svc := new(MockMetaService)
		r := gin.New()
		r.POST("/webhooks/meta", rest.NewMetaHandler(svc).ReceiveWebhook)

		w := serve(r, rawRequest(http.MethodPost, "/webhooks/meta", strings.Repeat("x", 1<<20+10)))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMetaHandler_OAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockMetaService)
	h := rest.NewMetaHandler(svc)
	r := gin.New()
	r.GET("/connect", withClaims(&auth.Claims{UserSession: testUser}), h.Connect)
	r.GET("/connect-anon", h.Connect)
	r.GET("/callback", h.Callback)

	svc.On("ConnectURL", "u1").Return("https://www.facebook.com/v21.0/dialog/oauth?state=s", nil)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/connect", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://www.facebook.com/v21.0/dialog/oauth?state=s", w.Header().Get("Location"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/connect-anon", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	svc.On("HandleCallback", mock.Anything, "good", "code1").Return([]*models.MetaPage{{ID: "p1"}, {ID: "p2"}}, nil)
	w = serve(r, httptest.NewRequest(http.MethodGet, "/callback?state=good&code=code1", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/settings/integrations?meta=connected&pages=2", w.Header().Get("Location"))

	svc.On("HandleCallback", mock.Anything, "forged", "code1").Return(nil, apperrors.NewUnauthorizedError("invalid or expired state"))
	w = serve(r, httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=code1", nil))
	assert.Equal(t, "/settings/integrations?meta=error&code=UNAUTHORIZED", w.Header().Get("Location"))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/callback?error=access_denied&error_reason=user_denied", nil))
	assert.Equal(t, "/settings/integrations?meta=declined", w.Header().Get("Location"))
	svc.AssertNumberOfCalls(t, "HandleCallback", 2)
}

func TestRingCentralHandler_Webhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockRingCentralService)
	r := gin.New()
	r.POST("/webhooks/ringcentral", rest.NewRingCentralHandler(svc).Webhook)

	// subscription handshake
	req := rawRequest(http.MethodPost, "/webhooks/ringcentral", "")
	req.Header.Set(constants.HeaderRCValidationToken, "vt-1")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "vt-1", w.Header().Get(constants.HeaderRCValidationToken))
	svc.AssertNotCalled(t, "HandleWebhook", mock.Anything, mock.Anything, mock.Anything)

	body := `{"body":{"id":"m1"}}`
	svc.On("HandleWebhook", mock.Anything, []byte(body), "rc-token").Return(nil).Once()
	req = rawRequest(http.MethodPost, "/webhooks/ringcentral", body)
	req.Header.Set(constants.HeaderRCVerificationToken, "rc-token")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	svc.On("HandleWebhook", mock.Anything, []byte(body), "nope").Return(apperrors.NewUnauthorizedError("invalid verification token")).Once()
	req = rawRequest(http.MethodPost, "/webhooks/ringcentral", body)
	req.Header.Set(constants.HeaderRCVerificationToken, "nope")
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)
	svc.AssertExpectations(t)
}

func TestInvoiceHandler_Webhook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := new(MockInvoiceService)
	r := gin.New()
	r.POST("/webhooks/confido", rest.NewInvoiceHandler(svc).Webhook)
	body := `{"event":"payment.completed"}`

	svc.On("HandleWebhook", mock.Anything, []byte(body), "sig").Return(nil).Once()
	req := rawRequest(http.MethodPost, "/webhooks/confido", body)
	req.Header.Set(constants.HeaderConfidoSignature, "sig")
	w := serve(r, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	svc.On("HandleWebhook", mock.Anything, []byte(body), "").Return(apperrors.NewUnauthorizedError("invalid signature")).Once()
	assert.Equal(t, http.StatusUnauthorized, serve(r, rawRequest(http.MethodPost, "/webhooks/confido", body)).Code)
	svc.AssertExpectations(t)
}
