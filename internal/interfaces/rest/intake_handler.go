package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

type IntakeService interface {
	Submit(ctx context.Context, providedSecret string, form services.IntakeForm) (*services.IntakeResult, error)
}

// IntakeHandler accepts website intake forms. The route is public and authenticated by a shared secret.
type IntakeHandler struct {
	svc IntakeService
}

func NewIntakeHandler(svc IntakeService) *IntakeHandler {
	return &IntakeHandler{svc: svc}
}

// Submit handles POST /api/intake
func (h *IntakeHandler) Submit(c *gin.Context) {
	var form services.IntakeForm
	HandleCreateEnvelope(c, "result", "Thank you, we will be in touch shortly", &form, func() (interface{}, error) {
		return h.svc.Submit(c.Request.Context(), c.GetHeader(constants.HeaderIntakeSecret), form)
	})
}
