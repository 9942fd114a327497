package rest

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
)

type WorkshopService interface {
	Create(ctx context.Context, in services.WorkshopInput) (*models.Workshop, error)
	Get(ctx context.Context, id string) (*models.Workshop, error)
	List(ctx context.Context, upcomingOnly bool) ([]*models.Workshop, error)
	Update(ctx context.Context, id string, in services.WorkshopInput) (*models.Workshop, error)
	Delete(ctx context.Context, id string) error
	Register(ctx context.Context, workshopID string, in services.RegistrationInput, actorID string) (*models.Registration, error)
	ListRegistrations(ctx context.Context, workshopID string) ([]*models.Registration, error)
	MarkAttendance(ctx context.Context, workshopID, registrationID, status string) (*models.Registration, error)
}

type WorkshopHandler struct {
	svc WorkshopService
}

func NewWorkshopHandler(svc WorkshopService) *WorkshopHandler {
	return &WorkshopHandler{svc: svc}
}

// AttendanceRequest sets a registration status
type AttendanceRequest struct {
	Status string `json:"status" binding:"required"`
}

// List handles GET /api/workshops?upcoming=true
func (h *WorkshopHandler) List(c *gin.Context) {
	HandleGetEnvelope(c, "workshops", func() (interface{}, error) {
		return h.svc.List(c.Request.Context(), c.Query("upcoming") == "true")
	})
}

func (h *WorkshopHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "workshop", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), c.Param("id"))
	})
}

func (h *WorkshopHandler) Create(c *gin.Context) {
	var in services.WorkshopInput
	HandleCreateEnvelope(c, "workshop", "Workshop created", &in, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), in)
	})
}

func (h *WorkshopHandler) Update(c *gin.Context) {
	var in services.WorkshopInput
	HandleUpdateEnvelope(c, "workshop", "Workshop updated", &in, func() (interface{}, error) {
		return h.svc.Update(c.Request.Context(), c.Param("id"), in)
	})
}

func (h *WorkshopHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Workshop deleted", func() error {
		return h.svc.Delete(c.Request.Context(), c.Param("id"))
	})
}

// Registrations handles GET /api/workshops/:id/registrations
func (h *WorkshopHandler) Registrations(c *gin.Context) {
	HandleGetEnvelope(c, "registrations", func() (interface{}, error) {
		return h.svc.ListRegistrations(c.Request.Context(), c.Param("id"))
	})
}

// Register handles POST /api/workshops/:id/registrations
func (h *WorkshopHandler) Register(c *gin.Context) {
	var in services.RegistrationInput
	HandleCreateEnvelope(c, "registration", "Registered", &in, func() (interface{}, error) {
		return h.svc.Register(c.Request.Context(), c.Param("id"), in, actorID(c))
	})
}

// MarkAttendance handles PATCH /api/workshops/:id/registrations/:regId
func (h *WorkshopHandler) MarkAttendance(c *gin.Context) {
	var req AttendanceRequest
	HandleUpdateEnvelope(c, "registration", "Registration updated", &req, func() (interface{}, error) {
		return h.svc.MarkAttendance(c.Request.Context(), c.Param("id"), c.Param("regId"), req.Status)
	})
}
