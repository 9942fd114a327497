package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// UserService defines the admin user-management operations
type UserService interface {
	CreateUser(ctx context.Context, in services.CreateUserInput) (*services.CreatedUser, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUser(ctx context.Context, actorID, id string, in services.UpdateUserInput) (*models.User, error)
	Suspend(ctx context.Context, actorID, id string) error
	Reinstate(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id string) (string, error)
}

// UserHandler handles /api/admin/users
type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// ListUsers handles GET /api/admin/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	HandleGetEnvelope(c, "users", func() (interface{}, error) {
		return h.svc.ListUsers(c.Request.Context())
	})
}

// CreateUser handles POST /api/admin/users. The temporary password is returned once.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var in services.CreateUserInput
	if !BindJSON(c, &in) {
		return
	}
	created, err := h.svc.CreateUser(c.Request.Context(), in)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		constants.ResponseMessage: "User created",
		"user":                    created.User,
		"temporaryPassword":       created.TemporaryPassword,
	})
}

// UpdateUser handles PATCH /api/admin/users/:id
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var in services.UpdateUserInput
	HandleUpdateEnvelope(c, "user", "User updated", &in, func() (interface{}, error) {
		return h.svc.UpdateUser(c.Request.Context(), actorID(c), c.Param("id"), in)
	})
}

// Suspend handles POST /api/admin/users/:id/suspend
func (h *UserHandler) Suspend(c *gin.Context) {
	HandleDeleteEnvelope(c, "User suspended", func() error {
		return h.svc.Suspend(c.Request.Context(), actorID(c), c.Param("id"))
	})
}

// Reinstate handles POST /api/admin/users/:id/reinstate
func (h *UserHandler) Reinstate(c *gin.Context) {
	HandleDeleteEnvelope(c, "User reinstated", func() error {
		return h.svc.Reinstate(c.Request.Context(), c.Param("id"))
	})
}

// ResetPassword handles POST /api/admin/users/:id/reset-password
func (h *UserHandler) ResetPassword(c *gin.Context) {
	temp, err := h.svc.ResetPassword(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseMessage: "Password reset",
		"temporaryPassword":       temp,
	})
}
