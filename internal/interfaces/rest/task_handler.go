package rest

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

type TaskService interface {
	List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error)
	Create(ctx context.Context, in services.TaskInput, actorID string) (*models.Task, error)
	Get(ctx context.Context, id string) (*models.Task, error)
	Complete(ctx context.Context, id, actorID string) (*models.Task, error)
	Reopen(ctx context.Context, id string) (*models.Task, error)
	Delete(ctx context.Context, id string) error
}

type TaskHandler struct {
	svc TaskService
}

func NewTaskHandler(svc TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// List handles GET /api/tasks?status=&opportunity_id=&assignee_id=&mine=true&due_before=RFC3339
func (h *TaskHandler) List(c *gin.Context) {
	limit, offset := paging(c)
	filter := models.TaskFilter{
		AssigneeID:    c.Query("assignee_id"),
		Status:        c.Query("status"),
		OpportunityID: c.Query("opportunity_id"),
		Limit:         limit,
		Offset:        offset,
	}
	if c.Query("mine") == "true" {
		filter.AssigneeID = actorID(c)
	}
	if raw := c.Query("due_before"); raw != "" {
		due, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondAppError(c, errors.NewValidationError("due_before", "due_before must be an RFC3339 timestamp"))
			return
		}
		filter.DueBefore = &due
	}

	HandleGetEnvelope(c, "tasks", func() (interface{}, error) {
		return h.svc.List(c.Request.Context(), filter)
	})
}

func (h *TaskHandler) Get(c *gin.Context) {
	HandleGetEnvelope(c, "task", func() (interface{}, error) {
		return h.svc.Get(c.Request.Context(), c.Param("id"))
	})
}

func (h *TaskHandler) Create(c *gin.Context) {
	var in services.TaskInput
	HandleCreateEnvelope(c, "task", "Task created", &in, func() (interface{}, error) {
		return h.svc.Create(c.Request.Context(), in, actorID(c))
	})
}

// Complete handles POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(c *gin.Context) {
	HandleUpdateEnvelope(c, "task", "Task completed", nil, func() (interface{}, error) {
		return h.svc.Complete(c.Request.Context(), c.Param("id"), actorID(c))
	})
}

// Reopen handles POST /api/tasks/:id/reopen
func (h *TaskHandler) Reopen(c *gin.Context) {
	HandleUpdateEnvelope(c, "task", "Task reopened", nil, func() (interface{}, error) {
		return h.svc.Reopen(c.Request.Context(), c.Param("id"))
	})
}

func (h *TaskHandler) Delete(c *gin.Context) {
	HandleDeleteEnvelope(c, "Task deleted", func() error {
		return h.svc.Delete(c.Request.Context(), c.Param("id"))
	})
}
