package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

// TaskService manages manual and template tasks
type TaskService struct {
	repo ports.TaskRepository
	opps ports.OpportunityRepository
	log  zerolog.Logger
	now  func() time.Time
}

func NewTaskService(repo ports.TaskRepository, opps ports.OpportunityRepository) *TaskService {
	return &TaskService{repo: repo, opps: opps, log: logging.For("tasks"), now: time.Now}
}

// TaskInput is the form for a manual task
type TaskInput struct {
	Title         string     `json:"title"`
	Description   *string    `json:"description"`
	OpportunityID *string    `json:"opportunity_id"`
	ContactID     *string    `json:"contact_id"`
	AssigneeID    *string    `json:"assignee_id"`
	DueAt         *time.Time `json:"due_at"`
}

func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	if filter.Status != "" && filter.Status != constants.TaskStatusOpen && filter.Status != constants.TaskStatusCompleted {
		return nil, errors.NewValidationError("status", "status must be open or completed")
	}
	filter.Limit = utils.ClampLimit(filter.Limit, constants.DefaultLimit, constants.DefaultMaxLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Create stores a manual task. A task linked to an opportunity inherits its contact and stage.
func (s *TaskService) Create(ctx context.Context, in TaskInput, actorID string) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, errors.NewValidationError("title", "Title is required")
	}
	task := &models.Task{
		ID:          utils.GenerateID(),
		Title:       title,
		Description: in.Description,
		ContactID:   in.ContactID,
		AssigneeID:  in.AssigneeID,
		Status:      constants.TaskStatusOpen,
		DueAt:       in.DueAt,
		CreatedDate: s.now().UTC(),
	}
	if in.OpportunityID != nil && *in.OpportunityID != "" {
		opp, err := s.opps.FindByID(ctx, *in.OpportunityID)
		if err != nil {
			return nil, fmt.Errorf("failed to load opportunity: %w", err)
		}
		if opp == nil {
			return nil, errors.NewNotFoundError("opportunity", *in.OpportunityID)
		}
		oppID, contactID, stageID := opp.ID, opp.ContactID, opp.StageID
		task.OpportunityID = &oppID
		task.StageID = &stageID
		if task.ContactID == nil {
			task.ContactID = &contactID
		}
	}
	if task.AssigneeID == nil && actorID != "" {
		assignee := actorID
		task.AssigneeID = &assignee
	}
	if err := s.repo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if task == nil {
		return nil, errors.NewNotFoundError("task", id)
	}
	return task, nil
}

// Complete marks the task done. Completing the Did Not Hire sentinel stops the pending move.
func (s *TaskService) Complete(ctx context.Context, id, actorID string) (*models.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if task.IsCompleted() {
		return task, nil
	}
	now := s.now().UTC()
	if err := s.repo.Complete(ctx, id, actorID, now); err != nil {
		return nil, fmt.Errorf("failed to complete task: %w", err)
	}
	task.Status = constants.TaskStatusCompleted
	task.CompletedAt = &now
	task.CompletedByID = &actorID
	s.log.Debug().Str("task_id", id).Str(logging.USER_ID, actorID).Msg("Task completed")
	return task, nil
}

func (s *TaskService) Reopen(ctx context.Context, id string) (*models.Task, error) {
	task, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !task.IsCompleted() {
		return task, nil
	}
	if err := s.repo.Reopen(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to reopen task: %w", err)
	}
	task.Status = constants.TaskStatusOpen
	task.CompletedAt = nil
	task.CompletedByID = nil
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
