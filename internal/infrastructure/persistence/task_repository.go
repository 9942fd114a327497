package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const taskColumns = "id, opportunity_id, contact_id, stage_id, template_id, title, description, assignee_id, status, due_at, completed_at, completed_by_id, created_date"

// TaskRepository persists tasks
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableTask, taskColumns)
	_, err := r.db.ExecContext(ctx, query,
		t.ID, ToNullString(t.OpportunityID), ToNullString(t.ContactID), ToNullString(t.StageID), ToNullString(t.TemplateID),
		t.Title, ToNullString(t.Description), ToNullString(t.AssigneeID), t.Status, ToNullTime(t.DueAt),
		ToNullTime(t.CompletedAt), ToNullString(t.CompletedByID), t.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*models.Task, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", taskColumns, constants.TableTask)
	t, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// List returns tasks ordered by due date, undated tasks last
func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]*models.Task, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.AssigneeID != "" {
		where = append(where, "assignee_id = ?")
		args = append(args, filter.AssigneeID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.OpportunityID != "" {
		where = append(where, "opportunity_id = ?")
		args = append(args, filter.OpportunityID)
	}
	if filter.DueBefore != nil {
		where = append(where, "due_at < ?")
		args = append(args, *filter.DueBefore)
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY due_at IS NULL, due_at ASC, created_date ASC LIMIT ? OFFSET ?",
		taskColumns, constants.TableTask, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Complete marks an open task completed
func (r *TaskRepository) Complete(ctx context.Context, id, userID string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, completed_at = ?, completed_by_id = ? WHERE id = ?", constants.TableTask)
	_, err := r.db.ExecContext(ctx, query, constants.TaskStatusCompleted, at, userID, id)
	return err
}

// Reopen clears completion
func (r *TaskRepository) Reopen(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, completed_at = NULL, completed_by_id = NULL WHERE id = ?", constants.TableTask)
	_, err := r.db.ExecContext(ctx, query, constants.TaskStatusOpen, id)
	return err
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableTask)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var opp, contact, stage, tmpl, desc, assignee, completedBy sql.NullString
	var due, completed sql.NullTime
	if err := row.Scan(&t.ID, &opp, &contact, &stage, &tmpl, &t.Title, &desc, &assignee, &t.Status,
		&due, &completed, &completedBy, &t.CreatedDate); err != nil {
		return nil, err
	}
	t.OpportunityID = FromNullString(opp)
	t.ContactID = FromNullString(contact)
	t.StageID = FromNullString(stage)
	t.TemplateID = FromNullString(tmpl)
	t.Description = FromNullString(desc)
	t.AssigneeID = FromNullString(assignee)
	t.DueAt = FromNullTime(due)
	t.CompletedAt = FromNullTime(completed)
	t.CompletedByID = FromNullString(completedBy)
	return &t, nil
}
