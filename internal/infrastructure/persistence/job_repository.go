package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const jobColumns = "id, kind, opportunity_id, stage_id, task_id, run_at, status, last_error, created_date, processed_at"

// JobRepository persists deferred automation jobs
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, j *models.ScheduledJob) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableScheduledJob, jobColumns)
	_, err := r.db.ExecContext(ctx, query, j.ID, j.Kind, j.OpportunityID, j.StageID, ToNullString(j.TaskID),
		j.RunAt, j.Status, ToNullString(j.LastError), j.CreatedDate, ToNullTime(j.ProcessedAt))
	return err
}

// CancelPending cancels every pending job of an opportunity
func (r *JobRepository) CancelPending(ctx context.Context, opportunityID string) (int64, error) {
	query := fmt.Sprintf("UPDATE %s SET status = ? WHERE opportunity_id = ? AND status = ?", constants.TableScheduledJob)
	res, err := r.db.ExecContext(ctx, query, constants.JobStatusCancelled, opportunityID, constants.JobStatusPending)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res)
}

// FindDue lists pending jobs whose run time has passed, oldest first
func (r *JobRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]*models.ScheduledJob, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE status = ? AND run_at <= ? ORDER BY run_at ASC LIMIT ?", jobColumns, constants.TableScheduledJob)
	rows, err := r.db.QueryContext(ctx, query, constants.JobStatusPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]*models.ScheduledJob, 0)
	for rows.Next() {
		var j models.ScheduledJob
		var taskID, lastErr sql.NullString
		var processed sql.NullTime
		if err := rows.Scan(&j.ID, &j.Kind, &j.OpportunityID, &j.StageID, &taskID, &j.RunAt, &j.Status,
			&lastErr, &j.CreatedDate, &processed); err != nil {
			return nil, err
		}
		j.TaskID = FromNullString(taskID)
		j.LastError = FromNullString(lastErr)
		j.ProcessedAt = FromNullTime(processed)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

// Claim acquires a job with a guarded update
func (r *JobRepository) Claim(ctx context.Context, id string) (bool, error) {
	query := fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ? AND status = ?", constants.TableScheduledJob)
	res, err := r.db.ExecContext(ctx, query, constants.JobStatusRunning, id, constants.JobStatusPending)
	if err != nil {
		return false, err
	}
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Finish records the final status of a claimed job
func (r *JobRepository) Finish(ctx context.Context, id, status, errMsg string, at time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET status = ?, last_error = ?, processed_at = ? WHERE id = ?", constants.TableScheduledJob)
	_, err := r.db.ExecContext(ctx, query, status, nullIfEmpty(errMsg), at, id)
	return err
}
