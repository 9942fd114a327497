package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const (
	stageColumns    = "id, pipeline_id, name, kind, position"
	templateColumns = "id, stage_id, title, description, duration_value, duration_unit, position, condition_expr, assignee_role"
)

// PipelineRepository persists pipelines, their stages and the stage task templates
type PipelineRepository struct {
	db *sql.DB
}

func NewPipelineRepository(db *sql.DB) *PipelineRepository {
	return &PipelineRepository{db: db}
}

// ==================== Pipelines ====================

func (r *PipelineRepository) CreatePipeline(ctx context.Context, p *models.Pipeline) error {
	query := fmt.Sprintf("INSERT INTO %s (id, name, is_default, created_date) VALUES (?, ?, ?, ?)", constants.TablePipeline)
	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.IsDefault, p.CreatedDate)
	return err
}

func (r *PipelineRepository) ListPipelines(ctx context.Context) ([]*models.Pipeline, error) {
	query := fmt.Sprintf("SELECT id, name, is_default, created_date FROM %s ORDER BY is_default DESC, created_date ASC", constants.TablePipeline)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pipelines := make([]*models.Pipeline, 0)
	for rows.Next() {
		var p models.Pipeline
		if err := rows.Scan(&p.ID, &p.Name, &p.IsDefault, &p.CreatedDate); err != nil {
			return nil, err
		}
		pipelines = append(pipelines, &p)
	}
	return pipelines, rows.Err()
}

func (r *PipelineRepository) FindPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	query := fmt.Sprintf("SELECT id, name, is_default, created_date FROM %s WHERE id = ?", constants.TablePipeline)
	return scanPipeline(r.db.QueryRowContext(ctx, query, id))
}

// FindDefaultPipeline returns the default pipeline, falling back to the oldest one
func (r *PipelineRepository) FindDefaultPipeline(ctx context.Context) (*models.Pipeline, error) {
	query := fmt.Sprintf("SELECT id, name, is_default, created_date FROM %s ORDER BY is_default DESC, created_date ASC LIMIT 1", constants.TablePipeline)
	return scanPipeline(r.db.QueryRowContext(ctx, query))
}

func scanPipeline(row *sql.Row) (*models.Pipeline, error) {
	var p models.Pipeline
	err := row.Scan(&p.ID, &p.Name, &p.IsDefault, &p.CreatedDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ==================== Stages ====================

func (r *PipelineRepository) CreateStage(ctx context.Context, s *models.Stage) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)", constants.TableStage, stageColumns)
	_, err := r.db.ExecContext(ctx, query, s.ID, s.PipelineID, s.Name, s.Kind, s.Position)
	return err
}

func (r *PipelineRepository) FindStage(ctx context.Context, id string) (*models.Stage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", stageColumns, constants.TableStage)
	var s models.Stage
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.PipelineID, &s.Name, &s.Kind, &s.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStages returns the stages of a pipeline in board order
func (r *PipelineRepository) ListStages(ctx context.Context, pipelineID string) ([]models.Stage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE pipeline_id = ? ORDER BY position ASC", stageColumns, constants.TableStage)
	rows, err := r.db.QueryContext(ctx, query, pipelineID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stages := make([]models.Stage, 0)
	for rows.Next() {
		var s models.Stage
		if err := rows.Scan(&s.ID, &s.PipelineID, &s.Name, &s.Kind, &s.Position); err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, rows.Err()
}

// FindStageByKind returns the first stage of the given kind in a pipeline
func (r *PipelineRepository) FindStageByKind(ctx context.Context, pipelineID, kind string) (*models.Stage, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE pipeline_id = ? AND kind = ? ORDER BY position ASC LIMIT 1", stageColumns, constants.TableStage)
	var s models.Stage
	err := r.db.QueryRowContext(ctx, query, pipelineID, kind).Scan(&s.ID, &s.PipelineID, &s.Name, &s.Kind, &s.Position)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *PipelineRepository) UpdateStage(ctx context.Context, s *models.Stage) error {
	query := fmt.Sprintf("UPDATE %s SET name = ?, kind = ?, position = ? WHERE id = ?", constants.TableStage)
	_, err := r.db.ExecContext(ctx, query, s.Name, s.Kind, s.Position, s.ID)
	return err
}

func (r *PipelineRepository) DeleteStage(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableStage)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// ==================== Task Templates ====================

func (r *PipelineRepository) CreateTemplate(ctx context.Context, t *models.TaskTemplate) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableTaskTemplate, templateColumns)
	_, err := r.db.ExecContext(ctx, query, t.ID, t.StageID, t.Title, ToNullString(t.Description),
		t.DurationValue, t.DurationUnit, t.Position, ToNullString(t.Condition), ToNullString(t.AssigneeRole))
	return err
}

func (r *PipelineRepository) FindTemplate(ctx context.Context, id string) (*models.TaskTemplate, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", templateColumns, constants.TableTaskTemplate)
	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

// ListTemplates returns a stage's templates in creation order
func (r *PipelineRepository) ListTemplates(ctx context.Context, stageID string) ([]models.TaskTemplate, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE stage_id = ? ORDER BY position ASC", templateColumns, constants.TableTaskTemplate)
	rows, err := r.db.QueryContext(ctx, query, stageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]models.TaskTemplate, 0)
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (r *PipelineRepository) UpdateTemplate(ctx context.Context, t *models.TaskTemplate) error {
	query := fmt.Sprintf(`UPDATE %s SET title = ?, description = ?, duration_value = ?, duration_unit = ?, position = ?,
		condition_expr = ?, assignee_role = ? WHERE id = ?`, constants.TableTaskTemplate)
	_, err := r.db.ExecContext(ctx, query, t.Title, ToNullString(t.Description), t.DurationValue, t.DurationUnit,
		t.Position, ToNullString(t.Condition), ToNullString(t.AssigneeRole), t.ID)
	return err
}

func (r *PipelineRepository) DeleteTemplate(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableTaskTemplate)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func scanTemplate(row rowScanner) (*models.TaskTemplate, error) {
	var t models.TaskTemplate
	var desc, cond, role sql.NullString
	if err := row.Scan(&t.ID, &t.StageID, &t.Title, &desc, &t.DurationValue, &t.DurationUnit, &t.Position, &cond, &role); err != nil {
		return nil, err
	}
	t.Description = FromNullString(desc)
	t.Condition = FromNullString(cond)
	t.AssigneeRole = FromNullString(role)
	return &t, nil
}
