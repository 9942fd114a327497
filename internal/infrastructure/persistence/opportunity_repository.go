package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const opportunityColumns = "id, contact_id, pipeline_id, stage_id, title, practice_area, estimated_value, owner_id, source, stage_entered_at, closed_at, created_date, last_modified_date"

// OpportunityRepository persists pipeline cards
type OpportunityRepository struct {
	db *sql.DB
}

func NewOpportunityRepository(db *sql.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db}
}

func (r *OpportunityRepository) Create(ctx context.Context, o *models.Opportunity) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableOpportunity, opportunityColumns)
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.ContactID, o.PipelineID, o.StageID, o.Title, ToNullString(o.PracticeArea), o.EstimatedValue,
		ToNullString(o.OwnerID), ToNullString(o.Source), o.StageEnteredAt, ToNullTime(o.ClosedAt),
		o.CreatedDate, o.LastModifiedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert opportunity: %w", err)
	}
	return nil
}

func (r *OpportunityRepository) FindByID(ctx context.Context, id string) (*models.Opportunity, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", opportunityColumns, constants.TableOpportunity)
	o, err := scanOpportunity(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return o, err
}

func (r *OpportunityRepository) List(ctx context.Context, filter ports.OpportunityFilter) ([]*models.Opportunity, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.PipelineID != "" {
		where = append(where, "pipeline_id = ?")
		args = append(args, filter.PipelineID)
	}
	if filter.StageID != "" {
		where = append(where, "stage_id = ?")
		args = append(args, filter.StageID)
	}
	if filter.ContactID != "" {
		where = append(where, "contact_id = ?")
		args = append(args, filter.ContactID)
	}
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY stage_entered_at DESC LIMIT ? OFFSET ?",
		opportunityColumns, constants.TableOpportunity, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	opps := make([]*models.Opportunity, 0)
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}
	return opps, rows.Err()
}

// Update writes the editable fields. Stage changes go through UpdateStage.
func (r *OpportunityRepository) Update(ctx context.Context, o *models.Opportunity) error {
	query := fmt.Sprintf(`UPDATE %s SET contact_id = ?, title = ?, practice_area = ?, estimated_value = ?, owner_id = ?, source = ?,
		last_modified_date = ? WHERE id = ?`, constants.TableOpportunity)
	_, err := r.db.ExecContext(ctx, query, o.ContactID, o.Title, ToNullString(o.PracticeArea), o.EstimatedValue,
		ToNullString(o.OwnerID), ToNullString(o.Source), o.LastModifiedDate, o.ID)
	return err
}

// UpdateStage moves the opportunity and resets its stage clock
func (r *OpportunityRepository) UpdateStage(ctx context.Context, id, stageID string, enteredAt time.Time, closedAt *time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET stage_id = ?, stage_entered_at = ?, closed_at = ?, last_modified_date = ? WHERE id = ?",
		constants.TableOpportunity)
	_, err := r.db.ExecContext(ctx, query, stageID, enteredAt, ToNullTime(closedAt), enteredAt, id)
	return err
}

func (r *OpportunityRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableOpportunity)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	var o models.Opportunity
	var practice, owner, source sql.NullString
	var closed sql.NullTime
	if err := row.Scan(&o.ID, &o.ContactID, &o.PipelineID, &o.StageID, &o.Title, &practice, &o.EstimatedValue,
		&owner, &source, &o.StageEnteredAt, &closed, &o.CreatedDate, &o.LastModifiedDate); err != nil {
		return nil, err
	}
	o.PracticeArea = FromNullString(practice)
	o.OwnerID = FromNullString(owner)
	o.Source = FromNullString(source)
	o.ClosedAt = FromNullTime(closed)
	return &o, nil
}
