package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const callLogColumns = "id, external_id, contact_id, direction, from_number, to_number, result, duration_sec, started_at, created_date"

// CallLogRepository persists synced RingCentral call records
type CallLogRepository struct {
	db *sql.DB
}

func NewCallLogRepository(db *sql.DB) *CallLogRepository {
	return &CallLogRepository{db: db}
}

// Upsert inserts a call record keyed by its RingCentral id
func (r *CallLogRepository) Upsert(ctx context.Context, c *models.CallLog) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE result = VALUES(result), duration_sec = VALUES(duration_sec)`, constants.TableCallLog, callLogColumns)
	res, err := r.db.ExecContext(ctx, query, c.ID, c.ExternalID, ToNullString(c.ContactID), c.Direction, c.FromNumber,
		c.ToNumber, c.Result, c.DurationSec, c.StartedAt, c.CreatedDate)
	if err != nil {
		return false, err
	}
	// MySQL reports 1 for an insert, 2 for an update and 0 for an unchanged row
	n, err := rowsAffected(res)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *CallLogRepository) List(ctx context.Context, limit, offset int) ([]*models.CallLog, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY started_at DESC LIMIT ? OFFSET ?", callLogColumns, constants.TableCallLog)
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]*models.CallLog, 0)
	for rows.Next() {
		var c models.CallLog
		var contact sql.NullString
		if err := rows.Scan(&c.ID, &c.ExternalID, &contact, &c.Direction, &c.FromNumber, &c.ToNumber, &c.Result,
			&c.DurationSec, &c.StartedAt, &c.CreatedDate); err != nil {
			return nil, err
		}
		c.ContactID = FromNullString(contact)
		logs = append(logs, &c)
	}
	return logs, rows.Err()
}

// LatestStart returns the start time of the newest synced call
func (r *CallLogRepository) LatestStart(ctx context.Context) (*time.Time, error) {
	query := fmt.Sprintf("SELECT MAX(started_at) FROM %s", constants.TableCallLog)
	var latest sql.NullTime
	if err := r.db.QueryRowContext(ctx, query).Scan(&latest); err != nil {
		return nil, err
	}
	return FromNullTime(latest), nil
}
