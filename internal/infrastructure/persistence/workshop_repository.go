package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const registrationColumns = "id, workshop_id, contact_id, status, created_date"

// WorkshopRepository persists workshops and registrations
type WorkshopRepository struct {
	db *sql.DB
	tm *TransactionManager
}

func NewWorkshopRepository(db *sql.DB) *WorkshopRepository {
	return &WorkshopRepository{db: db, tm: NewTransactionManager(db)}
}

// Registered counts exclude cancelled registrations
func workshopSelect() string {
	return fmt.Sprintf(`SELECT w.id, w.title, w.description, w.starts_at, w.location, w.capacity, w.created_date,
		(SELECT COUNT(*) FROM %s r WHERE r.workshop_id = w.id AND r.status <> '%s') AS registered
		FROM %s w`, constants.TableRegistration, constants.RegistrationCancelled, constants.TableWorkshop)
}

func (r *WorkshopRepository) Create(ctx context.Context, w *models.Workshop) error {
	query := fmt.Sprintf("INSERT INTO %s (id, title, description, starts_at, location, capacity, created_date) VALUES (?, ?, ?, ?, ?, ?, ?)",
		constants.TableWorkshop)
	_, err := r.db.ExecContext(ctx, query, w.ID, w.Title, ToNullString(w.Description), w.StartsAt, ToNullString(w.Location), w.Capacity, w.CreatedDate)
	return err
}

func (r *WorkshopRepository) FindByID(ctx context.Context, id string) (*models.Workshop, error) {
	query := workshopSelect() + " WHERE w.id = ?"
	w, err := scanWorkshop(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return w, err
}

// List returns workshops by start time; upcomingOnly hides past ones
func (r *WorkshopRepository) List(ctx context.Context, upcomingOnly bool, now time.Time) ([]*models.Workshop, error) {
	query := workshopSelect()
	args := []interface{}{}
	if upcomingOnly {
		query += " WHERE w.starts_at >= ?"
		args = append(args, now)
	}
	query += " ORDER BY w.starts_at ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workshops := make([]*models.Workshop, 0)
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, err
		}
		workshops = append(workshops, w)
	}
	return workshops, rows.Err()
}

func (r *WorkshopRepository) Update(ctx context.Context, w *models.Workshop) error {
	query := fmt.Sprintf("UPDATE %s SET title = ?, description = ?, starts_at = ?, location = ?, capacity = ? WHERE id = ?", constants.TableWorkshop)
	_, err := r.db.ExecContext(ctx, query, w.Title, ToNullString(w.Description), w.StartsAt, ToNullString(w.Location), w.Capacity, w.ID)
	return err
}

func (r *WorkshopRepository) Delete(ctx context.Context, id string) error {
	return r.tm.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE workshop_id = ?", constants.TableRegistration), id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableWorkshop), id)
		return err
	})
}

// Register locks the workshop row, checks capacity and inserts the registration.
// A capacity of zero means unlimited.
func (r *WorkshopRepository) Register(ctx context.Context, reg *models.Registration) error {
	return r.tm.WithTransaction(ctx, func(tx *sql.Tx) error {
		var capacity int
		lockQuery := fmt.Sprintf("SELECT capacity FROM %s WHERE id = ? FOR UPDATE", constants.TableWorkshop)
		if err := tx.QueryRowContext(ctx, lockQuery, reg.WorkshopID).Scan(&capacity); err != nil {
			return err
		}

		if capacity > 0 {
			var count int
			countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE workshop_id = ? AND status <> ?", constants.TableRegistration)
			if err := tx.QueryRowContext(ctx, countQuery, reg.WorkshopID, constants.RegistrationCancelled).Scan(&count); err != nil {
				return err
			}
			if count >= capacity {
				return ports.ErrWorkshopFull
			}
		}

		insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)", constants.TableRegistration, registrationColumns)
		_, err := tx.ExecContext(ctx, insert, reg.ID, reg.WorkshopID, reg.ContactID, reg.Status, reg.CreatedDate)
		return err
	})
}

func (r *WorkshopRepository) FindRegistration(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", registrationColumns, constants.TableRegistration)
	return scanRegistrationRow(r.db.QueryRowContext(ctx, query, id))
}

func (r *WorkshopRepository) FindRegistrationByContact(ctx context.Context, workshopID, contactID string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE workshop_id = ? AND contact_id = ?", registrationColumns, constants.TableRegistration)
	return scanRegistrationRow(r.db.QueryRowContext(ctx, query, workshopID, contactID))
}

func (r *WorkshopRepository) ListRegistrations(ctx context.Context, workshopID string) ([]*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE workshop_id = ? ORDER BY created_date ASC", registrationColumns, constants.TableRegistration)
	rows, err := r.db.QueryContext(ctx, query, workshopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	regs := make([]*models.Registration, 0)
	for rows.Next() {
		var reg models.Registration
		if err := rows.Scan(&reg.ID, &reg.WorkshopID, &reg.ContactID, &reg.Status, &reg.CreatedDate); err != nil {
			return nil, err
		}
		regs = append(regs, &reg)
	}
	return regs, rows.Err()
}

func (r *WorkshopRepository) UpdateRegistrationStatus(ctx context.Context, id, status string) error {
	query := fmt.Sprintf("UPDATE %s SET status = ? WHERE id = ?", constants.TableRegistration)
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func scanWorkshop(row rowScanner) (*models.Workshop, error) {
	var w models.Workshop
	var desc, loc sql.NullString
	if err := row.Scan(&w.ID, &w.Title, &desc, &w.StartsAt, &loc, &w.Capacity, &w.CreatedDate, &w.Registered); err != nil {
		return nil, err
	}
	w.Description = FromNullString(desc)
	w.Location = FromNullString(loc)
	return &w, nil
}

func scanRegistrationRow(row *sql.Row) (*models.Registration, error) {
	var reg models.Registration
	err := row.Scan(&reg.ID, &reg.WorkshopID, &reg.ContactID, &reg.Status, &reg.CreatedDate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}
