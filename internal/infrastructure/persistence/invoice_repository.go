package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const invoiceColumns = "id, contact_id, opportunity_id, external_id, number, description, amount_cents, paid_cents, currency, status, payment_url, due_date, sent_at, paid_at, created_by_id, created_date"

// InvoiceRepository persists invoices mirrored from Confido
type InvoiceRepository struct {
	db *sql.DB
}

func NewInvoiceRepository(db *sql.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *models.Invoice) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableInvoice, invoiceColumns)
	_, err := r.db.ExecContext(ctx, query,
		inv.ID, inv.ContactID, ToNullString(inv.OpportunityID), ToNullString(inv.ExternalID), inv.Number, inv.Description,
		inv.AmountCents, inv.PaidCents, inv.Currency, inv.Status, ToNullString(inv.PaymentURL), ToNullTime(inv.DueDate),
		ToNullTime(inv.SentAt), ToNullTime(inv.PaidAt), inv.CreatedByID, inv.CreatedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id string) (*models.Invoice, error) {
	return r.findBy(ctx, "id", id)
}

// FindByExternalID resolves a Confido payment link id
func (r *InvoiceRepository) FindByExternalID(ctx context.Context, externalID string) (*models.Invoice, error) {
	return r.findBy(ctx, "external_id", externalID)
}

func (r *InvoiceRepository) findBy(ctx context.Context, column, value string) (*models.Invoice, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1", invoiceColumns, constants.TableInvoice, column)
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

func (r *InvoiceRepository) List(ctx context.Context, filter ports.InvoiceFilter) ([]*models.Invoice, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ContactID != "" {
		where = append(where, "contact_id = ?")
		args = append(args, filter.ContactID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_date DESC LIMIT ? OFFSET ?",
		invoiceColumns, constants.TableInvoice, strings.Join(where, " AND "))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]*models.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Update sets the given columns
func (r *InvoiceRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setClauses := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)+1)
	for _, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", k))
		args = append(args, updates[k])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", constants.TableInvoice, strings.Join(setClauses, ", "))
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func scanInvoice(row rowScanner) (*models.Invoice, error) {
	var inv models.Invoice
	var opp, ext, url sql.NullString
	var due, sent, paid sql.NullTime
	if err := row.Scan(&inv.ID, &inv.ContactID, &opp, &ext, &inv.Number, &inv.Description, &inv.AmountCents,
		&inv.PaidCents, &inv.Currency, &inv.Status, &url, &due, &sent, &paid, &inv.CreatedByID, &inv.CreatedDate); err != nil {
		return nil, err
	}
	inv.OpportunityID = FromNullString(opp)
	inv.ExternalID = FromNullString(ext)
	inv.PaymentURL = FromNullString(url)
	inv.DueDate = FromNullTime(due)
	inv.SentAt = FromNullTime(sent)
	inv.PaidAt = FromNullTime(paid)
	return &inv, nil
}
