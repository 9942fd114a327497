package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

const contactColumns = "id, first_name, last_name, email, phone, type, source, notes, messenger_psid, instagram_id, owner_id, created_date, last_modified_date"

// ContactRepository persists leads and clients
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, c *models.Contact) error {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableContact, contactColumns)
	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.FirstName, c.LastName, ToNullString(c.Email), ToNullString(c.Phone), c.Type,
		ToNullString(c.Source), ToNullString(c.Notes), ToNullString(c.MessengerPSID), ToNullString(c.InstagramID),
		ToNullString(c.OwnerID), c.CreatedDate, c.LastModifiedDate,
	)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

func (r *ContactRepository) FindByID(ctx context.Context, id string) (*models.Contact, error) {
	return r.findBy(ctx, "id", id)
}

func (r *ContactRepository) FindByEmail(ctx context.Context, email string) (*models.Contact, error) {
	return r.findBy(ctx, "email", email)
}

func (r *ContactRepository) FindByPhone(ctx context.Context, phone string) (*models.Contact, error) {
	return r.findBy(ctx, "phone", phone)
}

// FindByChannelID resolves a Messenger PSID or Instagram scoped id
func (r *ContactRepository) FindByChannelID(ctx context.Context, channel, externalID string) (*models.Contact, error) {
	switch channel {
	case constants.ChannelMessenger:
		return r.findBy(ctx, "messenger_psid", externalID)
	case constants.ChannelInstagram:
		return r.findBy(ctx, "instagram_id", externalID)
	case constants.ChannelSMS:
		return r.findBy(ctx, "phone", externalID)
	}
	return nil, fmt.Errorf("unsupported channel: %s", channel)
}

func (r *ContactRepository) findBy(ctx context.Context, column, value string) (*models.Contact, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? ORDER BY created_date ASC LIMIT 1", contactColumns, constants.TableContact, column)
	c, err := scanContact(r.db.QueryRowContext(ctx, query, value))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// List searches by name, email or phone
func (r *ContactRepository) List(ctx context.Context, filter ports.ContactFilter) ([]*models.Contact, error) {
	where := []string{"1=1"}
	args := []interface{}{}

	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		where = append(where, "(first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR phone LIKE ?)")
		args = append(args, like, like, like, like)
	}
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, filter.Type)
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY created_date DESC LIMIT ? OFFSET ?",
		contactColumns, constants.TableContact, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := make([]*models.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

func (r *ContactRepository) Update(ctx context.Context, c *models.Contact) error {
	query := fmt.Sprintf(`UPDATE %s SET first_name = ?, last_name = ?, email = ?, phone = ?, type = ?, source = ?, notes = ?,
		messenger_psid = ?, instagram_id = ?, owner_id = ?, last_modified_date = ? WHERE id = ?`, constants.TableContact)
	_, err := r.db.ExecContext(ctx, query,
		c.FirstName, c.LastName, ToNullString(c.Email), ToNullString(c.Phone), c.Type, ToNullString(c.Source),
		ToNullString(c.Notes), ToNullString(c.MessengerPSID), ToNullString(c.InstagramID), ToNullString(c.OwnerID),
		c.LastModifiedDate, c.ID,
	)
	return err
}

func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", constants.TableContact)
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var c models.Contact
	var email, phone, source, notes, psid, igID, owner sql.NullString
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &email, &phone, &c.Type, &source, &notes,
		&psid, &igID, &owner, &c.CreatedDate, &c.LastModifiedDate); err != nil {
		return nil, err
	}
	c.Email = FromNullString(email)
	c.Phone = FromNullString(phone)
	c.Source = FromNullString(source)
	c.Notes = FromNullString(notes)
	c.MessengerPSID = FromNullString(psid)
	c.InstagramID = FromNullString(igID)
	c.OwnerID = FromNullString(owner)
	return &c, nil
}
