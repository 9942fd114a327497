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
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const (
	conversationColumns = "id, contact_id, channel, page_id, last_message_at, last_preview, unread_count, created_date"
	messageColumns      = "id, conversation_id, direction, body, external_id, status, error, sent_by_id, created_at"
	previewLength       = 140
)

// ConversationRepository persists the unified inbox
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindOrCreate returns the single conversation for (contact, channel)
func (r *ConversationRepository) FindOrCreate(ctx context.Context, contactID, channel string, pageID *string) (*models.Conversation, error) {
	existing, err := r.findByContact(ctx, contactID, channel)
	if err != nil || existing != nil {
		return existing, err
	}

	conv := &models.Conversation{
		ID:          utils.GenerateID(),
		ContactID:   contactID,
		Channel:     channel,
		PageID:      pageID,
		CreatedDate: time.Now().UTC(),
	}
	query := fmt.Sprintf("INSERT INTO %s (id, contact_id, channel, page_id, unread_count, created_date) VALUES (?, ?, ?, ?, 0, ?)",
		constants.TableConversation)
	if _, err := r.db.ExecContext(ctx, query, conv.ID, contactID, channel, ToNullString(pageID), conv.CreatedDate); err != nil {
		// Lost the race to a concurrent webhook delivery
		if IsDuplicateKey(err) {
			return r.findByContact(ctx, contactID, channel)
		}
		return nil, err
	}
	return conv, nil
}

func (r *ConversationRepository) findByContact(ctx context.Context, contactID, channel string) (*models.Conversation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE contact_id = ? AND channel = ?", conversationColumns, constants.TableConversation)
	c, err := scanConversation(r.db.QueryRowContext(ctx, query, contactID, channel))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", conversationColumns, constants.TableConversation)
	c, err := scanConversation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// List returns conversations with the most recent activity first
func (r *ConversationRepository) List(ctx context.Context, filter ports.ConversationFilter) ([]*models.Conversation, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Channel != "" {
		where = append(where, "channel = ?")
		args = append(args, filter.Channel)
	}
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY last_message_at IS NULL, last_message_at DESC LIMIT ? OFFSET ?",
		conversationColumns, constants.TableConversation, strings.Join(where, " AND "))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	convs := make([]*models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// InsertMessage stores a message; duplicate external ids are ignored
func (r *ConversationRepository) InsertMessage(ctx context.Context, m *models.Message) (bool, error) {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", constants.TableMessage, messageColumns)
	_, err := r.db.ExecContext(ctx, query, m.ID, m.ConversationID, m.Direction, m.Body, ToNullString(m.ExternalID),
		m.Status, ToNullString(m.Error), ToNullString(m.SentByID), m.CreatedAt)
	if err != nil {
		if IsDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListMessages returns the latest messages of a conversation in chronological order
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*models.Message, error) {
	query := fmt.Sprintf("SELECT %s FROM (SELECT %s FROM %s WHERE conversation_id = ? ORDER BY created_at DESC LIMIT ?) recent ORDER BY created_at ASC",
		messageColumns, messageColumns, constants.TableMessage)
	rows, err := r.db.QueryContext(ctx, query, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := make([]*models.Message, 0)
	for rows.Next() {
		var m models.Message
		var extID, errMsg, sentBy sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Direction, &m.Body, &extID, &m.Status, &errMsg, &sentBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.ExternalID = FromNullString(extID)
		m.Error = FromNullString(errMsg)
		m.SentByID = FromNullString(sentBy)
		msgs = append(msgs, &m)
	}
	return msgs, rows.Err()
}

// TouchLastMessage updates the inbox preview; inbound messages bump the unread count
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, conversationID string, at time.Time, preview string, inbound bool) error {
	if len([]rune(preview)) > previewLength {
		preview = string([]rune(preview)[:previewLength])
	}
	unread := "unread_count"
	if inbound {
		unread = "unread_count + 1"
	}
	query := fmt.Sprintf("UPDATE %s SET last_message_at = ?, last_preview = ?, unread_count = %s WHERE id = ?",
		constants.TableConversation, unread)
	_, err := r.db.ExecContext(ctx, query, at, preview, conversationID)
	return err
}

func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID string) error {
	query := fmt.Sprintf("UPDATE %s SET unread_count = 0 WHERE id = ?", constants.TableConversation)
	_, err := r.db.ExecContext(ctx, query, conversationID)
	return err
}

func scanConversation(row rowScanner) (*models.Conversation, error) {
	var c models.Conversation
	var pageID, preview sql.NullString
	var last sql.NullTime
	if err := row.Scan(&c.ID, &c.ContactID, &c.Channel, &pageID, &last, &preview, &c.UnreadCount, &c.CreatedDate); err != nil {
		return nil, err
	}
	c.PageID = FromNullString(pageID)
	c.LastMessageAt = FromNullTime(last)
	c.LastPreview = FromNullString(preview)
	return &c, nil
}
