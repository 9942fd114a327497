package models

import "time"

// Conversation groups messages with one contact on one channel
type Conversation struct {
	ID            string     `json:"id"`
	ContactID     string     `json:"contact_id"`
	Channel       string     `json:"channel"`
	PageID        *string    `json:"page_id,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	LastPreview   *string    `json:"last_preview,omitempty"`
	UnreadCount   int        `json:"unread_count"`
	CreatedDate   time.Time  `json:"created_date"`
	Contact       *Contact   `json:"contact,omitempty"`
}

// Message is one inbound or outbound message
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Direction      string    `json:"direction"`
	Body           string    `json:"body"`
	ExternalID     *string   `json:"external_id,omitempty"`
	Status         string    `json:"status"`
	Error          *string   `json:"error,omitempty"`
	SentByID       *string   `json:"sent_by_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MetaPage is a connected Facebook page (and its linked Instagram account)
type MetaPage struct {
	ID                 string    `json:"id"`
	PageID             string    `json:"page_id"`
	Name               string    `json:"name"`
	InstagramAccountID *string   `json:"instagram_account_id,omitempty"`
	EncryptedToken     string    `json:"-"`
	ConnectedByID      string    `json:"connected_by_id"`
	Subscribed         bool      `json:"subscribed"`
	CreatedDate        time.Time `json:"created_date"`
}

// CallLog is a RingCentral call record
type CallLog struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	ContactID   *string   `json:"contact_id,omitempty"`
	Direction   string    `json:"direction"`
	FromNumber  string    `json:"from_number"`
	ToNumber    string    `json:"to_number"`
	Result      string    `json:"result"`
	DurationSec int       `json:"duration_sec"`
	StartedAt   time.Time `json:"started_at"`
	CreatedDate time.Time `json:"created_date"`
}
