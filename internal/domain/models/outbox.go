package models

import "time"

// OutboxEvent is a queued side effect delivered by the outbox worker
type OutboxEvent struct {
	ID            string     `json:"id"`
	EventType     string     `json:"event_type"`
	Payload       string     `json:"payload"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	CreatedDate   time.Time  `json:"created_date"`
	ProcessedDate *time.Time `json:"processed_date,omitempty"`
}

// Outbox status values
const (
	OutboxStatusPending   = "pending"
	OutboxStatusProcessed = "processed"
	OutboxStatusFailed    = "failed"
)

// EmailMessage is the payload relayed to the automation webhook
type EmailMessage struct {
	Type    string                 `json:"type"`
	To      string                 `json:"to"`
	Subject string                 `json:"subject"`
	Data    map[string]interface{} `json:"data,omitempty"`
}
