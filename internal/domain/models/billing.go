package models

import "time"

// Invoice mirrors a Confido payment link
type Invoice struct {
	ID            string     `json:"id"`
	ContactID     string     `json:"contact_id"`
	OpportunityID *string    `json:"opportunity_id,omitempty"`
	ExternalID    *string    `json:"external_id,omitempty"`
	Number        string     `json:"number"`
	Description   string     `json:"description"`
	AmountCents   int64      `json:"amount_cents"`
	PaidCents     int64      `json:"paid_cents"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	PaymentURL    *string    `json:"payment_url,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedByID   string     `json:"created_by_id"`
	CreatedDate   time.Time  `json:"created_date"`
}

// Workshop is a seminar leads can register for
type Workshop struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	Location    *string   `json:"location,omitempty"`
	Capacity    int       `json:"capacity"`
	Registered  int       `json:"registered"`
	CreatedDate time.Time `json:"created_date"`
}

// Registration links a contact to a workshop
type Registration struct {
	ID          string    `json:"id"`
	WorkshopID  string    `json:"workshop_id"`
	ContactID   string    `json:"contact_id"`
	Status      string    `json:"status"`
	CreatedDate time.Time `json:"created_date"`
	Contact     *Contact  `json:"contact,omitempty"`
}
