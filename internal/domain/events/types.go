package events

// EventType defines the type of event in the system
type EventType string

const (
	// Domain events, fanned out to RabbitMQ when configured
	ContactCreated        EventType = "contact.created"
	OpportunityCreated    EventType = "opportunity.created"
	OpportunityStageMoved EventType = "opportunity.stage_changed"
	MessageReceived       EventType = "message.received"
	InvoicePaid           EventType = "invoice.paid"

	// Email events, delivered through the outbox to the relay webhook
	EmailRequested EventType = "email.requested"

	// System Events
	SystemStartup EventType = "system.startup"
)

// DomainEvents lists the events forwarded to the message broker
var DomainEvents = []EventType{
	ContactCreated,
	OpportunityCreated,
	OpportunityStageMoved,
	MessageReceived,
	InvoicePaid,
}

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// StageChangedPayload is published when an opportunity changes stage
type StageChangedPayload struct {
	OpportunityID string `json:"opportunity_id"`
	PipelineID    string `json:"pipeline_id"`
	FromStageID   string `json:"from_stage_id"`
	ToStageID     string `json:"to_stage_id"`
	ActorID       string `json:"actor_id"`
}

// ContactCreatedPayload is published when a contact is created
type ContactCreatedPayload struct {
	ContactID string `json:"contact_id"`
	Source    string `json:"source"`
}

// MessageReceivedPayload is published for every stored inbound message
type MessageReceivedPayload struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	ContactID      string `json:"contact_id"`
	Channel        string `json:"channel"`
}

// InvoicePaidPayload is published when Confido reports a payment
type InvoicePaidPayload struct {
	InvoiceID   string `json:"invoice_id"`
	ContactID   string `json:"contact_id"`
	AmountCents int64  `json:"amount_cents"`
}
