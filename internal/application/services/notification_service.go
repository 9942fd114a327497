package services

import (
	"context"
	"fmt"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// Email types understood by the automation webhook
const (
	EmailTypeVerification = "verification"
	EmailTypeInvite       = "invite"
	EmailTypeInvoice      = "invoice"
	EmailTypeIntakeAlert  = "intake_alert"
)

// EventQueue persists events for the outbox worker
type EventQueue interface {
	Enqueue(ctx context.Context, eventType events.EventType, payload interface{}) error
}

// NotificationService queues transactional emails. Nothing is sent inline;
// the outbox worker hands each email to the relay.
type NotificationService struct {
	queue     EventQueue
	users     ports.UserRepository
	publicURL string
}

var _ ports.Notifier = (*NotificationService)(nil)

func NewNotificationService(queue EventQueue, users ports.UserRepository, publicURL string) *NotificationService {
	return &NotificationService{queue: queue, users: users, publicURL: publicURL}
}

func (s *NotificationService) SendVerification(ctx context.Context, to, name, link string) error {
	return s.enqueue(ctx, models.EmailMessage{
		Type:    EmailTypeVerification,
		To:      to,
		Subject: "Verify your email address",
		Data:    map[string]interface{}{"name": name, "link": link},
	})
}

func (s *NotificationService) SendInvite(ctx context.Context, to, name, temporaryPassword, loginURL string) error {
	return s.enqueue(ctx, models.EmailMessage{
		Type:    EmailTypeInvite,
		To:      to,
		Subject: "Your CRM account",
		Data: map[string]interface{}{
			"name":               name,
			"temporary_password": temporaryPassword,
			"login_url":          loginURL,
		},
	})
}

func (s *NotificationService) SendInvoice(ctx context.Context, to, name, invoiceNumber, paymentURL string, amountCents int64) error {
	return s.enqueue(ctx, models.EmailMessage{
		Type:    EmailTypeInvoice,
		To:      to,
		Subject: fmt.Sprintf("Invoice %s", invoiceNumber),
		Data: map[string]interface{}{
			"name":           name,
			"invoice_number": invoiceNumber,
			"payment_url":    paymentURL,
			"amount_cents":   amountCents,
		},
	})
}

// SendIntakeAlert emails every active administrator
func (s *NotificationService) SendIntakeAlert(ctx context.Context, contactName, contactID, opportunityID string) error {
	users, err := s.users.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}
	link := fmt.Sprintf("%s/opportunities/%s", s.publicURL, opportunityID)
	for _, u := range users {
		if u.Role != constants.RoleAdmin || u.IsSuspended() || u.ID == constants.SystemUserID {
			continue
		}
		err := s.enqueue(ctx, models.EmailMessage{
			Type:    EmailTypeIntakeAlert,
			To:      u.Email,
			Subject: fmt.Sprintf("New intake: %s", contactName),
			Data: map[string]interface{}{
				"contact_name":   contactName,
				"contact_id":     contactID,
				"opportunity_id": opportunityID,
				"link":           link,
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *NotificationService) enqueue(ctx context.Context, msg models.EmailMessage) error {
	if msg.To == "" {
		return fmt.Errorf("email %s has no recipient", msg.Type)
	}
	return s.queue.Enqueue(ctx, events.EmailRequested, msg)
}
