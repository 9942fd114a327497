package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/events"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/integrations/confido"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/signature"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const (
	providerConfido = "confido"
	defaultCurrency = "USD"
)

// InvoiceService bills clients through Confido payment links
type InvoiceService struct {
	repo          ports.InvoiceRepository
	contacts      ports.ContactRepository
	confido       ports.Confido
	notifier      ports.Notifier
	events        ports.EventPublisher
	webhookSecret string
	log           zerolog.Logger
	now           func() time.Time
}

// NewInvoiceService builds the service. client is nil when Confido is not configured.
func NewInvoiceService(repo ports.InvoiceRepository, contacts ports.ContactRepository, client ports.Confido, notifier ports.Notifier, bus ports.EventPublisher, webhookSecret string) *InvoiceService {
	return &InvoiceService{
		repo:          repo,
		contacts:      contacts,
		confido:       client,
		notifier:      notifier,
		events:        bus,
		webhookSecret: webhookSecret,
		log:           logging.For("invoices"),
		now:           time.Now,
	}
}

// InvoiceInput is the form for a new invoice
type InvoiceInput struct {
	ContactID     string     `json:"contactId"`
	OpportunityID *string    `json:"opportunityId"`
	Description   string     `json:"description"`
	AmountCents   int64      `json:"amountCents"`
	DueDate       *time.Time `json:"dueDate"`
}

// Create registers a payment link with Confido and stores the local invoice as a draft
func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput, actorID string) (*models.Invoice, error) {
	if s.confido == nil {
		return nil, errors.NewValidationError("confido", "Confido is not configured")
	}
	if in.AmountCents <= 0 {
		return nil, errors.NewValidationError("amountCents", "Amount must be greater than zero")
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, errors.NewValidationError("description", "Description is required")
	}
	contact, err := s.findContact(ctx, in.ContactID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	suffix, err := utils.RandomHex(3)
	if err != nil {
		return nil, err
	}
	inv := &models.Invoice{
		ID:            utils.GenerateID(),
		ContactID:     contact.ID,
		OpportunityID: in.OpportunityID,
		Number:        fmt.Sprintf("INV-%s-%s", now.Format("20060102"), strings.ToUpper(suffix)),
		Description:   description,
		AmountCents:   in.AmountCents,
		Currency:      defaultCurrency,
		Status:        constants.InvoiceStatusDraft,
		DueDate:       in.DueDate,
		CreatedByID:   actorID,
		CreatedDate:   now,
	}

	link, err := s.confido.CreatePaymentLink(ctx, ports.PaymentLinkInput{
		ClientName:  contact.FullName(),
		ClientEmail: utils.Deref(contact.Email),
		AmountCents: inv.AmountCents,
		Description: inv.Description,
		Reference:   inv.ID,
		DueDate:     inv.DueDate,
	})
	if err != nil {
		return nil, err
	}
	inv.ExternalID = utils.StringPtr(link.ID)
	inv.PaymentURL = utils.StringPtr(link.URL)

	if err := s.repo.Create(ctx, inv); err != nil {
		s.log.Error().Err(err).Str("payment_link_id", link.ID).Msg("❌ Payment link created but invoice not stored")
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	s.log.Info().Str(logging.INVOICE_ID, inv.ID).Int64("amount_cents", inv.AmountCents).Msg("🧾 Invoice created")
	return inv, nil
}

func (s *InvoiceService) List(ctx context.Context, filter ports.InvoiceFilter) ([]*models.Invoice, error) {
	filter.Limit = utils.ClampLimit(filter.Limit, constants.DefaultLimit, constants.DefaultMaxLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

// Get loads an invoice and refreshes an open one from Confido. A failed refresh returns the stored copy.
func (s *InvoiceService) Get(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.confido == nil || inv.ExternalID == nil || isSettled(inv.Status) {
		return inv, nil
	}
	link, err := s.confido.GetPaymentLink(ctx, *inv.ExternalID)
	if err != nil {
		s.log.Warn().Err(err).Str(logging.INVOICE_ID, id).Msg("⚠️ Invoice refresh failed")
		return inv, nil
	}

	switch {
	case strings.EqualFold(link.Status, "paid") || (link.AmountCents > 0 && link.PaidCents >= link.AmountCents):
		paidAt := s.now().UTC()
		if link.PaidAt != nil {
			paidAt = link.PaidAt.UTC()
		}
		if err := s.markPaid(ctx, inv, link.PaidCents, paidAt); err != nil {
			return nil, err
		}
	case strings.EqualFold(link.Status, "void") || strings.EqualFold(link.Status, "cancelled"):
		if err := s.repo.Update(ctx, inv.ID, map[string]interface{}{constants.FieldStatus: constants.InvoiceStatusVoid}); err != nil {
			return nil, err
		}
		inv.Status = constants.InvoiceStatusVoid
	case link.PaidCents != inv.PaidCents:
		if err := s.repo.Update(ctx, inv.ID, map[string]interface{}{constants.FieldPaidCents: link.PaidCents}); err != nil {
			return nil, err
		}
		inv.PaidCents = link.PaidCents
	}
	return inv, nil
}

// Send emails the payment link to the contact and marks the invoice sent
func (s *InvoiceService) Send(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if isSettled(inv.Status) {
		return nil, errors.NewValidationError("status", fmt.Sprintf("Invoice is %s", inv.Status))
	}
	if inv.PaymentURL == nil {
		return nil, errors.NewValidationError("payment_url", "Invoice has no payment link")
	}
	contact, err := s.findContact(ctx, inv.ContactID)
	if err != nil {
		return nil, err
	}
	if utils.Deref(contact.Email) == "" {
		return nil, errors.NewValidationError("email", "Contact has no email address")
	}

	if err := s.notifier.SendInvoice(ctx, *contact.Email, contact.FullName(), inv.Number, *inv.PaymentURL, inv.AmountCents); err != nil {
		return nil, fmt.Errorf("failed to queue invoice email: %w", err)
	}
	now := s.now().UTC()
	err = s.repo.Update(ctx, inv.ID, map[string]interface{}{
		constants.FieldStatus: constants.InvoiceStatusSent,
		constants.FieldSentAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}
	inv.Status = constants.InvoiceStatusSent
	inv.SentAt = &now
	s.log.Info().Str(logging.INVOICE_ID, inv.ID).Msg("📨 Invoice sent")
	return inv, nil
}

// Void cancels the payment link. Paid invoices cannot be voided.
func (s *InvoiceService) Void(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	switch inv.Status {
	case constants.InvoiceStatusVoid:
		return inv, nil
	case constants.InvoiceStatusPaid:
		return nil, errors.NewValidationError("status", "A paid invoice cannot be voided")
	}
	if s.confido != nil && inv.ExternalID != nil {
		if err := s.confido.VoidPaymentLink(ctx, *inv.ExternalID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Update(ctx, inv.ID, map[string]interface{}{constants.FieldStatus: constants.InvoiceStatusVoid}); err != nil {
		return nil, fmt.Errorf("failed to void invoice: %w", err)
	}
	inv.Status = constants.InvoiceStatusVoid
	return inv, nil
}

// HandleWebhook applies a Confido payment notification. Unknown invoices and non-payment
// events are acknowledged and ignored.
func (s *InvoiceService) HandleWebhook(ctx context.Context, body []byte, sigHeader string) error {
	if s.webhookSecret != "" && !signature.Verify(s.webhookSecret, body, sigHeader) {
		metrics.WebhookEvents.WithLabelValues(providerConfido, metrics.ResultRejected).Inc()
		return errors.NewUnauthorizedError("invalid signature")
	}
	ev, err := confido.ParseWebhook(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(providerConfido, metrics.ResultRejected).Inc()
		return errors.NewValidationError("body", "Malformed webhook payload")
	}
	if !ev.IsPayment() {
		metrics.WebhookEvents.WithLabelValues(providerConfido, metrics.ResultIgnored).Inc()
		return nil
	}

	var inv *models.Invoice
	if ev.Data.PaymentLinkID != "" {
		if inv, err = s.repo.FindByExternalID(ctx, ev.Data.PaymentLinkID); err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
	}
	if inv == nil && ev.Data.Reference != "" {
		if inv, err = s.repo.FindByID(ctx, ev.Data.Reference); err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
	}
	if inv == nil {
		s.log.Warn().Str("payment_link_id", ev.Data.PaymentLinkID).Msg("⚠️ Payment for unknown invoice ignored")
		metrics.WebhookEvents.WithLabelValues(providerConfido, metrics.ResultIgnored).Inc()
		return nil
	}
	if inv.Status == constants.InvoiceStatusPaid {
		metrics.WebhookEvents.WithLabelValues(providerConfido, metrics.ResultIgnored).Inc()
		return nil
	}

	paidAt := s.now().UTC()
	if ev.Data.PaidAt != nil {
		paidAt = ev.Data.PaidAt.UTC()
	}
	if err := s.markPaid(ctx, inv, ev.Data.Amount, paidAt); err != nil {
		metrics.WebhookEvents.WithLabelValues(providerConfido, metrics.ResultFailure).Inc()
		return err
	}
	metrics.WebhookEvents.WithLabelValues(providerConfido, metrics.ResultSuccess).Inc()
	return nil
}

func (s *InvoiceService) markPaid(ctx context.Context, inv *models.Invoice, amount int64, paidAt time.Time) error {
	if amount <= 0 {
		amount = inv.AmountCents
	}
	err := s.repo.Update(ctx, inv.ID, map[string]interface{}{
		constants.FieldStatus:    constants.InvoiceStatusPaid,
		constants.FieldPaidCents: amount,
		constants.FieldPaidAt:    paidAt,
	})
	if err != nil {
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	inv.Status = constants.InvoiceStatusPaid
	inv.PaidCents = amount
	inv.PaidAt = &paidAt

	s.log.Info().Str(logging.INVOICE_ID, inv.ID).Int64("paid_cents", amount).Msg("💰 Invoice paid")
	publishQuietly(ctx, s.events, events.InvoicePaid, events.InvoicePaidPayload{
		InvoiceID:   inv.ID,
		ContactID:   inv.ContactID,
		AmountCents: amount,
	})
	return nil
}

func (s *InvoiceService) find(ctx context.Context, id string) (*models.Invoice, error) {
	inv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	if inv == nil {
		return nil, errors.NewNotFoundError("invoice", id)
	}
	return inv, nil
}

func (s *InvoiceService) findContact(ctx context.Context, id string) (*models.Contact, error) {
	if id == "" {
		return nil, errors.NewValidationError("contactId", "Contact is required")
	}
	c, err := s.contacts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if c == nil {
		return nil, errors.NewNotFoundError("contact", id)
	}
	return c, nil
}

func isSettled(status string) bool {
	return status == constants.InvoiceStatusPaid || status == constants.InvoiceStatusVoid
}
