package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/config"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/infrastructure/integrations/ringcentral"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const (
	providerRingCentral = "ringcentral"
	callLogLookback     = 7 * 24 * time.Hour
)

// MessageSender sends an outbound message on an existing conversation
type MessageSender interface {
	SendMessage(ctx context.Context, conversationID, text, actorID string) (*models.Message, error)
}

// RingCentralService covers SMS, click-to-call, call-log sync and the SMS webhook
type RingCentralService struct {
	rc            ports.RingCentral
	contacts      ports.ContactRepository
	resolver      ContactResolver
	conversations ports.ConversationRepository
	sender        MessageSender
	ingester      InboundIngester
	calls         ports.CallLogRepository
	cfg           config.RingCentralConfig
	log           zerolog.Logger
	now           func() time.Time
}

// RingCentralDeps groups the collaborators of RingCentralService. RC is nil when not configured.
type RingCentralDeps struct {
	RC            ports.RingCentral
	Contacts      ports.ContactRepository
	Resolver      ContactResolver
	Conversations ports.ConversationRepository
	Sender        MessageSender
	Ingester      InboundIngester
	Calls         ports.CallLogRepository
	Config        config.RingCentralConfig
}

func NewRingCentralService(deps RingCentralDeps) *RingCentralService {
	return &RingCentralService{
		rc:            deps.RC,
		contacts:      deps.Contacts,
		resolver:      deps.Resolver,
		conversations: deps.Conversations,
		sender:        deps.Sender,
		ingester:      deps.Ingester,
		calls:         deps.Calls,
		cfg:           deps.Config,
		log:           logging.For("ringcentral"),
		now:           time.Now,
	}
}

// Enabled reports whether RingCentral credentials are configured
func (s *RingCentralService) Enabled() bool {
	return s.rc != nil
}

// SMSInput addresses a text by contact or raw number
type SMSInput struct {
	ContactID string `json:"contactId"`
	To        string `json:"to"`
	Text      string `json:"text"`
}

// SendSMS texts a contact through its sms conversation, creating both when needed
func (s *RingCentralService) SendSMS(ctx context.Context, in SMSInput, actorID string) (*models.Message, error) {
	if s.rc == nil {
		return nil, errors.NewValidationError("ringcentral", "RingCentral is not configured")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, errors.NewValidationError("text", "Message text is required")
	}
	contact, err := s.resolveContact(ctx, in.ContactID, in.To)
	if err != nil {
		return nil, err
	}
	if utils.Deref(contact.Phone) == "" {
		return nil, errors.NewValidationError("to", "Contact has no phone number")
	}
	conv, err := s.conversations.FindOrCreate(ctx, contact.ID, constants.ChannelSMS, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}
	return s.sender.SendMessage(ctx, conv.ID, in.Text, actorID)
}

// CallInput addresses a RingOut call
type CallInput struct {
	ContactID string `json:"contactId"`
	To        string `json:"to"`
}

// Call starts a RingOut from the firm's number to the contact and returns the call session id
func (s *RingCentralService) Call(ctx context.Context, in CallInput) (string, error) {
	if s.rc == nil {
		return "", errors.NewValidationError("ringcentral", "RingCentral is not configured")
	}
	to := utils.NormalizePhone(in.To)
	if in.ContactID != "" {
		contact, err := s.contacts.FindByID(ctx, in.ContactID)
		if err != nil {
			return "", fmt.Errorf("failed to load contact: %w", err)
		}
		if contact == nil {
			return "", errors.NewNotFoundError("contact", in.ContactID)
		}
		to = utils.Deref(contact.Phone)
	}
	if to == "" {
		return "", errors.NewValidationError("to", "A phone number is required")
	}
	id, err := s.rc.RingOut(ctx, s.cfg.FromNumber, to)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("call_id", id).Msg("📞 RingOut started")
	return id, nil
}

func (s *RingCentralService) ListCallLogs(ctx context.Context, limit, offset int) ([]*models.CallLog, error) {
	limit = utils.ClampLimit(limit, constants.DefaultLimit, constants.DefaultMaxLimit)
	if offset < 0 {
		offset = 0
	}
	return s.calls.List(ctx, limit, offset)
}

// SyncCallLogs pulls call records since the newest stored call (or the last 7 days)
// and links each to a contact by phone number. It returns the number of new records.
func (s *RingCentralService) SyncCallLogs(ctx context.Context) (int, error) {
	if s.rc == nil {
		return 0, nil
	}
	since := s.now().Add(-callLogLookback)
	latest, err := s.calls.LatestStart(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read sync cursor: %w", err)
	}
	if latest != nil {
		since = *latest
	}

	records, err := s.rc.CallLog(ctx, since)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, rec := range records {
		entry := &models.CallLog{
			ID:          utils.GenerateID(),
			ExternalID:  rec.ID,
			Direction:   strings.ToLower(rec.Direction),
			FromNumber:  utils.NormalizePhone(rec.From),
			ToNumber:    utils.NormalizePhone(rec.To),
			Result:      rec.Result,
			DurationSec: rec.DurationSec,
			StartedAt:   rec.StartTime.UTC(),
			CreatedDate: s.now().UTC(),
		}
		other := entry.ToNumber
		if entry.Direction == constants.DirectionInbound {
			other = entry.FromNumber
		}
		if other != "" {
			if c, err := s.contacts.FindByPhone(ctx, other); err == nil && c != nil {
				entry.ContactID = utils.StringPtr(c.ID)
			}
		}
		isNew, err := s.calls.Upsert(ctx, entry)
		if err != nil {
			return added, fmt.Errorf("failed to store call %s: %w", rec.ID, err)
		}
		if isNew {
			added++
		}
	}
	s.log.Info().Int("fetched", len(records)).Int("new", added).Msg("📒 Call log synced")
	return added, nil
}

// HandleWebhook ingests an inbound SMS notification. The Verification-Token header is
// checked when one is configured.
func (s *RingCentralService) HandleWebhook(ctx context.Context, body []byte, verificationToken string) error {
	if s.cfg.VerificationToken != "" && verificationToken != s.cfg.VerificationToken {
		metrics.WebhookEvents.WithLabelValues(providerRingCentral, metrics.ResultRejected).Inc()
		return errors.NewUnauthorizedError("invalid verification token")
	}
	sms, ok, err := ringcentral.ParseInboundSMS(body)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(providerRingCentral, metrics.ResultRejected).Inc()
		return errors.NewValidationError("body", "Malformed notification")
	}
	if !ok {
		metrics.WebhookEvents.WithLabelValues(providerRingCentral, metrics.ResultIgnored).Inc()
		return nil
	}

	_, _, err = s.ingester.IngestInbound(ctx, InboundMessage{
		Channel:    constants.ChannelSMS,
		SenderID:   sms.From,
		ExternalID: sms.ID,
		Text:       sms.Text,
		At:         sms.CreatedAt,
	})
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(providerRingCentral, metrics.ResultFailure).Inc()
		return err
	}
	metrics.WebhookEvents.WithLabelValues(providerRingCentral, metrics.ResultSuccess).Inc()
	return nil
}

func (s *RingCentralService) resolveContact(ctx context.Context, contactID, to string) (*models.Contact, error) {
	if contactID != "" {
		c, err := s.contacts.FindByID(ctx, contactID)
		if err != nil {
			return nil, fmt.Errorf("failed to load contact: %w", err)
		}
		if c == nil {
			return nil, errors.NewNotFoundError("contact", contactID)
		}
		return c, nil
	}
	phone := utils.NormalizePhone(to)
	if phone == "" {
		return nil, errors.NewValidationError("to", "contactId or a valid phone number is required")
	}
	if c, err := s.contacts.FindByPhone(ctx, phone); err != nil || c != nil {
		return c, err
	}
	c, _, err := s.resolver.FindOrCreateByChannel(ctx, constants.ChannelSMS, phone, "")
	return c, err
}
