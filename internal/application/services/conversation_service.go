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
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const (
	messageHistoryLimit = 200
	previewLength       = 120
)

// TokenCipher encrypts third-party tokens at rest
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// ContactResolver finds the contact behind an inbound sender
type ContactResolver interface {
	FindOrCreateByChannel(ctx context.Context, channel, externalID, displayName string) (*models.Contact, bool, error)
}

// ConversationService is the unified inbox across Messenger, Instagram and SMS
type ConversationService struct {
	repo       ports.ConversationRepository
	contacts   ports.ContactRepository
	resolver   ContactResolver
	pages      ports.MetaPageRepository
	meta       ports.MetaGraph
	rc         ports.RingCentral
	cipher     TokenCipher
	fromNumber string
	events     ports.EventPublisher
	log        zerolog.Logger
	now        func() time.Time
}

// ConversationDeps groups the collaborators of ConversationService.
// Meta and RingCentral are nil when the integration is not configured.
type ConversationDeps struct {
	Repo       ports.ConversationRepository
	Contacts   ports.ContactRepository
	Resolver   ContactResolver
	Pages      ports.MetaPageRepository
	Meta       ports.MetaGraph
	RC         ports.RingCentral
	Cipher     TokenCipher
	FromNumber string
	Events     ports.EventPublisher
}

func NewConversationService(deps ConversationDeps) *ConversationService {
	return &ConversationService{
		repo:       deps.Repo,
		contacts:   deps.Contacts,
		resolver:   deps.Resolver,
		pages:      deps.Pages,
		meta:       deps.Meta,
		rc:         deps.RC,
		cipher:     deps.Cipher,
		fromNumber: deps.FromNumber,
		events:     deps.Events,
		log:        logging.For("conversations"),
		now:        time.Now,
	}
}

// List returns the inbox ordered by last message, each conversation with its contact
func (s *ConversationService) List(ctx context.Context, filter ports.ConversationFilter) ([]*models.Conversation, error) {
	if filter.Channel != "" && !isChannel(filter.Channel) {
		return nil, errors.NewValidationError("channel", "channel must be messenger, instagram or sms")
	}
	filter.Limit = utils.ClampLimit(filter.Limit, constants.DefaultLimit, constants.DefaultMaxLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	convs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		contact, err := s.contacts.FindByID(ctx, c.ContactID)
		if err != nil {
			return nil, fmt.Errorf("failed to load contact: %w", err)
		}
		c.Contact = contact
	}
	return convs, nil
}

// ConversationThread is a conversation with its message history
type ConversationThread struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []*models.Message    `json:"messages"`
}

func (s *ConversationService) Get(ctx context.Context, id string) (*ConversationThread, error) {
	conv, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.Contact, err = s.contacts.FindByID(ctx, conv.ContactID); err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	msgs, err := s.repo.ListMessages(ctx, id, messageHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	return &ConversationThread{Conversation: conv, Messages: msgs}, nil
}

func (s *ConversationService) MarkRead(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, id)
}

// SendMessage delivers text on the conversation's channel and stores the outbound message.
// A delivery failure is stored with status failed and returned.
func (s *ConversationService) SendMessage(ctx context.Context, conversationID, text, actorID string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewValidationError("text", "Message text is required")
	}
	conv, err := s.find(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	contact, err := s.contacts.FindByID(ctx, conv.ContactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return nil, errors.NewNotFoundError("contact", conv.ContactID)
	}

	externalID, sendErr := s.deliver(ctx, conv, contact, text)

	now := s.now().UTC()
	msg := &models.Message{
		ID:             utils.GenerateID(),
		ConversationID: conv.ID,
		Direction:      constants.DirectionOutbound,
		Body:           text,
		Status:         constants.MessageStatusSent,
		SentByID:       &actorID,
		CreatedAt:      now,
	}
	if externalID != "" {
		msg.ExternalID = &externalID
	}
	if sendErr != nil {
		if errors.IsValidation(sendErr) {
			return nil, sendErr
		}
		msg.Status = constants.MessageStatusFailed
		msg.Error = utils.StringPtr(sendErr.Error())
	}

	if _, err := s.repo.InsertMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	if err := s.repo.TouchLastMessage(ctx, conv.ID, now, preview(text), false); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("⚠️ Failed to update conversation")
	}

	if sendErr != nil {
		metrics.OutboundMessages.WithLabelValues(conv.Channel, metrics.ResultFailure).Inc()
		s.log.Error().Err(sendErr).Str(logging.CHANNEL, conv.Channel).Str(logging.CONTACT_ID, contact.ID).Msg("❌ Outbound message failed")
		return msg, sendErr
	}
	metrics.OutboundMessages.WithLabelValues(conv.Channel, metrics.ResultSuccess).Inc()
	s.log.Info().Str(logging.CHANNEL, conv.Channel).Str(logging.CONTACT_ID, contact.ID).Msg("📤 Message sent")
	return msg, nil
}

func (s *ConversationService) deliver(ctx context.Context, conv *models.Conversation, contact *models.Contact, text string) (string, error) {
	switch conv.Channel {
	case constants.ChannelMessenger, constants.ChannelInstagram:
		if s.meta == nil {
			return "", errors.NewValidationError("channel", "Meta is not configured")
		}
		recipient := utils.Deref(contact.MessengerPSID)
		if conv.Channel == constants.ChannelInstagram {
			recipient = utils.Deref(contact.InstagramID)
		}
		if recipient == "" {
			return "", errors.NewValidationError("contact", "Contact has no "+conv.Channel+" id")
		}
		token, err := s.pageToken(ctx, conv)
		if err != nil {
			return "", err
		}
		return s.meta.SendMessage(ctx, token, recipient, text)

	case constants.ChannelSMS:
		if s.rc == nil {
			return "", errors.NewValidationError("channel", "RingCentral is not configured")
		}
		to := utils.Deref(contact.Phone)
		if to == "" {
			return "", errors.NewValidationError("contact", "Contact has no phone number")
		}
		return s.rc.SendSMS(ctx, s.fromNumber, to, text)
	}
	return "", errors.NewValidationError("channel", fmt.Sprintf("Unsupported channel %q", conv.Channel))
}

func (s *ConversationService) pageToken(ctx context.Context, conv *models.Conversation) (string, error) {
	var (
		page *models.MetaPage
		err  error
	)
	if conv.PageID != nil {
		page, err = s.pages.FindByPageID(ctx, *conv.PageID)
	} else {
		var pages []*models.MetaPage
		pages, err = s.pages.List(ctx)
		if len(pages) > 0 {
			page = pages[0]
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to load page: %w", err)
	}
	if page == nil {
		return "", errors.NewValidationError("page", "No connected Facebook page")
	}
	token, err := s.cipher.Decrypt(page.EncryptedToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt page token: %w", err)
	}
	return token, nil
}

// InboundMessage is a message received on any channel
type InboundMessage struct {
	Channel     string
	SenderID    string
	DisplayName string
	PageID      *string
	ExternalID  string
	Text        string
	At          time.Time
}

// IngestInbound stores an inbound message, creating the contact and conversation on first contact.
// It returns false when the message was already stored.
func (s *ConversationService) IngestInbound(ctx context.Context, in InboundMessage) (*models.Message, bool, error) {
	if !isChannel(in.Channel) {
		return nil, false, errors.NewValidationError("channel", fmt.Sprintf("Unsupported channel %q", in.Channel))
	}
	contact, created, err := s.resolver.FindOrCreateByChannel(ctx, in.Channel, in.SenderID, in.DisplayName)
	if err != nil {
		return nil, false, err
	}
	conv, err := s.repo.FindOrCreate(ctx, contact.ID, in.Channel, in.PageID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open conversation: %w", err)
	}

	at := in.At
	if at.IsZero() {
		at = s.now()
	}
	msg := &models.Message{
		ID:             utils.GenerateID(),
		ConversationID: conv.ID,
		Direction:      constants.DirectionInbound,
		Body:           in.Text,
		Status:         constants.MessageStatusReceived,
		CreatedAt:      at.UTC(),
	}
	if in.ExternalID != "" {
		msg.ExternalID = utils.StringPtr(in.ExternalID)
	}
	inserted, err := s.repo.InsertMessage(ctx, msg)
	if err != nil {
		return nil, false, fmt.Errorf("failed to store message: %w", err)
	}
	if !inserted {
		s.log.Debug().Str("external_id", in.ExternalID).Msg("Duplicate inbound message ignored")
		return nil, false, nil
	}
	if err := s.repo.TouchLastMessage(ctx, conv.ID, msg.CreatedAt, preview(in.Text), true); err != nil {
		s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("⚠️ Failed to update conversation")
	}

	s.log.Info().Str(logging.CHANNEL, in.Channel).Str(logging.CONTACT_ID, contact.ID).Bool("new_contact", created).Msg("📥 Message received")
	publishQuietly(ctx, s.events, events.MessageReceived, events.MessageReceivedPayload{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		ContactID:      contact.ID,
		Channel:        in.Channel,
	})
	return msg, true, nil
}

func (s *ConversationService) find(ctx context.Context, id string) (*models.Conversation, error) {
	conv, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		return nil, errors.NewNotFoundError("conversation", id)
	}
	return conv, nil
}

func isChannel(ch string) bool {
	return ch == constants.ChannelMessenger || ch == constants.ChannelInstagram || ch == constants.ChannelSMS
}

func preview(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= previewLength {
		return string(r)
	}
	return string(r[:previewLength])
}
