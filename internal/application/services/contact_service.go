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
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

// ContactService manages leads and clients
type ContactService struct {
	repo   ports.ContactRepository
	events ports.EventPublisher
	log    zerolog.Logger
	now    func() time.Time
}

func NewContactService(repo ports.ContactRepository, bus ports.EventPublisher) *ContactService {
	return &ContactService{repo: repo, events: bus, log: logging.For("contacts"), now: time.Now}
}

// ContactInput is used for create and partial update. Nil fields are left unchanged.
type ContactInput struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Type          *string `json:"type"`
	Source        *string `json:"source"`
	Notes         *string `json:"notes"`
	MessengerPSID *string `json:"messenger_psid"`
	InstagramID   *string `json:"instagram_id"`
	OwnerID       *string `json:"owner_id"`
}

// Create validates and stores a new contact
func (s *ContactService) Create(ctx context.Context, in ContactInput, actorID string) (*models.Contact, error) {
	now := s.now().UTC()
	c := &models.Contact{
		ID:               utils.GenerateID(),
		Type:             constants.ContactTypeLead,
		CreatedDate:      now,
		LastModifiedDate: now,
	}
	if actorID != "" && actorID != constants.SystemUserID {
		c.OwnerID = &actorID
	}
	if err := applyContactInput(c, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	s.log.Info().Str(logging.CONTACT_ID, c.ID).Msg("📇 Contact created")
	publishQuietly(ctx, s.events, events.ContactCreated, events.ContactCreatedPayload{
		ContactID: c.ID,
		Source:    utils.Deref(c.Source),
	})
	return c, nil
}

func (s *ContactService) Get(ctx context.Context, id string) (*models.Contact, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if c == nil {
		return nil, errors.NewNotFoundError("contact", id)
	}
	return c, nil
}

func (s *ContactService) List(ctx context.Context, filter ports.ContactFilter) ([]*models.Contact, error) {
	filter.Query = strings.TrimSpace(filter.Query)
	if filter.Type != "" && !isContactType(filter.Type) {
		return nil, errors.NewValidationError("type", "type must be lead or client")
	}
	filter.Limit = utils.ClampLimit(filter.Limit, constants.DefaultLimit, constants.DefaultMaxLimit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *ContactService) Update(ctx context.Context, id string, in ContactInput) (*models.Contact, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyContactInput(c, in); err != nil {
		return nil, err
	}
	c.LastModifiedDate = s.now().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	return c, nil
}

func (s *ContactService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// FindOrCreateByChannel resolves the sender of an inbound message, creating a lead on first contact.
// For sms the external id is the phone number.
func (s *ContactService) FindOrCreateByChannel(ctx context.Context, channel, externalID, displayName string) (*models.Contact, bool, error) {
	if channel == constants.ChannelSMS {
		externalID = utils.NormalizePhone(externalID)
	}
	if externalID == "" {
		return nil, false, errors.NewValidationError("sender", "Sender id is required")
	}

	c, err := s.repo.FindByChannelID(ctx, channel, externalID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up contact: %w", err)
	}
	if c != nil {
		return c, false, nil
	}

	first, last := splitName(displayName)
	if first == "" && last == "" {
		first = channelLabel(channel)
		last = lastDigits(externalID)
	}
	source := channel
	in := ContactInput{FirstName: &first, LastName: &last, Source: &source}
	switch channel {
	case constants.ChannelMessenger:
		in.MessengerPSID = &externalID
	case constants.ChannelInstagram:
		in.InstagramID = &externalID
	case constants.ChannelSMS:
		in.Phone = &externalID
	}

	c, err = s.Create(ctx, in, constants.SystemUserID)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// FindByEmailOrPhone returns the first contact matching either value
func (s *ContactService) FindByEmailOrPhone(ctx context.Context, email, phone string) (*models.Contact, error) {
	if email = utils.NormalizeEmail(email); email != "" {
		c, err := s.repo.FindByEmail(ctx, email)
		if err != nil || c != nil {
			return c, err
		}
	}
	if phone = utils.NormalizePhone(phone); phone != "" {
		return s.repo.FindByPhone(ctx, phone)
	}
	return nil, nil
}

func applyContactInput(c *models.Contact, in ContactInput) error {
	if in.FirstName != nil {
		c.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		c.LastName = strings.TrimSpace(*in.LastName)
	}
	if c.FirstName == "" && c.LastName == "" {
		return errors.NewValidationError("first_name", "A first or last name is required")
	}
	if in.Email != nil {
		email := utils.NormalizeEmail(*in.Email)
		if email != "" && !auth.IsValidEmail(email) {
			return errors.NewValidationError("email", "Invalid email address")
		}
		c.Email = utils.StringPtr(email)
	}
	if in.Phone != nil {
		raw := strings.TrimSpace(*in.Phone)
		phone := utils.NormalizePhone(raw)
		if raw != "" && phone == "" {
			return errors.NewValidationError("phone", "Invalid phone number")
		}
		c.Phone = utils.StringPtr(phone)
	}
	if in.Type != nil {
		if !isContactType(*in.Type) {
			return errors.NewValidationError("type", "type must be lead or client")
		}
		c.Type = *in.Type
	}
	if in.Source != nil {
		c.Source = utils.StringPtr(strings.TrimSpace(*in.Source))
	}
	if in.Notes != nil {
		c.Notes = utils.StringPtr(*in.Notes)
	}
	if in.MessengerPSID != nil {
		c.MessengerPSID = utils.StringPtr(strings.TrimSpace(*in.MessengerPSID))
	}
	if in.InstagramID != nil {
		c.InstagramID = utils.StringPtr(strings.TrimSpace(*in.InstagramID))
	}
	if in.OwnerID != nil {
		c.OwnerID = utils.StringPtr(*in.OwnerID)
	}
	return nil
}

func isContactType(t string) bool {
	return t == constants.ContactTypeLead || t == constants.ContactTypeClient
}

// splitName splits "Jane Q Doe" into "Jane" and "Q Doe"
func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	first, rest, _ := strings.Cut(full, " ")
	return first, strings.TrimSpace(rest)
}

func channelLabel(channel string) string {
	switch channel {
	case constants.ChannelMessenger:
		return "Messenger"
	case constants.ChannelInstagram:
		return "Instagram"
	case constants.ChannelSMS:
		return "SMS"
	}
	return "Unknown"
}

func lastDigits(id string) string {
	if len(id) <= 4 {
		return id
	}
	return id[len(id)-4:]
}
