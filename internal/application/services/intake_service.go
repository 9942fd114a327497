package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const defaultIntakeSource = "website"

// IntakeContacts is the contact side of intake
type IntakeContacts interface {
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*models.Contact, error)
	Create(ctx context.Context, in ContactInput, actorID string) (*models.Contact, error)
}

// OpportunityCreator opens a new matter
type OpportunityCreator interface {
	Create(ctx context.Context, in OpportunityInput, actorID string) (*models.Opportunity, error)
}

// IntakeService turns website intake forms into a contact and an opportunity
type IntakeService struct {
	people   IntakeContacts
	opps     OpportunityCreator
	notifier ports.Notifier
	secret   string
	log      zerolog.Logger
}

func NewIntakeService(people IntakeContacts, opps OpportunityCreator, notifier ports.Notifier, secret string) *IntakeService {
	return &IntakeService{
		people:   people,
		opps:     opps,
		notifier: notifier,
		secret:   secret,
		log:      logging.For("intake"),
	}
}

// IntakeForm is the public form body
type IntakeForm struct {
	Name         string `json:"name"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PracticeArea string `json:"practiceArea"`
	Message      string `json:"message"`
	Source       string `json:"source"`
}

// IntakeResult identifies what the submission produced
type IntakeResult struct {
	ContactID      string `json:"contactId"`
	OpportunityID  string `json:"opportunityId"`
	ContactCreated bool   `json:"contactCreated"`
}

// Submit validates the form, finds or creates the contact and opens an opportunity in the
// default pipeline. The staff alert is best-effort.
func (s *IntakeService) Submit(ctx context.Context, providedSecret string, form IntakeForm) (*IntakeResult, error) {
	if s.secret != "" && subtle.ConstantTimeCompare([]byte(providedSecret), []byte(s.secret)) != 1 {
		return nil, errors.NewUnauthorizedError("invalid intake secret")
	}

	first, last := strings.TrimSpace(form.FirstName), strings.TrimSpace(form.LastName)
	if first == "" && last == "" {
		first, last = splitName(form.Name)
	}
	if first == "" && last == "" {
		return nil, errors.NewValidationError("name", "Name is required")
	}
	email := utils.NormalizeEmail(form.Email)
	phone := utils.NormalizePhone(form.Phone)
	if email == "" && phone == "" {
		return nil, errors.NewValidationError("email", "An email or phone number is required")
	}
	if email != "" && !auth.IsValidEmail(email) {
		return nil, errors.NewValidationError("email", "Invalid email address")
	}
	source := strings.TrimSpace(form.Source)
	if source == "" {
		source = defaultIntakeSource
	}

	result := &IntakeResult{}
	contact, err := s.people.FindByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}
	if contact == nil {
		in := ContactInput{FirstName: &first, LastName: &last, Source: &source}
		if email != "" {
			in.Email = &email
		}
		if phone != "" {
			in.Phone = &phone
		}
		if msg := strings.TrimSpace(form.Message); msg != "" {
			in.Notes = &msg
		}
		if contact, err = s.people.Create(ctx, in, constants.SystemUserID); err != nil {
			return nil, err
		}
		result.ContactCreated = true
	}
	result.ContactID = contact.ID

	title := contact.FullName()
	oppIn := OpportunityInput{ContactID: contact.ID, Source: &source}
	if area := strings.TrimSpace(form.PracticeArea); area != "" {
		oppIn.PracticeArea = &area
		title = fmt.Sprintf("%s - %s", title, area)
	}
	oppIn.Title = title
	opp, err := s.opps.Create(ctx, oppIn, constants.SystemUserID)
	if err != nil {
		return nil, err
	}
	result.OpportunityID = opp.ID

	if err := s.notifier.SendIntakeAlert(ctx, contact.FullName(), contact.ID, opp.ID); err != nil {
		s.log.Warn().Err(err).Str(logging.OPP_ID, opp.ID).Msg("⚠️ Intake alert not queued")
	}
	s.log.Info().Str(logging.CONTACT_ID, contact.ID).Str(logging.OPP_ID, opp.ID).Bool("new_contact", result.ContactCreated).Msg("📝 Intake received")
	return result, nil
}
