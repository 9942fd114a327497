package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

// WorkshopService manages seminars and their registrations
type WorkshopService struct {
	repo     ports.WorkshopRepository
	contacts ports.ContactRepository
	people   IntakeContacts
	log      zerolog.Logger
	now      func() time.Time
}

func NewWorkshopService(repo ports.WorkshopRepository, contacts ports.ContactRepository, people IntakeContacts) *WorkshopService {
	return &WorkshopService{
		repo:     repo,
		contacts: contacts,
		people:   people,
		log:      logging.For("workshops"),
		now:      time.Now,
	}
}

// WorkshopInput is used for create and partial update
type WorkshopInput struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartsAt    *time.Time `json:"starts_at"`
	Location    *string    `json:"location"`
	Capacity    *int       `json:"capacity"`
}

func (s *WorkshopService) Create(ctx context.Context, in WorkshopInput) (*models.Workshop, error) {
	w := &models.Workshop{ID: utils.GenerateID(), CreatedDate: s.now().UTC()}
	if in.StartsAt == nil {
		return nil, errors.NewValidationError("starts_at", "Start time is required")
	}
	if err := applyWorkshopInput(w, in); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to create workshop: %w", err)
	}
	s.log.Info().Str("workshop_id", w.ID).Time("starts_at", w.StartsAt).Msg("🎓 Workshop created")
	return w, nil
}

func (s *WorkshopService) Get(ctx context.Context, id string) (*models.Workshop, error) {
	w, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workshop: %w", err)
	}
	if w == nil {
		return nil, errors.NewNotFoundError("workshop", id)
	}
	return w, nil
}

func (s *WorkshopService) List(ctx context.Context, upcomingOnly bool) ([]*models.Workshop, error) {
	return s.repo.List(ctx, upcomingOnly, s.now().UTC())
}

func (s *WorkshopService) Update(ctx context.Context, id string, in WorkshopInput) (*models.Workshop, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyWorkshopInput(w, in); err != nil {
		return nil, err
	}
	if w.Capacity > 0 && w.Registered > w.Capacity {
		return nil, errors.NewValidationError("capacity", fmt.Sprintf("Capacity is below the %d current registrations", w.Registered))
	}
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("failed to update workshop: %w", err)
	}
	return w, nil
}

func (s *WorkshopService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// RegistrationInput registers an existing contact, or a person identified by email or phone
type RegistrationInput struct {
	ContactID string `json:"contact_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Register adds a contact to the workshop. A full workshop is a validation error and a
// second registration for the same contact is a conflict.
func (s *WorkshopService) Register(ctx context.Context, workshopID string, in RegistrationInput, actorID string) (*models.Registration, error) {
	if _, err := s.Get(ctx, workshopID); err != nil {
		return nil, err
	}
	contact, err := s.registrant(ctx, in, actorID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindRegistrationByContact(ctx, workshopID, contact.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check registration: %w", err)
	}
	if existing != nil {
		return nil, errors.NewConflictError("registration", "contact_id", contact.ID)
	}

	reg := &models.Registration{
		ID:          utils.GenerateID(),
		WorkshopID:  workshopID,
		ContactID:   contact.ID,
		Status:      constants.RegistrationRegistered,
		CreatedDate: s.now().UTC(),
		Contact:     contact,
	}
	if err := s.repo.Register(ctx, reg); err != nil {
		if stderrors.Is(err, ports.ErrWorkshopFull) {
			return nil, errors.NewValidationError("capacity", ports.ErrWorkshopFull.Error())
		}
		return nil, fmt.Errorf("failed to register: %w", err)
	}
	s.log.Info().Str("workshop_id", workshopID).Str(logging.CONTACT_ID, contact.ID).Msg("🎟️ Registered for workshop")
	return reg, nil
}

// ListRegistrations returns the roster with each contact attached
func (s *WorkshopService) ListRegistrations(ctx context.Context, workshopID string) ([]*models.Registration, error) {
	if _, err := s.Get(ctx, workshopID); err != nil {
		return nil, err
	}
	regs, err := s.repo.ListRegistrations(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	for _, reg := range regs {
		if reg.Contact, err = s.contacts.FindByID(ctx, reg.ContactID); err != nil {
			return nil, fmt.Errorf("failed to load contact: %w", err)
		}
	}
	return regs, nil
}

// MarkAttendance sets a registration's status (attended, no_show, cancelled or registered)
func (s *WorkshopService) MarkAttendance(ctx context.Context, workshopID, registrationID, status string) (*models.Registration, error) {
	if !constants.IsValidRegistrationStatus(status) {
		return nil, errors.NewValidationError("status", fmt.Sprintf("Unknown registration status %q", status))
	}
	reg, err := s.repo.FindRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if reg == nil || reg.WorkshopID != workshopID {
		return nil, errors.NewNotFoundError("registration", registrationID)
	}
	if reg.Status == status {
		return reg, nil
	}
	if reg.Status == constants.RegistrationCancelled {
		return nil, errors.NewValidationError("status", "Cancelled registrations cannot be changed; register again")
	}
	if err := s.repo.UpdateRegistrationStatus(ctx, reg.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update registration: %w", err)
	}
	reg.Status = status
	return reg, nil
}

func (s *WorkshopService) registrant(ctx context.Context, in RegistrationInput, actorID string) (*models.Contact, error) {
	if in.ContactID != "" {
		c, err := s.contacts.FindByID(ctx, in.ContactID)
		if err != nil {
			return nil, fmt.Errorf("failed to load contact: %w", err)
		}
		if c == nil {
			return nil, errors.NewNotFoundError("contact", in.ContactID)
		}
		return c, nil
	}
	if strings.TrimSpace(in.Email) == "" && strings.TrimSpace(in.Phone) == "" {
		return nil, errors.NewValidationError("contact_id", "contact_id, email or phone is required")
	}
	c, err := s.people.FindByEmailOrPhone(ctx, in.Email, in.Phone)
	if err != nil || c != nil {
		return c, err
	}
	first, last := splitName(in.Name)
	if first == "" && last == "" {
		return nil, errors.NewValidationError("name", "Name is required for a new contact")
	}
	source := "workshop"
	create := ContactInput{FirstName: &first, LastName: &last, Source: &source}
	if in.Email != "" {
		create.Email = &in.Email
	}
	if in.Phone != "" {
		create.Phone = &in.Phone
	}
	return s.people.Create(ctx, create, actorID)
}

func applyWorkshopInput(w *models.Workshop, in WorkshopInput) error {
	if in.Title != nil {
		w.Title = strings.TrimSpace(*in.Title)
	}
	if w.Title == "" {
		return errors.NewValidationError("title", "Title is required")
	}
	if in.Description != nil {
		w.Description = utils.StringPtr(*in.Description)
	}
	if in.StartsAt != nil {
		w.StartsAt = in.StartsAt.UTC()
	}
	if in.Location != nil {
		w.Location = utils.StringPtr(strings.TrimSpace(*in.Location))
	}
	if in.Capacity != nil {
		if *in.Capacity < 0 {
			return errors.NewValidationError("capacity", "Capacity must not be negative")
		}
		w.Capacity = *in.Capacity
	}
	return nil
}
