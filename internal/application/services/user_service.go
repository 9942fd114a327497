package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

// UserService is the admin side of account management
type UserService struct {
	users         ports.UserRepository
	sessions      ports.SessionRepository
	verifications ports.VerificationRepository
	notifier      ports.Notifier
	machine       *domain.SessionStateMachine
	publicURL     string
	log           zerolog.Logger
	now           func() time.Time
}

func NewUserService(users ports.UserRepository, sessions ports.SessionRepository, verifications ports.VerificationRepository, notifier ports.Notifier, publicURL string) *UserService {
	return &UserService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		notifier:      notifier,
		machine:       domain.NewSessionStateMachine(),
		publicURL:     publicURL,
		log:           logging.For("users"),
		now:           time.Now,
	}
}

// CreateUserInput is the admin form for a new account
type CreateUserInput struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// CreatedUser carries the one-time temporary password
type CreatedUser struct {
	User              *models.User `json:"user"`
	TemporaryPassword string       `json:"temporaryPassword"`
}

// CreateUser creates an account that must change its temporary password on first login
func (s *UserService) CreateUser(ctx context.Context, in CreateUserInput) (*CreatedUser, error) {
	email := utils.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	role := in.Role
	if role == "" {
		role = constants.RoleStaff
	}

	if !auth.IsValidEmail(email) {
		return nil, errors.NewValidationError("email", "A valid email is required")
	}
	if name == "" {
		return nil, errors.NewValidationError("name", "Name is required")
	}
	if !constants.IsValidRole(role) {
		return nil, errors.NewValidationError("role", fmt.Sprintf("Unknown role %q", role))
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, errors.NewConflictError("user", "email", email)
	}

	temp, err := auth.GenerateTemporaryPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to generate password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:                 utils.GenerateID(),
		Email:              email,
		Name:               name,
		Role:               role,
		Status:             constants.UserStatusActive,
		TemporaryPassword:  temp,
		MustChangePassword: true,
		CreatedDate:        now,
		LastModifiedDate:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := s.notifier.SendInvite(ctx, user.Email, user.Name, temp, s.publicURL+domain.PathLogin); err != nil {
		s.log.Warn().Err(err).Str(logging.USER_ID, user.ID).Msg("⚠️ Invite email not queued")
	}

	s.log.Info().Str(logging.USER_ID, user.ID).Str("role", role).Msg("👤 User created")
	return &CreatedUser{User: user, TemporaryPassword: temp}, nil
}

// ListUsers returns every account except the automation actor
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.User, 0, len(all))
	for _, u := range all {
		if u.ID != constants.SystemUserID {
			out = append(out, u)
		}
	}
	return out, nil
}

// UpdateUserInput holds the editable account fields
type UpdateUserInput struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

func (s *UserService) UpdateUser(ctx context.Context, actorID, id string, in UpdateUserInput) (*models.User, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, errors.NewValidationError("name", "Name is required")
		}
		updates[constants.FieldName] = name
		user.Name = name
	}
	if in.Role != nil && *in.Role != user.Role {
		if !constants.IsValidRole(*in.Role) {
			return nil, errors.NewValidationError("role", fmt.Sprintf("Unknown role %q", *in.Role))
		}
		if actorID == id && *in.Role != constants.RoleAdmin {
			return nil, errors.NewValidationError("role", "You cannot remove your own admin role")
		}
		updates[constants.FieldRole] = *in.Role
		user.Role = *in.Role
	}
	if err := s.users.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	// session tokens carry the role, so a role change signs the user out
	if _, changed := updates[constants.FieldRole]; changed {
		n, err := s.sessions.DeleteForUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
		s.log.Info().Str(logging.USER_ID, id).Str("role", user.Role).Int64("sessions", n).Msg("🔑 Role changed")
	}
	return user, nil
}

// Suspend blocks the account and ends all of its sessions
func (s *UserService) Suspend(ctx context.Context, actorID, id string) error {
	if actorID == id {
		return errors.NewValidationError("", "You cannot suspend your own account")
	}
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	current := domain.StateFor(user.IsSuspended(), user.MustChangePassword, user.EmailVerified)
	if _, err := s.machine.Transition(current, domain.TransitionSuspend, domain.SessionSuspended); err != nil {
		return errors.NewValidationError("", "User is already suspended")
	}

	if err := s.users.Update(ctx, id, map[string]interface{}{constants.FieldStatus: constants.UserStatusSuspended}); err != nil {
		return fmt.Errorf("failed to suspend user: %w", err)
	}
	n, err := s.sessions.DeleteForUser(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	s.log.Info().Str(logging.USER_ID, id).Int64("sessions", n).Msg("⛔ User suspended")
	return nil
}

// Reinstate lifts a suspension. The user signs in again with their existing password.
func (s *UserService) Reinstate(ctx context.Context, id string) error {
	user, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	current := domain.StateFor(user.IsSuspended(), user.MustChangePassword, user.EmailVerified)
	if _, err := s.machine.Transition(current, domain.TransitionReinstate, domain.SessionAnonymous); err != nil {
		return errors.NewValidationError("", "User is not suspended")
	}
	if err := s.users.Update(ctx, id, map[string]interface{}{constants.FieldStatus: constants.UserStatusActive}); err != nil {
		return fmt.Errorf("failed to reinstate user: %w", err)
	}
	s.log.Info().Str(logging.USER_ID, id).Msg("✅ User reinstated")
	return nil
}

// ResetPassword issues a new temporary password and signs the user out everywhere
func (s *UserService) ResetPassword(ctx context.Context, id string) (string, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return "", err
	}
	temp, err := auth.GenerateTemporaryPassword()
	if err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	err = s.users.Update(ctx, id, map[string]interface{}{
		constants.FieldTemporaryPassword:  temp,
		constants.FieldMustChangePassword: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to reset password: %w", err)
	}
	if _, err := s.sessions.DeleteForUser(ctx, id); err != nil {
		s.log.Warn().Err(err).Str(logging.USER_ID, id).Msg("⚠️ Failed to revoke sessions after reset")
	}
	// a pending verification link cannot complete while a password change is required
	if err := s.verifications.InvalidateForUser(ctx, id, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Str(logging.USER_ID, id).Msg("⚠️ Failed to invalidate verification links after reset")
	}
	if err := s.notifier.SendInvite(ctx, user.Email, user.Name, temp, s.publicURL+domain.PathLogin); err != nil {
		s.log.Warn().Err(err).Str(logging.USER_ID, id).Msg("⚠️ Reset email not queued")
	}
	return temp, nil
}

func (s *UserService) find(ctx context.Context, id string) (*models.User, error) {
	if id == constants.SystemUserID {
		return nil, errors.NewNotFoundError("user", id)
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", id)
	}
	return user, nil
}
