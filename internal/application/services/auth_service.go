package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/metrics"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/utils"
)

const invalidCredentials = "Invalid email or password"

// AuthOptions carries the settings AuthService needs from config
type AuthOptions struct {
	PublicURL       string
	VerificationTTL time.Duration
}

// AuthService handles authentication, session management, and password operations
type AuthService struct {
	users         ports.UserRepository
	sessions      ports.SessionRepository
	verifications ports.VerificationRepository
	issuer        *auth.Issuer
	notifier      ports.Notifier
	limiter       ports.RateLimiter
	machine       *domain.SessionStateMachine
	opts          AuthOptions
	log           zerolog.Logger
	now           func() time.Time
}

// NewAuthService creates a new AuthService. limiter may be nil.
func NewAuthService(
	users ports.UserRepository,
	sessions ports.SessionRepository,
	verifications ports.VerificationRepository,
	issuer *auth.Issuer,
	notifier ports.Notifier,
	limiter ports.RateLimiter,
	opts AuthOptions,
) *AuthService {
	if opts.VerificationTTL <= 0 {
		opts.VerificationTTL = 24 * time.Hour
	}
	return &AuthService{
		users:         users,
		sessions:      sessions,
		verifications: verifications,
		issuer:        issuer,
		notifier:      notifier,
		limiter:       limiter,
		machine:       domain.NewSessionStateMachine(),
		opts:          opts,
		log:           logging.For("auth"),
		now:           time.Now,
	}
}

// SessionResult is a freshly issued session token
type SessionResult struct {
	Token      string
	ExpiresAt  time.Time
	User       auth.UserSession
	RedirectTo string
}

// LoginInput holds the credentials and client details of a login attempt
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// Login authenticates a user and creates a session
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*SessionResult, error) {
	email := utils.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, errors.NewValidationError("", "Email and password are required")
	}
	if err := s.allow(ctx, "login:"+in.IP+":"+email); err != nil {
		metrics.Logins.WithLabelValues(metrics.ResultRejected).Inc()
		return nil, err
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		s.log.Warn().Str(logging.EVENT, "login").Msg("⚠️ Login failed: unknown email")
		metrics.Logins.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, errors.NewUnauthorizedError(invalidCredentials)
	}
	if user.IsSuspended() {
		s.log.Warn().Str(logging.USER_ID, user.ID).Msg("⚠️ Login refused: account suspended")
		metrics.Logins.WithLabelValues(metrics.ResultSuspended).Inc()
		return nil, errors.NewSuspendedError(user.ID)
	}
	if !checkPassword(user, in.Password) {
		s.log.Warn().Str(logging.USER_ID, user.ID).Msg("⚠️ Login failed: invalid password")
		metrics.Logins.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, errors.NewUnauthorizedError(invalidCredentials)
	}

	target := domain.StateFor(false, user.MustChangePassword, user.EmailVerified)
	if _, err := s.machine.Transition(domain.SessionAnonymous, domain.TransitionLogin, target); err != nil {
		return nil, errors.NewInternalError("session state", err)
	}

	result, err := s.issueSession(ctx, user, in.IP, in.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.users.Update(ctx, user.ID, map[string]interface{}{constants.FieldLastLoginAt: s.now().UTC()}); err != nil {
		s.log.Warn().Err(err).Str(logging.USER_ID, user.ID).Msg("⚠️ Failed to record last login")
	}

	metrics.Logins.WithLabelValues(metrics.ResultSuccess).Inc()
	s.log.Info().Str(logging.USER_ID, user.ID).Str("state", string(target)).Msg("🔐 User logged in")
	return result, nil
}

// ChangePasswordInput is the body of a password change
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	IP              string
	UserAgent       string
}

// ChangePassword replaces the password, rotates the session and starts email verification.
// The current password is not required while a temporary password is pending.
func (s *AuthService) ChangePassword(ctx context.Context, claims *auth.Claims, in ChangePasswordInput) (*SessionResult, error) {
	user, err := s.sessionUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	if !user.MustChangePassword {
		if in.CurrentPassword == "" {
			return nil, errors.NewValidationError("current_password", "Current password is required")
		}
		if !checkPassword(user, in.CurrentPassword) {
			return nil, errors.NewUnauthorizedError("Current password is incorrect")
		}
	}
	if err := auth.ValidatePasswordStrength(in.NewPassword); err != nil {
		return nil, errors.NewValidationError("new_password", err.Error())
	}
	if auth.MatchTemporaryPassword(in.NewPassword, user.TemporaryPassword) || auth.VerifyPassword(in.NewPassword, user.PasswordHash) {
		return nil, errors.NewValidationError("new_password", "New password must differ from the current one")
	}

	current := domain.StateFor(false, user.MustChangePassword, user.EmailVerified)
	if _, err := s.machine.Transition(current, domain.TransitionChangePassword, domain.SessionUnverified); err != nil {
		return nil, errors.NewValidationError("", err.Error())
	}

	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	err = s.users.Update(ctx, user.ID, map[string]interface{}{
		constants.FieldPasswordHash:       hash,
		constants.FieldTemporaryPassword:  nil,
		constants.FieldMustChangePassword: false,
		constants.FieldEmailVerified:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update password: %w", err)
	}
	user.PasswordHash = hash
	user.TemporaryPassword = ""
	user.MustChangePassword = false
	user.EmailVerified = false

	if err := s.sessions.Delete(ctx, claims.SessionID()); err != nil {
		s.log.Warn().Err(err).Str(logging.USER_ID, user.ID).Msg("⚠️ Failed to revoke previous session")
	}
	result, err := s.issueSession(ctx, user, in.IP, in.UserAgent)
	if err != nil {
		return nil, err
	}

	if err := s.sendVerification(ctx, user); err != nil {
		s.log.Error().Err(err).Str(logging.USER_ID, user.ID).Msg("❌ Verification email not queued, password change kept")
	}

	s.log.Info().Str(logging.USER_ID, user.ID).Msg("🔐 Password changed")
	return result, nil
}

// VerifyResult reports the verified user and, when the caller was signed in
// as that user, the reissued session
type VerifyResult struct {
	UserID  string
	Session *SessionResult
}

// Verify consumes a single-use verification token
func (s *AuthService) Verify(ctx context.Context, rawToken string, caller *auth.Claims, ip, userAgent string) (*VerifyResult, error) {
	if rawToken == "" {
		return nil, errors.NewValidationError("token", "Verification token is required")
	}

	userID, err := s.verifications.Consume(ctx, utils.HashToken(rawToken), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to consume verification token: %w", err)
	}
	if userID == "" {
		return nil, errors.NewValidationError("token", "Verification link is invalid or has expired")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user", userID)
	}
	if user.IsSuspended() {
		return nil, errors.NewSuspendedError(user.ID)
	}

	if !user.EmailVerified {
		current := domain.StateFor(false, user.MustChangePassword, false)
		if _, err := s.machine.Transition(current, domain.TransitionVerify, domain.SessionVerified); err != nil {
			return nil, errors.NewValidationError("token", err.Error())
		}
		if err := s.users.Update(ctx, user.ID, map[string]interface{}{constants.FieldEmailVerified: true}); err != nil {
			return nil, fmt.Errorf("failed to mark email verified: %w", err)
		}
		user.EmailVerified = true
	}

	result := &VerifyResult{UserID: user.ID}
	if caller != nil && caller.UserSession.ID == user.ID {
		if err := s.sessions.Delete(ctx, caller.SessionID()); err != nil {
			s.log.Warn().Err(err).Str(logging.USER_ID, user.ID).Msg("⚠️ Failed to revoke previous session")
		}
		session, err := s.issueSession(ctx, user, ip, userAgent)
		if err != nil {
			return nil, err
		}
		result.Session = session
	}

	s.log.Info().Str(logging.USER_ID, user.ID).Msg("✅ Email verified")
	return result, nil
}

// ResendVerification invalidates outstanding tokens and queues a new email
func (s *AuthService) ResendVerification(ctx context.Context, claims *auth.Claims) error {
	user, err := s.sessionUser(ctx, claims)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return errors.NewValidationError("", "Email is already verified")
	}
	if err := s.allow(ctx, "verify:"+user.ID); err != nil {
		return err
	}
	if err := s.sendVerification(ctx, user); err != nil {
		return errors.NewInternalError("failed to queue verification email", err)
	}
	return nil
}

// Logout deletes the session row behind token. It never fails.
func (s *AuthService) Logout(ctx context.Context, token string) {
	if token == "" {
		return
	}
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return
	}
	if err := s.sessions.Delete(ctx, claims.SessionID()); err != nil {
		s.log.Warn().Err(err).Str(logging.USER_ID, claims.UserSession.ID).Msg("⚠️ Failed to delete session on logout")
		return
	}
	s.log.Info().Str(logging.USER_ID, claims.UserSession.ID).Msg("👋 User logged out")
}

// Me returns the account behind the session
func (s *AuthService) Me(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	return s.sessionUser(ctx, claims)
}

// ValidateSession resolves a cookie token. Anything that does not check out is anonymous.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*auth.Claims, domain.SessionState) {
	if token == "" {
		return nil, domain.SessionAnonymous
	}
	claims, err := s.issuer.Validate(token)
	if err != nil {
		return nil, domain.SessionAnonymous
	}

	session, err := s.sessions.Get(ctx, claims.SessionID())
	if err != nil {
		s.log.Error().Err(err).Msg("❌ Session lookup failed")
		return nil, domain.SessionAnonymous
	}
	if session == nil || session.UserID != claims.UserSession.ID {
		return nil, domain.SessionAnonymous
	}
	if !session.ExpiresAt.After(s.now()) || session.TokenHash != utils.HashToken(token) {
		return nil, domain.SessionAnonymous
	}

	return claims, domain.StateFor(false, claims.MustChangePassword, claims.EmailVerified)
}

// CleanupExpiredSessions removes session rows past their expiry
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}

// SessionTTL is the lifetime of issued session cookies
func (s *AuthService) SessionTTL() time.Duration {
	return s.issuer.TTL()
}

func (s *AuthService) sessionUser(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	if claims == nil {
		return nil, errors.NewUnauthorizedError("Not authenticated")
	}
	user, err := s.users.FindByID(ctx, claims.UserSession.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, errors.NewUnauthorizedError("Session user no longer exists")
	}
	if user.IsSuspended() {
		return nil, errors.NewSuspendedError(user.ID)
	}
	return user, nil
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User, ip, userAgent string) (*SessionResult, error) {
	snapshot := auth.UserSession{
		ID:                 user.ID,
		Email:              user.Email,
		Name:               user.Name,
		Role:               user.Role,
		MustChangePassword: user.MustChangePassword,
		EmailVerified:      user.EmailVerified,
	}

	sessionID := utils.GenerateID()
	token, expiresAt, err := s.issuer.Issue(snapshot, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	err = s.sessions.Insert(ctx, &models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: utils.HashToken(token),
		ExpiresAt: expiresAt,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	return &SessionResult{
		Token:      token,
		ExpiresAt:  expiresAt,
		User:       snapshot,
		RedirectTo: domain.LandingPath(snapshot),
	}, nil
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) error {
	raw, err := utils.RandomHex(32)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	now := s.now().UTC()
	if err := s.verifications.InvalidateForUser(ctx, user.ID, now); err != nil {
		return fmt.Errorf("failed to invalidate previous tokens: %w", err)
	}
	err = s.verifications.Insert(ctx, &models.VerificationToken{
		ID:        utils.GenerateID(),
		UserID:    user.ID,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: now.Add(s.opts.VerificationTTL),
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("failed to store verification token: %w", err)
	}
	link := fmt.Sprintf("%s/api/auth/verify?token=%s", s.opts.PublicURL, raw)
	return s.notifier.SendVerification(ctx, user.Email, user.Name, link)
}

// allow consults the rate limiter. Limiter outages fail open.
func (s *AuthService) allow(ctx context.Context, key string) error {
	if s.limiter == nil {
		return nil
	}
	ok, retryAfter, err := s.limiter.Allow(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Msg("⚠️ Rate limiter unavailable")
		return nil
	}
	if !ok {
		return errors.NewRateLimitError(retryAfter)
	}
	return nil
}

func checkPassword(user *models.User, password string) bool {
	return auth.MatchTemporaryPassword(password, user.TemporaryPassword) || auth.VerifyPassword(password, user.PasswordHash)
}
