package models

import "time"

// User is a staff account
type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	Name               string     `json:"name"`
	Role               string     `json:"role"`
	Status             string     `json:"status"`
	PasswordHash       string     `json:"-"`
	TemporaryPassword  string     `json:"-"`
	MustChangePassword bool       `json:"must_change_password"`
	EmailVerified      bool       `json:"email_verified"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
	CreatedDate        time.Time  `json:"created_date"`
	LastModifiedDate   time.Time  `json:"last_modified_date"`
}

// IsSuspended reports whether the account is suspended
func (u *User) IsSuspended() bool {
	return u.Status == "suspended"
}

// Session is a persisted login. Only the SHA-256 of the JWT is stored.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationToken is a single-use email verification token
type VerificationToken struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TokenHash  string     `json:"-"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
