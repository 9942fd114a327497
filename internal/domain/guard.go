package domain

import (
	"strings"

	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
)

// Redirect targets used by the guard policy
const (
	PathLogin          = "/login"
	PathChangePassword = "/change-password"
	PathVerifyPending  = "/verify-pending"
	PathHome           = "/"
)

// Reason explains why the guard denied a request
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonMustChange      Reason = "must_change_password"
	ReasonUnverified      Reason = "unverified"
	ReasonNotAdmin        Reason = "not_admin"
)

// Decision is the outcome of the guard policy for one request
type Decision struct {
	Allow      bool
	RedirectTo string
	Reason     Reason
}

var publicPrefixes = []string{
	"/health",
	"/metrics",
	"/assets/",
	"/favicon.ico",
	"/api/auth/login",
	"/api/auth/logout",
	"/api/auth/verify",
	"/api/auth/meta/callback",
	"/api/webhooks/",
	"/api/intake",
}

// paths reachable while a password change is pending
var mustChangePaths = []string{
	PathChangePassword,
	"/api/auth/change-password",
	"/api/auth/me",
}

// paths reachable while email verification is pending
var unverifiedPaths = []string{
	PathVerifyPending,
	PathChangePassword,
	"/api/auth/change-password",
	"/api/auth/resend-verification",
	"/api/auth/me",
}

// IsPublicPath reports whether path bypasses the guard entirely. Entries ending in a
// slash cover their whole subtree; the rest match whole path segments.
func IsPublicPath(path string) bool {
	if path == PathLogin {
		return true
	}
	for _, p := range publicPrefixes {
		if strings.HasSuffix(p, "/") {
			if strings.HasPrefix(path, p) {
				return true
			}
			continue
		}
		if matchPrefix(path, p) {
			return true
		}
	}
	return false
}

// IsAdminPath reports whether path is restricted to administrators
func IsAdminPath(path string) bool {
	return matchPrefix(path, "/admin") || matchPrefix(path, "/api/admin")
}

// IsAPIPath reports whether path is a JSON endpoint
func IsAPIPath(path string) bool {
	return matchPrefix(path, "/api")
}

// Decide applies the guard policy. user is nil for anonymous requests.
func Decide(user *auth.UserSession, path string) Decision {
	if IsPublicPath(path) {
		return Decision{Allow: true}
	}
	if user == nil {
		return Decision{RedirectTo: PathLogin, Reason: ReasonUnauthenticated}
	}
	if user.MustChangePassword {
		if inList(path, mustChangePaths) {
			return Decision{Allow: true}
		}
		return Decision{RedirectTo: PathChangePassword, Reason: ReasonMustChange}
	}
	if !user.EmailVerified {
		if inList(path, unverifiedPaths) {
			return Decision{Allow: true}
		}
		return Decision{RedirectTo: PathVerifyPending, Reason: ReasonUnverified}
	}
	if IsAdminPath(path) && !user.IsAdmin() {
		return Decision{RedirectTo: PathHome, Reason: ReasonNotAdmin}
	}
	if path == PathVerifyPending {
		return Decision{RedirectTo: PathHome, Reason: ReasonNone}
	}
	return Decision{Allow: true}
}

// LandingPath is where a freshly authenticated user should go
func LandingPath(user auth.UserSession) string {
	switch {
	case user.MustChangePassword:
		return PathChangePassword
	case !user.EmailVerified:
		return PathVerifyPending
	}
	return PathHome
}

func inList(path string, list []string) bool {
	for _, p := range list {
		if path == p {
			return true
		}
	}
	return false
}

func matchPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
