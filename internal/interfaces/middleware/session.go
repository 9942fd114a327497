package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
)

// SessionValidator resolves a session cookie into claims
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) (*auth.Claims, domain.SessionState)
}

// LoadSession reads the session cookie and stores the claims on the context.
// Requests without a valid session continue as anonymous; Guard decides what they may reach.
func LoadSession(validator SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(constants.SessionCookieName)
		if err != nil || token == "" {
			c.Next()
			return
		}

		claims, state := validator.ValidateSession(c.Request.Context(), token)
		if claims == nil || state == domain.SessionAnonymous || state == domain.SessionSuspended {
			c.Next()
			return
		}

		c.Set(constants.ContextKeyClaims, claims)
		c.Set(constants.ContextKeyUser, claims.UserSession)
		c.Set(constants.ContextKeyToken, token)
		c.Next()
	}
}

// Guard applies the route policy. Pages are redirected, API calls get a JSON error carrying redirectTo.
func Guard() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		decision := domain.Decide(UserFrom(c), path)
		if decision.Allow {
			c.Next()
			return
		}

		if domain.IsAPIPath(path) {
			status, code := http.StatusForbidden, "FORBIDDEN"
			if decision.Reason == domain.ReasonUnauthenticated {
				status, code = http.StatusUnauthorized, "UNAUTHORIZED"
			}
			c.AbortWithStatusJSON(status, gin.H{
				constants.ResponseError:   http.StatusText(status),
				constants.ResponseMessage: guardMessage(decision.Reason),
				"code":                    code,
				"reason":                  string(decision.Reason),
				"redirectTo":              decision.RedirectTo,
				"data":                    nil,
			})
			return
		}

		c.Redirect(http.StatusFound, decision.RedirectTo)
		c.Abort()
	}
}

// RequireAdmin rejects sessions without the admin role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFrom(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				constants.ResponseError:   "Unauthorized",
				constants.ResponseMessage: "User not authenticated",
				"code":                    "UNAUTHORIZED",
				"data":                    nil,
			})
			return
		}
		if !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				constants.ResponseError:   "Forbidden",
				constants.ResponseMessage: "Only administrators can access this resource",
				"code":                    "FORBIDDEN",
				"data":                    nil,
			})
			return
		}
		c.Next()
	}
}

// UserFrom returns the session user, nil for anonymous requests
func UserFrom(c *gin.Context) *auth.UserSession {
	v, ok := c.Get(constants.ContextKeyUser)
	if !ok {
		return nil
	}
	user, ok := v.(auth.UserSession)
	if !ok {
		return nil
	}
	return &user
}

// ClaimsFrom returns the validated session claims
func ClaimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(constants.ContextKeyClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// TokenFrom returns the raw session token
func TokenFrom(c *gin.Context) string {
	return c.GetString(constants.ContextKeyToken)
}

func guardMessage(reason domain.Reason) string {
	switch reason {
	case domain.ReasonUnauthenticated:
		return "Authentication required"
	case domain.ReasonMustChange:
		return "Password change required"
	case domain.ReasonUnverified:
		return "Email verification required"
	case domain.ReasonNotAdmin:
		return "Only administrators can access this resource"
	}
	return "Access denied"
}
