package rest

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/application/services"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/models"
	"github.com/marwie0904/shlg-custom-crm-sub002/internal/interfaces/middleware"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/auth"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
)

// AuthService defines the session operations used by AuthHandler
type AuthService interface {
	Login(ctx context.Context, in services.LoginInput) (*services.SessionResult, error)
	ChangePassword(ctx context.Context, claims *auth.Claims, in services.ChangePasswordInput) (*services.SessionResult, error)
	Verify(ctx context.Context, rawToken string, caller *auth.Claims, ip, userAgent string) (*services.VerifyResult, error)
	ResendVerification(ctx context.Context, claims *auth.Claims) error
	Logout(ctx context.Context, token string)
	Me(ctx context.Context, claims *auth.Claims) (*models.User, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	svc    AuthService
	cookie CookieOptions
	now    func() time.Time
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(svc AuthService, cookie CookieOptions) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie, now: time.Now}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest represents the change-password request body
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// VerifyRequest carries a verification token posted by the client
type VerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.svc.Login(c.Request.Context(), services.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	h.respondSession(c, result)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token, _ := c.Cookie(constants.SessionCookieName)
	h.svc.Logout(c.Request.Context(), token)
	clearSessionCookie(c, h.cookie)
	c.JSON(http.StatusOK, gin.H{
		constants.ResponseSuccess: true,
		"redirectTo":              domain.PathLogin,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), middleware.ClaimsFrom(c))
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// ChangePassword handles POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.svc.ChangePassword(c.Request.Context(), middleware.ClaimsFrom(c), services.ChangePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		IP:              c.ClientIP(),
		UserAgent:       c.Request.UserAgent(),
	})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	h.respondSession(c, result)
}

// VerifyLink handles GET /api/auth/verify?token=... from the emailed link and redirects the browser
func (h *AuthHandler) VerifyLink(c *gin.Context) {
	result, err := h.verify(c, c.Query("token"))
	if err != nil {
		c.Redirect(http.StatusFound, domain.PathLogin+"?verify="+url.QueryEscape(errors.GetErrorCode(err)))
		return
	}
	target := domain.PathLogin
	if result.Session != nil {
		h.setCookie(c, result.Session)
		target = result.Session.RedirectTo
	}
	c.Redirect(http.StatusFound, target)
}

// Verify handles POST /api/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req VerifyRequest
	if !BindJSON(c, &req) {
		return
	}
	result, err := h.verify(c, req.Token)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	response := gin.H{constants.ResponseSuccess: true, "redirectTo": domain.PathLogin}
	if result.Session != nil {
		h.setCookie(c, result.Session)
		response["user"] = result.Session.User
		response["redirectTo"] = result.Session.RedirectTo
	}
	c.JSON(http.StatusOK, response)
}

// ResendVerification handles POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	if err := h.svc.ResendVerification(c.Request.Context(), middleware.ClaimsFrom(c)); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseMessage: "Verification email sent"})
}

func (h *AuthHandler) verify(c *gin.Context, token string) (*services.VerifyResult, error) {
	return h.svc.Verify(c.Request.Context(), token, middleware.ClaimsFrom(c), c.ClientIP(), c.Request.UserAgent())
}

func (h *AuthHandler) respondSession(c *gin.Context, result *services.SessionResult) {
	h.setCookie(c, result)
	c.JSON(http.StatusOK, gin.H{
		"user":       result.User,
		"expiresAt":  result.ExpiresAt,
		"redirectTo": result.RedirectTo,
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, result *services.SessionResult) {
	ttl := result.ExpiresAt.Sub(h.now())
	if ttl < 0 {
		ttl = 0
	}
	setSessionCookie(c, h.cookie, result.Token, ttl)
}
