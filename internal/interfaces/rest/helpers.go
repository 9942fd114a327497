package rest

import (
	stderrors "errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/interfaces/middleware"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/constants"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/errors"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
)

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	errorCode := errors.GetErrorCode(err)
	message := err.Error()

	if code >= 500 {
		log.Error().Err(err).
			Str(logging.REQUEST_ID, c.GetString(logging.REQUEST_ID)).
			Int(logging.STATUS_CODE, code).
			Msgf("❌ %s %s", c.Request.Method, c.Request.URL.Path)
		if code == http.StatusInternalServerError {
			message = "internal server error"
		}
	}
	var limited *errors.RateLimitError
	if stderrors.As(err, &limited) && limited.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
	}

	c.JSON(code, gin.H{
		constants.ResponseError:   message, // Legacy
		constants.ResponseMessage: message, // Standard
		"code":                    errorCode,
		"data":                    nil,
	})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleCreateEnvelope binds input, runs the create action and returns the created object
// Response: { message: successMsg, [key]: result }
func HandleCreateEnvelope(c *gin.Context, key, successMsg string, input interface{}, action func() (interface{}, error)) {
	handleWrite(c, http.StatusCreated, key, successMsg, input, action)
}

// HandleUpdateEnvelope binds input, runs the update action and returns the updated object
// Response: { message: successMsg, [key]: result }
func HandleUpdateEnvelope(c *gin.Context, key, successMsg string, input interface{}, action func() (interface{}, error)) {
	handleWrite(c, http.StatusOK, key, successMsg, input, action)
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { message: successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{constants.ResponseMessage: successMsg})
}

func handleWrite(c *gin.Context, status int, key, successMsg string, input interface{}, action func() (interface{}, error)) {
	if input != nil && !BindJSON(c, input) {
		return
	}
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	response := gin.H{constants.ResponseMessage: successMsg}
	if key != "" {
		response[key] = result
	}
	c.JSON(status, response)
}

// actorID is the id of the signed-in user, empty for anonymous requests
func actorID(c *gin.Context) string {
	if user := middleware.UserFrom(c); user != nil {
		return user.ID
	}
	return ""
}

// paging reads limit/offset query parameters, clamped to sane bounds
func paging(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, constants.ParamLimit, constants.DefaultLimit)
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.DefaultMaxLimit {
		limit = constants.DefaultMaxLimit
	}
	offset = queryInt(c, constants.ParamOffset, 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// CookieOptions controls the session cookie attributes
type CookieOptions struct {
	Secure bool
}

func setSessionCookie(c *gin.Context, opts CookieOptions, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.SessionCookieName, token, int(ttl.Seconds()), constants.SessionCookiePath, "", opts.Secure, true)
}

func clearSessionCookie(c *gin.Context, opts CookieOptions) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(constants.SessionCookieName, "", -1, constants.SessionCookiePath, "", opts.Secure, true)
}
