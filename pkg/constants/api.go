package constants

// HTTP and API constants
const (
	ContentTypeJSON = "application/json"

	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderXRequestID    = "X-Request-ID"

	// Webhook headers
	HeaderMetaSignature       = "X-Hub-Signature-256"
	HeaderConfidoSignature    = "X-Confido-Signature"
	HeaderRCValidationToken   = "Validation-Token"
	HeaderRCVerificationToken = "Verification-Token"
	HeaderIntakeSecret        = "X-Intake-Secret"
	HeaderRelaySecret         = "X-Relay-Secret"

	// Response Keys
	ResponseError   = "error"
	ResponseSuccess = "success"
	ResponseMessage = "message"
	ResponseItems   = "items"
)

// Query parameter constants
const (
	ParamLimit  = "limit"
	ParamOffset = "offset"
	ParamSearch = "q"

	DefaultLimit    = 50
	DefaultMaxLimit = 500
)

// Session cookie
const (
	SessionCookieName = "session"
	SessionCookiePath = "/"
)

// Context keys
const (
	ContextKeyUser   = "user"
	ContextKeyToken  = "token"
	ContextKeyClaims = "claims"
)
