package errs

// Admission errors terminate the upgrade or connection and are never
// retried by the gateway.
const (
	UnauthenticatedError     = 1001
	TokenExpiredError        = 1002
	TokenRevokedError        = 1003
	TooManyConnectionsError  = 1004
	AdmissionRateLimitedErr  = 1005
	BadRequestError          = 1006
	OriginNotAllowedError    = 1007

	// Protocol errors drop the offending frame; the connection stays open.
	FrameOversizeError    = 1101
	FrameMalformedError   = 1102
	UnknownFrameTypeError = 1103
	DisallowedContentErr  = 1104
	MissingFieldError     = 1105

	RateLimitedError = 1200

	DependencyDegradedError = 1300

	ServerInternalError = 1500
)

var (
	ErrUnauthenticated    = NewCodeError(UnauthenticatedError, "unauthenticated")
	ErrTokenExpired       = NewCodeError(TokenExpiredError, "token expired")
	ErrTokenRevoked       = NewCodeError(TokenRevokedError, "token revoked")
	ErrTooManyConnections = NewCodeError(TooManyConnectionsError, "too many simultaneous connections")
	ErrAdmissionLimited   = NewCodeError(AdmissionRateLimitedErr, "connection admission rate exceeded")
	ErrBadRequest         = NewCodeError(BadRequestError, "missing or malformed parameter")
	ErrOriginNotAllowed   = NewCodeError(OriginNotAllowedError, "origin not allowed")

	ErrFrameOversize     = NewCodeError(FrameOversizeError, "frame exceeds size limit")
	ErrFrameMalformed    = NewCodeError(FrameMalformedError, "malformed frame")
	ErrUnknownFrameType  = NewCodeError(UnknownFrameTypeError, "unknown frame type")
	ErrDisallowedContent = NewCodeError(DisallowedContentErr, "disallowed content")
	ErrMissingField      = NewCodeError(MissingFieldError, "missing required field")

	ErrRateLimited = NewCodeError(RateLimitedError, "message rate exceeded")

	ErrDependencyDegraded = NewCodeError(DependencyDegradedError, "shared dependency degraded")

	ErrInternal = NewCodeError(ServerInternalError, "internal error")
)
