package code

// HTTP status codes.
const (
	// StatusOK - 200: success.
	StatusOK = 200
	// StatusBadRequest - 400: invalid request parameters.
	StatusBadRequest = 400
	// StatusUnauthorized - 401: not authenticated.
	StatusUnauthorized = 401
	// StatusForbidden - 403: access denied.
	StatusForbidden = 403
	// StatusNotFound - 404: resource not found.
	StatusNotFound = 404
	// StatusConflict - 409: state conflict.
	StatusConflict = 409
	// StatusInternalServerError - 500: internal server error.
	StatusInternalServerError = 500
	// StatusTooManyRequests - 429: too many requests.
	StatusTooManyRequests = 429
)

// Common error codes (100xxx).
const (
	// ErrSuccess - 200: success.
	ErrSuccess int = iota + 100000
	// ErrUnknown - 500: unknown error.
	ErrUnknown
	// ErrBind - 400: request binding failed.
	ErrBind
	// ErrValidation - 400: request validation failed.
	ErrValidation
	// ErrTokenInvalid - 401: invalid token.
	ErrTokenInvalid
	// ErrTooManyRequests - 429: request rate too high.
	ErrTooManyRequests
)

// User error codes (101xxx).
const (
	// ErrUserNotFound - 404: user not found.
	ErrUserNotFound int = iota + 101000
	// ErrUserAlreadyExist - 400: user already exists.
	ErrUserAlreadyExist
	// ErrUserPasswordIncorrect - 401: wrong password.
	ErrUserPasswordIncorrect
	// ErrUserInactive - 403: user has been deactivated.
	ErrUserInactive
)

// Call error codes (102xxx).
const (
	// ErrCallNotFound - 404: call not found.
	ErrCallNotFound int = iota + 102000
	// ErrCallInvalidTransition - 409: the call is not in the expected status.
	ErrCallInvalidTransition
	// ErrCallRecipientBusy - 409: recipient already has a ringing or active call.
	ErrCallRecipientBusy
	// ErrCallNotParticipant - 403: user is not a party to the call.
	ErrCallNotParticipant
	// ErrRoomProvisionFailed - 500: video room could not be provisioned.
	ErrRoomProvisionFailed
)

// Presence error codes (103xxx).
const (
	// ErrPresenceUnavailable - 500: presence store unreachable.
	ErrPresenceUnavailable int = iota + 103000
)

// Notification error codes (104xxx).
const (
	// ErrPushTokenInvalid - 400: push token missing or malformed.
	ErrPushTokenInvalid int = iota + 104000
	// ErrPushDisabled - 400: user disabled push notifications.
	ErrPushDisabled
)

// Database error codes (105xxx).
const (
	// ErrDatabase - 500: database error.
	ErrDatabase int = iota + 105000
	// ErrRecordNotFound - 404: record not found.
	ErrRecordNotFound
)
