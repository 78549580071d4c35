package code

// Error code to message mapping
var codeMessageMap = map[int]string{
	ErrSuccess:         "success",
	ErrUnknown:         "unknown error",
	ErrBind:            "request binding failed",
	ErrValidation:      "request validation failed",
	ErrTokenInvalid:    "invalid authentication token",
	ErrTooManyRequests: "too many requests",

	ErrUserNotFound:          "user not found",
	ErrUserAlreadyExist:      "user already exists",
	ErrUserPasswordIncorrect: "incorrect password",
	ErrUserInactive:          "user account is deactivated",

	ErrCallNotFound:          "call not found",
	ErrCallInvalidTransition: "call is not in the expected status",
	ErrCallRecipientBusy:     "recipient is busy",
	ErrCallNotParticipant:    "not a participant of this call",
	ErrRoomProvisionFailed:   "failed to provision video room",

	ErrPresenceUnavailable: "presence store unavailable",

	ErrPushTokenInvalid: "invalid push token",
	ErrPushDisabled:     "push notifications disabled for this user",

	ErrDatabase:       "database error",
	ErrRecordNotFound: "record not found",
}

// Error code to HTTP status mapping
var codeStatusMap = map[int]int{
	ErrSuccess:         StatusOK,
	ErrUnknown:         StatusInternalServerError,
	ErrBind:            StatusBadRequest,
	ErrValidation:      StatusBadRequest,
	ErrTokenInvalid:    StatusUnauthorized,
	ErrTooManyRequests: StatusTooManyRequests,

	ErrUserNotFound:          StatusNotFound,
	ErrUserAlreadyExist:      StatusBadRequest,
	ErrUserPasswordIncorrect: StatusUnauthorized,
	ErrUserInactive:          StatusForbidden,

	ErrCallNotFound:          StatusNotFound,
	ErrCallInvalidTransition: StatusConflict,
	ErrCallRecipientBusy:     StatusConflict,
	ErrCallNotParticipant:    StatusForbidden,
	ErrRoomProvisionFailed:   StatusInternalServerError,

	ErrPresenceUnavailable: StatusInternalServerError,

	ErrPushTokenInvalid: StatusBadRequest,
	ErrPushDisabled:     StatusBadRequest,

	ErrDatabase:       StatusInternalServerError,
	ErrRecordNotFound: StatusNotFound,
}

// GetMessage returns the message for an error code
func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return "unknown error"
}

// GetStatus returns the HTTP status for an error code
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return StatusInternalServerError
}
