package utils

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrNotFound         = "not found"
	ErrConflict         = "conflict"
	ErrValidationFailed = "validation failed"
	ErrForbidden        = "forbidden"
)

// Error codes returned in the response envelope.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeProtectedContact   = "PROTECTED_CONTACT"
	CodeDispatchInProgress = "DISPATCH_IN_PROGRESS"
	CodeSpeechUnsupported  = "SPEECH_UNSUPPORTED"
	CodeAlreadyListening   = "ALREADY_LISTENING"
	CodeNotListening       = "NOT_LISTENING"
	CodeEmptyMessage       = "EMPTY_MESSAGE"
	CodeInternal           = "INTERNAL_ERROR"
)

// Chat
const (
	MaxMessageLength = 1000
)
