package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrSessionExpired  ErrCode = "SESSION_EXPIRED"

	// ─── Challenges ────────────────────────────────────────────────────
	ErrChallengeUnknown ErrCode = "CHALLENGE_UNKNOWN"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidPayload:
		return "The request payload is invalid."
	case ErrSessionNotFound:
		return "This session does not exist."
	case ErrSessionExpired:
		return "This session has ended and can no longer be used."
	case ErrChallengeUnknown:
		return "Unknown challenge identifier."
	case ErrInternal:
		return "An unexpected error occurred."
	default:
		return "An unexpected error occurred."
	}
}
