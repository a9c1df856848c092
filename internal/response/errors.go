package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Invitations ───────────────────────────────────────────────────
	ErrInvitationNotFound ErrCode = "INVITATION_NOT_FOUND"
	ErrInvitationExpired  ErrCode = "INVITATION_EXPIRED"

	// ─── Assessment sessions ───────────────────────────────────────────
	ErrAlreadyCompleted ErrCode = "ALREADY_COMPLETED"
	ErrUnknownQuestion  ErrCode = "UNKNOWN_QUESTION"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Invitations ───────────────────────────────────────────────────
	case ErrInvitationNotFound:
		return "This assessment link is invalid."
	case ErrInvitationExpired:
		return "This invitation has expired."

	// ─── Assessment sessions ───────────────────────────────────────────
	case ErrAlreadyCompleted:
		return "The assessment has already been submitted."
	case ErrUnknownQuestion:
		return "The question does not belong to this assessment."
	case ErrNoQuestions:
		return "This assessment has no questions."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
