package services

import "github.com/jmgilman/go/errors"

// Domain error codes layered on the shared platform taxonomy. Standard codes
// (NOT_FOUND, CONFLICT, NETWORK_ERROR, INVALID_INPUT, FORBIDDEN) are used
// where they fit; these cover the credential lifecycle and rendering.
const (
	// CodeExpired marks a verification code or secure token past its TTL.
	CodeExpired errors.ErrorCode = "EXPIRED"

	// CodeExhausted marks a verification code whose attempt budget is spent.
	CodeExhausted errors.ErrorCode = "ATTEMPTS_EXHAUSTED"

	// CodeAlreadyUsed marks a secure token consumed by a completed signing.
	CodeAlreadyUsed errors.ErrorCode = "ALREADY_USED"

	// CodeRender marks a PDF parse or stamp failure.
	CodeRender errors.ErrorCode = "RENDER_FAILED"
)
