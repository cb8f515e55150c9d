package lifecycle

import (
	"errors"
	"fmt"

	"family-ledger-go/internal/domain/ledger"
)

var (
	ErrNotFound             = errors.New("personal expense not found")
	ErrPreconditionFailed   = errors.New("precondition failed")
	ErrNotOwner             = fmt.Errorf("only the owner can change this request: %w", ledger.ErrForbidden)
	ErrNotAdmin             = fmt.Errorf("only admins can decide: %w", ledger.ErrForbidden)
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrUploadFailed         = errors.New("attachment upload failed")
)

// ConfirmationError carries the prompt the user has to accept.
type ConfirmationError struct {
	Prompt string
}

func (e *ConfirmationError) Error() string {
	return "confirmation required: " + e.Prompt
}

func (e *ConfirmationError) Unwrap() error {
	return ErrConfirmationRequired
}
