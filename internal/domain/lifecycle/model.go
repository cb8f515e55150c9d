package lifecycle

import (
	"context"
	"io"
	"time"

	"family-ledger-go/internal/domain/ledger"
)

const (
	PromptSubmit        = "Submit this request for approval?"
	PromptCancel        = "Cancel this request?"
	PromptRejectNoReply = "Reject without a comment?"
)

// Confirmer is the "are you sure" gate in front of irreversible actions.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Confirmed answers every prompt with the given value, which is how a
// request body's "confirm" flag reaches the controller.
func Confirmed(answer bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) bool { return answer })
}

type Upload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// DecideInput keeps the approved amount as typed by the admin; it is parsed
// and checked before anything is sent.
type DecideInput struct {
	Decision       ledger.Decision `json:"decision"`
	Comment        string          `json:"comment"`
	ApprovedAmount string          `json:"approved_amount"`
}

// Change is published after every applied transition.
type Change struct {
	ID             string        `json:"id"`
	RequestID      string        `json:"request_id"`
	Event          Event         `json:"event"`
	From           ledger.Status `json:"from"`
	To             ledger.Status `json:"to"`
	Actor          string        `json:"actor"`
	ApprovedAmount *float64      `json:"approved_amount,omitempty"`
	At             time.Time     `json:"at"`
}

func (c Change) RoutingKey() string {
	return "personal_expense." + string(c.Event)
}
