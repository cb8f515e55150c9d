package lifecycle

import (
	"fmt"

	"family-ledger-go/internal/domain/ledger"
)

type Event string

const (
	EventEdit    Event = "edit"
	EventSubmit  Event = "submit"
	EventCancel  Event = "cancel"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)

type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomePreconditionFailed
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomePreconditionFailed:
		return "precondition_failed"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Result is the tagged outcome of one attempted transition.
type Result struct {
	Outcome Outcome
	Event   Event
	From    ledger.Status
	To      ledger.Status
}

func (r Result) Applied() bool {
	return r.Outcome == OutcomeApplied
}

func (r Result) Err() error {
	switch r.Outcome {
	case OutcomeApplied:
		return nil
	case OutcomeNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: cannot %s a %s request", ErrPreconditionFailed, r.Event, r.From)
	}
}

var transitions = map[ledger.Status]map[Event]ledger.Status{
	ledger.StatusDraft: {
		EventEdit:   ledger.StatusDraft,
		EventSubmit: ledger.StatusPending,
		EventCancel: ledger.StatusCancelled,
	},
	ledger.StatusPending: {
		EventCancel:  ledger.StatusCancelled,
		EventApprove: ledger.StatusApproved,
		EventReject:  ledger.StatusRejected,
	},
}

// Transition looks the event up in the transition table. Terminal and
// unknown states accept nothing.
func Transition(from ledger.Status, event Event) Result {
	to, ok := transitions[from][event]
	if !ok {
		return Result{Outcome: OutcomePreconditionFailed, Event: event, From: from}
	}
	return Result{Outcome: OutcomeApplied, Event: event, From: from, To: to}
}

// Guard is Transition for a possibly missing request.
func Guard(request *ledger.PersonalExpenseRequest, event Event) Result {
	if request == nil {
		return Result{Outcome: OutcomeNotFound, Event: event}
	}
	return Transition(request.Status, event)
}

func Terminal(status ledger.Status) bool {
	return len(transitions[status]) == 0
}

func DecisionEvent(decision ledger.Decision) (Event, bool) {
	switch decision {
	case ledger.DecisionApprove:
		return EventApprove, true
	case ledger.DecisionReject:
		return EventReject, true
	default:
		return "", false
	}
}
