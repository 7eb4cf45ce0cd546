// Package lifecycle implements the quote lifecycle state machine.
//
// The transition table is fixed and total: every (state, event) pair not
// explicitly listed is invalid. Apply is a pure function of its inputs — all
// rejections are typed error values, never panics, and the engine performs
// no side effects. Each successful transition carries an ordered list of
// actions for the caller to execute; the engine only names them.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// Event is an incoming lifecycle trigger.
type Event string

const (
	EventFieldsCollected   Event = "fields_collected"
	EventPricingCalculated Event = "pricing_calculated"
	EventPolicyClear       Event = "policy_clear"
	EventPolicyViolation   Event = "policy_violation"
	EventApprovalGranted   Event = "approval_granted"
	EventApprovalDenied    Event = "approval_denied"
	EventDelivered         Event = "delivered"
	EventReviseRequested   Event = "revise_requested"
	EventCancelRequested   Event = "cancel_requested"
	EventExpired           Event = "expired"
)

// Valid reports whether e is a member of the closed event set.
func (e Event) Valid() bool {
	switch e {
	case EventFieldsCollected, EventPricingCalculated, EventPolicyClear,
		EventPolicyViolation, EventApprovalGranted, EventApprovalDenied,
		EventDelivered, EventReviseRequested, EventCancelRequested,
		EventExpired:
		return true
	}
	return false
}

// Action is a side-effect label attached to a transition. Actions are
// returned to the caller in order, never executed here.
type Action string

const (
	ActionCalculatePricing          Action = "CalculatePricing"
	ActionEvaluatePolicy            Action = "EvaluatePolicy"
	ActionFinalizeQuote             Action = "FinalizeQuote"
	ActionGenerateDeliveryArtifacts Action = "GenerateDeliveryArtifacts"
	ActionNotifyApprovers           Action = "NotifyApprovers"
	ActionNotifyRequester           Action = "NotifyRequester"
	ActionResetApprovals            Action = "ResetApprovals"
	ActionRecordDelivery            Action = "RecordDelivery"
	ActionNotifyCancellation        Action = "NotifyCancellation"
	ActionArchiveQuote              Action = "ArchiveQuote"
)

// Context carries per-call inputs that gate certain transitions.
type Context struct {
	// MissingRequiredFields blocks fields_collected when non-empty.
	MissingRequiredFields []string
}

// Outcome describes one accepted transition. It is a value object,
// immutable once produced.
type Outcome struct {
	From    model.QuoteStatus `json:"from"`
	To      model.QuoteStatus `json:"to"`
	Event   Event             `json:"event"`
	Actions []Action          `json:"actions"`
}

// InvalidTransitionError reports a (state, event) pair outside the table.
type InvalidTransitionError struct {
	From  model.QuoteStatus
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: no rule for event %q in state %q", e.Event, e.From)
}

// MissingFieldsError reports a fields_collected event arriving while
// required fields are still unset. The state is unchanged.
type MissingFieldsError struct {
	State   model.QuoteStatus
	Missing []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("required fields missing in state %q: %s", e.State, strings.Join(e.Missing, ", "))
}
