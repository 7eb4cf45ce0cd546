package lifecycle

import (
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// transitionKey indexes the transition table.
type transitionKey struct {
	from  model.QuoteStatus
	event Event
}

// rule is one row of the transition table.
type rule struct {
	to      model.QuoteStatus
	actions []Action
}

// transitions is the exhaustive table of legal lifecycle movement.
// The universal cancel_requested and expired escapes are handled in Apply
// before this table is consulted.
var transitions = map[transitionKey]rule{
	{model.StatusDraft, EventFieldsCollected}:   {model.StatusValidated, []Action{ActionCalculatePricing}},
	{model.StatusRevised, EventFieldsCollected}: {model.StatusValidated, []Action{ActionCalculatePricing}},

	{model.StatusValidated, EventPricingCalculated}: {model.StatusPriced, []Action{ActionEvaluatePolicy}},

	{model.StatusPriced, EventPolicyClear}:     {model.StatusFinalized, []Action{ActionFinalizeQuote, ActionGenerateDeliveryArtifacts}},
	{model.StatusPriced, EventPolicyViolation}: {model.StatusPendingApproval, []Action{ActionNotifyApprovers}},

	{model.StatusPendingApproval, EventApprovalGranted}: {model.StatusApproved, []Action{ActionFinalizeQuote, ActionGenerateDeliveryArtifacts}},
	{model.StatusPendingApproval, EventApprovalDenied}:  {model.StatusRejected, []Action{ActionNotifyRequester}},

	{model.StatusApproved, EventDelivered}:  {model.StatusSent, []Action{ActionRecordDelivery}},
	{model.StatusFinalized, EventDelivered}: {model.StatusSent, []Action{ActionRecordDelivery}},

	{model.StatusRejected, EventReviseRequested}: {model.StatusRevised, []Action{ActionResetApprovals}},
	{model.StatusExpired, EventReviseRequested}:  {model.StatusRevised, []Action{ActionResetApprovals}},
}

// Engine evaluates lifecycle transitions against the fixed table.
// The zero value is ready to use.
type Engine struct{}

// NewEngine creates an Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply evaluates one (state, event) pair and returns the transition outcome,
// or a typed error when the pair is invalid or gated. Apply never mutates
// anything and never panics; a single call is a total function of its inputs.
func (e *Engine) Apply(current model.QuoteStatus, event Event, ctx Context) (*Outcome, error) {
	// Universal escape: cancellation is accepted from every state,
	// including the terminal ones.
	if event == EventCancelRequested {
		return &Outcome{
			From:    current,
			To:      model.StatusCancelled,
			Event:   event,
			Actions: []Action{ActionNotifyCancellation},
		}, nil
	}

	// Universal escape: expiry is accepted from every non-terminal state.
	// Expiring an already-sent or cancelled quote is invalid — a terminal
	// state must not be silently re-terminated.
	if event == EventExpired {
		if current.Terminal() {
			return nil, &InvalidTransitionError{From: current, Event: event}
		}
		if current == model.StatusExpired {
			// Repeat expiry sweeps are idempotent.
			return &Outcome{From: current, To: model.StatusExpired, Event: event}, nil
		}
		return &Outcome{
			From:    current,
			To:      model.StatusExpired,
			Event:   event,
			Actions: []Action{ActionArchiveQuote},
		}, nil
	}

	r, ok := transitions[transitionKey{from: current, event: event}]
	if !ok {
		return nil, &InvalidTransitionError{From: current, Event: event}
	}

	// fields_collected is gated on all required fields being present.
	if event == EventFieldsCollected && len(ctx.MissingRequiredFields) > 0 {
		return nil, &MissingFieldsError{State: current, Missing: ctx.MissingRequiredFields}
	}

	out := &Outcome{
		From:    current,
		To:      r.to,
		Event:   event,
		Actions: make([]Action, len(r.actions)),
	}
	copy(out.Actions, r.actions)
	return out, nil
}
