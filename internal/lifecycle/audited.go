package lifecycle

import (
	"time"

	"github.com/google/uuid"
	"github.com/quoteforge/quoteforge/internal/audit"
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// Audit event types emitted by AuditedEngine.
const (
	EventTypeTransitionApplied  = "transition.applied"
	EventTypeTransitionRejected = "transition.rejected"
)

// AuditedEngine wraps Engine and emits one structured audit event per call
// to an injected sink. Emission happens after the result is computed and
// never alters it.
type AuditedEngine struct {
	engine *Engine
	sink   audit.Sink
}

// NewAuditedEngine creates an AuditedEngine. sink must be non-nil.
func NewAuditedEngine(engine *Engine, sink audit.Sink) *AuditedEngine {
	return &AuditedEngine{engine: engine, sink: sink}
}

// Apply evaluates the transition exactly as Engine.Apply, then emits a
// transition.applied or transition.rejected audit event for quoteID/actor.
func (a *AuditedEngine) Apply(quoteID, actor string, current model.QuoteStatus, event Event, ctx Context) (*Outcome, error) {
	out, err := a.engine.Apply(current, event, ctx)

	ev := audit.Event{
		QuoteID:       quoteID,
		CorrelationID: uuid.New().String(),
		Category:      audit.CategoryLifecycle,
		Actor:         actor,
		Timestamp:     time.Now().UTC(),
		Metadata: map[string]string{
			"event": string(event),
			"from":  string(current),
		},
	}
	if err != nil {
		ev.Type = EventTypeTransitionRejected
		ev.Outcome = audit.OutcomeRejected
		ev.Metadata["error"] = err.Error()
	} else {
		ev.Type = EventTypeTransitionApplied
		ev.Outcome = audit.OutcomeApplied
		ev.Metadata["to"] = string(out.To)
	}
	a.sink.Emit(ev)

	return out, err
}
