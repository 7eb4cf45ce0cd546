// Package audit defines the structured event sink used by the audited
// lifecycle engine. The sink is a single-method capability: callers emit one
// event per decision, synchronously, with no buffering or retry.
package audit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event categories.
const (
	CategoryLifecycle = "lifecycle"
)

// Event outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)

// Event is a single structured audit record.
type Event struct {
	QuoteID       string            `json:"quote_id"`
	CorrelationID string            `json:"correlation_id"`
	Type          string            `json:"type"`
	Category      string            `json:"category"`
	Actor         string            `json:"actor"`
	Outcome       string            `json:"outcome"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// Sink receives audit events. Implementations must not block for long and
// must never panic; emission failures are the sink's own concern.
type Sink interface {
	Emit(ev Event)
}

// ZapSink writes audit events to a zap logger at Info level.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a ZapSink.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Emit implements Sink.
func (s *ZapSink) Emit(ev Event) {
	fields := []zap.Field{
		zap.String("quote_id", ev.QuoteID),
		zap.String("correlation_id", ev.CorrelationID),
		zap.String("type", ev.Type),
		zap.String("category", ev.Category),
		zap.String("actor", ev.Actor),
		zap.String("outcome", ev.Outcome),
		zap.Time("at", ev.Timestamp),
	}
	for k, v := range ev.Metadata {
		fields = append(fields, zap.String("meta_"+k, v))
	}
	s.logger.Info("audit event", fields...)
}

// MemorySink collects events in memory for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Emit implements Sink.
func (s *MemorySink) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Events returns a copy of all events emitted so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
