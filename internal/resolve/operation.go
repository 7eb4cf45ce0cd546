// Package resolve implements operational-transform style conflict resolution
// for concurrent quote edits. A batch of competing field-level operations is
// reduced to one deterministic outcome per target line, with a full decision
// history recording why each operation was applied, overridden, or rejected.
package resolve

import (
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// OpKind discriminates the Operation sum type. The set is closed: adding a
// kind requires revisiting every switch over OpKind.
type OpKind string

const (
	OpInsert OpKind = "insert"
	OpUpdate OpKind = "update"
	OpDelete OpKind = "delete"
)

// Authority identifies the seniority of an operation's submitter.
// Higher Rank is more senior and wins conflicts.
type Authority struct {
	Role string `json:"role"`
	Rank int    `json:"rank"`
}

// UpdateSpec carries the mutable fields of an update operation.
// Nil fields are left untouched on the target line.
type UpdateSpec struct {
	Target    string   `json:"target"`
	Quantity  *int     `json:"quantity,omitempty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
}

// DeleteSpec names the line an operation removes.
type DeleteSpec struct {
	Target string `json:"target"`
}

// Operation is one competing edit. Operations are inputs only — the resolver
// never mutates them. Exactly one of Insert, Update, Delete is set,
// matching Kind.
type Operation struct {
	ID          string          `json:"operation_id"`
	QuoteID     string          `json:"record_id"`
	ActorID     string          `json:"actor_user_id"`
	Authority   Authority       `json:"authority"`
	TimestampMS int64           `json:"timestamp_ms"`
	Kind        OpKind          `json:"kind"`
	Insert      *model.LineItem `json:"insert,omitempty"`
	Update      *UpdateSpec     `json:"update,omitempty"`
	Delete      *DeleteSpec     `json:"delete,omitempty"`
}

// TargetKey returns the product id the operation addresses.
func (o *Operation) TargetKey() string {
	switch o.Kind {
	case OpInsert:
		if o.Insert != nil {
			return o.Insert.ProductID
		}
	case OpUpdate:
		if o.Update != nil {
			return o.Update.Target
		}
	case OpDelete:
		if o.Delete != nil {
			return o.Delete.Target
		}
	}
	return ""
}

// HistoryStatus is the recorded fate of one operation.
type HistoryStatus string

const (
	StatusApplied    HistoryStatus = "applied"
	StatusOverridden HistoryStatus = "overridden"
	StatusRejected   HistoryStatus = "rejected"
)

// HistoryEntry is the immutable audit record of one operation's fate.
type HistoryEntry struct {
	Target       string        `json:"target"`
	OperationID  string        `json:"operation_id"`
	ActorID      string        `json:"actor_user_id"`
	Status       HistoryStatus `json:"status"`
	Reason       string        `json:"reason"`
	SupersededBy string        `json:"superseded_by,omitempty"`
}

// Result is the outcome of one Transform batch.
type Result struct {
	Applied    []string       `json:"applied"`
	Overridden []string       `json:"overridden"`
	Rejected   []string       `json:"rejected"`
	History    []HistoryEntry `json:"history"`
}
