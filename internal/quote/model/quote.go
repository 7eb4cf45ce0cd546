package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QuoteStatus represents the lifecycle state of a quote.
type QuoteStatus string

const (
	StatusDraft           QuoteStatus = "draft"
	StatusValidated       QuoteStatus = "validated"
	StatusPriced          QuoteStatus = "priced"
	StatusPendingApproval QuoteStatus = "pending_approval"
	StatusApproved        QuoteStatus = "approved"
	StatusRejected        QuoteStatus = "rejected"
	StatusFinalized       QuoteStatus = "finalized"
	StatusSent            QuoteStatus = "sent"
	StatusExpired         QuoteStatus = "expired"
	StatusCancelled       QuoteStatus = "cancelled"
	StatusRevised         QuoteStatus = "revised"
)

// Valid reports whether s is a member of the closed status set.
func (s QuoteStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusValidated, StatusPriced, StatusPendingApproval,
		StatusApproved, StatusRejected, StatusFinalized, StatusSent,
		StatusExpired, StatusCancelled, StatusRevised:
		return true
	}
	return false
}

// Terminal reports whether the status accepts no further lifecycle events
// other than cancellation.
func (s QuoteStatus) Terminal() bool {
	return s == StatusSent || s == StatusCancelled
}

// LineItem is a single product line on a quote. Lines are unique by
// ProductID within a quote.
type LineItem struct {
	ProductID string  `json:"product_id" db:"product_id"`
	Quantity  int     `json:"quantity"   db:"quantity"`
	UnitPrice float64 `json:"unit_price" db:"unit_price"`
}

// Quote is the core domain record. Components receive it by reference per
// call and never own its storage.
type Quote struct {
	ID          uuid.UUID   `json:"id"           db:"id"`
	QuoteNumber string      `json:"quote_number" db:"quote_number"`
	CustomerID  string      `json:"customer_id"  db:"customer_id"`
	Lines       []LineItem  `json:"lines"        db:"-"`
	Status      QuoteStatus `json:"status"       db:"status"`
	Version     int         `json:"version"      db:"version"`
	CreatedAt   time.Time   `json:"created_at"   db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"   db:"updated_at"`
}

// Line returns the line item for productID, or nil if absent.
func (q *Quote) Line(productID string) *LineItem {
	for i := range q.Lines {
		if q.Lines[i].ProductID == productID {
			return &q.Lines[i]
		}
	}
	return nil
}

// Snapshot is the canonical serializable view of a quote, used by the
// integrity ledger to compute content hashes. Field order is fixed so the
// JSON encoding of two identical snapshots is byte-identical.
type Snapshot struct {
	ID          string      `json:"id"`
	QuoteNumber string      `json:"quote_number"`
	CustomerID  string      `json:"customer_id"`
	Status      QuoteStatus `json:"status"`
	Version     int         `json:"version"`
	Lines       []LineItem  `json:"lines"`
}

// Snapshot returns the canonical view of the quote's current state.
func (q *Quote) Snapshot() Snapshot {
	return Snapshot{
		ID:          q.ID.String(),
		QuoteNumber: q.QuoteNumber,
		CustomerID:  q.CustomerID,
		Status:      q.Status,
		Version:     q.Version,
		Lines:       q.Lines,
	}
}

// ErrValidation is returned for malformed client input.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }

// CreateRequest is the payload for creating a new quote record.
type CreateRequest struct {
	QuoteNumber string     `json:"quote_number"`
	CustomerID  string     `json:"customer_id" binding:"required"`
	Lines       []LineItem `json:"lines"`
}

// Validate checks a CreateRequest for structural problems: missing customer,
// duplicate product lines, non-positive quantities.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.CustomerID) == "" {
		return &ErrValidation{Msg: "customer_id is required"}
	}
	seen := make(map[string]bool, len(r.Lines))
	for _, l := range r.Lines {
		if l.ProductID == "" {
			return &ErrValidation{Msg: "line item product_id is required"}
		}
		if seen[l.ProductID] {
			return &ErrValidation{Msg: fmt.Sprintf("duplicate line item for product %s", l.ProductID)}
		}
		seen[l.ProductID] = true
		if l.Quantity <= 0 {
			return &ErrValidation{Msg: fmt.Sprintf("quantity must be positive for product %s", l.ProductID)}
		}
	}
	return nil
}
