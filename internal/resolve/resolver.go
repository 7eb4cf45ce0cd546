package resolve

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quoteforge/quoteforge/internal/quote/model"
	"go.uber.org/zap"
)

// Resolver reconciles batches of concurrent operations against a quote.
//
// Transform mutates only the quote's line items; status, version, and every
// other record-level field belong to the caller, which must also serialise
// Transform calls for the same quote id (one writer per identity). History
// for distinct quote ids is isolated, so different quotes never contend.
type Resolver struct {
	logger *zap.Logger

	mu sync.RWMutex
	// history accumulates HistoryEntry batches per quote id for the lifetime
	// of the resolver. Append-only.
	history map[string][]HistoryEntry
}

// NewResolver creates a Resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:  logger,
		history: make(map[string][]HistoryEntry),
	}
}

// Transform reconciles ops against q, mutating q.Lines in place and
// returning the batch outcome. The result is deterministic: identical inputs
// in identical order always produce the same lines and the same history,
// independent of map iteration order.
func (r *Resolver) Transform(q *model.Quote, ops []Operation) *Result {
	res := &Result{
		Applied:    []string{},
		Overridden: []string{},
		Rejected:   []string{},
	}

	quoteID := q.ID.String()

	// Step 1: operations addressed to a different quote are rejected outright
	// and excluded from grouping.
	groups := make(map[string][]Operation)
	for _, op := range ops {
		if op.QuoteID != quoteID {
			res.Rejected = append(res.Rejected, op.ID)
			res.History = append(res.History, HistoryEntry{
				Target:      op.TargetKey(),
				OperationID: op.ID,
				ActorID:     op.ActorID,
				Status:      StatusRejected,
				Reason:      fmt.Sprintf("quote id mismatch: operation targets %s", op.QuoteID),
			})
			continue
		}
		key := op.TargetKey()
		groups[key] = append(groups[key], op)
	}

	// Step 3: fixed lexicographic target order keeps the batch reproducible.
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Working copy of the lines; replaced wholesale at the end of the batch.
	working := make([]model.LineItem, len(q.Lines))
	copy(working, q.Lines)

	for _, key := range keys {
		working = resolveGroup(res, working, groups[key])
	}

	q.Lines = working

	r.mu.Lock()
	r.history[quoteID] = append(r.history[quoteID], res.History...)
	r.mu.Unlock()

	r.logger.Debug("transform batch resolved",
		zap.String("quote_id", quoteID),
		zap.Int("applied", len(res.Applied)),
		zap.Int("overridden", len(res.Overridden)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res
}

// History returns the accumulated decision trail for quoteID across every
// Transform call on this resolver instance.
func (r *Resolver) History(quoteID string) []HistoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.history[quoteID]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)
	return out
}

// resolveGroup walks one target group in precedence order. The first
// candidate that validates and applies wins; everything after the winner is
// overridden regardless of its own validity, and invalid candidates seen
// before a winner are rejected with their specific reason so evaluation can
// fall back to the next-best edit.
func resolveGroup(res *Result, working []model.LineItem, group []Operation) []model.LineItem {
	ordered := orderByPrecedence(group)

	winner := ""
	// ordered is ascending by precedence; walk it from the top.
	for i := len(ordered) - 1; i >= 0; i-- {
		op := ordered[i]

		if winner != "" {
			res.Overridden = append(res.Overridden, op.ID)
			res.History = append(res.History, HistoryEntry{
				Target:       op.TargetKey(),
				OperationID:  op.ID,
				ActorID:      op.ActorID,
				Status:       StatusOverridden,
				Reason:       fmt.Sprintf("superseded by higher-precedence operation %s", winner),
				SupersededBy: winner,
			})
			continue
		}

		if reason := validate(op, working); reason != "" {
			res.Rejected = append(res.Rejected, op.ID)
			res.History = append(res.History, HistoryEntry{
				Target:      op.TargetKey(),
				OperationID: op.ID,
				ActorID:     op.ActorID,
				Status:      StatusRejected,
				Reason:      reason,
			})
			continue
		}

		working = apply(op, working)
		winner = op.ID
		res.Applied = append(res.Applied, op.ID)
		res.History = append(res.History, HistoryEntry{
			Target:      op.TargetKey(),
			OperationID: op.ID,
			ActorID:     op.ActorID,
			Status:      StatusApplied,
			Reason:      fmt.Sprintf("%s applied", op.Kind),
		})
	}
	return working
}

// orderByPrecedence returns group sorted ascending by authority rank, then
// timestamp, then operation id. The last element is the highest-precedence
// candidate: most senior rank, and among equals the latest submission.
func orderByPrecedence(group []Operation) []Operation {
	ordered := make([]Operation, len(group))
	copy(ordered, group)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Authority.Rank != b.Authority.Rank {
			return a.Authority.Rank < b.Authority.Rank
		}
		if a.TimestampMS != b.TimestampMS {
			return a.TimestampMS < b.TimestampMS
		}
		return a.ID < b.ID
	})
	return ordered
}

// validate checks op against the current working state. An empty return
// means the operation may be applied; otherwise the returned string is the
// specific rejection reason.
func validate(op Operation, working []model.LineItem) string {
	switch op.Kind {
	case OpInsert:
		if op.Insert == nil {
			return "insert operation carries no line item"
		}
		if op.Insert.ProductID == "" {
			return "insert line item has no product id"
		}
		if op.Insert.Quantity <= 0 {
			return fmt.Sprintf("insert quantity must be positive, got %d", op.Insert.Quantity)
		}
	case OpUpdate:
		if op.Update == nil {
			return "update operation carries no field changes"
		}
		if op.Update.Quantity == nil && op.Update.UnitPrice == nil {
			return "update must set at least one of quantity or unit_price"
		}
		if op.Update.Quantity != nil && *op.Update.Quantity <= 0 {
			return fmt.Sprintf("update quantity must be positive, got %d", *op.Update.Quantity)
		}
		if findLine(working, op.Update.Target) < 0 {
			return fmt.Sprintf("update target line %s does not exist", op.Update.Target)
		}
	case OpDelete:
		if op.Delete == nil {
			return "delete operation names no target"
		}
		if findLine(working, op.Delete.Target) < 0 {
			return fmt.Sprintf("delete target line %s does not exist", op.Delete.Target)
		}
	default:
		return fmt.Sprintf("unknown operation kind %q", op.Kind)
	}
	return ""
}

// apply executes a validated operation against the working copy,
// all-or-nothing. Insert overwrites an existing line for the same product or
// appends; update mutates only the fields present; delete removes the line.
func apply(op Operation, working []model.LineItem) []model.LineItem {
	switch op.Kind {
	case OpInsert:
		if i := findLine(working, op.Insert.ProductID); i >= 0 {
			working[i] = *op.Insert
			return working
		}
		return append(working, *op.Insert)
	case OpUpdate:
		i := findLine(working, op.Update.Target)
		if op.Update.Quantity != nil {
			working[i].Quantity = *op.Update.Quantity
		}
		if op.Update.UnitPrice != nil {
			working[i].UnitPrice = *op.Update.UnitPrice
		}
		return working
	case OpDelete:
		i := findLine(working, op.Delete.Target)
		return append(working[:i], working[i+1:]...)
	}
	return working
}

// findLine returns the index of productID in lines, or -1.
func findLine(lines []model.LineItem, productID string) int {
	for i := range lines {
		if lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}
