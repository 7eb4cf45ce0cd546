// Package integrity implements the hash-chained, HMAC-signed ledger that
// makes every accepted quote mutation tamper-evident and re-verifiable.
//
// Each quote id owns one independent chain: entry N+1 stores the hash of
// entry N, and every entry carries a keyed signature over its own hash.
// Chains for distinct quotes are never cross-linked, so appends for
// different quotes can run fully in parallel. Appends for the SAME quote
// must be serialised by the caller (or by the Postgres advisory lock in
// PostgresLedger).
//
// Two implementations of the Ledger interface are provided:
//   - MemoryLedger: in-process, for testing and database-less deployments.
//   - PostgresLedger: durable, for production use.
package integrity

import (
	"context"
	"errors"
	"fmt"

	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// ErrNoSigningKey is returned by ledger constructors when the signing key is
// empty. A missing key would silently degrade every chain's integrity
// guarantee, so it is a hard construction error rather than a runtime
// fallback.
var ErrNoSigningKey = errors.New("integrity: signing key must not be empty")

// ErrEntryNotFound is returned by Entry when no entry exists at the
// requested version.
var ErrEntryNotFound = errors.New("integrity: ledger entry not found")

// Ledger is the interface for the per-quote hash-chain audit ledger.
type Ledger interface {
	// Append computes and stores the next signed entry for q's chain.
	// The caller must serialise Append calls for the same quote id.
	Append(ctx context.Context, q *model.Quote, action, actor string) (*LedgerEntry, error)

	// VerifyChain replays the chain for quoteID and reports the first point
	// of failure, if any. It never returns an error for an invalid chain —
	// invalidity is data, reported in the result.
	VerifyChain(ctx context.Context, quoteID string) (*VerificationResult, error)

	// Chain returns all entries for quoteID in version order.
	Chain(ctx context.Context, quoteID string) ([]*LedgerEntry, error)

	// Entry returns the single entry at the given version.
	Entry(ctx context.Context, quoteID string, version int) (*LedgerEntry, error)
}

// verifyEntries runs the shared chain verification over entries already
// loaded in version order. Per-index checks run in a fixed order: version
// continuity, previous-hash linkage, recomputed entry hash, recomputed
// signature. The first failing check stops the walk.
func verifyEntries(quoteID string, key []byte, entries []*LedgerEntry) *VerificationResult {
	res := &VerificationResult{QuoteID: quoteID}

	if len(entries) == 0 {
		res.Reason = "no ledger entries found"
		return res
	}

	lastValid := ""
	for i, e := range entries {
		if e.Version != i+1 {
			res.VerifiedEntries = i
			res.LastValidHash = lastValid
			res.Reason = fmt.Sprintf("version mismatch at index %d: got %d, want %d", i, e.Version, i+1)
			return res
		}

		wantPrev := ""
		if i > 0 {
			wantPrev = entries[i-1].EntryHash
		}
		if e.PrevHash != wantPrev {
			res.VerifiedEntries = i
			res.LastValidHash = lastValid
			res.Reason = fmt.Sprintf("hash chain broken at index %d: prev_hash does not match previous entry", i)
			return res
		}

		if computeEntryHash(e) != e.EntryHash {
			res.VerifiedEntries = i
			res.LastValidHash = lastValid
			res.Reason = fmt.Sprintf("entry hash mismatch at index %d", i)
			return res
		}

		if sign(key, e.EntryHash) != e.Signature {
			res.VerifiedEntries = i
			res.LastValidHash = lastValid
			res.Reason = fmt.Sprintf("signature mismatch at index %d", i)
			return res
		}

		lastValid = e.EntryHash
	}

	res.Valid = true
	res.VerifiedEntries = len(entries)
	res.LastValidHash = lastValid
	return res
}
