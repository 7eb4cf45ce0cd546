package integrity_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/quoteforge/quoteforge/internal/integrity"
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

var ctx = context.Background()

var signingKey = []byte("test-signing-key")

func newLedger(t *testing.T) *integrity.MemoryLedger {
	t.Helper()
	l, err := integrity.NewMemoryLedger(signingKey)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func testQuote() *model.Quote {
	return &model.Quote{
		ID:         uuid.New(),
		CustomerID: "cust_81hx",
		Status:     model.StatusDraft,
		Version:    1,
		Lines: []model.LineItem{
			{ProductID: "sku-100", Quantity: 3, UnitPrice: 24.50},
		},
	}
}

func TestNewMemoryLedger_emptyKeyRejected(t *testing.T) {
	_, err := integrity.NewMemoryLedger(nil)
	if !errors.Is(err, integrity.ErrNoSigningKey) {
		t.Errorf("expected ErrNoSigningKey, got %v", err)
	}

	_, err = integrity.NewMemoryLedger([]byte{})
	if !errors.Is(err, integrity.ErrNoSigningKey) {
		t.Errorf("expected ErrNoSigningKey for empty slice, got %v", err)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := newLedger(t)
	q := testQuote()

	e1, err := l.Append(ctx, q, "created", "alice")
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, q, "transition:fields_collected", "alice")
	if err != nil {
		t.Fatal(err)
	}

	if e1.Version != 1 || e2.Version != 2 {
		t.Errorf("versions: got %d, %d; want 1, 2", e1.Version, e2.Version)
	}
	if e1.PrevHash != "" {
		t.Errorf("first entry prev_hash must be empty, got %q", e1.PrevHash)
	}
	if e2.PrevHash != e1.EntryHash {
		t.Errorf("chain broken: e2.PrevHash=%q, want e1.EntryHash=%q", e2.PrevHash, e1.EntryHash)
	}
	if e1.Signature == "" || e2.Signature == "" {
		t.Error("entries must be signed")
	}
	if e1.ContentHash == "" {
		t.Error("entries must carry a content hash")
	}
}

func TestAppend_normalizesAction(t *testing.T) {
	l := newLedger(t)

	e, err := l.Append(ctx, testQuote(), "  Created  ", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if e.Action != "created" {
		t.Errorf("action: got %q, want %q", e.Action, "created")
	}
}

func TestVerifyChain_validThreeEntryChain(t *testing.T) {
	l := newLedger(t)
	q := testQuote()

	for _, action := range []string{"created", "transition:fields_collected", "transition:pricing_calculated"} {
		if _, err := l.Append(ctx, q, action, "alice"); err != nil {
			t.Fatal(err)
		}
	}

	res, err := l.VerifyChain(ctx, q.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if !res.Valid {
		t.Fatalf("expected valid chain, got reason %q", res.Reason)
	}
	if res.VerifiedEntries != 3 {
		t.Errorf("verified entries: got %d, want 3", res.VerifiedEntries)
	}
	if res.Reason != "" {
		t.Errorf("valid chain must carry no reason, got %q", res.Reason)
	}
}

func TestVerifyChain_emptyChain(t *testing.T) {
	l := newLedger(t)

	res, err := l.VerifyChain(ctx, uuid.New().String())
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid {
		t.Error("empty chain must not verify as valid")
	}
	if res.Reason != "no ledger entries found" {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
	if res.VerifiedEntries != 0 {
		t.Errorf("verified entries: got %d, want 0", res.VerifiedEntries)
	}
}

// tamper fetches the stored chain and mutates one field of the entry at
// index, then re-verifies.
func tamperAndVerify(t *testing.T, mutate func(*integrity.LedgerEntry)) *integrity.VerificationResult {
	t.Helper()
	l := newLedger(t)
	q := testQuote()

	for _, action := range []string{"created", "updated", "finalized"} {
		if _, err := l.Append(ctx, q, action, "alice"); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := l.Chain(ctx, q.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	mutate(entries[1])

	res, err := l.VerifyChain(ctx, q.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestVerifyChain_tamperedSignature(t *testing.T) {
	res := tamperAndVerify(t, func(e *integrity.LedgerEntry) {
		e.Signature = strings.Repeat("0", 64)
	})
	if res.Valid {
		t.Fatal("tampered signature must invalidate the chain")
	}
	if res.VerifiedEntries != 1 {
		t.Errorf("verified entries: got %d, want 1", res.VerifiedEntries)
	}
	if !strings.Contains(res.Reason, "signature mismatch") {
		t.Errorf("reason must name the signature check, got %q", res.Reason)
	}
}

func TestVerifyChain_tamperedEntryHash(t *testing.T) {
	res := tamperAndVerify(t, func(e *integrity.LedgerEntry) {
		e.EntryHash = strings.Repeat("f", 64)
	})
	if res.Valid {
		t.Fatal("tampered entry hash must invalidate the chain")
	}
	if res.VerifiedEntries != 1 {
		t.Errorf("verified entries: got %d, want 1", res.VerifiedEntries)
	}
	if !strings.Contains(res.Reason, "entry hash mismatch") {
		t.Errorf("reason must name the entry-hash check, got %q", res.Reason)
	}
}

func TestVerifyChain_tamperedPrevHash(t *testing.T) {
	res := tamperAndVerify(t, func(e *integrity.LedgerEntry) {
		e.PrevHash = strings.Repeat("a", 64)
	})
	if res.Valid {
		t.Fatal("tampered prev hash must invalidate the chain")
	}
	if res.VerifiedEntries != 1 {
		t.Errorf("verified entries: got %d, want 1", res.VerifiedEntries)
	}
	if !strings.Contains(res.Reason, "hash chain broken") {
		t.Errorf("reason must name the linkage check, got %q", res.Reason)
	}
}

func TestVerifyChain_tamperedVersion(t *testing.T) {
	res := tamperAndVerify(t, func(e *integrity.LedgerEntry) {
		e.Version = 99
	})
	if res.Valid {
		t.Fatal("tampered version must invalidate the chain")
	}
	if res.VerifiedEntries != 1 {
		t.Errorf("verified entries: got %d, want 1", res.VerifiedEntries)
	}
	if !strings.Contains(res.Reason, "version mismatch") {
		t.Errorf("reason must name the version check, got %q", res.Reason)
	}
}

func TestVerifyChain_tamperedContent(t *testing.T) {
	res := tamperAndVerify(t, func(e *integrity.LedgerEntry) {
		e.ContentHash = strings.Repeat("b", 64)
	})
	if res.Valid {
		t.Fatal("tampered content hash must invalidate the chain")
	}
	// Content participates in the entry hash, so the recomputed hash no
	// longer matches.
	if !strings.Contains(res.Reason, "entry hash mismatch") {
		t.Errorf("unexpected reason: %q", res.Reason)
	}
}

func TestVerifyChain_reportsLastValidHash(t *testing.T) {
	l := newLedger(t)
	q := testQuote()

	e1, _ := l.Append(ctx, q, "created", "alice")
	l.Append(ctx, q, "updated", "alice")
	l.Append(ctx, q, "finalized", "alice")

	entries, _ := l.Chain(ctx, q.ID.String())
	entries[1].Signature = "bad"

	res, err := l.VerifyChain(ctx, q.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if res.LastValidHash != e1.EntryHash {
		t.Errorf("last valid hash: got %q, want entry 1's hash %q", res.LastValidHash, e1.EntryHash)
	}
}

func TestChains_areIndependentPerQuote(t *testing.T) {
	l := newLedger(t)
	q1, q2 := testQuote(), testQuote()

	l.Append(ctx, q1, "created", "alice")
	l.Append(ctx, q2, "created", "bob")
	e, _ := l.Append(ctx, q1, "updated", "alice")

	if e.Version != 2 {
		t.Errorf("q1's second entry version: got %d, want 2", e.Version)
	}

	entries, err := l.Chain(ctx, q2.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("q2 chain length: got %d, want 1", len(entries))
	}
	if entries[0].PrevHash != "" {
		t.Error("q2's first entry must not link into q1's chain")
	}
}

func TestContentHash_bindsSnapshot(t *testing.T) {
	l := newLedger(t)
	q := testQuote()

	e1, _ := l.Append(ctx, q, "created", "alice")

	q.Lines[0].Quantity = 99
	e2, _ := l.Append(ctx, q, "updated", "alice")

	if e1.ContentHash == e2.ContentHash {
		t.Error("content hash must change when the quote's lines change")
	}
}

func TestEntry_byVersion(t *testing.T) {
	l := newLedger(t)
	q := testQuote()

	l.Append(ctx, q, "created", "alice")
	want, _ := l.Append(ctx, q, "updated", "bob")

	got, err := l.Entry(ctx, q.ID.String(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if got.EntryID != want.EntryID {
		t.Errorf("got entry %s, want %s", got.EntryID, want.EntryID)
	}

	if _, err := l.Entry(ctx, q.ID.String(), 3); !errors.Is(err, integrity.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound for version 3, got %v", err)
	}
	if _, err := l.Entry(ctx, q.ID.String(), 0); !errors.Is(err, integrity.ErrEntryNotFound) {
		t.Errorf("expected ErrEntryNotFound for version 0, got %v", err)
	}
}

func TestVerifyChain_differentKeysDisagree(t *testing.T) {
	l1 := newLedger(t)
	q := testQuote()
	l1.Append(ctx, q, "created", "alice")

	// Rebuild a ledger over the same entries but a different key by copying
	// the stored entries across.
	l2, err := integrity.NewMemoryLedger([]byte("other-key"))
	if err != nil {
		t.Fatal(err)
	}
	l2.Append(ctx, q, "created", "alice")

	e1, _ := l1.Entry(ctx, q.ID.String(), 1)
	e2, _ := l2.Entry(ctx, q.ID.String(), 1)
	if e1.Signature == e2.Signature {
		t.Error("different signing keys must produce different signatures")
	}
}
