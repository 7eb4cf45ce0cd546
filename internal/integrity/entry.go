package integrity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// LedgerEntry is a single signed record in a quote's hash chain. Versions
// start at 1; PrevHash is empty only for the first entry. Entries are
// immutable once appended.
type LedgerEntry struct {
	EntryID     string    `json:"entry_id"     db:"entry_id"`
	QuoteID     string    `json:"record_id"    db:"quote_id"`
	Version     int       `json:"version"      db:"version"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	PrevHash    string    `json:"prev_hash,omitempty" db:"prev_hash"`
	EntryHash   string    `json:"entry_hash"   db:"entry_hash"`
	Timestamp   time.Time `json:"timestamp"    db:"ts"`
	ActorID     string    `json:"actor_id"     db:"actor_id"`
	Action      string    `json:"action"       db:"action"`
	Signature   string    `json:"signature"    db:"signature"`
}

// VerificationResult reports the outcome of a full chain verification.
// VerifiedEntries counts the entries that passed before the first failure.
type VerificationResult struct {
	QuoteID         string `json:"record_id"`
	Valid           bool   `json:"valid"`
	VerifiedEntries int    `json:"verified_entries"`
	LastValidHash   string `json:"last_valid_hash,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// contentHash returns the sha256 of the quote's canonical JSON snapshot.
// If marshalling fails the hash of the bare quote id is used instead, so
// append never fails outright on an unserialisable record.
func contentHash(q *model.Quote) string {
	data, err := json.Marshal(q.Snapshot())
	if err != nil {
		return sha256Hex([]byte(q.ID.String()))
	}
	return sha256Hex(data)
}

// computeEntryHash hashes the ordered concatenation of the entry's chained
// fields. The timestamp participates at RFC3339 (second) precision, matching
// the truncation applied at append time.
func computeEntryHash(e *LedgerEntry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s|%s|%s",
		e.QuoteID, e.Version, e.ContentHash, e.PrevHash,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.ActorID, normalizeAction(e.Action),
	)
	return hex.EncodeToString(h.Sum(nil))
}

// sign computes the keyed HMAC-SHA256 signature over an entry hash.
func sign(key []byte, entryHash string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(entryHash))
	return hex.EncodeToString(mac.Sum(nil))
}

// sha256Hex returns the hex-encoded SHA-256 digest of data.
func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// normalizeAction canonicalizes an action label before hashing so cosmetic
// differences in caller input do not change the chain.
func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}
