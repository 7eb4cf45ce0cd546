package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quoteforge/quoteforge/internal/quote/model"
	"go.uber.org/zap"
)

// PostgresLedger persists per-quote hash chains to PostgreSQL.
// It implements the Ledger interface.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	key    []byte
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger backed by the given connection
// pool, signing with key. An empty key is a construction error.
func NewPostgresLedger(pool *pgxpool.Pool, key []byte, logger *zap.Logger) (*PostgresLedger, error) {
	if len(key) == 0 {
		return nil, ErrNoSigningKey
	}
	return &PostgresLedger{pool: pool, key: key, logger: logger}, nil
}

// lockKey derives a stable per-quote advisory lock key so that appends for
// the same quote serialise across all service instances while appends for
// different quotes proceed in parallel.
func lockKey(quoteID string) int64 {
	sum := sha256.Sum256([]byte(quoteID))
	return int64(binary.BigEndian.Uint64(sum[:8]))
}

// Append implements Ledger. It acquires a per-quote advisory lock, reads the
// chain tail, computes and signs the new entry, and inserts it — all within
// one transaction.
func (l *PostgresLedger) Append(ctx context.Context, q *model.Quote, action, actor string) (*LedgerEntry, error) {
	quoteID := q.ID.String()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Transaction-scoped advisory lock; released automatically at commit or
	// rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(quoteID)); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	// Read the current tail of this quote's chain.
	var prevVersion int
	var prevHash string
	err = tx.QueryRow(ctx,
		"SELECT version, entry_hash FROM quote_ledger WHERE quote_id = $1 ORDER BY version DESC LIMIT 1",
		quoteID,
	).Scan(&prevVersion, &prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read ledger tail: %w", err)
	}

	entry := &LedgerEntry{
		EntryID:     uuid.New().String(),
		QuoteID:     quoteID,
		Version:     prevVersion + 1,
		ContentHash: contentHash(q),
		PrevHash:    prevHash,
		Timestamp:   time.Now().UTC().Truncate(time.Second),
		ActorID:     actor,
		Action:      normalizeAction(action),
	}
	entry.EntryHash = computeEntryHash(entry)
	entry.Signature = sign(l.key, entry.EntryHash)

	if _, err := tx.Exec(ctx,
		`INSERT INTO quote_ledger (entry_id, quote_id, version, content_hash, prev_hash, entry_hash, ts, actor_id, action, signature)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.EntryID, entry.QuoteID, entry.Version, entry.ContentHash,
		entry.PrevHash, entry.EntryHash, entry.Timestamp,
		entry.ActorID, entry.Action, entry.Signature,
	); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}

	l.logger.Debug("ledger entry appended",
		zap.String("quote_id", quoteID),
		zap.Int("version", entry.Version),
		zap.String("action", entry.Action),
	)
	return entry, nil
}

// VerifyChain implements Ledger. It loads the chain in version order and
// runs the shared verification walk.
func (l *PostgresLedger) VerifyChain(ctx context.Context, quoteID string) (*VerificationResult, error) {
	entries, err := l.Chain(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	return verifyEntries(quoteID, l.key, entries), nil
}

// Chain implements Ledger.
func (l *PostgresLedger) Chain(ctx context.Context, quoteID string) ([]*LedgerEntry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT entry_id, quote_id, version, content_hash, prev_hash, entry_hash, ts, actor_id, action, signature
		 FROM quote_ledger WHERE quote_id = $1 ORDER BY version ASC`,
		quoteID,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		e := &LedgerEntry{}
		if err := rows.Scan(
			&e.EntryID, &e.QuoteID, &e.Version, &e.ContentHash,
			&e.PrevHash, &e.EntryHash, &e.Timestamp,
			&e.ActorID, &e.Action, &e.Signature,
		); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Entry implements Ledger.
func (l *PostgresLedger) Entry(ctx context.Context, quoteID string, version int) (*LedgerEntry, error) {
	e := &LedgerEntry{}
	err := l.pool.QueryRow(ctx,
		`SELECT entry_id, quote_id, version, content_hash, prev_hash, entry_hash, ts, actor_id, action, signature
		 FROM quote_ledger WHERE quote_id = $1 AND version = $2`,
		quoteID, version,
	).Scan(
		&e.EntryID, &e.QuoteID, &e.Version, &e.ContentHash,
		&e.PrevHash, &e.EntryHash, &e.Timestamp,
		&e.ActorID, &e.Action, &e.Signature,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s v%d: %w", quoteID, version, err)
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
