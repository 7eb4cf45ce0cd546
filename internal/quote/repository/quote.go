// Package repository provides quote persistence. The core components never
// touch storage themselves; these stores are collaborators invoked by the
// service layer.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/quoteforge/quoteforge/internal/quote/model"
)

// ErrNotFound is returned when a quote is not found in the store.
var ErrNotFound = errors.New("quote not found")

// QuoteRepository provides CRUD operations for quotes against PostgreSQL.
// Line items are stored as a JSONB document alongside the row.
type QuoteRepository struct {
	db *pgxpool.Pool
}

// NewQuoteRepository creates a new QuoteRepository.
func NewQuoteRepository(db *pgxpool.Pool) *QuoteRepository {
	return &QuoteRepository{db: db}
}

// Create inserts a new quote. The quote's ID and timestamps are assigned here.
func (r *QuoteRepository) Create(ctx context.Context, q *model.Quote) error {
	lines, err := json.Marshal(q.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}

	q.ID = uuid.New()
	now := time.Now().UTC()
	q.CreatedAt = now
	q.UpdatedAt = now
	if q.Status == "" {
		q.Status = model.StatusDraft
	}
	if q.Version == 0 {
		q.Version = 1
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO quotes (id, quote_number, customer_id, lines, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.ID, q.QuoteNumber, q.CustomerID, lines, q.Status, q.Version, q.CreatedAt, q.UpdatedAt,
	)
	return err
}

// Get retrieves a quote by id.
func (r *QuoteRepository) Get(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	q := &model.Quote{}
	var lines []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, quote_number, customer_id, lines, status, version, created_at, updated_at
		FROM quotes WHERE id = $1`, id,
	).Scan(&q.ID, &q.QuoteNumber, &q.CustomerID, &lines, &q.Status, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}
	if err := json.Unmarshal(lines, &q.Lines); err != nil {
		return nil, fmt.Errorf("decode lines: %w", err)
	}
	return q, nil
}

// Update persists the quote's mutable fields (lines, status, version) and
// bumps UpdatedAt.
func (r *QuoteRepository) Update(ctx context.Context, q *model.Quote) error {
	lines, err := json.Marshal(q.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}

	q.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx, `
		UPDATE quotes SET lines = $2, status = $3, version = $4, updated_at = $5
		WHERE id = $1`,
		q.ID, lines, q.Status, q.Version, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update quote: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus changes only the lifecycle status of a quote.
func (r *QuoteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.QuoteStatus) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE quotes SET status = $2, updated_at = $3 WHERE id = $1",
		id, status, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update quote status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns quotes ordered by creation time, newest first.
func (r *QuoteRepository) List(ctx context.Context, limit, offset int) ([]*model.Quote, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, quote_number, customer_id, lines, status, version, created_at, updated_at
		FROM quotes ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*model.Quote
	for rows.Next() {
		q := &model.Quote{}
		var lines []byte
		if err := rows.Scan(&q.ID, &q.QuoteNumber, &q.CustomerID, &lines, &q.Status, &q.Version, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		if err := json.Unmarshal(lines, &q.Lines); err != nil {
			return nil, fmt.Errorf("decode lines: %w", err)
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}
