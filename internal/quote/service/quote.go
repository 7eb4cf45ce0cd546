// Package service orchestrates the quote core: lifecycle validation,
// conflict resolution, and integrity ledger appends, in that order. It owns
// the per-quote single-writer guarantee the core components require.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/quoteforge/quoteforge/internal/integrity"
	"github.com/quoteforge/quoteforge/internal/lifecycle"
	"github.com/quoteforge/quoteforge/internal/quote/model"
	"github.com/quoteforge/quoteforge/internal/resolve"
	"go.uber.org/zap"
)

// Ledger append action labels.
const (
	actionCreated    = "created"
	actionOperations = "operations_applied"
)

// Repository is the persistence interface for the quote service.
// *repository.QuoteRepository and *repository.MemoryRepository satisfy it.
type Repository interface {
	Create(ctx context.Context, q *model.Quote) error
	Get(ctx context.Context, id uuid.UUID) (*model.Quote, error)
	Update(ctx context.Context, q *model.Quote) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.QuoteStatus) error
	List(ctx context.Context, limit, offset int) ([]*model.Quote, error)
}

// TransitionResult is returned by ApplyEvent.
type TransitionResult struct {
	Outcome *lifecycle.Outcome `json:"outcome"`
	Quote   *model.Quote       `json:"quote"`
}

// QuoteService contains the business logic for quote mutation. All mutating
// paths for a quote id run under that id's lock, which is what entitles the
// resolver and ledger to assume no concurrent interleaving per identity.
// Distinct quote ids never contend.
type QuoteService struct {
	repo     Repository
	engine   *lifecycle.AuditedEngine
	resolver *resolve.Resolver
	ledger   integrity.Ledger // nil = no ledger writes
	logger   *zap.Logger

	lockMu sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
}

// NewQuoteService creates a QuoteService. ledger may be nil to disable
// integrity tracking.
func NewQuoteService(repo Repository, engine *lifecycle.AuditedEngine, resolver *resolve.Resolver, ledger integrity.Ledger, logger *zap.Logger) *QuoteService {
	return &QuoteService{
		repo:     repo,
		engine:   engine,
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
		locks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

// lock returns the mutex owned by id, creating it on first use. Lock
// entries are never removed; the set of live quote ids is bounded by the
// store.
func (s *QuoteService) lock(id uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// appendLedger appends an integrity entry in a non-fatal manner. A failed
// append is logged, never propagated: the quote mutation has already been
// accepted.
func (s *QuoteService) appendLedger(ctx context.Context, q *model.Quote, action, actor string) {
	if s.ledger == nil {
		return
	}
	if _, err := s.ledger.Append(ctx, q, action, actor); err != nil {
		s.logger.Error("ledger append failed (non-fatal)",
			zap.String("quote_id", q.ID.String()),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// Create registers a new quote in draft state and seeds its ledger chain.
func (s *QuoteService) Create(ctx context.Context, req *model.CreateRequest, actor string) (*model.Quote, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	q := &model.Quote{
		QuoteNumber: req.QuoteNumber,
		CustomerID:  req.CustomerID,
		Lines:       req.Lines,
		Status:      model.StatusDraft,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		s.logger.Error("failed to create quote", zap.Error(err))
		return nil, fmt.Errorf("create quote: %w", err)
	}

	s.logger.Info("quote created",
		zap.String("quote_id", q.ID.String()),
		zap.String("customer_id", q.CustomerID),
		zap.Int("lines", len(q.Lines)),
	)

	s.appendLedger(ctx, q, actionCreated, actor)
	return q, nil
}

// Get retrieves a quote by id.
func (s *QuoteService) Get(ctx context.Context, id uuid.UUID) (*model.Quote, error) {
	return s.repo.Get(ctx, id)
}

// List returns a page of quotes.
func (s *QuoteService) List(ctx context.Context, limit, offset int) ([]*model.Quote, error) {
	return s.repo.List(ctx, limit, offset)
}

// ApplyEvent runs one lifecycle event against the quote. On acceptance the
// new status is persisted and a signed ledger entry records the transition;
// rejections come back as the engine's typed errors with nothing persisted.
// The returned actions are for the caller to execute.
func (s *QuoteService) ApplyEvent(ctx context.Context, id uuid.UUID, event lifecycle.Event, lctx lifecycle.Context, actor string) (*TransitionResult, error) {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	outcome, err := s.engine.Apply(id.String(), actor, q.Status, event, lctx)
	if err != nil {
		return nil, err
	}

	q.Status = outcome.To
	q.Version++
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("persist transition: %w", err)
	}

	s.logger.Info("quote transitioned",
		zap.String("quote_id", id.String()),
		zap.String("from", string(outcome.From)),
		zap.String("to", string(outcome.To)),
		zap.String("event", string(event)),
	)

	s.appendLedger(ctx, q, "transition:"+string(event), actor)
	return &TransitionResult{Outcome: outcome, Quote: q}, nil
}

// SubmitOperations reconciles a batch of concurrent edit operations against
// the quote. The resolver's decision history records the fate of every
// operation; a rejected operation never fails the batch.
func (s *QuoteService) SubmitOperations(ctx context.Context, id uuid.UUID, ops []resolve.Operation, actor string) (*resolve.Result, error) {
	if len(ops) == 0 {
		return nil, &model.ErrValidation{Msg: "operation batch is empty"}
	}

	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := s.resolver.Transform(q, ops)

	if len(result.Applied) > 0 {
		q.Version++
		if err := s.repo.Update(ctx, q); err != nil {
			return nil, fmt.Errorf("persist resolved lines: %w", err)
		}
		s.appendLedger(ctx, q, actionOperations, actor)
	}

	s.logger.Info("operation batch resolved",
		zap.String("quote_id", id.String()),
		zap.Int("applied", len(result.Applied)),
		zap.Int("overridden", len(result.Overridden)),
		zap.Int("rejected", len(result.Rejected)),
	)
	return result, nil
}

// History returns the resolver's cumulative decision trail for a quote.
func (s *QuoteService) History(id uuid.UUID) []resolve.HistoryEntry {
	return s.resolver.History(id.String())
}

// VerifyChain re-verifies the quote's entire ledger chain.
func (s *QuoteService) VerifyChain(ctx context.Context, id uuid.UUID) (*integrity.VerificationResult, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("integrity ledger is not configured")
	}
	return s.ledger.VerifyChain(ctx, id.String())
}

// Chain returns the quote's full ledger chain in version order.
func (s *QuoteService) Chain(ctx context.Context, id uuid.UUID) ([]*integrity.LedgerEntry, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("integrity ledger is not configured")
	}
	return s.ledger.Chain(ctx, id.String())
}

// LedgerEntry returns a single ledger entry by version.
func (s *QuoteService) LedgerEntry(ctx context.Context, id uuid.UUID, version int) (*integrity.LedgerEntry, error) {
	if s.ledger == nil {
		return nil, fmt.Errorf("integrity ledger is not configured")
	}
	return s.ledger.Entry(ctx, id.String(), version)
}
