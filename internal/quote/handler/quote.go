// Package handler exposes the quote service over HTTP with gin.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quoteforge/quoteforge/internal/lifecycle"
	"github.com/quoteforge/quoteforge/internal/quote/model"
	"github.com/quoteforge/quoteforge/internal/quote/repository"
	"github.com/quoteforge/quoteforge/internal/quote/service"
	"github.com/quoteforge/quoteforge/internal/resolve"
	"go.uber.org/zap"
)

// QuoteHandler handles quote CRUD, lifecycle events, and operation batches.
type QuoteHandler struct {
	svc    *service.QuoteService
	tokens TokenVerifier // nil = open mode
	logger *zap.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(svc *service.QuoteService, tokens TokenVerifier, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{svc: svc, tokens: tokens, logger: logger}
}

// Register mounts the quote routes on the given router group. Mutating
// routes require a service token when token auth is configured.
func (h *QuoteHandler) Register(rg *gin.RouterGroup) {
	auth := requireToken(h.tokens)

	q := rg.Group("/quotes")
	{
		q.POST("", auth, h.Create)
		q.GET("", h.List)
		q.GET("/:id", h.Get)
		q.POST("/:id/events", auth, h.ApplyEvent)
		q.POST("/:id/operations", auth, h.SubmitOperations)
		q.GET("/:id/history", h.History)
	}
}

// eventRequest is the payload for POST /quotes/:id/events.
type eventRequest struct {
	Event                 string   `json:"event" binding:"required"`
	MissingRequiredFields []string `json:"missing_required_fields,omitempty"`
}

// operationsRequest is the payload for POST /quotes/:id/operations.
type operationsRequest struct {
	Operations []resolve.Operation `json:"operations" binding:"required"`
}

// Create handles POST /quotes.
func (h *QuoteHandler) Create(c *gin.Context) {
	var req model.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := h.svc.Create(c.Request.Context(), &req, actorFrom(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// Get handles GET /quotes/:id.
func (h *QuoteHandler) Get(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}
	q, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// List handles GET /quotes.
func (h *QuoteHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	quotes, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if quotes == nil {
		quotes = []*model.Quote{}
	}
	c.JSON(http.StatusOK, gin.H{"quotes": quotes, "count": len(quotes)})
}

// ApplyEvent handles POST /quotes/:id/events — one lifecycle transition.
// Invalid transitions and missing-field gates come back as 409 with a typed
// error body; they are expected outcomes, not server failures.
func (h *QuoteHandler) ApplyEvent(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := lifecycle.Event(req.Event)
	if !event.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown lifecycle event: " + req.Event})
		return
	}

	res, err := h.svc.ApplyEvent(c.Request.Context(), id, event,
		lifecycle.Context{MissingRequiredFields: req.MissingRequiredFields}, actorFrom(c))
	if err != nil {
		// Only lifecycle decisions count as rejections; storage errors
		// would skew the transition metric.
		var invalid *lifecycle.InvalidTransitionError
		var missing *lifecycle.MissingFieldsError
		if errors.As(err, &invalid) || errors.As(err, &missing) {
			CountTransition(req.Event, "rejected")
		}
		h.renderError(c, err)
		return
	}
	CountTransition(req.Event, "applied")
	c.JSON(http.StatusOK, res)
}

// SubmitOperations handles POST /quotes/:id/operations — a conflict batch.
func (h *QuoteHandler) SubmitOperations(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	var req operationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.svc.SubmitOperations(c.Request.Context(), id, req.Operations, actorFrom(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	CountOperations(len(result.Applied), len(result.Overridden), len(result.Rejected))
	c.JSON(http.StatusOK, result)
}

// History handles GET /quotes/:id/history — the resolver's cumulative
// decision trail for the quote.
func (h *QuoteHandler) History(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}
	entries := h.svc.History(id)
	if entries == nil {
		entries = []resolve.HistoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

// quoteID parses the :id path param, responding 400 itself on failure.
func quoteID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// renderError maps service errors onto HTTP responses.
func (h *QuoteHandler) renderError(c *gin.Context, err error) {
	var (
		validationErr *model.ErrValidation
		invalidErr    *lifecycle.InvalidTransitionError
		missingErr    *lifecycle.MissingFieldsError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Msg})
	case errors.As(err, &invalidErr):
		c.JSON(http.StatusConflict, gin.H{
			"error": invalidErr.Error(),
			"type":  "invalid_transition",
			"state": invalidErr.From,
			"event": invalidErr.Event,
		})
	case errors.As(err, &missingErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          missingErr.Error(),
			"type":           "missing_required_fields",
			"state":          missingErr.State,
			"missing_fields": missingErr.Missing,
		})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "quote not found"})
	default:
		h.logger.Error("quote request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
