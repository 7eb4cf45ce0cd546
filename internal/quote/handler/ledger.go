package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quoteforge/quoteforge/internal/integrity"
	"github.com/quoteforge/quoteforge/internal/quote/service"
	"go.uber.org/zap"
)

// LedgerHandler exposes read-only HTTP endpoints for per-quote integrity
// chains.
type LedgerHandler struct {
	svc    *service.QuoteService
	logger *zap.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(svc *service.QuoteService, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, logger: logger}
}

// Register mounts the ledger routes on the given router group.
func (h *LedgerHandler) Register(rg *gin.RouterGroup) {
	l := rg.Group("/quotes/:id/ledger")
	{
		l.GET("", h.Chain)
		l.GET("/verify", h.Verify)
		l.GET("/entries/:version", h.GetEntry)
	}
}

// Chain handles GET /quotes/:id/ledger — the full chain in version order.
func (h *LedgerHandler) Chain(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	entries, err := h.svc.Chain(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("ledger chain", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	if entries == nil {
		entries = []*integrity.LedgerEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// Verify handles GET /quotes/:id/ledger/verify — replays the chain and
// reports integrity. An invalid chain is a 200 with valid=false: the
// verification itself succeeded.
func (h *LedgerHandler) Verify(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	result, err := h.svc.VerifyChain(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("ledger verify", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify ledger"})
		return
	}
	CountChainVerification(result.Valid)
	if !result.Valid {
		h.logger.Warn("quote ledger integrity check failed",
			zap.String("quote_id", id.String()),
			zap.String("reason", result.Reason),
			zap.Int("verified_entries", result.VerifiedEntries),
		)
	}
	c.JSON(http.StatusOK, result)
}

// GetEntry handles GET /quotes/:id/ledger/entries/:version.
func (h *LedgerHandler) GetEntry(c *gin.Context) {
	id, ok := quoteID(c)
	if !ok {
		return
	}

	version, err := strconv.Atoi(c.Param("version"))
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
		return
	}

	entry, err := h.svc.LedgerEntry(c.Request.Context(), id, version)
	if errors.Is(err, integrity.ErrEntryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	if err != nil {
		h.logger.Error("ledger entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query ledger"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
