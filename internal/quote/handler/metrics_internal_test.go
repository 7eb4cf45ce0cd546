package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quoteforge/quoteforge/internal/audit"
	"github.com/quoteforge/quoteforge/internal/integrity"
	"github.com/quoteforge/quoteforge/internal/lifecycle"
	"github.com/quoteforge/quoteforge/internal/quote/model"
	"github.com/quoteforge/quoteforge/internal/quote/repository"
	"github.com/quoteforge/quoteforge/internal/quote/service"
	"github.com/quoteforge/quoteforge/internal/resolve"
	"go.uber.org/zap"
)

func newMetricsFixture(t *testing.T) (*gin.Engine, *service.QuoteService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ledger, err := integrity.NewMemoryLedger([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("NewMemoryLedger: %v", err)
	}
	logger := zap.NewNop()
	engine := lifecycle.NewAuditedEngine(lifecycle.NewEngine(), audit.NewZapSink(logger))
	svc := service.NewQuoteService(repository.NewMemoryRepository(), engine,
		resolve.NewResolver(logger), ledger, logger)

	router := gin.New()
	NewQuoteHandler(svc, nil, logger).Register(router.Group("/api/v1"))
	return router, svc
}

func postEvent(router *gin.Engine, id uuid.UUID, event string) *httptest.ResponseRecorder {
	body := bytes.NewBufferString(fmt.Sprintf(`{"event":%q}`, event))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes/"+id.String()+"/events", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestTransitionMetric_countsLifecycleRejectionsOnly(t *testing.T) {
	router, svc := newMetricsFixture(t)
	rejected := qfTransitionsTotal.WithLabelValues("pricing_calculated", "rejected")
	before := testutil.ToFloat64(rejected)

	// Unknown quote: a storage miss, not a lifecycle decision.
	if w := postEvent(router, uuid.New(), "pricing_calculated"); w.Code != http.StatusNotFound {
		t.Fatalf("missing quote: status = %d, want 404", w.Code)
	}
	if got := testutil.ToFloat64(rejected); got != before {
		t.Fatalf("rejected counter after storage miss = %v, want %v", got, before)
	}

	// Invalid transition on a real quote: this is a rejection.
	q, err := svc.Create(context.Background(), &model.CreateRequest{
		QuoteNumber: "Q-2026-0001",
		CustomerID:  "cust_metrics",
	}, "system")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if w := postEvent(router, q.ID, "pricing_calculated"); w.Code != http.StatusConflict {
		t.Fatalf("invalid transition: status = %d, want 409", w.Code)
	}
	if got := testutil.ToFloat64(rejected); got != before+1 {
		t.Fatalf("rejected counter after invalid transition = %v, want %v", got, before+1)
	}
}
