package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quoteforge/quoteforge/pkg/client"
)

// ── Stub server ─────────────────────────────────────────────────────────

func stubQuoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/quotes", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if r.Header.Get("Authorization") == "" {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{
				"id":           "550e8400-e29b-41d4-a716-446655440000",
				"quote_number": "Q-2026-0001",
				"customer_id":  "cust_81hx",
				"status":       "draft",
				"version":      1,
			})
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{
				"quotes": []map[string]any{
					{"id": "550e8400-e29b-41d4-a716-446655440000", "status": "draft", "version": 1},
				},
			})
		}
	})

	mux.HandleFunc("/api/v1/quotes/", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if strings.HasSuffix(path, "/events") {
			var body struct {
				Event string `json:"event"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.Event == "delivered" {
				http.Error(w, `{"error":"invalid transition: no rule for state \"draft\" and event \"delivered\"","type":"invalid_transition"}`, http.StatusConflict)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"outcome": map[string]any{
					"from":    "draft",
					"to":      "validated",
					"event":   body.Event,
					"actions": []string{"CalculatePricing"},
				},
				"quote": map[string]any{"id": "550e8400-e29b-41d4-a716-446655440000", "status": "validated", "version": 2},
			})
			return
		}

		if strings.HasSuffix(path, "/operations") {
			json.NewEncoder(w).Encode(map[string]any{
				"applied":    []string{"op-2"},
				"overridden": []string{"op-1"},
				"rejected":   []string{},
				"history": []map[string]any{
					{"target": "sku-100", "operation_id": "op-2", "actor_user_id": "mgr", "status": "applied"},
					{"target": "sku-100", "operation_id": "op-1", "actor_user_id": "rep", "status": "overridden", "superseded_by": "op-2"},
				},
			})
			return
		}

		if strings.HasSuffix(path, "/ledger/verify") {
			json.NewEncoder(w).Encode(map[string]any{
				"record_id":        "550e8400-e29b-41d4-a716-446655440000",
				"valid":            false,
				"verified_entries": 2,
				"last_valid_hash":  "abc123",
				"reason":           "entry 3: entry hash mismatch",
			})
			return
		}

		if strings.Contains(path, "/ledger/entries/") {
			json.NewEncoder(w).Encode(map[string]any{
				"entry_id":  "c0ffee00-0000-0000-0000-000000000001",
				"record_id": "550e8400-e29b-41d4-a716-446655440000",
				"version":   2,
				"action":    "transition:fields_collected",
			})
			return
		}

		if strings.HasSuffix(path, "/ledger") {
			json.NewEncoder(w).Encode(map[string]any{
				"entries": []map[string]any{
					{"version": 1, "action": "created"},
					{"version": 2, "action": "transition:fields_collected"},
				},
			})
			return
		}

		// GET /api/v1/quotes/:id
		id := strings.TrimPrefix(path, "/api/v1/quotes/")
		if id == "missing-id" {
			http.Error(w, `{"error":"quote not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":          id,
			"customer_id": "cust_81hx",
			"status":      "priced",
			"version":     4,
		})
	})

	mux.HandleFunc("/api/v1/token", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Secret string `json:"secret"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Secret != "admin-secret" {
			http.Error(w, `{"error":"invalid secret"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"token": "test-jwt-token"})
	})

	return httptest.NewServer(mux)
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestCreateQuote_sendsBearerToken(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("tok"))
	q, err := c.CreateQuote(context.Background(), &client.CreateQuoteRequest{CustomerID: "cust_81hx"})
	if err != nil {
		t.Fatalf("CreateQuote: %v", err)
	}
	if q.Status != "draft" || q.Version != 1 {
		t.Errorf("unexpected quote: %+v", q)
	}
}

func TestCreateQuote_unauthorized(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.CreateQuote(context.Background(), &client.CreateQuoteRequest{CustomerID: "cust_81hx"})
	if err == nil {
		t.Fatal("expected error without token")
	}
	if !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetQuote_notFound(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	_, err := c.GetQuote(context.Background(), "missing-id")
	if err == nil {
		t.Fatal("expected error for missing quote")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("expected HTTP 404 in error, got: %v", err)
	}
}

func TestApplyEvent_success(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("tok"))
	res, err := c.ApplyEvent(context.Background(), "550e8400-e29b-41d4-a716-446655440000", "fields_collected", nil)
	if err != nil {
		t.Fatalf("ApplyEvent: %v", err)
	}
	if res.Outcome.To != "validated" {
		t.Errorf("unexpected target state: %s", res.Outcome.To)
	}
	if len(res.Outcome.Actions) != 1 || res.Outcome.Actions[0] != "CalculatePricing" {
		t.Errorf("unexpected actions: %v", res.Outcome.Actions)
	}
}

func TestApplyEvent_invalidTransition(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("tok"))
	_, err := c.ApplyEvent(context.Background(), "550e8400-e29b-41d4-a716-446655440000", "delivered", nil)
	if err == nil {
		t.Fatal("expected error for invalid transition")
	}
	if !strings.Contains(err.Error(), "invalid transition") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestSubmitOperations_reportsFates(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL, client.WithToken("tok"))
	res, err := c.SubmitOperations(context.Background(), "550e8400-e29b-41d4-a716-446655440000", []client.Operation{
		{ID: "op-1", Kind: "update"},
		{ID: "op-2", Kind: "update"},
	})
	if err != nil {
		t.Fatalf("SubmitOperations: %v", err)
	}
	if len(res.Applied) != 1 || res.Applied[0] != "op-2" {
		t.Errorf("unexpected applied set: %v", res.Applied)
	}
	if len(res.History) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(res.History))
	}
	if res.History[1].SupersededBy != "op-2" {
		t.Errorf("expected overridden entry to reference winner, got %q", res.History[1].SupersededBy)
	}
}

func TestVerifyChain_reportsBreakPoint(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	verdict, err := c.VerifyChain(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	if err != nil {
		t.Fatalf("VerifyChain: %v", err)
	}
	if verdict.Valid {
		t.Error("expected invalid chain")
	}
	if verdict.VerifiedEntries != 2 || verdict.LastValidHash != "abc123" {
		t.Errorf("unexpected verdict: %+v", verdict)
	}
}

func TestLedgerChain_listsEntries(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	entries, err := c.LedgerChain(context.Background(), "550e8400-e29b-41d4-a716-446655440000")
	if err != nil {
		t.Fatalf("LedgerChain: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Action != "created" {
		t.Errorf("unexpected first action: %s", entries[0].Action)
	}
}

func TestIssueToken_setsClientToken(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	token, err := c.IssueToken(context.Background(), "svc-test", "service", "admin-secret")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if token != "test-jwt-token" {
		t.Errorf("unexpected token: %s", token)
	}

	// Subsequent mutating calls now carry the token.
	if _, err := c.CreateQuote(context.Background(), &client.CreateQuoteRequest{CustomerID: "c"}); err != nil {
		t.Errorf("CreateQuote after IssueToken: %v", err)
	}
}

func TestIssueToken_badSecret(t *testing.T) {
	srv := stubQuoteServer(t)
	defer srv.Close()

	c := client.New(srv.URL)
	if _, err := c.IssueToken(context.Background(), "svc-test", "service", "wrong"); err == nil {
		t.Fatal("expected error for bad secret")
	}
}
