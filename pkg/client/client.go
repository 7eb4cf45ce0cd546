// Package client provides the QuoteForge Go SDK for managing quotes,
// submitting concurrent edit batches, and verifying integrity chains over
// the HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// LineItem mirrors one quote line on the wire.
type LineItem struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// Quote mirrors the quote record on the wire.
type Quote struct {
	ID          string     `json:"id"`
	QuoteNumber string     `json:"quote_number"`
	CustomerID  string     `json:"customer_id"`
	Lines       []LineItem `json:"lines"`
	Status      string     `json:"status"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateQuoteRequest is the payload for CreateQuote.
type CreateQuoteRequest struct {
	QuoteNumber string     `json:"quote_number,omitempty"`
	CustomerID  string     `json:"customer_id"`
	Lines       []LineItem `json:"lines,omitempty"`
}

// Authority identifies the seniority of an operation's submitter.
type Authority struct {
	Role string `json:"role"`
	Rank int    `json:"rank"`
}

// UpdateSpec carries the fields changed by an update operation.
type UpdateSpec struct {
	Target    string   `json:"target"`
	Quantity  *int     `json:"quantity,omitempty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
}

// DeleteSpec names the line removed by a delete operation.
type DeleteSpec struct {
	Target string `json:"target"`
}

// Operation is one competing edit in a conflict batch.
type Operation struct {
	ID          string      `json:"operation_id"`
	QuoteID     string      `json:"record_id"`
	ActorID     string      `json:"actor_user_id"`
	Authority   Authority   `json:"authority"`
	TimestampMS int64       `json:"timestamp_ms"`
	Kind        string      `json:"kind"`
	Insert      *LineItem   `json:"insert,omitempty"`
	Update      *UpdateSpec `json:"update,omitempty"`
	Delete      *DeleteSpec `json:"delete,omitempty"`
}

// TransformResult is the outcome of a submitted operation batch.
type TransformResult struct {
	Applied    []string       `json:"applied"`
	Overridden []string       `json:"overridden"`
	Rejected   []string       `json:"rejected"`
	History    []HistoryEntry `json:"history"`
}

// HistoryEntry records the fate of one operation.
type HistoryEntry struct {
	Target       string `json:"target"`
	OperationID  string `json:"operation_id"`
	ActorID      string `json:"actor_user_id"`
	Status       string `json:"status"`
	Reason       string `json:"reason"`
	SupersededBy string `json:"superseded_by,omitempty"`
}

// TransitionResult is the outcome of a lifecycle event.
type TransitionResult struct {
	Outcome struct {
		From    string   `json:"from"`
		To      string   `json:"to"`
		Event   string   `json:"event"`
		Actions []string `json:"actions"`
	} `json:"outcome"`
	Quote *Quote `json:"quote"`
}

// LedgerEntry mirrors one chain entry on the wire.
type LedgerEntry struct {
	EntryID     string    `json:"entry_id"`
	QuoteID     string    `json:"record_id"`
	Version     int       `json:"version"`
	ContentHash string    `json:"content_hash"`
	PrevHash    string    `json:"prev_hash,omitempty"`
	EntryHash   string    `json:"entry_hash"`
	Timestamp   time.Time `json:"timestamp"`
	ActorID     string    `json:"actor_id"`
	Action      string    `json:"action"`
	Signature   string    `json:"signature"`
}

// VerificationResult reports a chain verification.
type VerificationResult struct {
	QuoteID         string `json:"record_id"`
	Valid           bool   `json:"valid"`
	VerifiedEntries int    `json:"verified_entries"`
	LastValidHash   string `json:"last_valid_hash,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// Client is the QuoteForge SDK entry point.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the JSON error body returned by the service.
type apiError struct {
	Error string `json:"error"`
}

// do executes one JSON request/response round trip.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (HTTP %d)", method, path, apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateQuote registers a new draft quote.
func (c *Client) CreateQuote(ctx context.Context, req *CreateQuoteRequest) (*Quote, error) {
	var q Quote
	if err := c.do(ctx, http.MethodPost, "/api/v1/quotes", req, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// GetQuote fetches a quote by id.
func (c *Client) GetQuote(ctx context.Context, id string) (*Quote, error) {
	var q Quote
	if err := c.do(ctx, http.MethodGet, "/api/v1/quotes/"+id, nil, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuotes fetches a page of quotes.
func (c *Client) ListQuotes(ctx context.Context, limit, offset int) ([]Quote, error) {
	var out struct {
		Quotes []Quote `json:"quotes"`
	}
	path := fmt.Sprintf("/api/v1/quotes?limit=%d&offset=%d", limit, offset)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Quotes, nil
}

// ApplyEvent submits one lifecycle event for a quote.
func (c *Client) ApplyEvent(ctx context.Context, id, event string, missingFields []string) (*TransitionResult, error) {
	body := map[string]any{"event": event}
	if len(missingFields) > 0 {
		body["missing_required_fields"] = missingFields
	}
	var res TransitionResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/quotes/"+id+"/events", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SubmitOperations submits a batch of concurrent edit operations.
func (c *Client) SubmitOperations(ctx context.Context, id string, ops []Operation) (*TransformResult, error) {
	body := map[string]any{"operations": ops}
	var res TransformResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/quotes/"+id+"/operations", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// History fetches the resolver's cumulative decision trail for a quote.
func (c *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var out struct {
		History []HistoryEntry `json:"history"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/quotes/"+id+"/history", nil, &out); err != nil {
		return nil, err
	}
	return out.History, nil
}

// LedgerChain fetches a quote's full integrity chain.
func (c *Client) LedgerChain(ctx context.Context, id string) ([]LedgerEntry, error) {
	var out struct {
		Entries []LedgerEntry `json:"entries"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/quotes/"+id+"/ledger", nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// VerifyChain asks the service to re-verify a quote's chain.
func (c *Client) VerifyChain(ctx context.Context, id string) (*VerificationResult, error) {
	var res VerificationResult
	if err := c.do(ctx, http.MethodGet, "/api/v1/quotes/"+id+"/ledger/verify", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// LedgerEntry fetches a single chain entry by version.
func (c *Client) LedgerEntry(ctx context.Context, id string, version int) (*LedgerEntry, error) {
	var e LedgerEntry
	path := fmt.Sprintf("/api/v1/quotes/%s/ledger/entries/%d", id, version)
	if err := c.do(ctx, http.MethodGet, path, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// IssueToken exchanges the admin secret for a service token and configures
// the client to use it.
func (c *Client) IssueToken(ctx context.Context, actorID, role, secret string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"actor_id": actorID, "role": role, "secret": secret}
	if err := c.do(ctx, http.MethodPost, "/api/v1/token", body, &out); err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}
