// Package client is the QuoteForge Go SDK.
//
// It wraps the QuoteForge HTTP API: creating quotes, driving them through
// their lifecycle, submitting concurrent edit batches, and inspecting or
// verifying the per-quote integrity chain.
//
// # Connecting
//
//	c := client.New("https://quotes.internal.example.com")
//
// Mutating calls need a service token. Exchange the shared admin secret for
// one, or supply a token you already hold:
//
//	token, err := c.IssueToken(ctx, "svc-pricing", "service", adminSecret)
//	// or
//	c := client.New(baseURL, client.WithToken(token))
//
// # Working with quotes
//
//	q, err := c.CreateQuote(ctx, &client.CreateQuoteRequest{
//	    CustomerID: "cust_81hx",
//	    Lines:      []client.LineItem{{ProductID: "sku-100", Quantity: 3, UnitPrice: 24.50}},
//	})
//
//	res, err := c.ApplyEvent(ctx, q.ID, "fields_collected", nil)
//	fmt.Println(res.Outcome.To) // validated
//
// # Concurrent edits
//
// SubmitOperations resolves a batch of competing edits in one call; the
// result names which operations were applied, overridden, or rejected:
//
//	res, err := c.SubmitOperations(ctx, q.ID, ops)
//
// # Integrity
//
// Every mutation appends a signed, hash-chained ledger entry. Fetch the
// chain or have the service re-verify it end to end:
//
//	entries, err := c.LedgerChain(ctx, q.ID)
//	verdict, err := c.VerifyChain(ctx, q.ID)
//	if !verdict.Valid {
//	    log.Printf("chain broken at entry %d: %s", verdict.VerifiedEntries, verdict.Reason)
//	}
package client
