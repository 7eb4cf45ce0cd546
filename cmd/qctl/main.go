package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/quoteforge/quoteforge/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	authToken string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "qctl",
	Short: "QuoteForge CLI",
	Long: `qctl is the command-line interface for QuoteForge.

It creates quotes, drives them through their lifecycle, submits batches of
concurrent edits for conflict resolution, and inspects or verifies the
signed integrity chain kept for every quote.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.qctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if authToken == "" {
			authToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.qctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "QuoteForge server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Bearer token for authenticated calls")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(transitionCmd)
	rootCmd.AddCommand(opsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if authToken != "" {
		opts = append(opts, client.WithToken(authToken))
	}
	return client.New(serverURL, opts...)
}

// ── create ───────────────────────────────────────────────────────────────────

var (
	createCustomerID  string
	createQuoteNumber string
	createLines       []string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new draft quote",
	Long: `Create registers a new quote in the draft state.

Lines are given as product:quantity:unit_price triples:

  qctl create --customer cust_81hx --line sku-100:3:24.50 --line sku-200:1:99.00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := parseLines(createLines)
		if err != nil {
			return err
		}

		q, err := newClient().CreateQuote(context.Background(), &client.CreateQuoteRequest{
			QuoteNumber: createQuoteNumber,
			CustomerID:  createCustomerID,
			Lines:       lines,
		})
		if err != nil {
			return fmt.Errorf("create quote: %w", err)
		}

		fmt.Printf("✓ Quote created\n\n")
		fmt.Printf("  ID:      %s\n", q.ID)
		fmt.Printf("  Number:  %s\n", q.QuoteNumber)
		fmt.Printf("  Status:  %s\n", q.Status)
		fmt.Printf("  Version: %d\n", q.Version)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createCustomerID, "customer", "", "Customer identifier")
	createCmd.Flags().StringVar(&createQuoteNumber, "number", "", "Quote number (generated when empty)")
	createCmd.Flags().StringArrayVar(&createLines, "line", nil, "Line item as product:quantity:unit_price (repeatable)")

	_ = createCmd.MarkFlagRequired("customer")
}

// parseLines converts product:quantity:unit_price triples into line items.
func parseLines(specs []string) ([]client.LineItem, error) {
	lines := make([]client.LineItem, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid line %q: want product:quantity:unit_price", spec)
		}
		qty, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity in line %q: %w", spec, err)
		}
		price, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price in line %q: %w", spec, err)
		}
		lines = append(lines, client.LineItem{ProductID: parts[0], Quantity: qty, UnitPrice: price})
	}
	return lines, nil
}

// ── get ──────────────────────────────────────────────────────────────────────

var getCmd = &cobra.Command{
	Use:   "get <quote-id>",
	Short: "Show a quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := newClient().GetQuote(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get quote: %w", err)
		}

		fmt.Printf("ID:       %s\n", q.ID)
		fmt.Printf("Number:   %s\n", q.QuoteNumber)
		fmt.Printf("Customer: %s\n", q.CustomerID)
		fmt.Printf("Status:   %s\n", q.Status)
		fmt.Printf("Version:  %d\n", q.Version)
		if len(q.Lines) > 0 {
			fmt.Println()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRODUCT\tQTY\tUNIT PRICE")
			for _, l := range q.Lines {
				fmt.Fprintf(w, "%s\t%d\t%.2f\n", l.ProductID, l.Quantity, l.UnitPrice)
			}
			return w.Flush()
		}
		return nil
	},
}

// ── list ─────────────────────────────────────────────────────────────────────

var (
	listLimit  int
	listOffset int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List quotes",
	RunE: func(cmd *cobra.Command, args []string) error {
		quotes, err := newClient().ListQuotes(context.Background(), listLimit, listOffset)
		if err != nil {
			return fmt.Errorf("list quotes: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNUMBER\tCUSTOMER\tSTATUS\tVERSION")
		for _, q := range quotes {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", q.ID, q.QuoteNumber, q.CustomerID, q.Status, q.Version)
		}
		return w.Flush()
	},
}

func init() {
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "Maximum quotes to return")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "Number of quotes to skip")
}

// ── transition ───────────────────────────────────────────────────────────────

var transitionMissing []string

var transitionCmd = &cobra.Command{
	Use:   "transition <quote-id> <event>",
	Short: "Apply a lifecycle event to a quote",
	Long: `Transition submits a lifecycle event and reports the resulting state
and side-effect actions:

  qctl transition 550e8400-... fields_collected
  qctl transition 550e8400-... fields_collected --missing customer_id,lines`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().ApplyEvent(context.Background(), args[0], args[1], transitionMissing)
		if err != nil {
			return fmt.Errorf("apply event: %w", err)
		}

		fmt.Printf("✓ %s → %s (event: %s)\n", res.Outcome.From, res.Outcome.To, res.Outcome.Event)
		if len(res.Outcome.Actions) > 0 {
			fmt.Printf("  Actions: %s\n", strings.Join(res.Outcome.Actions, ", "))
		}
		if res.Quote != nil {
			fmt.Printf("  Version: %d\n", res.Quote.Version)
		}
		return nil
	},
}

func init() {
	transitionCmd.Flags().StringSliceVar(&transitionMissing, "missing", nil, "Required fields still missing (blocks fields_collected)")
}

// ── ops ──────────────────────────────────────────────────────────────────────

var opsFile string

var opsCmd = &cobra.Command{
	Use:   "ops <quote-id>",
	Short: "Submit a batch of concurrent edit operations",
	Long: `Ops reads a JSON array of operations from --file (or stdin with -)
and submits it for conflict resolution:

  qctl ops 550e8400-... --file batch.json
  cat batch.json | qctl ops 550e8400-... --file -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if opsFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(opsFile)
		}
		if err != nil {
			return fmt.Errorf("read operations: %w", err)
		}

		var ops []client.Operation
		if err := json.Unmarshal(data, &ops); err != nil {
			return fmt.Errorf("parse operations: %w", err)
		}

		res, err := newClient().SubmitOperations(context.Background(), args[0], ops)
		if err != nil {
			return fmt.Errorf("submit operations: %w", err)
		}

		fmt.Printf("Applied:    %d\n", len(res.Applied))
		fmt.Printf("Overridden: %d\n", len(res.Overridden))
		fmt.Printf("Rejected:   %d\n\n", len(res.Rejected))
		return printHistory(res.History)
	},
}

func init() {
	opsCmd.Flags().StringVar(&opsFile, "file", "-", "JSON file with the operation batch, or - for stdin")
}

// ── history ──────────────────────────────────────────────────────────────────

var historyCmd = &cobra.Command{
	Use:   "history <quote-id>",
	Short: "Show the conflict-resolution decision trail for a quote",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		history, err := newClient().History(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetch history: %w", err)
		}
		if len(history) == 0 {
			fmt.Println("No operations recorded for this quote.")
			return nil
		}
		return printHistory(history)
	},
}

func printHistory(history []client.HistoryEntry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET\tOPERATION\tACTOR\tSTATUS\tDETAIL")
	for _, h := range history {
		detail := h.Reason
		if h.SupersededBy != "" {
			detail = "superseded by " + h.SupersededBy
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", h.Target, h.OperationID, h.ActorID, h.Status, detail)
	}
	return w.Flush()
}

// ── chain / verify ───────────────────────────────────────────────────────────

var chainCmd = &cobra.Command{
	Use:   "chain <quote-id>",
	Short: "Show a quote's integrity chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := newClient().LedgerChain(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("fetch chain: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tACTION\tACTOR\tTIMESTAMP\tENTRY HASH")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				e.Version, e.Action, e.ActorID, e.Timestamp.Format("2006-01-02 15:04:05"), short(e.EntryHash))
		}
		return w.Flush()
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <quote-id>",
	Short: "Verify a quote's integrity chain end to end",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		verdict, err := newClient().VerifyChain(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("verify chain: %w", err)
		}

		if verdict.Valid {
			fmt.Printf("✓ Chain valid (%d entries verified)\n", verdict.VerifiedEntries)
			return nil
		}

		fmt.Printf("✗ Chain INVALID\n\n")
		fmt.Printf("  Verified entries: %d\n", verdict.VerifiedEntries)
		if verdict.LastValidHash != "" {
			fmt.Printf("  Last valid hash:  %s\n", short(verdict.LastValidHash))
		}
		fmt.Printf("  Reason:           %s\n", verdict.Reason)
		os.Exit(1)
		return nil
	},
}

// short truncates a hex digest for table display.
func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "…"
	}
	return hash
}

// ── token ────────────────────────────────────────────────────────────────────

var (
	tokenActor  string
	tokenRole   string
	tokenSecret string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange the admin secret for a service token",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := newClient().IssueToken(context.Background(), tokenActor, tokenRole, tokenSecret)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenActor, "actor", "", "Actor identifier to embed in the token")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "service", "Role to embed in the token")
	tokenCmd.Flags().StringVar(&tokenSecret, "secret", "", "Admin secret")

	_ = tokenCmd.MarkFlagRequired("actor")
	_ = tokenCmd.MarkFlagRequired("secret")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the qctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("qctl %s\n", version)
	},
}
