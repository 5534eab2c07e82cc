package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/resilience"
)

var (
	extractURL   string
	extractModel string
	vendorAI     bool
	customerFile string
	withLenders  bool
)

var lenderCmd = &cobra.Command{
	Use:   "lender",
	Short: "Extract a lender profile from a website",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runExtraction(cmd, "lender", model.ExtractionRequest{
			URL:  extractURL,
			Kind: model.KindLender,
			Tier: model.Tier(extractModel),
		})
	},
}

var vendorCmd = &cobra.Command{
	Use:   "vendor",
	Short: "Scan a lead vendor website",
	Long:  "Uses the Firecrawl agent when configured, otherwise fetches the site and parses it heuristically. --ai sends the fetched text to the model instead.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mode := "vendor"
		if vendorAI {
			mode = "vendor:ai"
		}
		return runExtraction(cmd, mode, model.ExtractionRequest{
			URL:   extractURL,
			Kind:  model.KindVendor,
			Tier:  model.Tier(extractModel),
			UseAI: vendorAI,
		})
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Produce a sales recommendation for a customer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := readCustomer(customerFile)
		if err != nil {
			return err
		}
		return runExtraction(cmd, "recommend", model.ExtractionRequest{
			Kind:        model.KindRecommendation,
			Tier:        model.Tier(extractModel),
			Customer:    c,
			WithLenders: withLenders,
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{lenderCmd, vendorCmd} {
		c.Flags().StringVar(&extractURL, "url", "", "website to extract from")
		_ = c.MarkFlagRequired("url")
	}
	for _, c := range []*cobra.Command{lenderCmd, vendorCmd, recommendCmd} {
		c.Flags().StringVar(&extractModel, "model", "fast", "model tier (fast, quality)")
		rootCmd.AddCommand(c)
	}
	vendorCmd.Flags().BoolVar(&vendorAI, "ai", false, "extract with the model instead of the heuristic parser")
	recommendCmd.Flags().StringVar(&customerFile, "customer", "", "customer JSON file (- for stdin)")
	recommendCmd.Flags().BoolVar(&withLenders, "with-lenders", false, "include approved lenders in the prompt")
	_ = recommendCmd.MarkFlagRequired("customer")
}

// runExtraction runs one request and prints the recorded run as JSON.
func runExtraction(cmd *cobra.Command, mode string, req model.ExtractionRequest) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := initPipeline(ctx, mode)
	if err != nil {
		return err
	}
	defer env.Close()

	return extractAndPrint(ctx, env, req, os.Stdout, os.Stderr)
}

func extractAndPrint(ctx context.Context, env *pipelineEnv, req model.ExtractionRequest, out, errOut io.Writer) error {
	run, err := env.Pipeline.Run(ctx, req)
	if run != nil {
		if perr := printJSON(out, run); perr != nil {
			return eris.Wrap(perr, "print run")
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "%s error: %v\n", resilience.KindOf(err), err)
		return err
	}
	_, _ = fmt.Fprintf(errOut, "Review the result, then approve with: funding-intake approve %s --sink store\n", run.ID)
	return nil
}

// readCustomer decodes a customer record from path, or stdin for "-".
func readCustomer(path string) (*model.Customer, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open customer file")
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	var c model.Customer
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, eris.Wrap(err, "decode customer")
	}
	return &c, nil
}
