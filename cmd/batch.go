package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/funding-intake/internal/importer"
	"github.com/sells-group/funding-intake/internal/model"
	"github.com/sells-group/funding-intake/internal/resilience"
)

var (
	batchFile  string
	batchKind  string
	batchModel string
	batchAI    bool
	batchSheet string
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run extractions for every row of a CSV or XLSX file",
	Long:  "Rows are processed one at a time under batch.rate_per_minute. Each row becomes a run awaiting review.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		kind, err := model.ParseKind(batchKind)
		if err != nil {
			return err
		}
		tier, err := model.ParseTier(batchModel)
		if err != nil {
			return err
		}
		if err := cfg.Validate("batch"); err != nil {
			return err
		}

		rows, err := importer.Load(batchFile, importer.Options{
			Kind:  kind,
			Tier:  tier,
			UseAI: batchAI,
			Sheet: batchSheet,
		})
		if err != nil {
			return eris.Wrap(err, "load batch file")
		}

		env, err := initPipeline(ctx, batchMode(kind, batchAI))
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := processBatch(ctx, rows, batchLimit, newBatchLimiter(cfg.Batch.RatePerMinute), func(ctx context.Context, req model.ExtractionRequest) (*model.Run, error) {
			return env.Pipeline.Run(ctx, req)
		})
		formatBatchSummary(os.Stdout, sum)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "CSV or XLSX file with a header row")
	batchCmd.Flags().StringVar(&batchKind, "kind", "lender", "kind for rows without a kind column (lender, vendor, recommendation)")
	batchCmd.Flags().StringVar(&batchModel, "model", "fast", "model tier for rows without a model column")
	batchCmd.Flags().BoolVar(&batchAI, "ai", false, "use the model for vendor rows without a use_ai column")
	batchCmd.Flags().StringVar(&batchSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of rows to process (0 = all)")
	_ = batchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(batchCmd)
}

// batchMode maps the default row kind to the credential check it needs.
func batchMode(kind model.Kind, useAI bool) string {
	switch kind {
	case model.KindLender:
		return "lender"
	case model.KindRecommendation:
		return "recommend"
	}
	if useAI {
		return "vendor:ai"
	}
	return "vendor"
}

// newBatchLimiter allows perMinute extractions per minute with no burst.
func newBatchLimiter(perMinute float64) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(float64(time.Minute)/perMinute)), 1)
}

// runFunc is the callback signature for running one extraction.
type runFunc func(ctx context.Context, req model.ExtractionRequest) (*model.Run, error)

// batchSummary counts the outcome of every row.
type batchSummary struct {
	Rows      int
	Succeeded int
	Failed    int
	Skipped   int
	ByKind    map[resilience.Kind]int
	RunIDs    []string
}

// processBatch applies limit, then runs rows sequentially under limiter.
// Invalid rows are skipped and individual failures do not abort the batch;
// only cancellation does.
func processBatch(ctx context.Context, rows []importer.Row, limit int, limiter *rate.Limiter, run runFunc) (batchSummary, error) {
	sum := batchSummary{ByKind: make(map[resilience.Kind]int)}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	sum.Rows = len(rows)

	zap.L().Info("processing batch", zap.Int("rows", len(rows)))

	for _, row := range rows {
		log := zap.L().With(zap.Int("line", row.Line))
		if row.Err != nil {
			sum.Skipped++
			log.Warn("skipping invalid row", zap.Error(row.Err))
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return sum, eris.Wrap(err, "batch: rate limit")
		}

		r, err := run(ctx, row.Request)
		if r != nil && r.ID != "" {
			sum.RunIDs = append(sum.RunIDs, r.ID)
		}
		if err != nil {
			if ctx.Err() != nil {
				return sum, eris.Wrap(ctx.Err(), "batch: interrupted")
			}
			sum.Failed++
			sum.ByKind[resilience.KindOf(err)]++
			log.Error("extraction failed", zap.String("url", row.Request.URL), zap.Error(err))
			continue
		}
		sum.Succeeded++
	}

	zap.L().Info("batch complete",
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("skipped", sum.Skipped),
	)
	return sum, nil
}

// formatBatchSummary writes the batch outcome to w.
func formatBatchSummary(w io.Writer, s batchSummary) {
	_, _ = fmt.Fprintf(w, "Rows: %d  succeeded: %d  failed: %d  skipped: %d\n", s.Rows, s.Succeeded, s.Failed, s.Skipped)
	for _, k := range []resilience.Kind{
		resilience.KindConfiguration,
		resilience.KindFetch,
		resilience.KindProvider,
		resilience.KindTimeout,
		resilience.KindParse,
		resilience.KindUnknown,
	} {
		if n := s.ByKind[k]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s: %d\n", k, n)
		}
	}
	if len(s.RunIDs) > 0 {
		_, _ = fmt.Fprintln(w, "Runs awaiting review: funding-intake runs list --status pending_review")
	}
}
