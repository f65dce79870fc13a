package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/10aburnett/popuppromocodes-script/internal/engine"
	"github.com/10aburnett/popuppromocodes-script/internal/model"
	"github.com/10aburnett/popuppromocodes-script/internal/resilience"
	"github.com/10aburnett/popuppromocodes-script/internal/store"
)

var (
	batchURLsFile string
	batchLimit    int
	batchRescan   bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Visit a queue of product pages with checkpointing",
	Long:  "Reads URLs (one per line) from --urls or stdin, skips URLs already recorded in the store, and visits the rest under a bounded worker pool. Individual failures are recorded and never abort the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		urls, err := readURLList(batchURLsFile)
		if err != nil {
			return err
		}

		env, err := initScanEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		visit := func(ctx context.Context, pageURL string) (*model.ExtractionResult, error) {
			return env.Engine.Extract(ctx, pageURL, engine.Params{Timeout: scanTimeout()})
		}
		return processBatch(ctx, env.Store, urls, batchLimit, visit)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchURLsFile, "urls", "", "file of URLs to visit, one per line (default: stdin)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of URLs to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchRescan, "rescan", false, "revisit URLs already recorded in the store")
	rootCmd.AddCommand(batchCmd)
}

// visitFunc is the callback signature for one page visit.
type visitFunc func(ctx context.Context, pageURL string) (*model.ExtractionResult, error)

// processBatch visits urls concurrently, pacing visits with the configured
// rate limit and recording every outcome. A failed URL is recorded as failed
// and the batch continues.
func processBatch(ctx context.Context, st store.Store, urls []string, limit int, visit visitFunc) error {
	if limit > 0 && len(urls) > limit {
		urls = urls[:limit]
	}
	if len(urls) == 0 {
		zap.L().Info("no urls to visit")
		return nil
	}

	zap.L().Info("processing batch",
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", cfg.Batch.Concurrency),
	)

	limiter := rate.NewLimiter(rate.Limit(float64(cfg.Batch.RatePerMinute)/60.0), 1)

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = cfg.Batch.MaxAttempts

	var found, empty, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Batch.Concurrency)

	for _, pageURL := range urls {
		g.Go(func() error {
			log := zap.L().With(zap.String("url", pageURL))

			if !batchRescan {
				seen, err := st.Seen(gctx, pageURL)
				if err != nil {
					log.Warn("checkpoint lookup failed", zap.Error(err))
				} else if seen {
					skipped.Add(1)
					log.Debug("already visited, skipping")
					return nil
				}
			}

			if err := limiter.Wait(gctx); err != nil {
				return nil // context cancelled
			}

			rc := retryCfg
			rc.OnRetry = resilience.RetryLogger(pageURL)
			result, err := resilience.DoVal(gctx, rc, func(ctx context.Context) (*model.ExtractionResult, error) {
				return visit(ctx, pageURL)
			})

			record := buildVisitRecord(pageURL, result, err)
			if sErr := st.RecordVisit(gctx, record); sErr != nil {
				log.Error("record visit failed", zap.Error(sErr))
			}

			switch record.Status {
			case model.VisitStatusFailed:
				failed.Add(1)
				log.Error("visit failed", zap.Error(err))
			case model.VisitStatusEmpty:
				empty.Add(1)
				log.Info("no code found")
			default:
				found.Add(1)
				log.Info("code found",
					zap.String("code", result.Code),
					zap.Bool("discount", result.Discount.Present()),
				)
			}
			return nil // individual failures never abort the batch
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("found", found.Load()),
		zap.Int64("empty", empty.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int64("skipped", skipped.Load()),
	)
	return nil
}

// readURLList reads URLs one per line from path, or stdin when path is "".
// Blank lines and #-comments are skipped.
func readURLList(path string) ([]string, error) {
	var in *os.File
	if path == "" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "open url list %s", path)
		}
		defer f.Close()
		in = f
	}

	var urls []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, eris.Wrap(scanner.Err(), "read url list")
}
