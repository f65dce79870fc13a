package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/engine"
	"github.com/10aburnett/popuppromocodes-script/internal/model"
	"github.com/10aburnett/popuppromocodes-script/internal/store"
)

var backfillLimit int

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Revisit found codes that are missing discount data",
	Long:  "Lists stored visits whose code has no discount record and revisits each page with the scan restricted to that code, so a second capture can recover the discount bundle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initScanEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		pending, err := env.Store.ListVisits(ctx, store.VisitFilter{
			MissingDiscount: true,
			Limit:           backfillLimit,
		})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			zap.L().Info("no visits need discount backfill")
			return nil
		}

		zap.L().Info("backfilling discounts", zap.Int("visits", len(pending)))

		visit := func(ctx context.Context, record model.VisitRecord) (*model.ExtractionResult, error) {
			return env.Engine.Extract(ctx, record.URL, engine.Params{
				Timeout:  scanTimeout(),
				OnlyCode: record.Result.Code,
			})
		}

		recovered := 0
		for _, record := range pending {
			if ctx.Err() != nil {
				break
			}
			log := zap.L().With(
				zap.String("url", record.URL),
				zap.String("code", record.Result.Code),
			)

			result, err := visit(ctx, record)
			if err != nil {
				log.Warn("backfill visit failed", zap.Error(err))
				continue
			}
			if result == nil || !result.Discount.Present() {
				log.Info("still no discount data")
				continue
			}

			record.Status = model.VisitStatusFound
			record.Result = result
			record.Error = ""
			if err := env.Store.RecordVisit(ctx, record); err != nil {
				log.Error("record backfill failed", zap.Error(err))
				continue
			}
			recovered++
			log.Info("discount recovered")
		}

		zap.L().Info("backfill complete",
			zap.Int("attempted", len(pending)),
			zap.Int("recovered", recovered),
		)
		return nil
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillLimit, "limit", 0, "max visits to backfill (0 = all)")
	rootCmd.AddCommand(backfillCmd)
}
