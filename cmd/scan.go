package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/engine"
	"github.com/10aburnett/popuppromocodes-script/internal/model"
)

var (
	scanRouteHint string
	scanOnlyCode  string
	scanNoRecord  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <url>",
	Short: "Visit one product page and extract its promo code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pageURL := args[0]

		env, err := initScanEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Engine.Extract(ctx, pageURL, engine.Params{
			Timeout:   scanTimeout(),
			RouteHint: scanRouteHint,
			OnlyCode:  scanOnlyCode,
		})

		record := buildVisitRecord(pageURL, result, err)
		if !scanNoRecord {
			if sErr := env.Store.RecordVisit(ctx, record); sErr != nil {
				zap.L().Warn("scan: record visit failed", zap.Error(sErr))
			}
		}
		if err != nil {
			return err
		}

		if result == nil {
			fmt.Println("no promo code found")
			return nil
		}
		fmt.Printf("code: %s\n", result.Code)
		if result.Discount.Present() {
			if result.Discount.PercentOff != nil {
				fmt.Printf("discount: %.4g%%\n", *result.Discount.PercentOff)
			}
			if result.Discount.AmountOff != nil {
				fmt.Printf("discount: %.2f %s\n", *result.Discount.AmountOff, result.Discount.Currency)
			}
		}
		fmt.Printf("source: %s\n", result.SourceURL)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanRouteHint, "route", "", "route override when the page URL cannot be trusted")
	scanCmd.Flags().StringVar(&scanOnlyCode, "only-code", "", "restrict extraction to one known code")
	scanCmd.Flags().BoolVar(&scanNoRecord, "no-record", false, "skip writing the outcome to the store")
	rootCmd.AddCommand(scanCmd)
}

// buildVisitRecord maps one extraction outcome to its checkpoint row.
func buildVisitRecord(pageURL string, result *model.ExtractionResult, err error) model.VisitRecord {
	record := model.VisitRecord{URL: pageURL}
	switch {
	case err != nil:
		record.Status = model.VisitStatusFailed
		record.Error = err.Error()
	case result == nil:
		record.Status = model.VisitStatusEmpty
	default:
		record.Status = model.VisitStatusFound
		record.Result = result
	}
	return record
}
