package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "popuppromocodes",
	Short: "Popup promo code extraction from product page traffic",
	Long:  "Visits product pages with an instrumented browser, captures network traffic during render and reload, and extracts the promo code (with discount metadata) that genuinely belongs to each page.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
