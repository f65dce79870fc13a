package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/10aburnett/popuppromocodes-script/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"
		if !configInitForce {
			if _, err := os.Stat(path); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}

		defaults := config.Config{
			Store:     config.StoreConfig{Driver: "sqlite", DSN: "promocodes.db"},
			Scan:      config.ScanConfig{AppDomain: "whop.com", TimeoutSecs: 30, SettleMs: 1500},
			Browser:   config.BrowserConfig{Headless: true, BodyLimitKB: 2048},
			Batch:     config.BatchConfig{Concurrency: 3, RatePerMinute: 30, MaxAttempts: 3},
			Discovery: config.DiscoveryConfig{TimeoutSecs: 20},
			Server:    config.ServerConfig{Port: 8080},
			Log:       config.LogConfig{Level: "info", Format: "json"},
		}

		data, err := yaml.Marshal(defaults)
		if err != nil {
			return eris.Wrap(err, "marshal default config")
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", path)
		}
		cmd.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config.yaml")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
