package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/10aburnett/popuppromocodes-script/internal/discovery"
)

var (
	discoverOut   string
	discoverLimit int
)

var discoverCmd = &cobra.Command{
	Use:   "discover <index-url>",
	Short: "Collect product page URLs from an index or listing page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit := discoverLimit
		if limit == 0 {
			limit = cfg.Discovery.MaxURLs
		}

		d := discovery.New(cfg.Scan.AppDomain, time.Duration(cfg.Discovery.TimeoutSecs)*time.Second)
		urls, err := d.Discover(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}

		out := strings.Join(urls, "\n")
		if len(urls) > 0 {
			out += "\n"
		}
		if discoverOut == "" {
			fmt.Print(out)
			return nil
		}
		return eris.Wrapf(os.WriteFile(discoverOut, []byte(out), 0o644), "write url list %s", discoverOut)
	},
}

func init() {
	discoverCmd.Flags().StringVar(&discoverOut, "out", "", "write URLs to this file instead of stdout")
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 0, "max URLs to emit (0 = config default)")
	rootCmd.AddCommand(discoverCmd)
}
