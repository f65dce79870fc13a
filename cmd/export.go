package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/10aburnett/popuppromocodes-script/internal/export"
	"github.com/10aburnett/popuppromocodes-script/internal/store"
)

var (
	exportOut    string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Materialize genuine finds from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		records, err := st.ListVisits(ctx, store.VisitFilter{FoundOnly: true})
		if err != nil {
			return err
		}

		switch exportFormat {
		case "csv":
			err = export.WriteCSV(records, exportOut)
		case "json":
			err = export.WriteJSON(records, exportOut)
		case "xlsx":
			err = export.WriteXLSX(records, exportOut)
		default:
			return eris.Errorf("unknown export format: %s", exportFormat)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.String("format", exportFormat),
			zap.Int("finds", len(export.Finds(records))),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "promocodes.csv", "output file path")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv, json, or xlsx")
	rootCmd.AddCommand(exportCmd)
}
