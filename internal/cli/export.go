package cli

import (
	"github.com/spf13/cobra"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/app"
)

var exportOpts app.ExportOptions

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a stored series and its latest forecast as CSV, PNG chart or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Export(cmd.Context(), exportOpts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOpts.Kind, "kind", "", "Series kind")
	exportCmd.Flags().StringVar(&exportOpts.Name, "name", "", "Series name")
	exportCmd.Flags().StringVar(&exportOpts.PNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportOpts.CSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().StringVar(&exportOpts.XLSXPath, "xlsx", "", "Path to write an Excel workbook")
	exportCmd.Flags().IntVar(&exportOpts.MaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
