package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/app"
)

var (
	forecastInput   string
	forecastDaily   bool
	forecastHorizon int
	forecastFormat  string
	forecastExports string
	forecastImports string
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Forecast a quarterly series read from a CSV, JSON or YAML file",
	Example: `  tradecast forecast --input exports_coffee.csv --horizon 4
  tradecast forecast --input usd_rwf_daily.csv --daily --exports exports.csv --imports imports.csv --format table`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if forecastHorizon < 0 {
			return fmt.Errorf("--horizon cannot be negative")
		}

		opts := app.ForecastOptions{
			Input:   forecastInput,
			Daily:   forecastDaily,
			Horizon: forecastHorizon,
			Format:  forecastFormat,
			Exports: forecastExports,
			Imports: forecastImports,
		}
		return getApp().Forecast(cmd.Context(), opts)
	},
}

func init() {
	forecastCmd.Flags().StringVarP(&forecastInput, "input", "i", "", "Series file (.csv, .json, .yaml)")
	forecastCmd.Flags().BoolVar(&forecastDaily, "daily", false, "Input is a daily currency CSV (post_date, average_rate)")
	forecastCmd.Flags().IntVar(&forecastHorizon, "horizon", 0, "Quarters to forecast (defaults to config)")
	forecastCmd.Flags().StringVar(&forecastFormat, "format", app.FormatJSON, "Output format: json or table")
	forecastCmd.Flags().StringVar(&forecastExports, "exports", "", "Quarterly exports file for trade adjustment")
	forecastCmd.Flags().StringVar(&forecastImports, "imports", "", "Quarterly imports file for trade adjustment")
	_ = forecastCmd.MarkFlagRequired("input")
}
