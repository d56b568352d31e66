package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/app"
)

var backtestOpts app.BacktestOptions

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Walk-forward one-step evaluation of the forecaster",
	RunE: func(cmd *cobra.Command, args []string) error {
		if backtestOpts.Path == "" && (backtestOpts.Kind == "" || backtestOpts.Name == "") {
			return fmt.Errorf("either --input or --kind and --name must be provided")
		}
		_, err := getApp().Backtest(cmd.Context(), backtestOpts)
		return err
	},
}

func init() {
	backtestCmd.Flags().StringVarP(&backtestOpts.Path, "input", "i", "", "Series file (.csv, .json, .yaml)")
	backtestCmd.Flags().BoolVar(&backtestOpts.Daily, "daily", false, "Input is a daily currency CSV")
	backtestCmd.Flags().StringVar(&backtestOpts.Kind, "kind", "", "Stored series kind")
	backtestCmd.Flags().StringVar(&backtestOpts.Name, "name", "", "Stored series name")
	backtestCmd.Flags().IntVar(&backtestOpts.MinTrain, "min-train", 2, "Minimum quarters before the first fold")
	backtestCmd.Flags().IntVar(&backtestOpts.Workers, "workers", 2, "Number of concurrent workers")
}
