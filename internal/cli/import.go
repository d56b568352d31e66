package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/app"
)

var importOpts app.ImportOptions

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a series into the database from a file or the HTTP source",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importOpts.Path == "" && !importOpts.FromSource {
			return errors.New("either --input or --from-source must be provided")
		}
		return getApp().Import(cmd.Context(), importOpts)
	},
}

func init() {
	importCmd.Flags().StringVarP(&importOpts.Path, "input", "i", "", "Series file (.csv, .json, .yaml)")
	importCmd.Flags().BoolVar(&importOpts.FromSource, "from-source", false, "Fetch from source.base_url instead of a file")
	importCmd.Flags().BoolVar(&importOpts.Daily, "daily", false, "Input is a daily currency CSV")
	importCmd.Flags().StringVar(&importOpts.Kind, "kind", "", "Series kind, e.g. export, import, currency")
	importCmd.Flags().StringVar(&importOpts.Name, "name", "", "Series name, e.g. coffee")
	importCmd.Flags().StringVar(&importOpts.Unit, "unit", "", "Unit label, e.g. USD")
	_ = importCmd.MarkFlagRequired("kind")
	_ = importCmd.MarkFlagRequired("name")
}
