package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"availability-dashboard/internal/dataset"
)

var summaryJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the dataset summary the model sees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := dataset.Load(cfg.DataPath)
		if err != nil {
			return err
		}
		if summaryJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data.Summary())
		}
		fmt.Fprintln(cmd.OutOrStdout(), data.SummaryText())
		return nil
	},
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "print the structured summary as JSON")
}
