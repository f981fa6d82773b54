package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/survey-sampler/internal/fetcher"
)

var sheetsCmd = &cobra.Command{
	Use:   "sheets <workbook.xlsx>",
	Short: "List the sheets of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := fetcher.ListSheets(args[0])
		if err != nil {
			return err
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sheetsCmd)
}
