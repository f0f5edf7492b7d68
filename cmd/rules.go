package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/ownership-cli/internal/export"
	"github.com/sells-group/ownership-cli/internal/rules"
)

var rulesFormat string

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the staleness rule catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := export.ParseFormat(rulesFormat)
		if err != nil {
			return err
		}
		return export.WriteRules(cmd.OutOrStdout(), rules.DefaultCatalog(), format)
	},
}

func init() {
	rulesCmd.Flags().StringVar(&rulesFormat, "format", "table", "output format: table or json")
	rootCmd.AddCommand(rulesCmd)
}
