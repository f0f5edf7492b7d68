package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/ownership-cli/internal/assign"
	"github.com/sells-group/ownership-cli/internal/config"
	"github.com/sells-group/ownership-cli/internal/export"
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/store"
)

var (
	historyCIID   string
	historyLimit  int
	historyFormat string
)

var assignCmd = &cobra.Command{
	Use:   "assign <ci-id> <new-owner-username>",
	Short: "Reassign a CI to a new owner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAssignService(cmd.Context(), func(svc *assign.Service) error {
			a, err := svc.Assign(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return export.WriteAssignments(cmd.OutOrStdout(), []model.Assignment{*a}, export.FormatTable)
		})
	},
}

var undoCmd = &cobra.Command{
	Use:   "undo <assignment-id>",
	Short: "Revert a recorded assignment to its previous owner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAssignService(cmd.Context(), func(svc *assign.Service) error {
			a, err := svc.Undo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return export.WriteAssignments(cmd.OutOrStdout(), []model.Assignment{*a}, export.FormatTable)
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded assignments, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHistory(cmd.Context(), cmd.OutOrStdout())
	},
}

func withAssignService(ctx context.Context, fn func(*assign.Service) error) error {
	if err := cfg.Validate(config.ModeAssign); err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	c, err := newClient()
	if err != nil {
		return err
	}
	return fn(assign.NewService(c, st))
}

// runHistory reads only the local store; no ServiceNow credentials needed.
func runHistory(ctx context.Context, w io.Writer) error {
	format, err := export.ParseFormat(historyFormat)
	if err != nil {
		return err
	}
	if err := cfg.Validate(config.ModeHistory); err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	list, err := st.ListAssignments(ctx, store.AssignmentFilter{CIID: historyCIID, Limit: historyLimit})
	if err != nil {
		return err
	}
	return export.WriteAssignments(w, list, format)
}

func init() {
	historyCmd.Flags().StringVar(&historyCIID, "ci", "", "only show assignments for this CI sys_id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "maximum records to show")
	historyCmd.Flags().StringVar(&historyFormat, "format", "table", "output format: table, json, or csv")

	rootCmd.AddCommand(assignCmd, undoCmd, historyCmd)
}
