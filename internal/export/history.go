package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/rules"
)

// WriteAssignments renders assignment history.
func WriteAssignments(w io.Writer, list []model.Assignment, f Format) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, list)
	case FormatCSV:
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id", "timestamp", "ci_id", "ci_name", "previous_owner", "new_owner", "is_undo", "undoes_assignment_id"})
		for _, a := range list {
			_ = cw.Write([]string{
				a.ID, a.Timestamp.Format(time.RFC3339), a.CIID, a.CIName,
				a.PreviousOwner.Username, a.NewOwner.Username,
				strconv.FormatBool(a.IsUndo), a.UndoesAssignmentID,
			})
		}
		cw.Flush()
		return eris.Wrap(cw.Error(), "export: write assignments csv")
	case FormatTable, "":
		if len(list) == 0 {
			_, _ = fmt.Fprintln(w, "No assignments recorded.")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tWHEN\tCI\tNAME\tFROM\tTO\tUNDO")
		_, _ = fmt.Fprintln(tw, "--\t----\t--\t----\t----\t--\t----")
		for _, a := range list {
			undo := ""
			if a.IsUndo {
				undo = "undoes " + a.UndoesAssignmentID
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				a.ID, a.Timestamp.Format("2006-01-02 15:04"), a.CIID, truncate(a.CIName, 30),
				ownerLabel(a.PreviousOwner), ownerLabel(a.NewOwner), undo)
		}
		return eris.Wrap(tw.Flush(), "export: write assignments")
	default:
		return unsupported(f, "assignment history")
	}
}

func ownerLabel(o model.OwnerRef) string {
	switch {
	case o.Username != "":
		return o.Username
	case o.DisplayName != "":
		return o.DisplayName
	default:
		return "-"
	}
}

// WriteRules renders the rule catalog.
func WriteRules(w io.Writer, catalog []rules.Rule, f Format) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, catalog)
	case FormatTable, "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "RULE\tCONF\tCONDITIONS")
		_, _ = fmt.Fprintln(tw, "----\t----\t----------")
		for _, r := range catalog {
			conds := r.Conditions()
			first := ""
			if len(conds) > 0 {
				first = conds[0]
			}
			_, _ = fmt.Fprintf(tw, "%s\t%.2f\t%s\n", r.Name, r.Confidence, first)
			for _, c := range conds[min(1, len(conds)):] {
				_, _ = fmt.Fprintf(tw, "\t\tand %s\n", c)
			}
		}
		return eris.Wrap(tw.Flush(), "export: write rules")
	default:
		return unsupported(f, "rules")
	}
}
