package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ownership-cli/internal/model"
)

var staleCIHeader = []string{
	"ci_id", "ci_name", "ci_class", "current_owner", "current_owner_username",
	"confidence", "risk_level", "recommended_owner", "recommended_score",
	"owner_activity_count", "days_since_owner_activity", "owner_active", "reasons",
}

// WriteScan renders a scan result in the given format.
func WriteScan(w io.Writer, res *model.ScanResult, f Format) error {
	switch f {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatCSV:
		return writeScanCSV(w, res)
	case FormatXLSX:
		return writeScanXLSX(w, res)
	case FormatTable, "":
		return writeScanTable(w, res)
	default:
		return unsupported(f, "scan results")
	}
}

func staleCIRow(ci model.StaleCIResult) []string {
	var owner, score string
	if top, ok := ci.TopCandidate(); ok {
		owner = top.Username
		score = strconv.Itoa(top.Score)
	}
	reasons := make([]string, 0, len(ci.StalenessReasons))
	for _, r := range ci.StalenessReasons {
		reasons = append(reasons, r.RuleName)
	}
	return []string{
		ci.CIID, ci.CIName, ci.CIClass, ci.CurrentOwner, ci.CurrentOwnerUsername,
		strconv.FormatFloat(ci.Confidence, 'f', 2, 64), string(ci.RiskLevel), owner, score,
		strconv.Itoa(ci.OwnerActivityCount), strconv.Itoa(ci.DaysSinceOwnerActivity),
		strconv.FormatBool(ci.OwnerActive), strings.Join(reasons, "; "),
	}
}

func writeScanCSV(w io.Writer, res *model.ScanResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(staleCIHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, ci := range res.StaleCIs {
		if err := cw.Write(staleCIRow(ci)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", ci.CIID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func writeScanTable(w io.Writer, res *model.ScanResult) error {
	s := res.Summary
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "CIs analyzed:\t%d\n", s.TotalCIsAnalyzed)
	_, _ = fmt.Fprintf(tw, "CIs with owners:\t%d\n", s.CIsWithOwners)
	_, _ = fmt.Fprintf(tw, "Stale CIs:\t%d\n", s.StaleCIsFound)
	_, _ = fmt.Fprintf(tw, "  Critical:\t%d\n", s.CriticalRisk)
	_, _ = fmt.Fprintf(tw, "  High:\t%d\n", s.HighRisk)
	_, _ = fmt.Fprintf(tw, "  Medium:\t%d\n", s.MediumRisk)
	_, _ = fmt.Fprintf(tw, "High confidence (>80%%):\t%d\n", s.HighConfidencePredictions)
	_, _ = fmt.Fprintf(tw, "Recommended owners:\t%d\n", s.RecommendedOwnersCount)
	if s.EvaluationErrors > 0 {
		_, _ = fmt.Fprintf(tw, "Evaluation errors:\t%d\n", s.EvaluationErrors)
	}
	if err := tw.Flush(); err != nil {
		return eris.Wrap(err, "export: write summary")
	}

	if len(res.StaleCIs) > 0 {
		_, _ = fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "CI\tNAME\tCLASS\tOWNER\tCONF\tRISK\tRECOMMENDED")
		_, _ = fmt.Fprintln(tw, "--\t----\t-----\t-----\t----\t----\t-----------")
		for _, ci := range res.StaleCIs {
			rec := "-"
			if top, ok := ci.TopCandidate(); ok {
				rec = fmt.Sprintf("%s (%d)", top.Username, top.Score)
			}
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				ci.CIID, truncate(ci.CIName, 40), ci.CIClass, ci.CurrentOwnerUsername,
				pct(ci.Confidence), ci.RiskLevel, rec)
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "export: write stale cis")
		}
	}

	if len(res.GroupedByOwners) > 0 {
		_, _ = fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "OWNER\tDEPARTMENT\tCIS\tCRIT\tHIGH\tMED\tAVG_CONF\tAVG_SCORE")
		_, _ = fmt.Fprintln(tw, "-----\t----------\t---\t----\t----\t---\t--------\t---------")
		for _, b := range res.GroupedByOwners {
			_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%.1f\n",
				b.RecommendedOwner.DisplayName, b.RecommendedOwner.Department, b.TotalCIs,
				b.RiskBreakdown.Critical, b.RiskBreakdown.High, b.RiskBreakdown.Medium,
				pct(b.AvgConfidence), b.RecommendedOwner.AvgScore)
		}
		if err := tw.Flush(); err != nil {
			return eris.Wrap(err, "export: write buckets")
		}
	}
	return nil
}

// writeScanXLSX builds a workbook with Summary, Stale CIs, and Reassignment
// sheets. The Reassignment sheet lists one row per CI under its bucket.
func writeScanXLSX(w io.Writer, res *model.ScanResult) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}
	s := res.Summary
	for _, kv := range []struct {
		label string
		value int
	}{
		{"CIs analyzed", s.TotalCIsAnalyzed},
		{"CIs with owners", s.CIsWithOwners},
		{"Stale CIs", s.StaleCIsFound},
		{"Critical", s.CriticalRisk},
		{"High", s.HighRisk},
		{"Medium", s.MediumRisk},
		{"High confidence", s.HighConfidencePredictions},
		{"Recommended owners", s.RecommendedOwnersCount},
		{"Evaluation errors", s.EvaluationErrors},
	} {
		row := summary.AddRow()
		row.AddCell().SetString(kv.label)
		row.AddCell().SetInt(kv.value)
	}

	stale, err := f.AddSheet("Stale CIs")
	if err != nil {
		return eris.Wrap(err, "export: add stale sheet")
	}
	addStringRow(stale, staleCIHeader)
	for _, ci := range res.StaleCIs {
		addStringRow(stale, staleCIRow(ci))
	}

	buckets, err := f.AddSheet("Reassignment")
	if err != nil {
		return eris.Wrap(err, "export: add reassignment sheet")
	}
	addStringRow(buckets, []string{"recommended_username", "recommended_owner", "department", "ci_id", "ci_name", "ci_class", "current_owner", "confidence", "risk_level"})
	for _, b := range res.GroupedByOwners {
		for _, ci := range b.CIsToAssign {
			row := buckets.AddRow()
			row.AddCell().SetString(b.Username)
			row.AddCell().SetString(b.RecommendedOwner.DisplayName)
			row.AddCell().SetString(b.RecommendedOwner.Department)
			row.AddCell().SetString(ci.CIID)
			row.AddCell().SetString(ci.CIName)
			row.AddCell().SetString(ci.CIClass)
			row.AddCell().SetString(ci.CurrentOwner)
			row.AddCell().SetFloat(ci.Confidence)
			row.AddCell().SetString(string(ci.RiskLevel))
		}
	}

	return eris.Wrap(f.Write(w), "export: write xlsx")
}

func addStringRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
