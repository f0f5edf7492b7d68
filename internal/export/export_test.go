package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/rules"
)

func sampleResult() *model.ScanResult {
	return &model.ScanResult{
		Summary: model.ScanSummary{
			TotalCIsAnalyzed: 10, CIsWithOwners: 8, StaleCIsFound: 2,
			HighConfidencePredictions: 2, CriticalRisk: 1, HighRisk: 1, RecommendedOwnersCount: 1,
		},
		StaleCIs: []model.StaleCIResult{
			{
				CIID: "ci-1", CIName: "db01", CIClass: "cmdb_ci_server",
				CurrentOwner: "John Doe", CurrentOwnerUsername: "jdoe",
				IsStale: true, Confidence: 0.95, RiskLevel: model.RiskCritical,
				StalenessReasons: []model.Reason{
					{RuleName: "inactive_owner", Confidence: 0.95},
					{RuleName: "no_owner_activity", Confidence: 0.85},
				},
				RecommendedOwners: []model.RecommendationCandidate{{Username: "asmith", Score: 75}},
				OwnerActive:       false, DaysSinceOwnerActivity: 999,
			},
			{
				CIID: "ci-2", CIName: "web01", CIClass: "cmdb_ci_server",
				CurrentOwner: "Bob Lee", CurrentOwnerUsername: "blee",
				IsStale: true, Confidence: 0.85, RiskLevel: model.RiskHigh,
				OwnerActive: true,
			},
		},
		GroupedByOwners: []model.GroupedBucket{
			{
				Username:         "asmith",
				RecommendedOwner: model.RecommendedOwner{Username: "asmith", DisplayName: "Alice Smith", Department: "IT Ops", AvgScore: 75},
				CIsToAssign:      []model.BucketCI{{CIID: "ci-1", CIName: "db01", Confidence: 0.95, RiskLevel: model.RiskCritical}},
				TotalCIs:         1,
				RiskBreakdown:    model.RiskBreakdown{Critical: 1},
				AvgConfidence:    0.95,
			},
			{
				Username:         model.NoRecommendation,
				RecommendedOwner: model.RecommendedOwner{Username: model.NoRecommendation, DisplayName: "No Suitable Owner Found", Department: "Manual Review Required"},
				CIsToAssign:      []model.BucketCI{{CIID: "ci-2", CIName: "web01", Confidence: 0.85, RiskLevel: model.RiskHigh}},
				TotalCIs:         1,
				RiskBreakdown:    model.RiskBreakdown{High: 1},
				AvgConfidence:    0.85,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" csv ", FormatCSV, false},
		{"xlsx", FormatXLSX, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteScan_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScan(&buf, sampleResult(), FormatTable))
	out := buf.String()

	assert.Contains(t, out, "CIs analyzed:")
	assert.Contains(t, out, "asmith (75)")
	assert.Contains(t, out, "95%")
	assert.Contains(t, out, "No Suitable Owner Found")
	assert.NotContains(t, out, "Evaluation errors")
}

func TestWriteScan_TableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScan(&buf, &model.ScanResult{}, FormatTable))
	assert.Contains(t, buf.String(), "Stale CIs:")
	assert.NotContains(t, buf.String(), "RECOMMENDED")
}

func TestWriteScan_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScan(&buf, sampleResult(), FormatJSON))

	var got model.ScanResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, 2, got.Summary.StaleCIsFound)
	assert.Len(t, got.GroupedByOwners, 2)
}

func TestWriteScan_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScan(&buf, sampleResult(), FormatCSV))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, staleCIHeader, rows[0])
	assert.Equal(t, "ci-1", rows[1][0])
	assert.Equal(t, "0.95", rows[1][5])
	assert.Equal(t, "asmith", rows[1][7])
	assert.Equal(t, "inactive_owner; no_owner_activity", rows[1][12])
	assert.Equal(t, "", rows[2][7])
}

func TestWriteScan_XLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteScan(&buf, sampleResult(), FormatXLSX))

	f, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Contains(t, f.Sheet, "Summary")
	require.Contains(t, f.Sheet, "Stale CIs")
	require.Contains(t, f.Sheet, "Reassignment")

	stale := f.Sheet["Stale CIs"]
	assert.Len(t, stale.Rows, 3)
	assert.Equal(t, "ci_id", stale.Rows[0].Cells[0].String())

	reassign := f.Sheet["Reassignment"]
	require.Len(t, reassign.Rows, 3)
	assert.Equal(t, "asmith", reassign.Rows[1].Cells[0].String())
	assert.Equal(t, "ci-1", reassign.Rows[1].Cells[3].String())
	assert.Equal(t, model.NoRecommendation, reassign.Rows[2].Cells[0].String())
}

func TestWriteScan_UnknownFormat(t *testing.T) {
	err := WriteScan(&bytes.Buffer{}, sampleResult(), Format("pdf"))
	assert.Error(t, err)
}

func TestWriteAssignments(t *testing.T) {
	list := []model.Assignment{
		{
			ID: "a-2", Timestamp: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), CIID: "ci-1", CIName: "db01",
			PreviousOwner: model.OwnerRef{Username: "asmith"}, NewOwner: model.OwnerRef{Username: "jdoe"},
			IsUndo: true, UndoesAssignmentID: "a-1",
		},
		{
			ID: "a-1", Timestamp: time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC), CIID: "ci-1", CIName: "db01",
			PreviousOwner: model.OwnerRef{DisplayName: "Unknown"}, NewOwner: model.OwnerRef{Username: "asmith"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteAssignments(&buf, list, FormatTable))
	out := buf.String()
	assert.Contains(t, out, "undoes a-1")
	assert.Contains(t, out, "2026-06-01 12:00")
	assert.Contains(t, out, "Unknown")

	buf.Reset()
	require.NoError(t, WriteAssignments(&buf, list, FormatCSV))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "true", rows[1][6])

	buf.Reset()
	require.NoError(t, WriteAssignments(&buf, nil, FormatTable))
	assert.Equal(t, "No assignments recorded.\n", buf.String())

	assert.Error(t, WriteAssignments(&buf, list, FormatXLSX))
}

func TestWriteRules(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRules(&buf, rules.DefaultCatalog(), FormatTable))
	out := buf.String()
	assert.Contains(t, out, "inactive_owner")
	assert.Contains(t, out, "owner_active == false")
	assert.True(t, strings.Contains(out, "and "), "multi-condition rules list extra conditions")

	buf.Reset()
	require.NoError(t, WriteRules(&buf, rules.DefaultCatalog(), FormatJSON))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 15)

	assert.Error(t, WriteRules(&buf, nil, FormatCSV))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
