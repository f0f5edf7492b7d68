package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ownership-cli/internal/model"
)

// ScanRunCI is one stale CI of a saved scan, flattened for querying.
type ScanRunCI struct {
	RunID               string          `json:"run_id"`
	CIID                string          `json:"ci_id"`
	CIName              string          `json:"ci_name"`
	Confidence          float64         `json:"confidence"`
	RiskLevel           model.RiskLevel `json:"risk_level"`
	RecommendedUsername string          `json:"recommended_username"`
}

var scanRunCIColumns = []string{"run_id", "ci_id", "ci_name", "confidence", "risk_level", "recommended_username"}

const scanRunCIColumnList = "run_id, ci_id, ci_name, confidence, risk_level, recommended_username"

// prepareScanRun fills in the id and timestamp and returns the encoded
// summary and result.
func prepareScanRun(run *model.ScanRun) (summary, result []byte, err error) {
	if run.Result == nil {
		return nil, nil, eris.New("store: scan run has no result")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Source == "" {
		run.Source = "unknown"
	}

	summary, err = json.Marshal(run.Result.Summary)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal scan summary")
	}
	result, err = json.Marshal(run.Result)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal scan result")
	}
	return summary, result, nil
}

func scanRunCIRows(run *model.ScanRun) [][]any {
	rows := make([][]any, 0, len(run.Result.StaleCIs))
	for _, ci := range run.Result.StaleCIs {
		var recommended string
		if top, ok := ci.TopCandidate(); ok {
			recommended = top.Username
		}
		rows = append(rows, []any{run.ID, ci.CIID, ci.CIName, ci.Confidence, string(ci.RiskLevel), recommended})
	}
	return rows
}
