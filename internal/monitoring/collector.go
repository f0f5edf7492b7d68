package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/store"
)

// StatusSnapshot holds a point-in-time view of persisted scan and
// assignment activity.
type StatusSnapshot struct {
	// Latest scan, if any.
	LatestScanID  string             `json:"latest_scan_id,omitempty"`
	LatestScanAt  *time.Time         `json:"latest_scan_at,omitempty"`
	LatestSource  string             `json:"latest_scan_source,omitempty"`
	LatestSummary *model.ScanSummary `json:"latest_summary,omitempty"`

	// Assignment activity within the lookback window.
	Assignments int `json:"assignments"`
	Undos       int `json:"undos"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// statusPageSize bounds each history page read while counting.
const statusPageSize = 500

// Collector gathers a status snapshot from the store.
type Collector struct {
	store store.Store
	now   func() time.Time
}

// NewCollector creates a new status collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st, now: time.Now}
}

// Collect builds a snapshot covering the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*StatusSnapshot, error) {
	now := c.now().UTC()
	snap := &StatusSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	run, err := c.store.LatestScanRun(ctx)
	switch {
	case eris.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, eris.Wrap(err, "monitoring: latest scan run")
	default:
		at := run.CreatedAt
		snap.LatestScanID = run.ID
		snap.LatestScanAt = &at
		snap.LatestSource = run.Source
		if run.Result != nil {
			summary := run.Result.Summary
			snap.LatestSummary = &summary
		}
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)
	for offset := 0; ; offset += statusPageSize {
		page, err := c.store.ListAssignments(ctx, store.AssignmentFilter{Limit: statusPageSize, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: list assignments")
		}
		for _, a := range page {
			// History is newest first.
			if a.Timestamp.Before(cutoff) {
				return snap, nil
			}
			if a.IsUndo {
				snap.Undos++
			} else {
				snap.Assignments++
			}
		}
		if len(page) < statusPageSize {
			return snap, nil
		}
	}
}
