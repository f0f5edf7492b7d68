package model

import "time"

// RiskLevel is the four-tier label derived from a stale CI's confidence.
type RiskLevel string

const (
	RiskCritical RiskLevel = "Critical"
	RiskHigh     RiskLevel = "High"
	RiskMedium   RiskLevel = "Medium"
	RiskLow      RiskLevel = "Low"
)

// NoRecommendation is the bucket username used for stale CIs without a candidate.
const NoRecommendation = "No Recommendation"

// Reason explains one triggered rule or finding.
type Reason struct {
	RuleName    string  `json:"rule_name"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

// RecommendationCandidate is a scored replacement owner.
type RecommendationCandidate struct {
	Username            string `json:"username"`
	SysID               string `json:"user_sys_id"`
	DisplayName         string `json:"display_name"`
	Department          string `json:"department"`
	ActivityCount       int    `json:"activity_count"`
	LastActivityDaysAgo int    `json:"last_activity_days_ago"`
	OwnershipChanges    int    `json:"ownership_changes"`
	FieldsModified      int    `json:"fields_modified"`
	Score               int    `json:"score"`
}

// ProfileChange is a title/department (or other directory) change for a user
// associated with a CI.
type ProfileChange struct {
	User       string `json:"user"`
	UserSysID  string `json:"user_sys_id"`
	Field      string `json:"field"`
	OldValue   string `json:"old_value"`
	NewValue   string `json:"new_value"`
	ChangeDate string `json:"change_date"`
	IsOwner    bool   `json:"is_owner"`

	changedAt time.Time
}

// NewProfileChange builds a ProfileChange that remembers its parsed timestamp
// for ordering.
func NewProfileChange(user, sysID, field, oldValue, newValue, changeDate string, changedAt time.Time, isOwner bool) ProfileChange {
	return ProfileChange{
		User:       user,
		UserSysID:  sysID,
		Field:      field,
		OldValue:   oldValue,
		NewValue:   newValue,
		ChangeDate: changeDate,
		IsOwner:    isOwner,
		changedAt:  changedAt,
	}
}

// ChangedAt returns the parsed change time.
func (p ProfileChange) ChangedAt() time.Time {
	return p.changedAt
}

// StaleCIResult is the analysis outcome for a single CI.
type StaleCIResult struct {
	CIID                     string                    `json:"ci_id"`
	CIName                   string                    `json:"ci_name"`
	CIClass                  string                    `json:"ci_class"`
	CIDescription            string                    `json:"ci_description"`
	CurrentOwner             string                    `json:"current_owner"`
	CurrentOwnerUsername     string                    `json:"current_owner_username"`
	IsStale                  bool                      `json:"is_stale"`
	Confidence               float64                   `json:"confidence"`
	RiskLevel                RiskLevel                 `json:"risk_level,omitempty"`
	StalenessReasons         []Reason                  `json:"staleness_reasons"`
	RecommendedOwners        []RecommendationCandidate `json:"recommended_owners"`
	OwnerActivityCount       int                       `json:"owner_activity_count"`
	DaysSinceOwnerActivity   int                       `json:"days_since_owner_activity"`
	OwnerActive              bool                      `json:"owner_active"`
	TitleChanges             []ProfileChange           `json:"title_changes"`
	DepartmentChanges        []ProfileChange           `json:"department_changes"`
	OwnerProfileChanges      []ProfileChange           `json:"owner_profile_changes"`
	TitleChangesCount        int                       `json:"title_changes_count"`
	DepartmentChangesCount   int                       `json:"department_changes_count"`
	OwnerProfileChangesCount int                       `json:"owner_profile_changes_count"`
	Error                    string                    `json:"error,omitempty"`
}

// TopCandidate returns the highest-ranked recommendation, if any.
func (r StaleCIResult) TopCandidate() (RecommendationCandidate, bool) {
	if len(r.RecommendedOwners) == 0 {
		return RecommendationCandidate{}, false
	}
	return r.RecommendedOwners[0], true
}

// RecommendedOwner describes the owner a bucket's CIs would move to.
type RecommendedOwner struct {
	Username           string  `json:"username"`
	DisplayName        string  `json:"display_name"`
	Department         string  `json:"department"`
	AvgScore           float64 `json:"avg_score"`
	TotalActivityCount int     `json:"total_activity_count"`
}

// BucketCI is a CI queued for reassignment inside a bucket.
type BucketCI struct {
	CIID             string    `json:"ci_id"`
	CIName           string    `json:"ci_name"`
	CIClass          string    `json:"ci_class"`
	CurrentOwner     string    `json:"current_owner"`
	Confidence       float64   `json:"confidence"`
	RiskLevel        RiskLevel `json:"risk_level"`
	StalenessReasons []Reason  `json:"staleness_reasons"`
}

// RiskBreakdown counts CIs per risk level.
type RiskBreakdown struct {
	Critical int `json:"Critical"`
	High     int `json:"High"`
	Medium   int `json:"Medium"`
	Low      int `json:"Low"`
}

// Add increments the counter for level. Unknown levels count as Low.
func (b *RiskBreakdown) Add(level RiskLevel) {
	switch level {
	case RiskCritical:
		b.Critical++
	case RiskHigh:
		b.High++
	case RiskMedium:
		b.Medium++
	default:
		b.Low++
	}
}

// GroupedBucket groups stale CIs that share a top recommended owner.
type GroupedBucket struct {
	Username         string           `json:"username"`
	RecommendedOwner RecommendedOwner `json:"recommended_owner"`
	CIsToAssign      []BucketCI       `json:"cis_to_assign"`
	TotalCIs         int              `json:"total_cis"`
	RiskBreakdown    RiskBreakdown    `json:"risk_breakdown"`
	AvgConfidence    float64          `json:"avg_confidence"`
}

// ScanSummary aggregates counts for a scan.
type ScanSummary struct {
	TotalCIsAnalyzed          int `json:"total_cis_analyzed"`
	CIsWithOwners             int `json:"cis_with_owners"`
	StaleCIsFound             int `json:"stale_cis_found"`
	HighConfidencePredictions int `json:"high_confidence_predictions"`
	CriticalRisk              int `json:"critical_risk"`
	HighRisk                  int `json:"high_risk"`
	MediumRisk                int `json:"medium_risk"`
	RecommendedOwnersCount    int `json:"recommended_owners_count"`
	EvaluationErrors          int `json:"evaluation_errors"`
}

// ScanResult is the full output of a scan.
type ScanResult struct {
	Summary         ScanSummary     `json:"summary"`
	StaleCIs        []StaleCIResult `json:"stale_cis"`
	GroupedByOwners []GroupedBucket `json:"grouped_by_owners"`
	Errors          []StaleCIResult `json:"errors,omitempty"`
	ScannedAt       time.Time       `json:"scanned_at"`
}
