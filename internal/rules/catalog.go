package rules

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Rule is a named conjunction of predicates with a fixed confidence weight.
type Rule struct {
	Name        string
	Description string
	Predicates  []Predicate
	Confidence  float64
	Scenarios   []string
}

// Conditions renders each predicate as a readable condition string.
func (r Rule) Conditions() []string {
	out := make([]string, len(r.Predicates))
	for i, p := range r.Predicates {
		out[i] = p.String()
	}
	return out
}

// MarshalJSON renders predicates as condition strings.
func (r Rule) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Conditions  []string `json:"conditions"`
		Confidence  float64  `json:"confidence"`
		Scenarios   []string `json:"scenarios"`
	}{r.Name, r.Description, r.Conditions(), r.Confidence, r.Scenarios})
}

// DefaultCatalog returns the built-in staleness rules in evaluation order.
func DefaultCatalog() []Rule {
	return []Rule{
		{
			Name:        "inactive_owner_active_others",
			Description: "Owner has 0 activities while others are active",
			Predicates: []Predicate{
				Num(OwnerActivityCount, OpEq, 0),
				Num(TotalActivityCount, OpGe, 2),
				Num(OtherUsersCount, OpGt, 0),
			},
			Confidence: 0.95,
			Scenarios:  []string{"1", "5", "11"},
		},
		{
			Name:        "account_terminated",
			Description: "Owner account is inactive/terminated",
			Predicates:  []Predicate{Is(OwnerActive, false)},
			Confidence:  1.0,
			Scenarios:   []string{"5", "8"},
		},
		{
			Name:        "vendor_account",
			Description: "Assigned to vendor/external account",
			Predicates: []Predicate{
				AnyOf(
					ContainsAnyFold(OwnerName, "vendor", "external"),
					ContainsAny(OwnerName, ".contractor"),
				),
			},
			Confidence: 0.85,
			Scenarios:  []string{"4", "8"},
		},
		{
			Name:        "generic_account",
			Description: "Assigned to generic account",
			Predicates: []Predicate{
				ContainsAny(OwnerName, ".generic", "admin.generic", "team.generic"),
			},
			Confidence: 0.9,
			Scenarios:  []string{"7", "10", "15"},
		},
		{
			Name:        "extended_inactivity",
			Description: "No owner activity for 150+ days",
			Predicates: []Predicate{
				Num(DaysSinceOwnerActivity, OpGt, 150),
				Num(RecentOtherActivities, OpGe, 0),
			},
			Confidence: 0.85,
			Scenarios:  []string{"1", "9"},
		},
		{
			Name:        "role_transition",
			Description: "User role changed significantly",
			Predicates: []Predicate{
				Num(OwnerRoleChanges, OpGt, 0),
				Is(OwnerTitleChanged, true),
			},
			Confidence: 0.75,
			Scenarios:  []string{"1", "3", "9", "11"},
		},
		{
			Name:        "department_transition",
			Description: "User moved to different department",
			Predicates: []Predicate{
				Is(OwnerDeptChanged, true),
				Num(DaysSinceOwnerActivity, OpGt, 15),
			},
			Confidence: 0.8,
			Scenarios:  []string{"3", "6"},
		},
		{
			Name:        "group_disbanded",
			Description: "Assigned group no longer active",
			Predicates:  []Predicate{Is(AssignedGroupActive, false)},
			Confidence:  0.9,
			Scenarios:   []string{"6", "13"},
		},
		{
			Name:        "dominant_other_user",
			Description: "Another user has majority of recent activities",
			Predicates: []Predicate{
				Num(TopOtherUserRatio, OpGt, 0.5),
				Num(OwnerActivityRatio, OpLt, 0.3),
			},
			Confidence: 0.85,
			Scenarios:  []string{"2", "7", "12"},
		},
		{
			Name:        "ownership_field_changes",
			Description: "Ownership fields modified by non-owner",
			Predicates:  []Predicate{Num(NonOwnerOwnershipChanges, OpGt, 0)},
			Confidence:  0.9,
			Scenarios:   []string{"multiple"},
		},
		{
			Name:        "minimal_owner_activity",
			Description: "Owner has very little recent activity",
			Predicates: []Predicate{
				Num(OwnerActivityCount, OpLe, 1),
				Num(TotalActivityCount, OpGt, 0),
			},
			Confidence: 0.7,
			Scenarios:  []string{"general"},
		},
		{
			Name:        "owner_title_changed_inactive",
			Description: "Owner title changed but became inactive on CI",
			Predicates: []Predicate{
				Num(OwnerProfileChangesCount, OpGt, 0),
				Is(OwnerTitleChanged, true),
				Num(OwnerActivityCount, OpEq, 0),
				Num(DaysSinceOwnerActivity, OpGt, 30),
			},
			Confidence: 0.9,
			Scenarios:  []string{"1", "3", "9"},
		},
		{
			Name:        "owner_department_changed_inactive",
			Description: "Owner department changed and became inactive",
			Predicates: []Predicate{
				Num(OwnerProfileChangesCount, OpGt, 0),
				Is(OwnerDeptChanged, true),
				Num(OwnerActivityCount, OpLe, 1),
				Num(DaysSinceOwnerActivity, OpGt, 30),
			},
			Confidence: 0.85,
			Scenarios:  []string{"3", "6"},
		},
		{
			Name:        "multiple_profile_changes_inactive",
			Description: "Owner had multiple profile changes and became inactive",
			Predicates: []Predicate{
				Num(OwnerProfileChangesCount, OpGe, 2),
				Num(OwnerActivityCount, OpEq, 0),
				Num(RecentOtherActivities, OpGt, 0),
			},
			Confidence: 0.9,
			Scenarios:  []string{"1", "3", "9", "11"},
		},
		{
			Name:        "ci_users_role_transitions",
			Description: "Multiple users associated with CI had role transitions",
			Predicates: []Predicate{
				Num(TitleChangesCount, OpGe, 2),
				Num(OwnerActivityRatio, OpLt, 0.4),
			},
			Confidence: 0.8,
			Scenarios:  []string{"3", "6", "13"},
		},
	}
}

// ValidateCatalog checks that rule names are unique, confidences lie in
// (0, 1], and every predicate refers to a schema feature of the right kind.
func ValidateCatalog(catalog []Rule, schema Schema) error {
	var errs []string
	seen := make(map[string]bool, len(catalog))
	for _, r := range catalog {
		if r.Name == "" {
			errs = append(errs, "rule with empty name")
			continue
		}
		if seen[r.Name] {
			errs = append(errs, fmt.Sprintf("%s: duplicate name", r.Name))
		}
		seen[r.Name] = true
		if r.Confidence <= 0 || r.Confidence > 1 {
			errs = append(errs, fmt.Sprintf("%s: confidence %.2f outside (0, 1]", r.Name, r.Confidence))
		}
		if len(r.Predicates) == 0 {
			errs = append(errs, fmt.Sprintf("%s: no predicates", r.Name))
		}
		for _, p := range r.Predicates {
			if err := p.Check(schema); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", r.Name, err))
			}
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("rules: catalog validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
