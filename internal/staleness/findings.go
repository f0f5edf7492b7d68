package staleness

import (
	"fmt"

	"github.com/sells-group/ownership-cli/internal/model"
)

// Confidence weights for the profile-change findings evaluated alongside the
// rule catalog.
const (
	ownerChangeConfidence = 0.85
	teamChangeConfidence  = 0.75
)

// profileFindings formats the change-detail findings that the predicate
// catalog cannot express because they quote before/after values.
func profileFindings(v *FeatureVector) []model.Reason {
	var out []model.Reason

	// Oldest first so descriptions read chronologically.
	for i := len(v.OwnerProfileChanges) - 1; i >= 0; i-- {
		c := v.OwnerProfileChanges[i]
		switch {
		case c.Field == "title":
			out = append(out, model.Reason{
				RuleName:    "owner_title_change_detected",
				Description: fmt.Sprintf("Owner's title changed from '%s' to '%s' on %s", c.OldValue, c.NewValue, c.ChangeDate),
				Confidence:  ownerChangeConfidence,
			})
		case c.Field == "department":
			out = append(out, model.Reason{
				RuleName:    "owner_department_change_detected",
				Description: fmt.Sprintf("Owner's department changed from '%s' to '%s' on %s", c.OldValue, c.NewValue, c.ChangeDate),
				Confidence:  ownerChangeConfidence,
			})
		}
	}

	if v.OwnerActivityCount == 0 {
		if n := countNonOwner(v.TitleChanges); n > 0 {
			out = append(out, model.Reason{
				RuleName:    "ci_users_title_changes",
				Description: fmt.Sprintf("%d user(s) who work on this CI had title changes while owner remained inactive", n),
				Confidence:  teamChangeConfidence,
			})
		}
		if n := countNonOwner(v.DepartmentChanges); n > 0 {
			out = append(out, model.Reason{
				RuleName:    "ci_users_department_changes",
				Description: fmt.Sprintf("%d user(s) who work on this CI had department changes while owner remained inactive", n),
				Confidence:  teamChangeConfidence,
			})
		}
	}

	return out
}

func countNonOwner(changes []model.ProfileChange) int {
	n := 0
	for _, c := range changes {
		if !c.IsOwner {
			n++
		}
	}
	return n
}
