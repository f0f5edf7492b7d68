package staleness

import (
	"math"
	"sort"
	"time"

	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/rules"
)

// NoOwnerActivityDays is reported when the owner has no attributed activity.
const NoOwnerActivityDays = 999

// recentWindow bounds recent_other_activities.
const recentWindow = 30 * 24 * time.Hour

// titleFields and deptFields feed the CI-wide change lists. Only the literal
// "title" and "department" fields count as an owner title or department
// change.
var (
	titleFields = map[string]bool{"title": true, "job_title": true, "u_job_title": true}
	deptFields  = map[string]bool{"department": true, "cost_center": true, "location": true, "company": true}
	// Owner-only fields: significant for the owner but not tallied as
	// title or department changes.
	ownerProfileFields = map[string]bool{
		"manager": true, "active": true, "locked_out": true,
		"u_employee_type": true, "u_vendor_status": true,
	}
	roleFields      = map[string]bool{"title": true, "role": true, "department": true}
	ownershipFields = map[string]bool{"assigned_to": true, "managed_by": true, "support_group": true}
)

// FeatureVector is the per-CI evidence the rule catalog is evaluated against.
type FeatureVector struct {
	OwnerName string

	TotalActivityCount     int
	OwnerActivityCount     int
	OwnerActivityRatio     float64
	DaysSinceOwnerActivity int

	OtherUsersCount       int
	TopOtherUser          string
	TopOtherUserCount     int
	TopOtherUserRatio     float64
	RecentOtherActivities int

	OwnerActive bool

	TitleChanges        []model.ProfileChange
	DepartmentChanges   []model.ProfileChange
	OwnerProfileChanges []model.ProfileChange

	OwnerRoleChanges         int
	OwnerTitleChanged        bool
	OwnerDeptChanged         bool
	NonOwnerOwnershipChanges int
	AssignedGroupActive      bool
}

// Feature implements rules.Features.
func (v *FeatureVector) Feature(name string) (rules.Value, bool) {
	switch name {
	case rules.OwnerName:
		return rules.Text(v.OwnerName), true
	case rules.TotalActivityCount:
		return rules.Number(float64(v.TotalActivityCount)), true
	case rules.OwnerActivityCount:
		return rules.Number(float64(v.OwnerActivityCount)), true
	case rules.OwnerActivityRatio:
		return rules.Number(v.OwnerActivityRatio), true
	case rules.DaysSinceOwnerActivity:
		return rules.Number(float64(v.DaysSinceOwnerActivity)), true
	case rules.OtherUsersCount:
		return rules.Number(float64(v.OtherUsersCount)), true
	case rules.TopOtherUser:
		return rules.Text(v.TopOtherUser), true
	case rules.TopOtherUserCount:
		return rules.Number(float64(v.TopOtherUserCount)), true
	case rules.TopOtherUserRatio:
		return rules.Number(v.TopOtherUserRatio), true
	case rules.RecentOtherActivities:
		return rules.Number(float64(v.RecentOtherActivities)), true
	case rules.OwnerActive:
		return rules.Boolean(v.OwnerActive), true
	case rules.TitleChangesCount:
		return rules.Number(float64(len(v.TitleChanges))), true
	case rules.DepartmentChangesCount:
		return rules.Number(float64(len(v.DepartmentChanges))), true
	case rules.OwnerProfileChangesCount:
		return rules.Number(float64(len(v.OwnerProfileChanges))), true
	case rules.OwnerRoleChanges:
		return rules.Number(float64(v.OwnerRoleChanges)), true
	case rules.OwnerTitleChanged:
		return rules.Boolean(v.OwnerTitleChanged), true
	case rules.OwnerDeptChanged:
		return rules.Boolean(v.OwnerDeptChanged), true
	case rules.NonOwnerOwnershipChanges:
		return rules.Number(float64(v.NonOwnerOwnershipChanges)), true
	case rules.AssignedGroupActive:
		return rules.Boolean(v.AssignedGroupActive), true
	default:
		return rules.Value{}, false
	}
}

// daysBetween returns whole days from t to now, floored.
func daysBetween(t, now time.Time) int {
	return int(math.Floor(now.Sub(t).Hours() / 24))
}

// extractFeatures derives the feature vector for one CI. candidates are the
// already-ranked recommendations; their profile changes count as CI-related.
func extractFeatures(ix *Index, o owner, audit []model.AuditRecord, candidates []model.RecommendationCandidate, now time.Time) *FeatureVector {
	v := &FeatureVector{
		OwnerName:              o.username,
		TotalActivityCount:     len(audit),
		DaysSinceOwnerActivity: NoOwnerActivityDays,
		OwnerActive:            o.active(),
		AssignedGroupActive:    true,
	}

	var (
		lastOwner  time.Time
		otherOrder []string
		otherCount = map[string]int{}
		cutoff     = now.Add(-recentWindow)
	)
	for _, r := range audit {
		if ix.isOwner(o, r.User) {
			v.OwnerActivityCount++
			if r.Timestamp.After(lastOwner) {
				lastOwner = r.Timestamp
			}
			if roleFields[r.Field] {
				v.OwnerRoleChanges++
			}
			continue
		}
		// Unattributed rows still count as non-owner activity but never as a
		// distinct other user.
		if r.Timestamp.After(cutoff) {
			v.RecentOtherActivities++
		}
		if ownershipFields[r.Field] {
			v.NonOwnerOwnershipChanges++
		}
		if r.User == "" {
			continue
		}
		if _, seen := otherCount[r.User]; !seen {
			otherOrder = append(otherOrder, r.User)
		}
		otherCount[r.User]++
	}

	if v.TotalActivityCount > 0 {
		v.OwnerActivityRatio = float64(v.OwnerActivityCount) / float64(v.TotalActivityCount)
	}
	if v.OwnerActivityCount > 0 {
		v.DaysSinceOwnerActivity = daysBetween(lastOwner, now)
	}

	v.OtherUsersCount = len(otherOrder)
	for _, u := range otherOrder {
		if otherCount[u] > v.TopOtherUserCount {
			v.TopOtherUser, v.TopOtherUserCount = u, otherCount[u]
		}
	}
	if v.TopOtherUserCount > 0 {
		v.TopOtherUserRatio = float64(v.TopOtherUserCount) / float64(v.TotalActivityCount)
	}

	collectProfileChanges(ix, o, audit, candidates, v)
	return v
}

// collectProfileChanges scans the global profile-change set for changes to
// the owner, any user who edited the CI, and any recommended candidate.
func collectProfileChanges(ix *Index, o owner, audit []model.AuditRecord, candidates []model.RecommendationCandidate, v *FeatureVector) {
	related := make(map[string]bool)
	if o.sysID != "" {
		related[o.sysID] = true
	}
	for _, r := range audit {
		if u, ok := ix.Resolve(r.User); ok && u.SysID != "" {
			related[u.SysID] = true
		}
	}
	for _, c := range candidates {
		if c.SysID == "" {
			continue
		}
		if _, ok := ix.UserBySysID(c.SysID); ok {
			related[c.SysID] = true
		}
	}
	if len(related) == 0 {
		return
	}

	for _, r := range ix.ProfileChanges() {
		if !related[r.DocumentKey] {
			continue
		}
		username := r.DocumentKey
		if u, ok := ix.UserBySysID(r.DocumentKey); ok && u.Username != "" {
			username = u.Username
		}
		isOwner := r.DocumentKey == o.sysID || username == o.username
		date := r.RawTimestamp
		if date == "" {
			date = r.Timestamp.Format("2006-01-02 15:04:05")
		}
		change := model.NewProfileChange(username, r.DocumentKey, r.Field, r.OldValue, r.NewValue, date, r.Timestamp, isOwner)

		switch {
		case titleFields[r.Field]:
			v.TitleChanges = append(v.TitleChanges, change)
			if isOwner {
				v.OwnerProfileChanges = append(v.OwnerProfileChanges, change)
				v.OwnerTitleChanged = v.OwnerTitleChanged || r.Field == "title"
			}
		case deptFields[r.Field]:
			v.DepartmentChanges = append(v.DepartmentChanges, change)
			if isOwner {
				v.OwnerProfileChanges = append(v.OwnerProfileChanges, change)
				v.OwnerDeptChanged = v.OwnerDeptChanged || r.Field == "department"
			}
		case ownerProfileFields[r.Field]:
			if isOwner {
				v.OwnerProfileChanges = append(v.OwnerProfileChanges, change)
			}
		}
	}

	sortRecentFirst(v.TitleChanges)
	sortRecentFirst(v.DepartmentChanges)
	sortRecentFirst(v.OwnerProfileChanges)
}

func sortRecentFirst(changes []model.ProfileChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].ChangedAt().After(changes[j].ChangedAt())
	})
}
