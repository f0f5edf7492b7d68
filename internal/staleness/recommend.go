package staleness

import (
	"sort"
	"time"

	"github.com/sells-group/ownership-cli/internal/ingest"
	"github.com/sells-group/ownership-cli/internal/model"
)

// MaxCandidates caps the recommendations returned per CI.
const MaxCandidates = 3

// Score components.
const (
	pointsPerActivity  = 10
	maxActivityPoints  = 50
	pointsPerOwnership = 5
)

// candidateOwnershipFields are ownership-control fields that earn bonus
// points when a candidate has edited them.
var candidateOwnershipFields = map[string]bool{
	"assigned_to":   true,
	"managed_by":    true,
	"support_group": true,
	"owned_by":      true,
}

type activity struct {
	actor string
	count int
	first time.Time
	last  time.Time
	// fields preserves first-touch order.
	fields  []string
	touched map[string]bool
}

// recencyBonus rewards recent activity.
func recencyBonus(daysAgo int) int {
	switch {
	case daysAgo < 30:
		return 25
	case daysAgo < 90:
		return 15
	case daysAgo < 180:
		return 5
	default:
		return 0
	}
}

// recommend ranks non-owner editors of a CI as replacement owners. Audit
// records whose actor is a sys_id are merged with the same user's
// username-keyed records.
func recommend(ix *Index, o owner, audit []model.AuditRecord, now time.Time) []model.RecommendationCandidate {
	var (
		order  []string
		byUser = map[string]*activity{}
	)
	for _, r := range audit {
		if r.User == "" || ix.isOwner(o, r.User) {
			continue
		}
		key := r.User
		if u, ok := ix.Resolve(r.User); ok && u.Username != "" {
			key = u.Username
		}
		a, ok := byUser[key]
		if !ok {
			a = &activity{actor: r.User, first: r.Timestamp, last: r.Timestamp, touched: map[string]bool{}}
			byUser[key] = a
			order = append(order, key)
		}
		a.count++
		if r.Timestamp.After(a.last) {
			a.last = r.Timestamp
		}
		if r.Timestamp.Before(a.first) {
			a.first = r.Timestamp
		}
		if !a.touched[r.Field] {
			a.touched[r.Field] = true
			a.fields = append(a.fields, r.Field)
		}
	}
	if len(order) == 0 {
		return []model.RecommendationCandidate{}
	}

	candidates := make([]model.RecommendationCandidate, 0, len(order))
	for _, key := range order {
		candidates = append(candidates, scoreCandidate(ix, byUser[key], now))
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.ActivityCount != b.ActivityCount {
			return a.ActivityCount > b.ActivityCount
		}
		return a.Username < b.Username
	})

	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}
	return candidates
}

func scoreCandidate(ix *Index, a *activity, now time.Time) model.RecommendationCandidate {
	days := daysBetween(a.last, now)
	ownership := 0
	for _, f := range a.fields {
		if candidateOwnershipFields[f] {
			ownership++
		}
	}

	c := model.RecommendationCandidate{
		Username:            a.actor,
		SysID:               a.actor,
		DisplayName:         a.actor,
		Department:          "Unknown",
		ActivityCount:       a.count,
		LastActivityDaysAgo: days,
		OwnershipChanges:    ownership,
		FieldsModified:      len(a.fields),
		Score: min(a.count*pointsPerActivity, maxActivityPoints) +
			recencyBonus(days) +
			ownership*pointsPerOwnership,
	}

	var (
		profile model.UserProfile
		found   bool
	)
	if name, ok := ix.DisplayName(a.actor); ok {
		c.DisplayName = name
		profile, found = ix.UserByUsername(a.actor)
	} else if u, ok := ix.UserBySysID(a.actor); ok {
		profile, found = u, true
		if u.Username != "" {
			c.Username = u.Username
		}
		if u.DisplayName != "" {
			c.DisplayName = u.DisplayName
		} else {
			c.DisplayName = c.Username
		}
	}
	if found {
		if profile.SysID != "" {
			c.SysID = profile.SysID
		}
		c.Department = ingest.CleanDepartment(profile.Department)
	}
	return c
}
