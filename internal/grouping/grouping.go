// Package grouping buckets stale CIs by their top recommended owner for bulk
// reassignment.
package grouping

import (
	"math"
	"sort"

	"github.com/sells-group/ownership-cli/internal/model"
)

// Sentinel owner used for stale CIs with no candidate.
const (
	NoRecommendationDisplay    = "No Suitable Owner Found"
	NoRecommendationDepartment = "Manual Review Required"
)

// Bucket accumulates one owner's CIs with running means.
type Bucket struct {
	model.GroupedBucket
	meanConfidence float64
	meanScore      float64
}

// Add folds a stale CI into the bucket.
func (b *Bucket) Add(r model.StaleCIResult) {
	b.TotalCIs++
	n := float64(b.TotalCIs)

	b.meanConfidence += (r.Confidence - b.meanConfidence) / n
	var score float64
	if top, ok := r.TopCandidate(); ok {
		score = float64(top.Score)
		b.RecommendedOwner.TotalActivityCount += top.ActivityCount
	}
	b.meanScore += (score - b.meanScore) / n

	b.RiskBreakdown.Add(r.RiskLevel)
	b.CIsToAssign = append(b.CIsToAssign, model.BucketCI{
		CIID:             r.CIID,
		CIName:           r.CIName,
		CIClass:          r.CIClass,
		CurrentOwner:     r.CurrentOwner,
		Confidence:       r.Confidence,
		RiskLevel:        r.RiskLevel,
		StalenessReasons: r.StalenessReasons,
	})

	b.AvgConfidence = round(b.meanConfidence, 4)
	b.RecommendedOwner.AvgScore = round(b.meanScore, 1)
}

func newBucket(r model.StaleCIResult) *Bucket {
	b := &Bucket{}
	if top, ok := r.TopCandidate(); ok {
		b.Username = top.Username
		b.RecommendedOwner = model.RecommendedOwner{
			Username:    top.Username,
			DisplayName: top.DisplayName,
			Department:  top.Department,
		}
	} else {
		b.Username = model.NoRecommendation
		b.RecommendedOwner = model.RecommendedOwner{
			Username:    model.NoRecommendation,
			DisplayName: NoRecommendationDisplay,
			Department:  NoRecommendationDepartment,
		}
	}
	b.CIsToAssign = []model.BucketCI{}
	return b
}

// Group buckets results by top-candidate username. Buckets are ordered by CI
// count descending, then username.
func Group(results []model.StaleCIResult) []model.GroupedBucket {
	buckets := map[string]*Bucket{}
	var order []string
	for _, r := range results {
		key := model.NoRecommendation
		if top, ok := r.TopCandidate(); ok {
			key = top.Username
		}
		b, ok := buckets[key]
		if !ok {
			b = newBucket(r)
			buckets[key] = b
			order = append(order, key)
		}
		b.Add(r)
	}

	out := make([]model.GroupedBucket, 0, len(order))
	for _, key := range order {
		out = append(out, buckets[key].GroupedBucket)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalCIs != out[j].TotalCIs {
			return out[i].TotalCIs > out[j].TotalCIs
		}
		return out[i].Username < out[j].Username
	})
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
