package staleness

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ownership-cli/internal/grouping"
	"github.com/sells-group/ownership-cli/internal/model"
	"github.com/sells-group/ownership-cli/internal/rules"
)

// highConfidence is the summary threshold for high-confidence predictions.
const highConfidence = 0.8

// Scanner evaluates every owned CI in a snapshot.
type Scanner struct {
	engine      *rules.Engine
	now         func() time.Time
	concurrency int
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock sets the reference time source used for recency features.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithConcurrency sets how many CIs are evaluated in parallel. Values below 1
// are ignored.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScanner creates a Scanner. A nil engine uses rules.Default().
func NewScanner(engine *rules.Engine, opts ...Option) *Scanner {
	if engine == nil {
		engine = rules.Default()
	}
	s := &Scanner{
		engine:      engine,
		now:         time.Now,
		concurrency: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the rule engine the scanner evaluates.
func (s *Scanner) Engine() *rules.Engine {
	return s.engine
}

// Scan evaluates all CIs with a resolvable owner and groups the stale ones.
// Per-CI failures are reported in ScanResult.Errors; the only error returned
// is context cancellation.
func (s *Scanner) Scan(ctx context.Context, snap model.Snapshot) (*model.ScanResult, error) {
	start := time.Now()
	now := s.now().UTC()
	ix := BuildIndex(snap)

	owned := make([]model.ConfigurationItem, 0, len(snap.CIs))
	for _, ci := range snap.CIs {
		if ci.HasOwner() {
			owned = append(owned, ci)
		}
	}

	results := make([]model.StaleCIResult, len(owned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, ci := range owned {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = guard(ci, func() model.StaleCIResult {
				return s.Evaluate(ix, ci, now)
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "staleness: scan cancelled")
	}

	var (
		stale  []model.StaleCIResult
		failed []model.StaleCIResult
	)
	for _, r := range results {
		switch {
		case r.Error != "":
			failed = append(failed, r)
		case r.IsStale:
			stale = append(stale, r)
		}
	}
	sortByID(stale)
	sortByID(failed)
	if stale == nil {
		stale = []model.StaleCIResult{}
	}

	out := &model.ScanResult{
		StaleCIs:        stale,
		GroupedByOwners: grouping.Group(stale),
		Errors:          failed,
		ScannedAt:       now,
	}
	out.Summary = summarize(len(snap.CIs), len(owned), out)

	zap.L().Info("staleness: scan complete",
		zap.Int("cis", out.Summary.TotalCIsAnalyzed),
		zap.Int("owned", out.Summary.CIsWithOwners),
		zap.Int("stale", out.Summary.StaleCIsFound),
		zap.Int("critical", out.Summary.CriticalRisk),
		zap.Int("errors", out.Summary.EvaluationErrors),
		zap.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

// Evaluate runs feature extraction, the rule catalog, and the recommender for
// one CI against a prebuilt index.
func (s *Scanner) Evaluate(ix *Index, ci model.ConfigurationItem, now time.Time) model.StaleCIResult {
	o := ix.ownerOf(ci)
	audit := ix.CIAudit(ci.ID)

	candidates := recommend(ix, o, audit, now)
	v := extractFeatures(ix, o, audit, candidates, now)

	reasons := s.engine.Evaluate(v)
	reasons = append(reasons, profileFindings(v)...)
	if reasons == nil {
		reasons = []model.Reason{}
	}
	confidence := rules.Combine(reasons)

	owner := ci.Owner.DisplayName
	if owner == "" {
		owner = ci.Owner.Username
	}

	r := model.StaleCIResult{
		CIID:                     ci.ID,
		CIName:                   ci.Name,
		CIClass:                  ci.ClassName,
		CIDescription:            ci.Description,
		CurrentOwner:             owner,
		CurrentOwnerUsername:     ci.Owner.Username,
		IsStale:                  rules.IsStale(confidence),
		Confidence:               confidence,
		StalenessReasons:         reasons,
		RecommendedOwners:        candidates,
		OwnerActivityCount:       v.OwnerActivityCount,
		DaysSinceOwnerActivity:   v.DaysSinceOwnerActivity,
		OwnerActive:              v.OwnerActive,
		TitleChanges:             nonNil(v.TitleChanges),
		DepartmentChanges:        nonNil(v.DepartmentChanges),
		OwnerProfileChanges:      nonNil(v.OwnerProfileChanges),
		TitleChangesCount:        len(v.TitleChanges),
		DepartmentChangesCount:   len(v.DepartmentChanges),
		OwnerProfileChangesCount: len(v.OwnerProfileChanges),
	}
	if r.IsStale {
		r.RiskLevel = rules.RiskLevel(confidence)
	}
	return r
}

// guard converts a panic in fn into a non-stale, zero-confidence result
// tagged with the failure.
func guard(ci model.ConfigurationItem, fn func() model.StaleCIResult) (res model.StaleCIResult) {
	defer func() {
		if p := recover(); p != nil {
			zap.L().Warn("staleness: ci evaluation failed",
				zap.String("ci_id", ci.ID),
				zap.Any("panic", p),
			)
			res = model.StaleCIResult{
				CIID:                 ci.ID,
				CIName:               ci.Name,
				CIClass:              ci.ClassName,
				CIDescription:        ci.Description,
				CurrentOwner:         ci.Owner.DisplayName,
				CurrentOwnerUsername: ci.Owner.Username,
				StalenessReasons:     []model.Reason{},
				RecommendedOwners:    []model.RecommendationCandidate{},
				Error:                fmt.Sprint(p),
			}
		}
	}()
	return fn()
}

func summarize(total, owned int, res *model.ScanResult) model.ScanSummary {
	sum := model.ScanSummary{
		TotalCIsAnalyzed: total,
		CIsWithOwners:    owned,
		StaleCIsFound:    len(res.StaleCIs),
		EvaluationErrors: len(res.Errors),
	}
	for _, r := range res.StaleCIs {
		if r.Confidence > highConfidence {
			sum.HighConfidencePredictions++
		}
		switch r.RiskLevel {
		case model.RiskCritical:
			sum.CriticalRisk++
		case model.RiskHigh:
			sum.HighRisk++
		case model.RiskMedium:
			sum.MediumRisk++
		}
	}
	for _, b := range res.GroupedByOwners {
		if b.Username != model.NoRecommendation {
			sum.RecommendedOwnersCount++
		}
	}
	return sum
}

func sortByID(results []model.StaleCIResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].CIID < results[j].CIID })
}

func nonNil(changes []model.ProfileChange) []model.ProfileChange {
	if changes == nil {
		return []model.ProfileChange{}
	}
	return changes
}
