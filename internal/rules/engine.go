package rules

import (
	"go.uber.org/zap"

	"github.com/sells-group/ownership-cli/internal/model"
)

// StaleThreshold is the confidence a CI must exceed to be reported stale.
const StaleThreshold = 0.70

// Engine evaluates an immutable rule catalog.
type Engine struct {
	rules []Rule
}

// NewEngine validates catalog against the default schema and returns an
// engine over a private copy of it.
func NewEngine(catalog []Rule) (*Engine, error) {
	if err := ValidateCatalog(catalog, DefaultSchema()); err != nil {
		return nil, err
	}
	rules := make([]Rule, len(catalog))
	copy(rules, catalog)
	return &Engine{rules: rules}, nil
}

// Default returns an engine over DefaultCatalog. It panics if the built-in
// catalog fails validation.
func Default() *Engine {
	e, err := NewEngine(DefaultCatalog())
	if err != nil {
		panic(err)
	}
	return e
}

// Rules returns a copy of the catalog.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate returns the rules that fire for f, in catalog order. A rule fires
// only if every predicate holds; a predicate error means the rule does not
// fire.
func (e *Engine) Evaluate(f Features) []model.Reason {
	var fired []model.Reason
	for _, r := range e.rules {
		if e.fires(r, f) {
			fired = append(fired, model.Reason{RuleName: r.Name, Description: r.Description, Confidence: r.Confidence})
		}
	}
	return fired
}

func (e *Engine) fires(r Rule, f Features) bool {
	for _, p := range r.Predicates {
		ok, err := p.Eval(f)
		if err != nil {
			zap.L().Debug("rules: predicate not evaluable",
				zap.String("rule", r.Name),
				zap.String("predicate", p.String()),
				zap.Error(err),
			)
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// Combine returns the maximum confidence across reasons, or 0 when there are
// none. Reasons never compound.
func Combine(reasons []model.Reason) float64 {
	var best float64
	for _, r := range reasons {
		if r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}

// IsStale reports whether confidence exceeds StaleThreshold.
func IsStale(confidence float64) bool {
	return confidence > StaleThreshold
}

// RiskLevel maps a confidence to its risk tier.
func RiskLevel(confidence float64) model.RiskLevel {
	switch {
	case confidence > 0.9:
		return model.RiskCritical
	case confidence > 0.8:
		return model.RiskHigh
	case confidence > StaleThreshold:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}
