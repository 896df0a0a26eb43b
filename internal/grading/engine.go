package grading

import (
	"github.com/kodelive/kodelive-backend/internal/challenge"
	"github.com/kodelive/kodelive-backend/internal/model"
)

// Engine grades source-text snapshots against the challenge catalog.
// Evaluation is structural text inspection only: the candidate source is
// never executed, parsed, or type-checked.
type Engine struct {
	catalog *challenge.Catalog
}

// NewEngine creates an Engine backed by the given rule catalog.
func NewEngine(catalog *challenge.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// Evaluate runs every bug rule of the variant against the source and
// returns outcomes in stable ordinal order. A variant with no configured
// rules degrades to a single failing synthetic outcome; grading never
// aborts the session.
func (e *Engine) Evaluate(variantID, source string) []model.TestOutcome {
	rs, ok := e.catalog.Variant(variantID)
	if !ok || len(rs.Rules) == 0 {
		return []model.TestOutcome{{
			Ordinal: 0,
			Passed:  false,
			Message: "no test rules configured for this challenge",
		}}
	}

	outcomes := make([]model.TestOutcome, 0, len(rs.Rules))
	for _, rule := range rs.Rules {
		passed := rule.Eval(source)
		msg := rule.FailMessage
		if passed {
			msg = rule.PassMessage
		}
		outcomes = append(outcomes, model.TestOutcome{
			Ordinal: rule.Ordinal,
			Passed:  passed,
			Message: msg,
		})
	}
	return outcomes
}

// PointValue returns the per-bug worth for a variant, zero if unknown.
func (e *Engine) PointValue(variantID string) float64 {
	rs, ok := e.catalog.Variant(variantID)
	if !ok {
		return 0
	}
	return rs.PointValue()
}
