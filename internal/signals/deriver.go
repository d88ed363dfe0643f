package signals

import (
	"github.com/decisionloop/feedback-controller/internal/decision"
	"github.com/decisionloop/feedback-controller/internal/label"
)

// #region heuristic-deriver

// HeuristicDeriver computes a label context from the standard feature
// groups. It is the default Deriver; deployments with a richer feature
// schema swap in their own.
type HeuristicDeriver struct {
	config DeriverConfig
}

// NewHeuristicDeriver creates a deriver with the given configuration.
func NewHeuristicDeriver(config DeriverConfig) *HeuristicDeriver {
	return &HeuristicDeriver{config: config}
}

// #endregion heuristic-deriver

// #region derive

// Derive maps feature values and the observed outcome onto the context
// the adjustment rules inspect.
func (d *HeuristicDeriver) Derive(features decision.Features, outcome decision.Outcome) label.Context {
	return label.Context{
		Irreversibility:   Irreversibility(features),
		RulesFailed:       features.GetOr("constraint", "rule_violation", 0) > d.config.RuleViolationThreshold,
		IsAdviceDriven:    features.GetOr("knowledge", "advice_share", 0) > d.config.AdviceShareThreshold,
		RecoverySucceeded: outcome.Success && outcome.RecoveryTimeDays <= d.config.RecoveryWindowDays,
	}
}

// #endregion derive

// #region irreversibility

// Irreversibility reads the situation irreversibility, falling back to
// the inverse of an explicit reversibility feature. Shared with the
// situation bucketing so the same decision always lands in the bucket
// its context was derived from.
func Irreversibility(features decision.Features) float64 {
	if v, ok := features.Get("situation", "irreversibility"); ok {
		return clamp01(v)
	}
	if v, ok := features.Get("situation", "reversibility"); ok {
		return clamp01(1 - v)
	}
	return 0
}

// clamp01 restricts v to [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion irreversibility
