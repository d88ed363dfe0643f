package label

import (
	"github.com/decisionloop/feedback-controller/internal/decision"
)

// #region adjust

// Adjust computes the training label for one outcome. Pure: no side
// effects, same inputs always produce the same output, which keeps
// training runs reproducible from the raw log. Rules apply
// independently to the base label and the result is clamped, so no two
// rules can compound past the weight bounds.
func Adjust(base TrainingLabel, outcome decision.Outcome, ctx Context, policy Policy) TrainingLabel {
	out := base

	// Failed irreversible decisions should have listened to warnings
	// and principles.
	if !outcome.Success && ctx.Irreversibility > policy.IrreversibilityHigh {
		out.Warning += policy.Step
		out.Principle += policy.Step
	}

	// The rules that were in play did not prevent the failure.
	if !outcome.Success && ctx.RulesFailed {
		out.Rule -= policy.Step
	}

	// High-regret advice-driven decisions discount advice.
	if outcome.HighRegret() && ctx.IsAdviceDriven {
		out.Advice -= policy.Step
	}

	// Successful recovery validates the governing principles.
	if outcome.Success && ctx.RecoverySucceeded {
		out.Principle += policy.Step
	}

	return out.Clamped()
}

// #endregion adjust
