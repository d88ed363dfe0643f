package signals

import (
	"github.com/decisionloop/feedback-controller/internal/decision"
	"github.com/decisionloop/feedback-controller/internal/label"
)

// #region deriver-interface

// Deriver abstracts context derivation so the training pipeline never
// depends on the upstream feature schema. Callers with their own
// feature extraction inject their own implementation.
type Deriver interface {
	Derive(features decision.Features, outcome decision.Outcome) label.Context
}

// #endregion deriver-interface

// #region config

// DeriverConfig holds tuning knobs for the built-in heuristic deriver.
type DeriverConfig struct {
	RuleViolationThreshold float64 `yaml:"rule_violation_threshold"` // constraint.rule_violation above this → RulesFailed
	AdviceShareThreshold   float64 `yaml:"advice_share_threshold"`   // knowledge.advice_share above this → IsAdviceDriven
	RecoveryWindowDays     int     `yaml:"recovery_window_days"`     // recovery within this window → RecoverySucceeded
}

// DefaultDeriverConfig returns sensible defaults.
func DefaultDeriverConfig() DeriverConfig {
	return DeriverConfig{
		RuleViolationThreshold: 0.5,
		AdviceShareThreshold:   0.5,
		RecoveryWindowDays:     14,
	}
}

// #endregion config
