package label

// #region bounds

// Weight bounds. Every weight in every label produced by this package
// stays inside [MinWeight, MaxWeight]; clamping, not rule ordering, is
// what bounds drift.
const (
	MinWeight     = 0.7
	MaxWeight     = 1.3
	DefaultWeight = 1.0
)

// #endregion bounds

// #region training-label

// TrainingLabel holds the five knowledge-category weights. Each biases
// how much the external retrieval scorer trusts one category of stored
// knowledge.
type TrainingLabel struct {
	Principle float64 `json:"principle_weight"`
	Rule      float64 `json:"rule_weight"`
	Warning   float64 `json:"warning_weight"`
	Claim     float64 `json:"claim_weight"`
	Advice    float64 `json:"advice_weight"`
}

// Default returns the prior-free label: every weight 1.0.
func Default() TrainingLabel {
	return TrainingLabel{
		Principle: DefaultWeight,
		Rule:      DefaultWeight,
		Warning:   DefaultWeight,
		Claim:     DefaultWeight,
		Advice:    DefaultWeight,
	}
}

// Clamped returns a copy with every weight restricted to [MinWeight, MaxWeight].
func (l TrainingLabel) Clamped() TrainingLabel {
	return TrainingLabel{
		Principle: clamp(l.Principle),
		Rule:      clamp(l.Rule),
		Warning:   clamp(l.Warning),
		Claim:     clamp(l.Claim),
		Advice:    clamp(l.Advice),
	}
}

// InBounds reports whether every weight lies in [MinWeight, MaxWeight].
func (l TrainingLabel) InBounds() bool {
	for _, w := range []float64{l.Principle, l.Rule, l.Warning, l.Claim, l.Advice} {
		if w < MinWeight || w > MaxWeight {
			return false
		}
	}
	return true
}

func clamp(w float64) float64 {
	if w < MinWeight {
		return MinWeight
	}
	if w > MaxWeight {
		return MaxWeight
	}
	return w
}

// #endregion training-label

// #region context

// Context carries the derived facts about a decision that the
// adjustment rules inspect. Derivation from raw features is a pluggable
// upstream concern (see internal/signals).
type Context struct {
	Irreversibility   float64
	RulesFailed       bool
	IsAdviceDriven    bool
	RecoverySucceeded bool
}

// #endregion context

// #region policy

// Policy holds the tuning knobs for label adjustment.
type Policy struct {
	Step                float64 `yaml:"step"`                 // δ applied by each rule
	IrreversibilityHigh float64 `yaml:"irreversibility_high"` // threshold for the warning/principle rule
}

// DefaultPolicy returns the standard adjustment policy.
func DefaultPolicy() Policy {
	return Policy{
		Step:                0.05,
		IrreversibilityHigh: 0.7,
	}
}

// #endregion policy
