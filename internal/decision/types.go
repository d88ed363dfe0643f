package decision

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// #region policy

// HighRegretThreshold marks an outcome as high-regret when its regret
// score exceeds this value. Used by store stats and the advice rule.
const HighRegretThreshold = 0.5

// #endregion policy

// #region features

// Features maps named feature groups (situation, constraint, knowledge)
// to name → bounded numeric value. The shape is owned by the upstream
// extraction layer; this core only reads individual values.
type Features map[string]map[string]float64

// Get returns the named value from a group, reporting whether it exists.
func (f Features) Get(group, name string) (float64, bool) {
	g, ok := f[group]
	if !ok {
		return 0, false
	}
	v, ok := g[name]
	return v, ok
}

// GetOr returns the named value or a fallback when absent.
func (f Features) GetOr(group, name string, fallback float64) float64 {
	if v, ok := f.Get(group, name); ok {
		return v
	}
	return fallback
}

// #endregion features

// #region outcome

// Outcome is the observed real-world result of a decision.
type Outcome struct {
	Success          bool      `json:"success"`
	RegretScore      float64   `json:"regret_score"` // [0, 1]
	RecoveryTimeDays int       `json:"recovery_time_days"`
	SecondaryDamage  bool      `json:"secondary_damage"`
	Notes            string    `json:"notes,omitempty"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// HighRegret reports whether the outcome crosses the regret threshold.
func (o Outcome) HighRegret() bool {
	return o.RegretScore > HighRegretThreshold
}

// #endregion outcome

// #region decision-record

// DecisionRecord identifies one decision event. Analysis and guidance
// are opaque blobs from the LLM and knowledge-synthesis collaborators,
// passed through unchanged. Outcome stays nil until attached; once set
// it is never mutated (corrections are new records under new keys).
type DecisionRecord struct {
	DecisionKey string          `json:"decision_key"`
	DecisionID  string          `json:"decision_id"`
	Timestamp   time.Time       `json:"timestamp"`
	UserInput   string          `json:"user_input,omitempty"`
	Analysis    json.RawMessage `json:"analysis,omitempty"`
	Guidance    json.RawMessage `json:"guidance,omitempty"`
	Features    Features        `json:"features,omitempty"`
	Outcome     *Outcome        `json:"outcome,omitempty"`
}

// Trainable reports whether the record can become a training sample:
// both features and outcome must be populated.
func (r DecisionRecord) Trainable() bool {
	return r.Outcome != nil && len(r.Features) > 0
}

// #endregion decision-record

// #region key-derivation

// NewDecisionKey derives a globally unique key from the caller-supplied
// logical id plus a short random suffix. The same decisionId may repeat
// across retries; the suffix disambiguates.
func NewDecisionKey(decisionID string) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return decisionID + "-" + suffix
}

// #endregion key-derivation
