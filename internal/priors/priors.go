package priors

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/decisionloop/feedback-controller/internal/artifact"
	"github.com/decisionloop/feedback-controller/internal/dataset"
	"github.com/decisionloop/feedback-controller/internal/decision"
	"github.com/decisionloop/feedback-controller/internal/label"
	"github.com/decisionloop/feedback-controller/internal/signals"
)

// ModelVersion is the model artifact format version.
const ModelVersion = 1

// #region situation-hash

// SituationHash buckets a decision into a coarse key: reversibility
// class × risk tier. Decisions sharing a bucket are averaged together.
func SituationHash(features decision.Features) string {
	irr := signals.Irreversibility(features)
	var class string
	switch {
	case irr < 1.0/3.0:
		class = "low"
	case irr < 2.0/3.0:
		class = "medium"
	default:
		class = "high"
	}

	risk := features.GetOr("situation", "risk", 0)
	tier := int(risk * 4)
	if tier < 0 {
		tier = 0
	}
	if tier > 3 {
		tier = 3
	}

	return fmt.Sprintf("rev:%s|risk:%d", class, tier)
}

// #endregion situation-hash

// #region table

// Table is the learned-priors table: situation hash → averaged label.
// Rebuilt wholesale on each training cycle so it is always reproducible
// from the raw log; an empty table answers every lookup with the
// default label.
type Table struct {
	priors map[string]label.TrainingLabel
}

// EmptyTable returns a table with no learned priors.
func EmptyTable() *Table {
	return &Table{priors: map[string]label.TrainingLabel{}}
}

// Get returns the averaged label for the hash, or the default label
// when the bucket has never been trained. Never fails.
func (t *Table) Get(situationHash string) label.TrainingLabel {
	if l, ok := t.priors[situationHash]; ok {
		return l
	}
	return label.Default()
}

// Len returns the number of learned buckets.
func (t *Table) Len() int {
	return len(t.priors)
}

// Snapshot returns a copy of the underlying mapping.
func (t *Table) Snapshot() map[string]label.TrainingLabel {
	out := make(map[string]label.TrainingLabel, len(t.priors))
	for k, v := range t.priors {
		out[k] = v
	}
	return out
}

// #endregion table

// #region build-table

// BuildTable groups samples by situation hash and arithmetic-means each
// weight across the group. Clamping happens after averaging, not
// before, so an already-bounded input cannot be double-clamped into a
// biased mean.
func BuildTable(samples []dataset.TrainingSample) *Table {
	type accum struct {
		sum   label.TrainingLabel
		count int
	}
	groups := make(map[string]*accum)

	for _, s := range samples {
		h := SituationHash(s.Features)
		a, ok := groups[h]
		if !ok {
			a = &accum{}
			groups[h] = a
		}
		a.sum.Principle += s.Label.Principle
		a.sum.Rule += s.Label.Rule
		a.sum.Warning += s.Label.Warning
		a.sum.Claim += s.Label.Claim
		a.sum.Advice += s.Label.Advice
		a.count++
	}

	priors := make(map[string]label.TrainingLabel, len(groups))
	for h, a := range groups {
		n := float64(a.count)
		priors[h] = label.TrainingLabel{
			Principle: a.sum.Principle / n,
			Rule:      a.sum.Rule / n,
			Warning:   a.sum.Warning / n,
			Claim:     a.sum.Claim / n,
			Advice:    a.sum.Advice / n,
		}.Clamped()
	}
	return &Table{priors: priors}
}

// #endregion build-table

// #region model-artifact

// Model is the persisted form of a learned-priors table.
type Model struct {
	Version       int                            `json:"version"`
	Timestamp     time.Time                      `json:"timestamp"`
	LearnedPriors map[string]label.TrainingLabel `json:"learned_priors"`
}

// SaveModel writes the table as a new immutable model artifact under
// dir, named by the training cycle's timestamp. Returns the path.
func SaveModel(dir string, t *Table, ts time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("model_%d.json", ts.UnixNano()))
	m := Model{Version: ModelVersion, Timestamp: ts, LearnedPriors: t.Snapshot()}
	if err := artifact.WriteJSON(path, m); err != nil {
		return "", err
	}
	return path, nil
}

// LoadModel reads and schema-validates a model artifact into a table.
func LoadModel(path string) (*Table, error) {
	var m Model
	if err := artifact.ReadJSON(path, artifact.ModelSchema, &m); err != nil {
		return nil, err
	}
	t := EmptyTable()
	for h, l := range m.LearnedPriors {
		t.priors[h] = l.Clamped()
	}
	return t, nil
}

// #endregion model-artifact
