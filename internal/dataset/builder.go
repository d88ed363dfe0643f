package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/decisionloop/feedback-controller/internal/artifact"
	"github.com/decisionloop/feedback-controller/internal/label"
	"github.com/decisionloop/feedback-controller/internal/signals"
	"github.com/decisionloop/feedback-controller/internal/store"
)

// #region builder

// Builder turns the decision log into a versioned training dataset:
// fold the log, keep records with both features and an outcome, derive
// each record's label context, and label it from the default weights.
type Builder struct {
	store   *store.Store
	deriver signals.Deriver
	policy  label.Policy
	dir     string
}

// NewBuilder creates a Builder writing artifacts under dir.
func NewBuilder(st *store.Store, deriver signals.Deriver, policy label.Policy, dir string) *Builder {
	return &Builder{store: st, deriver: deriver, policy: policy, dir: dir}
}

// #endregion builder

// #region build

// Build produces a dataset from the current log. Deterministic given an
// identical log: samples are ordered by the originating record's
// timestamp (key as tiebreaker), and labeling is pure.
func (b *Builder) Build() (Dataset, error) {
	records, err := b.store.LoadAll()
	if err != nil {
		return Dataset{}, fmt.Errorf("load records: %w", err)
	}

	trainable := records[:0:0]
	for _, rec := range records {
		if rec.Trainable() {
			trainable = append(trainable, rec)
		}
	}
	sort.SliceStable(trainable, func(i, j int) bool {
		if !trainable[i].Timestamp.Equal(trainable[j].Timestamp) {
			return trainable[i].Timestamp.Before(trainable[j].Timestamp)
		}
		return trainable[i].DecisionKey < trainable[j].DecisionKey
	})

	samples := make([]TrainingSample, 0, len(trainable))
	for _, rec := range trainable {
		ctx := b.deriver.Derive(rec.Features, *rec.Outcome)
		samples = append(samples, TrainingSample{
			DecisionKey: rec.DecisionKey,
			Features:    rec.Features,
			Label:       label.Adjust(label.Default(), *rec.Outcome, ctx, b.policy),
			Outcome:     *rec.Outcome,
		})
	}

	return Dataset{
		Version:    Version,
		Timestamp:  time.Now().UTC(),
		NumSamples: len(samples),
		Samples:    samples,
	}, nil
}

// #endregion build

// #region save

// Save persists the dataset as a new immutable artifact named by its
// timestamp. Returns the artifact path.
func (b *Builder) Save(ds Dataset) (string, error) {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifacts dir: %w", err)
	}
	path := filepath.Join(b.dir, fmt.Sprintf("dataset_%d.json", ds.Timestamp.UnixNano()))
	if err := artifact.WriteJSON(path, ds); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads and schema-validates a dataset artifact.
func Load(path string) (Dataset, error) {
	var ds Dataset
	if err := artifact.ReadJSON(path, artifact.DatasetSchema, &ds); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// #endregion save
