package controller

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/decisionloop/feedback-controller/internal/dataset"
	"github.com/decisionloop/feedback-controller/internal/decision"
	"github.com/decisionloop/feedback-controller/internal/label"
	"github.com/decisionloop/feedback-controller/internal/priors"
	"github.com/decisionloop/feedback-controller/internal/signals"
	"github.com/decisionloop/feedback-controller/internal/store"
)

// #region policy

// MinTrainingSamples is the absolute floor below which a training cycle
// is refused even when manually requested. The auto-trigger threshold
// is configurable but can never undercut this.
const MinTrainingSamples = 5

// Cycle statuses. InsufficientData is an expected condition, not an
// error: the caller simply has to wait for more outcomes.
const (
	StatusSuccess          = "success"
	StatusInsufficientData = "insufficient_data"
)

// #endregion policy

// #region schema

const historySchema = `
CREATE TABLE IF NOT EXISTS training_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	trained_at   TEXT NOT NULL,
	sample_count INTEGER NOT NULL,
	dataset_path TEXT NOT NULL,
	model_path   TEXT NOT NULL
);
`

// #endregion schema

// #region types

// Config holds the controller's tuning knobs.
type Config struct {
	TriggerThreshold int    // outcomes since last training that auto-trigger a cycle
	ArtifactsDir     string // where dataset and model artifacts land
}

// DefaultConfig returns the standard controller configuration.
func DefaultConfig() Config {
	return Config{TriggerThreshold: 10, ArtifactsDir: "artifacts"}
}

// DecisionInput is what an external caller supplies when recording a
// decision. Analysis and guidance are opaque collaborator blobs.
type DecisionInput struct {
	DecisionID string
	UserInput  string
	Analysis   json.RawMessage
	Guidance   json.RawMessage
	Features   decision.Features
}

// CycleResult reports one training cycle.
type CycleResult struct {
	Status             string `json:"status"`
	SampleCount        int    `json:"sample_count"`
	DatasetPath        string `json:"dataset_path,omitempty"`
	ModelPath          string `json:"model_path,omitempty"`
	LearnedPriorsCount int    `json:"learned_priors_count"`
}

// HistoryEntry is one row of the training history.
type HistoryEntry struct {
	TrainedAt   time.Time `json:"trained_at"`
	SampleCount int       `json:"sample_count"`
	DatasetPath string    `json:"dataset_path"`
	ModelPath   string    `json:"model_path"`
}

// #endregion types

// #region controller-struct

// Controller closes the feedback loop: it accepts decisions and
// outcomes, counts outcomes toward the next training cycle, rebuilds
// the learned-priors table from the log, and serves the table to the
// external retrieval scorer. It is the sole owner of the in-memory
// table; the table is swapped wholesale, and only after a cycle fully
// succeeds.
type Controller struct {
	store   *store.Store
	builder *dataset.Builder
	cfg     Config

	mu            sync.RWMutex
	table         *priors.Table
	sinceTraining int
}

// #endregion controller-struct

// #region constructor

// NewController wires the controller, migrates the training-history
// table, and loads the latest model artifact into memory. A missing or
// unreadable artifact starts the table empty rather than failing: the
// log can always rebuild it.
func NewController(st *store.Store, deriver signals.Deriver, policy label.Policy, cfg Config) (*Controller, error) {
	if cfg.TriggerThreshold < MinTrainingSamples {
		cfg.TriggerThreshold = MinTrainingSamples
	}
	if _, err := st.DB().Exec(historySchema); err != nil {
		return nil, fmt.Errorf("migrate training history: %w", err)
	}

	c := &Controller{
		store:   st,
		builder: dataset.NewBuilder(st, deriver, policy, cfg.ArtifactsDir),
		cfg:     cfg,
		table:   priors.EmptyTable(),
	}

	if path, ok := c.latestModelPath(); ok {
		t, err := priors.LoadModel(path)
		if err != nil {
			log.Printf("[CTRL] latest model %s unreadable, starting with empty priors: %v", path, err)
		} else {
			c.table = t
			log.Printf("[CTRL] loaded %d learned prior(s) from %s", t.Len(), path)
		}
	}
	return c, nil
}

func (c *Controller) latestModelPath() (string, bool) {
	var path string
	err := c.store.DB().QueryRow(
		`SELECT model_path FROM training_history ORDER BY id DESC LIMIT 1`,
	).Scan(&path)
	if err != nil {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// #endregion constructor

// #region record-decision

// RecordDecision appends the decision to the store and returns its key.
// Store errors propagate as-is.
func (c *Controller) RecordDecision(input DecisionInput) (string, error) {
	key, err := c.store.Append(decision.DecisionRecord{
		DecisionID: input.DecisionID,
		UserInput:  input.UserInput,
		Analysis:   input.Analysis,
		Guidance:   input.Guidance,
		Features:   input.Features,
	})
	if err != nil {
		return "", err
	}
	log.Printf("[CTRL] recorded decision %s", key)
	return key, nil
}

// #endregion record-decision

// #region record-outcome

// RecordOutcome attaches an outcome and, once enough new samples have
// accumulated, runs a training cycle. The counter check and the cycle
// are not atomic with the outcome write: a crash in between is
// recovered by running the cycle manually, which is idempotent given
// the same log.
func (c *Controller) RecordOutcome(decisionKey string, outcome decision.Outcome) error {
	if err := c.store.AttachOutcome(decisionKey, outcome); err != nil {
		return err
	}

	c.mu.Lock()
	c.sinceTraining++
	trigger := c.sinceTraining >= c.cfg.TriggerThreshold
	c.mu.Unlock()

	log.Printf("[CTRL] outcome attached to %s (success=%v regret=%.2f)",
		decisionKey, outcome.Success, outcome.RegretScore)

	if trigger {
		res, err := c.RunTrainingCycle()
		if err != nil {
			log.Printf("[CTRL] auto-triggered training cycle failed: %v", err)
		} else {
			log.Printf("[CTRL] auto-triggered training cycle: status=%s samples=%d", res.Status, res.SampleCount)
		}
	}
	return nil
}

// #endregion record-outcome

// #region training-cycle

// RunTrainingCycle rebuilds the learned-priors table from the log:
// build and save a dataset, average per situation bucket, persist the
// model artifact, record history, then swap the in-memory table. If any
// step fails the table is untouched; a saved dataset with no model is
// a no-op from the table's point of view.
func (c *Controller) RunTrainingCycle() (CycleResult, error) {
	ds, err := c.builder.Build()
	if err != nil {
		return CycleResult{}, err
	}
	if ds.NumSamples < MinTrainingSamples {
		return CycleResult{Status: StatusInsufficientData, SampleCount: ds.NumSamples}, nil
	}

	dsPath, err := c.builder.Save(ds)
	if err != nil {
		return CycleResult{}, fmt.Errorf("save dataset: %w", err)
	}

	table := priors.BuildTable(ds.Samples)
	modelPath, err := priors.SaveModel(c.cfg.ArtifactsDir, table, ds.Timestamp)
	if err != nil {
		return CycleResult{}, fmt.Errorf("save model: %w", err)
	}

	_, err = c.store.DB().Exec(
		`INSERT INTO training_history (trained_at, sample_count, dataset_path, model_path)
		 VALUES (?, ?, ?, ?)`,
		ds.Timestamp.Format(time.RFC3339Nano), ds.NumSamples, dsPath, modelPath,
	)
	if err != nil {
		return CycleResult{}, fmt.Errorf("record training history: %w", err)
	}

	c.mu.Lock()
	c.table = table
	c.sinceTraining = 0
	c.mu.Unlock()

	log.Printf("[TRAIN] cycle complete: %d sample(s), %d learned prior(s), model=%s",
		ds.NumSamples, table.Len(), modelPath)

	return CycleResult{
		Status:             StatusSuccess,
		SampleCount:        ds.NumSamples,
		DatasetPath:        dsPath,
		ModelPath:          modelPath,
		LearnedPriorsCount: table.Len(),
	}, nil
}

// #endregion training-cycle

// #region read-paths

// GetLearnedPriors returns the averaged label for the situation hash,
// or the default label when the bucket is untrained. The sole read path
// for external scorers: never fails, never mutates.
func (c *Controller) GetLearnedPriors(situationHash string) label.TrainingLabel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Get(situationHash)
}

// LearnedPriorsCount returns the number of trained buckets.
func (c *Controller) LearnedPriorsCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.table.Len()
}

// History lists training-history rows, oldest first.
func (c *Controller) History() ([]HistoryEntry, error) {
	rows, err := c.store.DB().Query(
		`SELECT trained_at, sample_count, dataset_path, model_path
		 FROM training_history ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var trainedAt string
		if err := rows.Scan(&trainedAt, &e.SampleCount, &e.DatasetPath, &e.ModelPath); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.TrainedAt, _ = time.Parse(time.RFC3339Nano, trainedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion read-paths
