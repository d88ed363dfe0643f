package dataset

import (
	"time"

	"github.com/decisionloop/feedback-controller/internal/decision"
	"github.com/decisionloop/feedback-controller/internal/label"
)

// Version is the dataset artifact format version.
const Version = 1

// #region training-sample

// TrainingSample pairs a decision's features with its adjusted label
// and the outcome that produced it. Built only from records that have
// both features and an outcome.
type TrainingSample struct {
	DecisionKey string              `json:"decision_key"`
	Features    decision.Features   `json:"features"`
	Label       label.TrainingLabel `json:"label"`
	Outcome     decision.Outcome    `json:"outcome"`
}

// #endregion training-sample

// #region dataset

// Dataset is one build's worth of training samples, persisted as a
// self-describing versioned artifact.
type Dataset struct {
	Version    int              `json:"version"`
	Timestamp  time.Time        `json:"timestamp"`
	NumSamples int              `json:"num_samples"`
	Samples    []TrainingSample `json:"samples"`
}

// #endregion dataset
