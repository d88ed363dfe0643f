package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/decisionloop/feedback-controller/internal/config"
	"github.com/decisionloop/feedback-controller/internal/controller"
	"github.com/decisionloop/feedback-controller/internal/signals"
	"github.com/decisionloop/feedback-controller/internal/store"
)

// #region main

func main() {
	configPath := flag.String("config", "", "path to feedback.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewStore(cfg.Store.LogPath, cfg.Store.IndexDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctrl, err := controller.NewController(
		st,
		signals.NewHeuristicDeriver(cfg.Signals),
		cfg.Label,
		controller.Config{TriggerThreshold: cfg.Training.TriggerThreshold, ArtifactsDir: cfg.Artifacts.Dir},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wire controller: %v\n", err)
		os.Exit(1)
	}

	res, err := ctrl.RunTrainingCycle()
	if err != nil {
		fmt.Fprintf(os.Stderr, "training cycle: %v\n", err)
		os.Exit(1)
	}

	if res.Status == controller.StatusInsufficientData {
		fmt.Printf("insufficient data: %d trainable sample(s), need %d\n",
			res.SampleCount, controller.MinTrainingSamples)
		return
	}

	fmt.Printf("trained on %d sample(s)\n", res.SampleCount)
	fmt.Printf("dataset: %s\n", res.DatasetPath)
	fmt.Printf("model:   %s\n", res.ModelPath)
	fmt.Printf("buckets: %d\n", res.LearnedPriorsCount)
}

// #endregion main
