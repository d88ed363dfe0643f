package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/decisionloop/feedback-controller/internal/config"
	"github.com/decisionloop/feedback-controller/internal/dataset"
	"github.com/decisionloop/feedback-controller/internal/signals"
	"github.com/decisionloop/feedback-controller/internal/store"
)

// Builds a versioned dataset artifact from the outcome log without
// touching the learned-priors table. Useful for offline analysis of the
// labels the adjustment rules produce.

// #region main

func main() {
	configPath := flag.String("config", "", "path to feedback.yaml (optional)")
	stdout := flag.Bool("stdout", false, "print the dataset to stdout instead of writing an artifact")
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

	builder := dataset.NewBuilder(st, signals.NewHeuristicDeriver(cfg.Signals), cfg.Label, cfg.Artifacts.Dir)

	ds, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build dataset: %v\n", err)
		os.Exit(1)
	}

	if *stdout {
		data, err := json.MarshalIndent(ds, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal dataset: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		return
	}

	path, err := builder.Save(ds)
	if err != nil {
		fmt.Fprintf(os.Stderr, "save dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d sample(s) to %s\n", ds.NumSamples, path)
}

// #endregion main
