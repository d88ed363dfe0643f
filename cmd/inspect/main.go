package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/decisionloop/feedback-controller/internal/config"
	"github.com/decisionloop/feedback-controller/internal/controller"
	"github.com/decisionloop/feedback-controller/internal/priors"
	"github.com/decisionloop/feedback-controller/internal/signals"
	"github.com/decisionloop/feedback-controller/internal/store"
)

// #region main

func main() {
	configPath := flag.String("config", "", "path to feedback.yaml (optional)")
	showPriors := flag.Bool("priors", false, "show the learned-priors table")
	showHistory := flag.Bool("history", false, "show training history")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
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

	switch {
	case *showPriors:
		err = runPriorsMode(ctrl, *jsonOut)
	case *showHistory:
		err = runHistoryMode(ctrl, *jsonOut)
	default:
		err = runStatsMode(st, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region stats-mode

func runStatsMode(st *store.Store, jsonOut bool) error {
	stats, err := st.Stats()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(stats)
	}
	fmt.Printf("Decisions:        %d\n", stats.TotalDecisions)
	fmt.Printf("With outcome:     %d\n", stats.WithOutcome)
	fmt.Printf("Success rate:     %.2f\n", stats.SuccessRate)
	fmt.Printf("High regret:      %d\n", stats.HighRegretCount)
	fmt.Printf("Secondary damage: %d\n", stats.SecondaryDamageCount)
	if n := st.CorruptSkipped(); n > 0 {
		fmt.Printf("Corrupt units skipped: %d\n", n)
	}
	return nil
}

// #endregion stats-mode

// #region priors-mode

func runPriorsMode(ctrl *controller.Controller, jsonOut bool) error {
	hist, err := ctrl.History()
	if err != nil {
		return err
	}
	if len(hist) == 0 {
		fmt.Fprintln(os.Stderr, "no training cycles recorded yet")
		return nil
	}

	table, err := priors.LoadModel(hist[len(hist)-1].ModelPath)
	if err != nil {
		return fmt.Errorf("load latest model: %w", err)
	}
	snap := table.Snapshot()
	if jsonOut {
		return printJSON(snap)
	}

	hashes := make([]string, 0, len(snap))
	for h := range snap {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	fmt.Printf("%-22s  %9s  %9s  %9s  %9s  %9s\n",
		"Situation", "Principle", "Rule", "Warning", "Claim", "Advice")
	for _, h := range hashes {
		l := snap[h]
		fmt.Printf("%-22s  %9.3f  %9.3f  %9.3f  %9.3f  %9.3f\n",
			h, l.Principle, l.Rule, l.Warning, l.Claim, l.Advice)
	}
	return nil
}

// #endregion priors-mode

// #region history-mode

func runHistoryMode(ctrl *controller.Controller, jsonOut bool) error {
	hist, err := ctrl.History()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(hist)
	}
	if len(hist) == 0 {
		fmt.Fprintln(os.Stderr, "no training cycles recorded yet")
		return nil
	}
	fmt.Printf("%-25s  %8s  %s\n", "Trained", "Samples", "Model")
	for _, e := range hist {
		fmt.Printf("%-25s  %8d  %s\n",
			e.TrainedAt.Format("2006-01-02T15:04:05Z"), e.SampleCount, e.ModelPath)
	}
	return nil
}

// #endregion history-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output
