package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/decisionloop/feedback-controller/internal/config"
	"github.com/decisionloop/feedback-controller/internal/controller"
	"github.com/decisionloop/feedback-controller/internal/decision"
	"github.com/decisionloop/feedback-controller/internal/label"
	"github.com/decisionloop/feedback-controller/internal/signals"
	"github.com/decisionloop/feedback-controller/internal/store"
)

// #region main

func main() {
	configPath := flag.String("config", "", "path to feedback.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	st, err := store.NewStore(cfg.Store.LogPath, cfg.Store.IndexDB)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctrl, err := controller.NewController(
		st,
		signals.NewHeuristicDeriver(cfg.Signals),
		cfg.Label,
		controller.Config{
			TriggerThreshold: cfg.Training.TriggerThreshold,
			ArtifactsDir:     cfg.Artifacts.Dir,
		},
	)
	if err != nil {
		log.Fatalf("wire controller: %v", err)
	}

	fmt.Println("Feedback Controller ready.")
	fmt.Printf("  Log: %s | Index: %s | Artifacts: %s\n",
		cfg.Store.LogPath, cfg.Store.IndexDB, cfg.Artifacts.Dir)
	fmt.Println("Commands: decision <json> | outcome <key> <json> | train | priors <hash> | stats | quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := dispatch(ctrl, st, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

// #endregion main

// #region dispatch

func dispatch(ctrl *controller.Controller, st *store.Store, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "decision":
		var input struct {
			DecisionID string            `json:"decision_id"`
			UserInput  string            `json:"user_input"`
			Analysis   json.RawMessage   `json:"analysis"`
			Guidance   json.RawMessage   `json:"guidance"`
			Features   decision.Features `json:"features"`
		}
		if err := json.Unmarshal([]byte(rest), &input); err != nil {
			return fmt.Errorf("parse decision: %w", err)
		}
		key, err := ctrl.RecordDecision(controller.DecisionInput{
			DecisionID: input.DecisionID,
			UserInput:  input.UserInput,
			Analysis:   input.Analysis,
			Guidance:   input.Guidance,
			Features:   input.Features,
		})
		if err != nil {
			return err
		}
		fmt.Printf("recorded: %s\n", key)
		return nil

	case "outcome":
		key, body, ok := strings.Cut(rest, " ")
		if !ok {
			return fmt.Errorf("usage: outcome <key> <json>")
		}
		var o decision.Outcome
		if err := json.Unmarshal([]byte(body), &o); err != nil {
			return fmt.Errorf("parse outcome: %w", err)
		}
		if err := ctrl.RecordOutcome(key, o); err != nil {
			return err
		}
		fmt.Println("outcome attached")
		return nil

	case "train":
		res, err := ctrl.RunTrainingCycle()
		if err != nil {
			return err
		}
		fmt.Printf("status=%s samples=%d priors=%d\n", res.Status, res.SampleCount, res.LearnedPriorsCount)
		if res.Status == controller.StatusSuccess {
			fmt.Printf("dataset=%s\nmodel=%s\n", res.DatasetPath, res.ModelPath)
		}
		return nil

	case "priors":
		hash := strings.TrimSpace(rest)
		if hash == "" {
			return fmt.Errorf("usage: priors <situation-hash>")
		}
		printLabel(hash, ctrl.GetLearnedPriors(hash))
		return nil

	case "stats":
		stats, err := st.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("decisions=%d with_outcome=%d success_rate=%.2f high_regret=%d secondary_damage=%d\n",
			stats.TotalDecisions, stats.WithOutcome, stats.SuccessRate,
			stats.HighRegretCount, stats.SecondaryDamageCount)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printLabel(hash string, l label.TrainingLabel) {
	fmt.Printf("%s: principle=%.3f rule=%.3f warning=%.3f claim=%.3f advice=%.3f\n",
		hash, l.Principle, l.Rule, l.Warning, l.Claim, l.Advice)
}

// #endregion dispatch
