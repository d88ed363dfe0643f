package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.LogPath != "feedback_log.jsonl" {
		t.Errorf("LogPath = %s", c.Store.LogPath)
	}
	if c.Training.TriggerThreshold != 10 {
		t.Errorf("TriggerThreshold = %d", c.Training.TriggerThreshold)
	}
	if c.Label.Step != 0.05 {
		t.Errorf("Step = %v", c.Label.Step)
	}
	if c.Signals.RecoveryWindowDays != 14 {
		t.Errorf("RecoveryWindowDays = %d", c.Signals.RecoveryWindowDays)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedback.yaml")
	body := `
store:
  log_path: /var/lib/feedback/log.jsonl
training:
  trigger_threshold: 25
label:
  step: 0.1
  irreversibility_high: 0.8
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.LogPath != "/var/lib/feedback/log.jsonl" {
		t.Errorf("LogPath = %s", c.Store.LogPath)
	}
	// Unset fields keep defaults.
	if c.Store.IndexDB != "feedback_index.db" {
		t.Errorf("IndexDB = %s", c.Store.IndexDB)
	}
	if c.Training.TriggerThreshold != 25 {
		t.Errorf("TriggerThreshold = %d", c.Training.TriggerThreshold)
	}
	if c.Label.Step != 0.1 || c.Label.IrreversibilityHigh != 0.8 {
		t.Errorf("Label = %+v", c.Label)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FEEDBACK_LOG", "/tmp/override.jsonl")
	t.Setenv("FEEDBACK_DB", "/tmp/override.db")
	t.Setenv("FEEDBACK_ARTIFACTS", "/tmp/override-artifacts")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.LogPath != "/tmp/override.jsonl" {
		t.Errorf("LogPath = %s", c.Store.LogPath)
	}
	if c.Store.IndexDB != "/tmp/override.db" {
		t.Errorf("IndexDB = %s", c.Store.IndexDB)
	}
	if c.Artifacts.Dir != "/tmp/override-artifacts" {
		t.Errorf("ArtifactsDir = %s", c.Artifacts.Dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
