// Package config loads the feedback loop's policy and path settings
// from an optional YAML file, with environment overrides for the paths
// so deployments can relocate state without editing config.
package config

import (
	"fmt"
	"os"

	"github.com/decisionloop/feedback-controller/internal/label"
	"github.com/decisionloop/feedback-controller/internal/signals"
	"gopkg.in/yaml.v3"
)

// #region config

// Config is the full runtime configuration.
type Config struct {
	Store struct {
		LogPath string `yaml:"log_path"`
		IndexDB string `yaml:"index_db"`
	} `yaml:"store"`
	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`
	Training struct {
		TriggerThreshold int `yaml:"trigger_threshold"`
	} `yaml:"training"`
	Label   label.Policy          `yaml:"label"`
	Signals signals.DeriverConfig `yaml:"signals"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.Store.LogPath = "feedback_log.jsonl"
	c.Store.IndexDB = "feedback_index.db"
	c.Artifacts.Dir = "artifacts"
	c.Training.TriggerThreshold = 10
	c.Label = label.DefaultPolicy()
	c.Signals = signals.DefaultDeriverConfig()
	return c
}

// #endregion config

// #region load

// Load reads path over the defaults, then applies env overrides.
// An empty path means defaults plus env.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	c.Store.LogPath = envOr("FEEDBACK_LOG", c.Store.LogPath)
	c.Store.IndexDB = envOr("FEEDBACK_DB", c.Store.IndexDB)
	c.Artifacts.Dir = envOr("FEEDBACK_ARTIFACTS", c.Artifacts.Dir)
	return c, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion load
