package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tempex/internal/texpr"
)

// NOTE: This file provides the configuration model and full YAML-based
// load/save behavior, including first-run config creation and 0600
// permissions. Rule trees are described in rule.go.

// BasicAuthConfig holds HTTP Basic Auth credentials for the HTTP API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// ScheduleConfig is one named schedule.
type ScheduleConfig struct {
	// Name identifies the schedule in the API and CLI. Must be unique.
	Name string `yaml:"name" json:"name"`
	// Summary is used as the VEVENT summary in ICS exports.
	Summary string `yaml:"summary,omitempty" json:"summary,omitempty"`
	// Rule is the temporal expression tree.
	Rule Node `yaml:"rule" json:"rule"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// RefreshCron is a cron-style schedule string (e.g. "0 0 * * *")
	// that drives the occurrence cache refresh in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of days, starting today, covered by
	// cached occurrences and ICS feeds.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// Schedules are the named rules known to the CLI and API.
	Schedules []ScheduleConfig `yaml:"schedules" json:"schedules"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen      = "127.0.0.1:8080"
	defaultRefreshCron = "0 0 * * *"
	defaultHorizonDays = 30
)

// DefaultConfig returns an in-memory default configuration with one
// example schedule (weekdays).
func DefaultConfig() *Config {
	sunday, saturday := 0, 6
	return &Config{
		Listen:      defaultListen,
		RefreshCron: defaultRefreshCron,
		HorizonDays: defaultHorizonDays,
		Schedules: []ScheduleConfig{
			{
				Name:    "weekdays",
				Summary: "Weekday",
				Rule: Node{
					Difference: &DifferenceNode{
						Include: &Node{All: []Node{}},
						Exclude: &Node{Any: []Node{
							{DayOfWeek: &sunday},
							{DayOfWeek: &saturday},
						}},
					},
				},
			},
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.Schedules == nil {
		c.Schedules = []ScheduleConfig{}
	}
	for i := range c.Schedules {
		if c.Schedules[i].Summary == "" {
			c.Schedules[i].Summary = c.Schedules[i].Name
		}
	}
}

// Compiled is a schedule whose rule has been built and validated.
type Compiled struct {
	Name    string
	Summary string
	Expr    texpr.Expression
}

// Compile builds every schedule's expression and validates it. Names
// must be non-empty and unique.
func (c *Config) Compile() ([]Compiled, error) {
	seen := make(map[string]bool, len(c.Schedules))
	out := make([]Compiled, 0, len(c.Schedules))

	for i, s := range c.Schedules {
		if s.Name == "" {
			return nil, fmt.Errorf("schedule #%d: empty name", i)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("schedule %q: duplicate name", s.Name)
		}
		seen[s.Name] = true

		expr, err := s.Rule.Build()
		if err != nil {
			return nil, fmt.Errorf("schedule %q: %w", s.Name, err)
		}
		if err := texpr.Validate(expr); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", s.Name, err)
		}

		summary := s.Summary
		if summary == "" {
			summary = s.Name
		}
		out = append(out, Compiled{Name: s.Name, Summary: summary, Expr: expr})
	}

	return out, nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tempex-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
