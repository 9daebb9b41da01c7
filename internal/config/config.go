// Package config defines the engine's Config struct, its defaults, and
// Load, which overlays an optional JSON file (schema-validated) on top of
// those defaults, mirroring the reference stack's internal/config Keys
// pattern. Load also loads a local .env file into the process
// environment; no Config field is read from the environment.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/flyingrobots/blacklight/internal/util"
	"github.com/flyingrobots/blacklight/pkg/log"
)

// SourceConfig is one enumerated input root.
type SourceConfig struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Kind      string `json:"kind"`
	CasPrefix string `json:"cas_prefix,omitempty"`
}

var allowedSourceKinds = []string{"claude", "gemini", "codex"}

// Config is the full set of recognized configuration keys.
type Config struct {
	DB struct {
		Path string `json:"path"`
	} `json:"db"`

	Sources []SourceConfig `json:"sources"`

	Backup struct {
		Dir  string `json:"dir"`
		Mode string `json:"mode"`
	} `json:"backup"`

	Scanner struct {
		SkipDirs []string `json:"skip_dirs"`
	} `json:"scanner"`

	SQLite struct {
		CacheSizeMB int `json:"cache_size_mb"`
		MmapSizeMB  int `json:"mmap_size_mb"`
	} `json:"sqlite"`

	Scheduler struct {
		Enabled               bool `json:"enabled"`
		IntervalMinutes       int  `json:"interval_minutes"`
		RunEnrichment         bool `json:"run_enrichment"`
		EnrichmentConcurrency int  `json:"enrichment_concurrency"`
	} `json:"scheduler"`

	Enrichment struct {
		Concurrency          int     `json:"concurrency"`
		AutoApproveThreshold float64 `json:"auto_approve_threshold"`
		PreferredBackend     string  `json:"preferred_backend"`
	} `json:"enrichment"`

	Log struct {
		Level string `json:"level"`
	} `json:"log"`
}

// Defaults returns a Config populated with every documented default.
func Defaults() *Config {
	c := &Config{}
	c.DB.Path = "~/.local/share/blacklight/blacklight.db"
	c.Scanner.SkipDirs = nil
	c.SQLite.CacheSizeMB = 64
	c.SQLite.MmapSizeMB = 256
	c.Scheduler.Enabled = true
	c.Scheduler.IntervalMinutes = 60
	c.Scheduler.RunEnrichment = true
	c.Scheduler.EnrichmentConcurrency = 5
	c.Enrichment.Concurrency = 5
	c.Enrichment.AutoApproveThreshold = 0.8
	c.Enrichment.PreferredBackend = ""
	c.Log.Level = "info"
	return c
}

// Load builds a Config starting from Defaults, overlaying a JSON config
// file at path (if non-empty and present), schema-validated before
// decoding. A .env file, if present, is loaded into the process
// environment first; no Config field is read from environment
// variables, so .env values do not change the result. Unknown fields in the config file are rejected. Tilde-
// prefixed paths are expanded against the current user's home
// directory. A configured source whose kind is not one of the three
// recognized assistants is rejected; a configured source whose path
// does not exist on disk is only logged, since a source may appear
// later.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("config: failed to load .env: %v", err)
	}

	c := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else {
			if err := validateAgainstSchema(raw); err != nil {
				return nil, err
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(c); err != nil {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	c.DB.Path, _ = expandTilde(c.DB.Path)

	for i := range c.Sources {
		if !util.Contains(allowedSourceKinds, c.Sources[i].Kind) {
			return nil, fmt.Errorf("config: source %q has unrecognized kind %q", c.Sources[i].Name, c.Sources[i].Kind)
		}
		expanded, err := expandTilde(c.Sources[i].Path)
		if err != nil {
			return nil, fmt.Errorf("config: expand path for source %q: %w", c.Sources[i].Name, err)
		}
		c.Sources[i].Path = expanded
		if !util.CheckFileExists(expanded) {
			log.Warnf("config: source %q path %s does not exist yet", c.Sources[i].Name, expanded)
		}
	}

	return c, nil
}

// expandTilde replaces a bare "~" or a leading "~/" with the current
// user's home directory. Every other path, including "~user/..." forms,
// passes through unchanged.
func expandTilde(p string) (string, error) {
	if p == "" || !strings.HasPrefix(p, "~") {
		return p, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("expand tilde: %w", err)
	}
	if p == "~" {
		return u.HomeDir, nil
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(u.HomeDir, p[2:]), nil
	}
	return p, nil
}
