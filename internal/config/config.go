package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/quentel/shufflepod/internal/shuffle"
)

type Config struct {
	DefaultAlgorithm  string `koanf:"default_algorithm"`   // shuffle algorithm used when none is persisted
	MaxJournalEntries int    `koanf:"max_journal_entries"` // bounded operation journal size
	RebuildOnStop     bool   `koanf:"rebuild_on_stop"`     // force a fresh queue build at end of queue
	LogLevel          string `koanf:"log_level"`           // "debug", "info", "warn", "error"
	StatePath         string `koanf:"state_path"`          // overrides the XDG database location

	// Desktop notifications for operation notices
	Notifications NotificationsConfig `koanf:"notifications"`

	// MPRIS media-key integration
	MPRIS MPRISConfig `koanf:"mpris"`

	// Simulated transport settings
	Sim SimConfig `koanf:"sim"`
}

// NotificationsConfig holds desktop notification configuration.
type NotificationsConfig struct {
	Enabled *bool `koanf:"enabled"` // show operation notices over D-Bus (default: true)
}

// MPRISConfig holds MPRIS configuration.
type MPRISConfig struct {
	Enabled *bool `koanf:"enabled"` // expose the player over MPRIS (default: true)
}

// SimConfig holds simulated transport configuration.
type SimConfig struct {
	SongLengthSeconds int `koanf:"song_length_seconds"` // fallback song length (default: 30)
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if cfg.DefaultAlgorithm != "" {
		if _, err := shuffle.Parse(cfg.DefaultAlgorithm); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	if cfg.StatePath != "" {
		cfg.StatePath = expandPath(cfg.StatePath)
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/shufflepod/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "shufflepod", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// Algorithm returns the configured default shuffle algorithm.
func (c *Config) Algorithm() shuffle.Algorithm {
	if c.DefaultAlgorithm == "" {
		return shuffle.NoRepeat
	}
	alg, err := shuffle.Parse(c.DefaultAlgorithm)
	if err != nil {
		return shuffle.NoRepeat
	}
	return alg
}

// JournalSize returns the journal size with defaults applied.
func (c *Config) JournalSize() int {
	if c.MaxJournalEntries <= 0 {
		return 50
	}
	return c.MaxJournalEntries
}

// NotificationsEnabled reports whether operation notices go to D-Bus.
func (c *Config) NotificationsEnabled() bool {
	return c.Notifications.Enabled == nil || *c.Notifications.Enabled
}

// MPRISEnabled reports whether the MPRIS adapter should be started.
func (c *Config) MPRISEnabled() bool {
	return c.MPRIS.Enabled == nil || *c.MPRIS.Enabled
}

// SimSongLength returns the simulated song length with defaults applied.
func (c *Config) SimSongLength() time.Duration {
	if c.Sim.SongLengthSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Sim.SongLengthSeconds) * time.Second
}
