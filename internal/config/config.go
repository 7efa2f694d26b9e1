// Package config loads run defaults — connection strings, batch size,
// worker cap, progress flag, default include/exclude lists — from a YAML
// file overlaid with environment variables and flags, and supports
// hot-reloading the include/exclude defaults for a long-lived scheduling
// process.
//
// Grounded on the teacher's viper-backed config loader (environment
// variables and flags layered over a YAML base, hot-reloaded via
// fsnotify), generalized from beads' tracker-sync settings to dbgen's run
// defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is a run's default settings. Loader.Snapshot hands out a Config
// by value, and cmd/dbgen takes one snapshot before building the
// model.RunOptions it passes to model.Run, so a concurrent reload never
// mutates an in-flight run.
type Config struct {
	MainDSN    string   `mapstructure:"main_dsn"`
	MetaDSN    string   `mapstructure:"meta_dsn"`
	BatchSize  int      `mapstructure:"batch_size"`
	WorkerCap  int      `mapstructure:"worker_cap"`
	Progress   bool     `mapstructure:"progress"`
	Retry      bool     `mapstructure:"retry"`
	Nuke       bool     `mapstructure:"nuke"`
	Include    []string `mapstructure:"include"`
	Exclude    []string `mapstructure:"exclude"`
}

// Loader owns a viper instance and the last successfully decoded Config,
// guarded by a mutex since fsnotify delivers reload callbacks on their own
// goroutine.
type Loader struct {
	v  *viper.Viper
	mu sync.RWMutex
	c  Config
}

// NewLoader reads path (if it exists; a missing file is not an error, only
// defaults/env/flags apply) and returns a Loader seeded with the decoded
// Config.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("dbgen")
	v.AutomaticEnv()
	v.SetDefault("batch_size", 0)
	v.SetDefault("worker_cap", 4)
	v.SetDefault("retry", false)
	v.SetDefault("nuke", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	l := &Loader{v: v}
	if err := l.reload(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Loader) reload() error {
	var c Config
	if err := l.v.Unmarshal(&c); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	l.mu.Lock()
	l.c = c
	l.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the currently loaded Config.
func (l *Loader) Snapshot() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.c
}

// WatchReload starts watching the config file for changes, re-decoding on
// every write event; onChange, if non-nil, is called after each successful
// reload. Errors decoding a changed file are dropped (the previous
// snapshot remains in effect) rather than crashing the watcher goroutine.
func (l *Loader) WatchReload(onChange func(Config)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		if err := l.reload(); err != nil {
			return
		}
		if onChange != nil {
			onChange(l.Snapshot())
		}
	})
	l.v.WatchConfig()
}
