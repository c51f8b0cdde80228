// Package config loads rewind settings from YAML and validates them
// against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/rewind/internal/engine"
)

//go:embed schema.cue
var schemaSource string

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Config holds the settings shared by every rewind command.
type Config struct {
	// Database is the SQLite file or Badger directory holding the log.
	Database string `yaml:"database" json:"database"`

	// Backend selects the history log implementation: "sqlite" or "badger".
	Backend string `yaml:"backend" json:"backend"`

	// MaxHistory is the number of entries kept per scope.
	MaxHistory int `yaml:"max_history" json:"max_history"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:   "rewind.db",
		Backend:    BackendSQLite,
		MaxHistory: engine.DefaultMaxHistory,
		LogLevel:   "info",
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Keys missing from the file keep their default values; unknown keys are
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := ctx.Encode(c)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
