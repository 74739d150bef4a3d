// Package config resolves the daemon's CLI flags together with an optional
// environment-file overlay, in the teacher's cmd/atlas readEnv style.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-envparse"
	"github.com/rs/zerolog"
)

// Config is the fully resolved set of options the daemon runs with.
type Config struct {
	TopologyFile string
	Interval     int // seconds

	LogLevel  zerolog.Level
	LogFormat string // "console" or "json"

	MetricsAddr string // empty disables the debug/metrics HTTP surface
	StateDB     string // empty disables the sqlite audit log
}

// ApplyEnvFile overlays environment variables from the given env file (in
// the format accepted by hashicorp/go-envparse, as cmd/atlas/main.go's
// readEnv does) onto c. Unset variables leave the corresponding field
// untouched. Recognized variables:
//
//	DVROUTED_LOG_LEVEL, DVROUTED_LOG_FORMAT, DVROUTED_METRICS_ADDR,
//	DVROUTED_STATE_DB
func (c *Config) ApplyEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return fmt.Errorf("parse env file: %w", err)
	}

	if v, ok := m["DVROUTED_LOG_LEVEL"]; ok {
		lvl, err := zerolog.ParseLevel(strings.ToLower(v))
		if err != nil {
			return fmt.Errorf("DVROUTED_LOG_LEVEL: %w", err)
		}
		c.LogLevel = lvl
	}
	if v, ok := m["DVROUTED_LOG_FORMAT"]; ok {
		c.LogFormat = v
	}
	if v, ok := m["DVROUTED_METRICS_ADDR"]; ok {
		c.MetricsAddr = v
	}
	if v, ok := m["DVROUTED_STATE_DB"]; ok {
		c.StateDB = v
	}
	return nil
}

// ParseLevel is a small wrapper kept here so callers don't need to import
// zerolog just to validate a -log-level flag value.
func ParseLevel(s string) (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(s))
}
