package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestApplyEnvFileOverlays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	content := "DVROUTED_LOG_LEVEL=debug\nDVROUTED_METRICS_ADDR=127.0.0.1:9100\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := Config{LogLevel: zerolog.InfoLevel, MetricsAddr: ""}
	if err := c.ApplyEnvFile(path); err != nil {
		t.Fatalf("ApplyEnvFile: %v", err)
	}

	if c.LogLevel != zerolog.DebugLevel {
		t.Fatalf("LogLevel = %v, want debug", c.LogLevel)
	}
	if c.MetricsAddr != "127.0.0.1:9100" {
		t.Fatalf("MetricsAddr = %q", c.MetricsAddr)
	}
}

func TestApplyEnvFileLeavesUnsetFieldsAlone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	if err := os.WriteFile(path, []byte("DVROUTED_LOG_LEVEL=warn\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := Config{StateDB: "original.db"}
	if err := c.ApplyEnvFile(path); err != nil {
		t.Fatalf("ApplyEnvFile: %v", err)
	}
	if c.StateDB != "original.db" {
		t.Fatalf("StateDB = %q, want untouched", c.StateDB)
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("ERROR")
	if err != nil {
		t.Fatalf("ParseLevel: %v", err)
	}
	if lvl != zerolog.ErrorLevel {
		t.Fatalf("ParseLevel = %v, want error", lvl)
	}
}
