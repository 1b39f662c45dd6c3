package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/insajin/autopus-mainboard/internal/config"
)

// restoreGlobals는 테스트가 바꾼 전역 로거 상태를 되돌립니다.
func restoreGlobals(t *testing.T) {
	t.Helper()
	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"trace", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

// TestSetup_JSON은 JSON 출력과 scoped 로거 필드를 테스트합니다.
func TestSetup_JSON(t *testing.T) {
	restoreGlobals(t)

	var buf bytes.Buffer
	closer := SetupWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)
	defer closer.Close()

	l := WithLibrary("/plugins/libplanning.so")
	l.Debug().Str("class", "Planner").Msg("created")

	var entry map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["library"] != "/plugins/libplanning.so" {
		t.Errorf("library = %v, want /plugins/libplanning.so", entry["library"])
	}
	if entry["class"] != "Planner" {
		t.Errorf("class = %v, want Planner", entry["class"])
	}
	if entry["level"] != "debug" {
		t.Errorf("level = %v, want debug", entry["level"])
	}
	if _, ok := entry["caller"]; !ok {
		t.Error("caller field missing")
	}
}

func TestSetup_LevelFilter(t *testing.T) {
	restoreGlobals(t)

	var buf bytes.Buffer
	SetupWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	Info().Msg("hidden")
	componentLogger := Component("controller")
	componentLogger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message written at warn level")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, `"component":"controller"`) {
		t.Errorf("warn message missing or unscoped: %q", out)
	}
}

func TestSetup_Text(t *testing.T) {
	restoreGlobals(t)

	var buf bytes.Buffer
	SetupWithWriter(config.LoggingConfig{Level: "info", Format: "text"}, &buf)
	Info().Msg("console line")

	out := buf.String()
	if !strings.Contains(out, "console line") {
		t.Errorf("output = %q, want message", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("text format produced JSON: %q", out)
	}
}

func TestSetup_File(t *testing.T) {
	restoreGlobals(t)

	path := filepath.Join(t.TempDir(), "mainboard.log")
	var stdout bytes.Buffer
	closer := SetupWithWriter(config.LoggingConfig{Level: "info", Format: "json", File: path}, &stdout)

	Error().Msg("to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q, want message", data)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout received %q while logging to a file", stdout.String())
	}
}

func TestSetup_FileFallback(t *testing.T) {
	restoreGlobals(t)

	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing", "dir", "mainboard.log")
	SetupWithWriter(config.LoggingConfig{Level: "info", Format: "json", File: path}, &stdout)

	Info().Msg("fallback")
	if !strings.Contains(stdout.String(), "fallback") {
		t.Errorf("stdout = %q, want fallback message", stdout.String())
	}
}
