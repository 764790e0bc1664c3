package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(Config{Level: "debug"}, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	if entry["message"] != "hello" || entry["level"] != "debug" {
		t.Errorf("entry = %v", entry)
	}
}

func TestNewLoggerLevel(t *testing.T) {
	tests := []struct {
		level  string
		logged bool
	}{
		{"debug", true},
		{"warn", false},
		{"bogus", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := newLogger(Config{Level: tt.level}, &buf)
			if err != nil {
				t.Fatalf("newLogger() error = %v", err)
			}
			logger.Debug("debug message")
			if got := buf.Len() > 0; got != tt.logged {
				t.Errorf("logged = %v, want %v", got, tt.logged)
			}
		})
	}
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mailgate.log")

	var buf bytes.Buffer
	logger, err := newLogger(Config{Level: "info", File: path, MaxSize: 1}, &buf)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("to file")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("log file = %q, want it to contain the message", data)
	}
}
