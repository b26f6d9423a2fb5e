package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew_Modes(t *testing.T) {
	for _, env := range []string{"development", "production"} {
		logger := New(env)
		if logger == nil {
			t.Fatalf("Expected logger for env %q", env)
		}
		if logger.GetZerolog() == nil {
			t.Errorf("Expected zerolog instance for env %q", env)
		}
	}
}

func TestLevels_FieldsAndMessage(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.Debug("indexing footprint", map[string]interface{}{"footprint_id": "fp-1"})
	logger.Info("query served", map[string]interface{}{"candidates": 12})
	logger.Warn("index entry without record", map[string]interface{}{"footprint_id": "fp-2"})

	output := buf.String()
	for _, want := range []string{"indexing footprint", "fp-1", "query served", "12", "index entry without record", "fp-2"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected output to contain %q", want)
		}
	}
}

func TestError_IncludesErrField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.Error("store write failed", errors.New("connection reset"), map[string]interface{}{
		"footprint_id": "fp-3",
	})

	output := buf.String()
	if !strings.Contains(output, "connection reset") {
		t.Error("Expected output to contain the error message")
	}
	if !strings.Contains(output, "fp-3") {
		t.Error("Expected output to contain the field value")
	}
}

func TestWith_ChildCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	child := logger.With(map[string]interface{}{"component": "repository"})
	child.Info("rebuilt index", nil)

	if !strings.Contains(buf.String(), "repository") {
		t.Error("Expected child logger output to carry context field")
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.WithRequestID("req-12345").Info("request received", nil)

	output := buf.String()
	if !strings.Contains(output, "request_id") || !strings.Contains(output, "req-12345") {
		t.Error("Expected output to contain the request_id field")
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.Info("test json", map[string]interface{}{"key": "value"})

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected valid JSON output, got error: %v", err)
	}
	if entry["message"] != "test json" {
		t.Error("Expected JSON to contain message field")
	}
	if entry["key"] != "value" {
		t.Error("Expected JSON to contain custom field")
	}
}

func TestNilFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(&buf)

	logger.Info("message with nil fields", nil)

	if !strings.Contains(buf.String(), "message with nil fields") {
		t.Error("Expected message to be logged even with nil fields")
	}
}
