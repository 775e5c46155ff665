package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aerocore/aerocore/internal/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	opts := config.Defaults()
	opts.LogLevel = "trace"
	if _, err := New(opts, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error for an unknown log level")
	}
}

func TestNewJSONHandlerEmitsJSON(t *testing.T) {
	opts := config.Defaults()
	opts.LogJSON = true
	var buf bytes.Buffer
	logger, err := New(opts, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output not valid JSON: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" {
		t.Fatalf("msg = %v, want hello", rec["msg"])
	}
}

func TestNewTextHandlerSuppressesBelowLevel(t *testing.T) {
	opts := config.Defaults()
	opts.LogLevel = "warn"
	var buf bytes.Buffer
	logger, err := New(opts, &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("info record leaked through a warn-level handler: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestCountersLogSummaryReportsValues(t *testing.T) {
	var c Counters
	c.Tier0Batches.Add(3)
	c.Tier2SideExits.Add(1)

	var buf bytes.Buffer
	logger, err := New(config.Defaults(), &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.LogSummary(logger)

	out := buf.String()
	if !strings.Contains(out, "tier0_batches=3") {
		t.Fatalf("summary missing tier0_batches: %q", out)
	}
	if !strings.Contains(out, "tier2_side_exits=1") {
		t.Fatalf("summary missing tier2_side_exits: %q", out)
	}
}
