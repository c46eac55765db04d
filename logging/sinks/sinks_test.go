package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"toutuo/server/logging"
)

func sampleEvent() logging.Event {
	return logging.Event{
		Type:     "physics.character_stuck",
		Tick:     42,
		Time:     time.Unix(100, 0),
		Actor:    logging.CharacterRef(3),
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPhysics,
		Payload:  map[string]int{"x": 1},
		Extra:    map[string]any{"world": "w1"},
		TraceID:  "trace-1",
	}
}

func TestConsoleSinkFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf, logging.ConsoleConfig{})
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[physics.character_stuck]", "tick=42", "actor=character:3", "severity=warn", "trace=trace-1", `payload={"x":1}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONSinkWritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("expected valid json, got %v (%q)", err, buf.String())
	}
	if decoded["severity"] != "warn" {
		t.Fatalf("expected severity warn, got %v", decoded["severity"])
	}
	if decoded["traceId"] != "trace-1" {
		t.Fatalf("expected trace id, got %v", decoded["traceId"])
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
}

func TestZapSinkMapsSeverityAndFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZap(zap.New(core))
	if err := sink.Write(sampleEvent()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level, got %v", entry.Level)
	}
	if entry.Message != "physics.character_stuck" {
		t.Fatalf("expected event type as message, got %q", entry.Message)
	}
	fields := entry.ContextMap()
	if fields["tick"] != uint64(42) {
		t.Fatalf("expected tick field 42, got %v", fields["tick"])
	}
	if fields["actor"] != "character:3" {
		t.Fatalf("expected actor field, got %v", fields["actor"])
	}
	if fields["world"] != "w1" {
		t.Fatalf("expected extra field world, got %v", fields["world"])
	}
}

func TestZapSinkRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	sink := NewZap(zap.New(core))
	_ = sink.Write(sampleEvent())
	if logs.Len() != 0 {
		t.Fatalf("expected warn event filtered by error level, got %d entries", logs.Len())
	}
}

func TestMemorySinkOfType(t *testing.T) {
	sink := NewMemorySink()
	sink.Publish(context.Background(), sampleEvent())
	sink.Publish(context.Background(), logging.Event{Type: "other"})
	if got := len(sink.OfType("other")); got != 1 {
		t.Fatalf("expected 1 event of type other, got %d", got)
	}
	sink.Reset()
	if got := len(sink.Events()); got != 0 {
		t.Fatalf("expected empty sink after reset, got %d", got)
	}
}
