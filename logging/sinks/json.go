package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"toutuo/server/logging"
)

// JSON emits newline-delimited structured events.
type JSON struct {
	mu        sync.Mutex
	writer    *bufio.Writer
	encoder   *json.Encoder
	autoFlush bool
	stop      chan struct{}
	stopOnce  sync.Once
}

type jsonWire struct {
	Type      logging.EventType   `json:"type"`
	Tick      uint64              `json:"tick"`
	Time      string              `json:"time"`
	Severity  string              `json:"severity"`
	Category  string              `json:"category,omitempty"`
	Actor     logging.EntityRef   `json:"actor"`
	Targets   []logging.EntityRef `json:"targets,omitempty"`
	Payload   any                 `json:"payload,omitempty"`
	Extra     map[string]any      `json:"extra,omitempty"`
	TraceID   string              `json:"traceId,omitempty"`
	CommandID string              `json:"commandId,omitempty"`
}

// NewJSON constructs a JSON sink writing to w. A positive flushInterval
// batches writes; otherwise every event is flushed immediately.
func NewJSON(w io.Writer, flushInterval time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	sink := &JSON{
		writer:    buf,
		encoder:   json.NewEncoder(buf),
		autoFlush: flushInterval <= 0,
		stop:      make(chan struct{}),
	}
	if flushInterval > 0 {
		go sink.periodicFlush(flushInterval)
	}
	return sink
}

// Write satisfies logging.Sink.
func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wire := jsonWire{
		Type:      event.Type,
		Tick:      event.Tick,
		Time:      event.Time.Format(time.RFC3339Nano),
		Severity:  event.Severity.String(),
		Category:  event.Category,
		Actor:     event.Actor,
		Targets:   event.Targets,
		Payload:   event.Payload,
		Extra:     event.Extra,
		TraceID:   event.TraceID,
		CommandID: event.CommandID,
	}
	if err := s.encoder.Encode(wire); err != nil {
		return err
	}
	if s.autoFlush {
		return s.writer.Flush()
	}
	return nil
}

// Close stops the flush ticker and flushes buffers.
func (s *JSON) Close(context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Flush()
}

func (s *JSON) periodicFlush(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.writer.Flush()
			s.mu.Unlock()
		}
	}
}
