package antibot

import (
	"strings"
	"testing"

	antibotlog "toutuo/server/logging/antibot"
	"toutuo/server/logging/sinks"
)

type panicky struct{ Nop }

func (panicky) OnHammerHit(int, int) { panic("boom") }

func TestSafeReportsPanics(t *testing.T) {
	sink := sinks.NewMemorySink()
	obs := Safe(panicky{}, sink, func() uint64 { return 42 })

	obs.OnHammerHit(3, 4)
	obs.OnSpawn(3)

	events := sink.OfType(antibotlog.EventHookPanic)
	if len(events) != 1 {
		t.Fatalf("expected one panic event, got %d", len(events))
	}
	if events[0].Tick != 42 {
		t.Fatalf("expected tick 42, got %d", events[0].Tick)
	}
	payload, ok := events[0].Payload.(antibotlog.NotificationPayload)
	if !ok || !strings.Contains(payload.Message, "hammer_hit") {
		t.Fatalf("expected hook name in message, got %+v", events[0].Payload)
	}
}

func TestSafeNilIsNop(t *testing.T) {
	obs := Safe(nil, nil, nil)
	if _, ok := obs.(Nop); !ok {
		t.Fatalf("expected Nop for nil observer, got %T", obs)
	}
}

func TestPublisherObserverSkipsTickSignals(t *testing.T) {
	sink := sinks.NewMemorySink()
	obs := NewPublisherObserver(sink, nil)

	obs.OnCharacterTick(1)
	obs.OnHammerFireReloading(1)
	obs.OnHookAttach(1, true)

	if got := len(sink.Events()); got != 2 {
		t.Fatalf("expected 2 events, got %d", got)
	}
	fire := sink.OfType(antibotlog.EventHammerFire)
	if len(fire) != 1 || !fire[0].Payload.(antibotlog.NotificationPayload).Reload {
		t.Fatalf("expected a reloading hammer fire event, got %+v", fire)
	}
}
