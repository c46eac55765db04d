// Package antibot defines the hooks a pluggable cheat detector receives from
// the character pipeline. Observers only watch; they never change world
// state.
package antibot

import (
	"context"
	"fmt"

	"toutuo/server/logging"
	antibotlog "toutuo/server/logging/antibot"
)

// Observer receives one call per gameplay signal. Calls arrive on the
// simulation goroutine and must return quickly.
type Observer interface {
	OnSpawn(clientID int)
	OnCharacterTick(clientID int)
	OnHammerFireReloading(clientID int)
	OnHammerFire(clientID int)
	OnHammerHit(clientID, target int)
	OnHookAttach(clientID int, player bool)
	OnDirectInput(clientID int)
}

// Nop ignores every signal.
type Nop struct{}

func (Nop) OnSpawn(int)               {}
func (Nop) OnCharacterTick(int)       {}
func (Nop) OnHammerFireReloading(int) {}
func (Nop) OnHammerFire(int)          {}
func (Nop) OnHammerHit(int, int)      {}
func (Nop) OnHookAttach(int, bool)    {}
func (Nop) OnDirectInput(int)         {}

// PublisherObserver turns signals into debug log events. Per tick signals
// are not published.
type PublisherObserver struct {
	pub  logging.Publisher
	tick func() uint64
}

func NewPublisherObserver(pub logging.Publisher, tick func() uint64) *PublisherObserver {
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &PublisherObserver{pub: pub, tick: tick}
}

func (o *PublisherObserver) now() uint64 {
	if o.tick == nil {
		return 0
	}
	return o.tick()
}

func (o *PublisherObserver) notify(eventType logging.EventType, clientID int, payload antibotlog.NotificationPayload) {
	antibotlog.Notification(context.Background(), o.pub, eventType, o.now(), logging.CharacterRef(clientID), payload, nil)
}

func (o *PublisherObserver) OnSpawn(clientID int) {
	o.notify(antibotlog.EventSpawn, clientID, antibotlog.NotificationPayload{})
}

func (o *PublisherObserver) OnCharacterTick(int) {}

func (o *PublisherObserver) OnHammerFireReloading(clientID int) {
	o.notify(antibotlog.EventHammerFire, clientID, antibotlog.NotificationPayload{Reload: true})
}

func (o *PublisherObserver) OnHammerFire(clientID int) {
	o.notify(antibotlog.EventHammerFire, clientID, antibotlog.NotificationPayload{})
}

func (o *PublisherObserver) OnHammerHit(clientID, target int) {
	o.notify(antibotlog.EventHammerHit, clientID, antibotlog.NotificationPayload{Target: target})
}

func (o *PublisherObserver) OnHookAttach(clientID int, player bool) {
	o.notify(antibotlog.EventHookAttach, clientID, antibotlog.NotificationPayload{Player: player})
}

func (o *PublisherObserver) OnDirectInput(clientID int) {
	o.notify(antibotlog.EventDirectInput, clientID, antibotlog.NotificationPayload{})
}

// Safe wraps obs so a panicking observer is reported instead of taking the
// simulation down. A nil obs yields Nop.
func Safe(obs Observer, pub logging.Publisher, tick func() uint64) Observer {
	if obs == nil {
		return Nop{}
	}
	if pub == nil {
		pub = logging.NopPublisher()
	}
	return &safeObserver{inner: obs, pub: pub, tick: tick}
}

type safeObserver struct {
	inner Observer
	pub   logging.Publisher
	tick  func() uint64
}

func (s *safeObserver) guard(hook string, clientID int) {
	r := recover()
	if r == nil {
		return
	}
	var tick uint64
	if s.tick != nil {
		tick = s.tick()
	}
	antibotlog.Notification(context.Background(), s.pub, antibotlog.EventHookPanic, tick, logging.CharacterRef(clientID), antibotlog.NotificationPayload{
		Message: fmt.Sprintf("%s: %v", hook, r),
	}, nil)
}

func (s *safeObserver) OnSpawn(clientID int) {
	defer s.guard("spawn", clientID)
	s.inner.OnSpawn(clientID)
}

func (s *safeObserver) OnCharacterTick(clientID int) {
	defer s.guard("character_tick", clientID)
	s.inner.OnCharacterTick(clientID)
}

func (s *safeObserver) OnHammerFireReloading(clientID int) {
	defer s.guard("hammer_fire_reloading", clientID)
	s.inner.OnHammerFireReloading(clientID)
}

func (s *safeObserver) OnHammerFire(clientID int) {
	defer s.guard("hammer_fire", clientID)
	s.inner.OnHammerFire(clientID)
}

func (s *safeObserver) OnHammerHit(clientID, target int) {
	defer s.guard("hammer_hit", clientID)
	s.inner.OnHammerHit(clientID, target)
}

func (s *safeObserver) OnHookAttach(clientID int, player bool) {
	defer s.guard("hook_attach", clientID)
	s.inner.OnHookAttach(clientID, player)
}

func (s *safeObserver) OnDirectInput(clientID int) {
	defer s.guard("direct_input", clientID)
	s.inner.OnDirectInput(clientID)
}
