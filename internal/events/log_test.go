package events

import (
	"math"
	"testing"

	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
	"toutuo/server/logging/capacity"
	"toutuo/server/logging/sinks"
)

func TestCreateRespectsByteBudget(t *testing.T) {
	memory := sinks.NewMemorySink()
	log := New(Deps{Publisher: memory, Tick: func() uint64 { return 9 }})
	first := log.Create(snap.ItemSpawn, MaxDataSize-8, MaskAll)
	if first == nil {
		t.Fatalf("expected the first event to fit")
	}
	first[0] = 0xAB
	if log.Create(snap.ItemSpawn, 16, MaskAll) != nil {
		t.Fatalf("expected the overflowing event to be refused")
	}
	if buf := log.Create(snap.ItemSpawn, 8, MaskAll); buf == nil {
		t.Fatalf("expected an event filling the arena exactly to fit")
	}
	if log.Len() != 2 || log.Bytes() != MaxDataSize {
		t.Fatalf("expected 2 events and a full arena, got %d/%d", log.Len(), log.Bytes())
	}
	if first[0] != 0xAB {
		t.Fatalf("expected prior events intact")
	}
	drops := memory.OfType(capacity.EventEventDropped)
	if len(drops) != 1 || drops[0].Tick != 9 {
		t.Fatalf("expected one drop report at tick 9, got %+v", drops)
	}
	log.Clear()
	if log.Len() != 0 || log.Bytes() != 0 {
		t.Fatalf("expected clear to reset count and offset")
	}
}

func TestCreateRespectsCountBudget(t *testing.T) {
	log := New(Deps{})
	for i := 0; i < MaxEvents; i++ {
		if log.Create(snap.ItemHammerHit, 8, MaskAll) == nil {
			t.Fatalf("unexpected refusal at %d", i)
		}
	}
	if log.Create(snap.ItemHammerHit, 8, MaskAll) != nil {
		t.Fatalf("expected event %d to be refused", MaxEvents+1)
	}
	log.Clear()
	if log.Create(snap.ItemHammerHit, 8, MaskAll) == nil {
		t.Fatalf("expected room after clear")
	}
}

func TestSnapFiltersByMaskAndView(t *testing.T) {
	log := New(Deps{})
	log.CreateHammerHit(geom.V(10, 10), MaskOne(2))
	log.CreateHammerHit(geom.V(20, 20), MaskAllExceptOne(2))
	log.CreateHammerHit(geom.V(5000, 10), MaskAll)

	near := snap.View{Pos: geom.V(0, 0)}

	b := snap.NewBuilder(0, 0)
	log.Snap(2, near, b)
	items := b.Items()
	if len(items) != 1 || items[0].ID != 0 {
		t.Fatalf("expected client 2 to see only its own visible event, got %+v", items)
	}

	b.Reset()
	log.Snap(3, near, b)
	if items := b.Items(); len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("expected client 3 to see event 1 only, got %+v", items)
	}

	b.Reset()
	log.Snap(snap.DemoClient, near, b)
	if b.Len() != 3 {
		t.Fatalf("expected the demo client to see every event, got %d", b.Len())
	}
}

func TestSnapSkipsRefusedItems(t *testing.T) {
	log := New(Deps{})
	log.CreatePlayerSpawn(geom.V(1, 1), MaskAll)
	log.CreatePlayerSpawn(geom.V(2, 2), MaskAll)
	b := snap.NewBuilder(1, 0)
	log.Snap(0, snap.View{}, b)
	if b.Len() != 1 {
		t.Fatalf("expected the full sink to take one item, got %d", b.Len())
	}
}

func TestCreateDamageIndArc(t *testing.T) {
	log := New(Deps{})
	log.CreateDamageInd(geom.V(64, 32), 0, 3, MaskAll)
	if log.Len() != 3 {
		t.Fatalf("expected 3 indicators, got %d", log.Len())
	}
	b := snap.NewBuilder(0, 0)
	log.Snap(snap.DemoClient, snap.View{}, b)
	a := 3 * math.Pi / 2
	s, e := a-math.Pi/3, a+math.Pi/3
	for i, item := range b.Items() {
		var ind snap.DamageInd
		if err := snap.Decode(item.Data, &ind); err != nil {
			t.Fatalf("decode: %v", err)
		}
		f := geom.MixScalar(s, e, float64(i+1)/5)
		if ind.X != 64 || ind.Y != 32 || ind.Angle != int32(f*256) {
			t.Fatalf("indicator %d: unexpected %+v", i, ind)
		}
	}
}

func TestCreateSoundIgnoresNegativeIDs(t *testing.T) {
	log := New(Deps{})
	log.CreateSound(geom.V(0, 0), -1, MaskAll)
	log.CreateSound(geom.V(0, 0), SoundPlayerJump, MaskAll)
	if log.Len() != 1 {
		t.Fatalf("expected one sound event, got %d", log.Len())
	}
}
