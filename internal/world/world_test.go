package world

import (
	"math"
	"math/rand"
	"testing"

	"toutuo/server/internal/collision"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/switches"
	"toutuo/server/internal/tuning"
	"toutuo/server/logging/lifecycle"
	"toutuo/server/logging/sinks"
)

// shaft is a closed room with one spawn point near the ceiling. Column 2
// is where a spawned character falls.
func shaft(fill func(m *collision.Map)) *collision.Map {
	m := collision.MustParseASCII(
		"##########",
		"#.S......#",
		"#........#",
		"#........#",
		"#........#",
		"#........#",
		"#........#",
		"##########",
	)
	if fill != nil {
		fill(m)
	}
	return m
}

func row(m *collision.Map, y int, tile uint8) {
	for x := 1; x < m.Width()-1; x++ {
		m.SetGame(x, y, tile)
	}
}

func newTestWorld(t *testing.T, cfg Config, m *collision.Map, deps Deps) *World {
	t.Helper()
	w, err := New(cfg, m, deps)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return w
}

// joinAndSpawn seats client 0 and ticks until its first character spawns.
func joinAndSpawn(t *testing.T, w *World) *Character {
	t.Helper()
	if _, err := w.Join(0); err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	for i := 0; i < 2; i++ {
		w.Tick()
	}
	c := w.Character(0)
	if c == nil {
		t.Fatalf("expected character two ticks after joining")
	}
	return c
}

func TestNewNormalizesConfigAndSeedsRNG(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(nil), Deps{})

	normalized := (Config{}).normalized()
	got := w.Config()
	if got.Seed != normalized.Seed || got.TickSpeed != normalized.TickSpeed || got.SnapIDGraceTicks != normalized.SnapIDGraceTicks {
		t.Fatalf("Config not normalized: got %+v want %+v", got, normalized)
	}
	if got.Tuning != tuning.Default() {
		t.Fatalf("expected default tuning, got %+v", got.Tuning)
	}
	if got.Policy != (Policy{FreezeDelay: DefaultFreezeDelay, RespawnWait: DefaultRespawnWait}) {
		t.Fatalf("expected stock policy, got %+v", got.Policy)
	}
	if got.SnapIDGraceTicks != 5*DefaultTickSpeed {
		t.Fatalf("expected five seconds of snap id grace, got %d", got.SnapIDGraceTicks)
	}

	if got := w.Seed(); got != normalized.Seed {
		t.Fatalf("Seed mismatch: got %q want %q", got, normalized.Seed)
	}

	rng := w.RNG()
	if rng == nil {
		t.Fatalf("RNG not initialized")
	}
	expected := NewDeterministicRNG(normalized.Seed, "world")
	if diff := math.Abs(rng.Float64() - expected.Float64()); diff > 1e-9 {
		t.Fatalf("world RNG not seeded deterministically: diff=%f", diff)
	}

	sub := w.SubsystemRNG("test")
	wantSub := NewDeterministicRNG(normalized.Seed, "test")
	if diff := math.Abs(sub.Float64() - wantSub.Float64()); diff > 1e-9 {
		t.Fatalf("subsystem RNG mismatch: diff=%f", diff)
	}
}

func TestNewUsesInjectedRNGFactory(t *testing.T) {
	calls := 0
	factory := func(rootSeed, label string) *rand.Rand {
		calls++
		return rand.New(rand.NewSource(123))
	}

	w := newTestWorld(t, Config{Seed: "custom"}, shaft(nil), Deps{RNG: factory})
	if calls != 1 {
		t.Fatalf("expected factory to be invoked once for world RNG, got %d", calls)
	}

	_ = w.RNG()
	_ = w.SubsystemRNG("other")
	if calls < 2 {
		t.Fatalf("expected factory to be reused for subsystem RNG, got %d calls", calls)
	}
}

func TestNewRejectsMissingMap(t *testing.T) {
	if _, err := New(Config{}, nil, Deps{}); err == nil {
		t.Fatalf("expected error for a nil map")
	}
}

func TestZoneOverridesOutsideRangeAreDropped(t *testing.T) {
	cfg := Config{Zones: []tuning.ZoneConfig{{Zone: 0}, {Zone: 3}, {Zone: 256}}}.normalized()
	if len(cfg.Zones) != 1 || cfg.Zones[0].Zone != 3 {
		t.Fatalf("expected only zone 3 to survive, got %+v", cfg.Zones)
	}
	if cfg.Zones[0].Params != tuning.Default() {
		t.Fatalf("expected empty zone params to inherit the global tuning")
	}
}

func TestJoinSpawnsAndLogsLifecycle(t *testing.T) {
	sink := sinks.NewMemorySink()
	w := newTestWorld(t, Config{}, shaft(nil), Deps{Publisher: sink})
	c := joinAndSpawn(t, w)

	if c.Pos() != collision.CellCenter(2, 1) {
		t.Fatalf("expected spawn at the spawn point, got %v", c.Pos())
	}
	if c.SnapID() < 0 {
		t.Fatalf("expected a snap id, got %d", c.SnapID())
	}
	if _, err := w.Join(0); err != ErrSlotTaken {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}
	if len(sink.OfType(lifecycle.EventPlayerJoined)) != 1 {
		t.Fatalf("expected one join event, got %d", len(sink.OfType(lifecycle.EventPlayerJoined)))
	}
	if len(sink.OfType(lifecycle.EventCharacterSpawned)) != 1 {
		t.Fatalf("expected one spawn event, got %d", len(sink.OfType(lifecycle.EventCharacterSpawned)))
	}

	if err := w.Leave(0, "test"); err != nil {
		t.Fatalf("Leave returned error: %v", err)
	}
	if w.Player(0) != nil {
		t.Fatalf("expected empty slot after leaving")
	}
	if len(sink.OfType(lifecycle.EventCharacterDied)) != 1 {
		t.Fatalf("expected the character to die on leave")
	}
}

func TestRespawnWaitsForRespawnTick(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(nil), Deps{})
	c := joinAndSpawn(t, w)

	c.Die(0, WeaponSelf)
	// firing does not skip the wait
	if err := w.SetInput(0, gamecore.Input{Fire: 1}, true); err != nil {
		t.Fatalf("SetInput returned error: %v", err)
	}
	wait := DefaultRespawnWait * DefaultTickSpeed
	for i := 0; i < wait-1; i++ {
		w.Tick()
	}
	if w.Character(0) != nil {
		t.Fatalf("expected no character before the respawn tick")
	}

	w.Tick()
	if w.Character(0) == nil {
		t.Fatalf("expected respawn %d ticks after death", wait)
	}
}

func TestFallingIntoFreezeFreezes(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(func(m *collision.Map) {
		row(m, 6, collision.TileFreeze)
	}), Deps{})
	c := joinAndSpawn(t, w)

	for i := 0; i < 100 && c.FreezeTime() == 0; i++ {
		w.Tick()
	}
	if c.FreezeTime() <= 0 {
		t.Fatalf("expected the character to freeze on landing")
	}
	if !c.IsInFreeze() {
		w.Tick()
		if !c.IsInFreeze() {
			t.Fatalf("expected in-freeze flag while standing in freeze")
		}
	}
}

func TestFastMoverHitsTilesItCrosses(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(func(m *collision.Map) {
		row(m, 3, collision.TileFreeze)
	}), Deps{})
	c := joinAndSpawn(t, w)
	c.Core().Vel = geom.V(0, 40)

	for i := 0; i < 4 && c.FreezeTime() == 0; i++ {
		w.Tick()
		cell := int(c.Pos()[1]) / collision.TileSize
		if cell == 3 && c.FreezeTime() == 0 {
			t.Fatalf("expected freeze once inside the freeze row")
		}
	}
	if c.FreezeTime() <= 0 {
		t.Fatalf("expected a fast mover to freeze on a row it crossed, pos %v", c.Pos())
	}
}

func TestDeepFreezeIgnoresUnfreeze(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(func(m *collision.Map) {
		row(m, 3, collision.TileDFreeze)
		row(m, 6, collision.TileUnfreeze)
	}), Deps{})
	c := joinAndSpawn(t, w)

	for i := 0; i < 100; i++ {
		w.Tick()
	}
	if !c.DeepFrozen() {
		t.Fatalf("expected deep freeze to survive the unfreeze row")
	}
	if c.FreezeTime() <= 0 {
		t.Fatalf("expected a deep frozen character to stay frozen")
	}
}

func TestDeepUnfreezeEndsDeepFreeze(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(func(m *collision.Map) {
		row(m, 3, collision.TileDFreeze)
		row(m, 6, collision.TileDUnfreeze)
	}), Deps{})
	c := joinAndSpawn(t, w)

	for i := 0; i < 100; i++ {
		w.Tick()
	}
	if c.DeepFrozen() {
		t.Fatalf("expected deep unfreeze to end the deep freeze")
	}
}

func teleportShaft(typ uint8, outs ...[2]int) *collision.Map {
	return shaft(func(m *collision.Map) {
		for x := 1; x < m.Width()-1; x++ {
			m.SetTele(x, 5, typ, 1)
		}
		for _, out := range outs {
			m.SetTele(out[0], out[1], collision.TileTeleOut, 1)
		}
	})
}

// fallUntilTeleported ticks until the character leaves column 2 and
// returns its velocity right after the jump.
func fallUntilTeleported(t *testing.T, w *World, c *Character) geom.Vec2 {
	t.Helper()
	for i := 0; i < 100; i++ {
		w.Tick()
		if c.Core().Pos[0] != collision.CellCenter(2, 1)[0] {
			return c.Core().Vel
		}
	}
	t.Fatalf("expected the character to be teleported, pos %v", c.Core().Pos)
	return geom.Vec2{}
}

func TestPlainTeleportKeepsVelocity(t *testing.T) {
	w := newTestWorld(t, Config{}, teleportShaft(collision.TileTeleIn, [2]int{7, 2}), Deps{})
	c := joinAndSpawn(t, w)

	vel := fallUntilTeleported(t, w, c)
	if c.Core().Pos != collision.CellCenter(7, 2) {
		t.Fatalf("expected exit position, got %v", c.Core().Pos)
	}
	if vel[1] <= 0 {
		t.Fatalf("expected falling velocity to be kept, got %v", vel)
	}
}

func TestEvilTeleportStopsCharacter(t *testing.T) {
	w := newTestWorld(t, Config{}, teleportShaft(collision.TileTeleInEvil, [2]int{7, 2}), Deps{})
	c := joinAndSpawn(t, w)

	vel := fallUntilTeleported(t, w, c)
	if c.Core().Pos != collision.CellCenter(7, 2) {
		t.Fatalf("expected exit position, got %v", c.Core().Pos)
	}
	if vel != (geom.Vec2{}) {
		t.Fatalf("expected evil teleport to zero velocity, got %v", vel)
	}
}

func TestTeleportExitIsDeterministicPerSeed(t *testing.T) {
	exits := [][2]int{{5, 1}, {6, 1}, {7, 1}, {8, 1}}
	run := func(seed string) geom.Vec2 {
		w := newTestWorld(t, Config{Seed: seed}, teleportShaft(collision.TileTeleIn, exits...), Deps{})
		c := joinAndSpawn(t, w)
		fallUntilTeleported(t, w, c)
		return c.Core().Pos
	}
	a, b := run("race"), run("race")
	if a != b {
		t.Fatalf("expected equal exits for equal seeds, got %v and %v", a, b)
	}
}

func TestSuperIgnoresTeleporters(t *testing.T) {
	w := newTestWorld(t, Config{}, teleportShaft(collision.TileTeleIn, [2]int{7, 2}), Deps{})
	c := joinAndSpawn(t, w)
	if err := w.SetSuper(0, true); err != nil {
		t.Fatalf("SetSuper returned error: %v", err)
	}
	for i := 0; i < 100; i++ {
		w.Tick()
	}
	if c.Core().Pos[0] != collision.CellCenter(2, 1)[0] {
		t.Fatalf("expected super character to pass the teleporter, got %v", c.Core().Pos)
	}
}

func switchFreezeShaft() *collision.Map {
	return shaft(func(m *collision.Map) {
		for x := 1; x < m.Width()-1; x++ {
			m.SetSwitch(x, 4, collision.TileFreeze, 1, 2)
		}
	})
}

func TestSwitchFreezeFollowsRegister(t *testing.T) {
	w := newTestWorld(t, Config{}, switchFreezeShaft(), Deps{})
	c := joinAndSpawn(t, w)
	for i := 0; i < 100 && c.FreezeTime() == 0; i++ {
		w.Tick()
	}
	if c.FreezeTime() <= 0 || c.FreezeTime() > 2*DefaultTickSpeed {
		t.Fatalf("expected a two second freeze from an active switch, got %d", c.FreezeTime())
	}

	w = newTestWorld(t, Config{}, switchFreezeShaft(), Deps{})
	c = joinAndSpawn(t, w)
	w.Switches().Trigger(1, 0, switches.Close, 0, w.Tick64(), DefaultTickSpeed)
	for i := 0; i < 100; i++ {
		w.Tick()
	}
	if c.FreezeTime() != 0 {
		t.Fatalf("expected no freeze through a closed switch, got %d", c.FreezeTime())
	}
}

func TestZoneMessagesAndTuningNotices(t *testing.T) {
	m := shaft(func(m *collision.Map) {
		m.SetTune(2, 1, 1)
	})
	cfg := Config{Zones: []tuning.ZoneConfig{{Zone: 1, EnterMessage: `Welcome\nto zone one`}}}
	w := newTestWorld(t, cfg, m, Deps{})
	c := joinAndSpawn(t, w)
	if c.TuneZone() != 1 {
		t.Fatalf("expected zone 1 at spawn, got %d", c.TuneZone())
	}

	var chat []string
	tuned := false
	for _, n := range w.DrainNotices() {
		switch n.Kind {
		case NoticeChat:
			chat = append(chat, n.Message)
		case NoticeTuning:
			tuned = tuned || n.Zone == 1
		}
	}
	if len(chat) != 2 || chat[0] != "Welcome" || chat[1] != "to zone one" {
		t.Fatalf("expected the enter message split in two lines, got %q", chat)
	}
	if !tuned {
		t.Fatalf("expected a tuning notice for zone 1")
	}
	if len(w.DrainNotices()) != 0 {
		t.Fatalf("expected drained notices to be gone")
	}
}

func TestSnapIDsAreReleasedWithGrace(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(nil), Deps{})
	c := joinAndSpawn(t, w)
	id := c.SnapID()
	c.Die(0, WeaponSelf)

	next, err := w.SnapIDs().NewID()
	if err != nil {
		t.Fatalf("NewID returned error: %v", err)
	}
	if next == id {
		t.Fatalf("expected a freed id to wait out its grace period")
	}
}
