package world

import (
	"testing"

	"toutuo/server/internal/antibot"
	"toutuo/server/internal/collision"
	"toutuo/server/internal/events"
	"toutuo/server/internal/gamecore"
	"toutuo/server/internal/geom"
	"toutuo/server/internal/snap"
	"toutuo/server/internal/tuning"
)

// arena is a low room with a spawn point in each upper corner. Row 3 is
// the row characters stand in.
func arena() *collision.Map {
	return collision.MustParseASCII(
		"############",
		"#S........S#",
		"#..........#",
		"#..........#",
		"############",
	)
}

// joinPair seats clients 0 and 1 and ticks until both characters spawned.
func joinPair(t *testing.T, w *World) (*Character, *Character) {
	t.Helper()
	for _, id := range []int{0, 1} {
		if _, err := w.Join(id); err != nil {
			t.Fatalf("Join(%d) returned error: %v", id, err)
		}
	}
	for i := 0; i < 2; i++ {
		w.Tick()
	}
	a, b := w.Character(0), w.Character(1)
	if a == nil || b == nil {
		t.Fatalf("expected both characters two ticks after joining")
	}
	return a, b
}

// place moves c to pos at rest.
func place(c *Character, pos geom.Vec2) {
	c.core.Pos = pos
	c.core.Vel = geom.Vec2{}
	c.pos = pos
	c.prevPos = pos
}

// soundsFor counts the sounds of the current event log by id, as seen by
// clientID.
func soundsFor(t *testing.T, w *World, clientID int) map[int]int {
	t.Helper()
	b := snap.NewBuilder(0, 0)
	w.Events().Snap(clientID, snap.View{ShowAll: true}, b)
	counts := make(map[int]int)
	for _, item := range b.Items() {
		if item.Kind != snap.ItemSound {
			continue
		}
		var sound snap.Sound
		if err := snap.Decode(item.Data, &sound); err != nil {
			t.Fatalf("failed to decode sound: %v", err)
		}
		counts[int(sound.SoundID)]++
	}
	return counts
}

// trigger drives the fire press counter of client 0 through direct input.
type trigger struct {
	t  *testing.T
	w  *World
	in gamecore.Input
}

// newTrigger sends a first idle input: the first direct input never fires.
func newTrigger(t *testing.T, w *World, aim gamecore.Input) *trigger {
	t.Helper()
	tr := &trigger{t: t, w: w, in: aim}
	tr.send()
	return tr
}

func (tr *trigger) send() {
	tr.t.Helper()
	if err := tr.w.SetInput(0, tr.in, true); err != nil {
		tr.t.Fatalf("SetInput returned error: %v", err)
	}
}

// press releases the button when it is held, then presses it.
func (tr *trigger) press() {
	tr.t.Helper()
	if tr.in.Fire&1 != 0 {
		tr.in.Fire++
		tr.send()
	}
	tr.in.Fire++
	tr.send()
}

func tickN(w *World, n int) {
	for i := 0; i < n; i++ {
		w.Tick()
	}
}

func TestCountPressesWrapsTheCounter(t *testing.T) {
	cases := []struct {
		prev, cur, want int
	}{
		{0, 0, 0},
		{0, 1, 1},
		{1, 2, 0},
		{0, 5, 3},
		{62, 1, 2},
		{63, 0, 0},
	}
	for _, tc := range cases {
		if got := countPresses(tc.prev, tc.cur); got != tc.want {
			t.Fatalf("countPresses(%d, %d): expected %d, got %d", tc.prev, tc.cur, tc.want, got)
		}
	}
}

func TestReloadTimerBlocksShotsUntilItRunsOut(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(nil), Deps{})
	c := joinAndSpawn(t, w)
	tickN(w, 60)
	w.PostSnap()

	tr := newTrigger(t, w, gamecore.Input{})
	tr.press()
	if got := soundsFor(t, w, 0)[events.SoundGunFire]; got != 1 {
		t.Fatalf("expected one gun shot, got %d", got)
	}
	reload := int(tuning.Default().GunFireDelay) * DefaultTickSpeed / 1000
	if c.reloadTimer != reload {
		t.Fatalf("expected reload timer %d, got %d", reload, c.reloadTimer)
	}
	if c.attackTick != int(w.Tick64()) {
		t.Fatalf("expected attack tick %d, got %d", w.Tick64(), c.attackTick)
	}

	tr.press()
	if got := soundsFor(t, w, 0)[events.SoundGunFire]; got != 1 {
		t.Fatalf("expected a press during reload to be ignored, got %d shots", got)
	}

	tickN(w, reload+1)
	if c.reloadTimer != 0 {
		t.Fatalf("expected the reload timer to run out, got %d", c.reloadTimer)
	}
	tr.press()
	if got := soundsFor(t, w, 0)[events.SoundGunFire]; got != 2 {
		t.Fatalf("expected a second shot after reloading, got %d", got)
	}
}

func TestSemiAutoNeedsNewPressWhileFullAutoKeepsFiring(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(nil), Deps{})
	joinAndSpawn(t, w)
	tickN(w, 60)
	w.PostSnap()

	tr := newTrigger(t, w, gamecore.Input{})
	tr.press()
	tickN(w, 40)
	if got := soundsFor(t, w, 0)[events.SoundGunFire]; got != 1 {
		t.Fatalf("expected a held gun trigger to fire once, got %d", got)
	}

	w = newTestWorld(t, Config{}, shaft(nil), Deps{})
	c := joinAndSpawn(t, w)
	c.GiveWeapon(tuning.WeaponGrenade, false)
	c.SetWeapon(tuning.WeaponGrenade)
	tickN(w, 60)
	w.PostSnap()

	tr = newTrigger(t, w, gamecore.Input{})
	tr.press()
	reload := int(tuning.Default().GrenadeFireDelay) * DefaultTickSpeed / 1000
	tickN(w, 3*(reload+1))
	if got := soundsFor(t, w, 0)[events.SoundGrenadeFire]; got < 3 {
		t.Fatalf("expected a held grenade trigger to keep firing, got %d shots", got)
	}
}

func TestFiniteAmmoRunsDryAndUnlimitedStays(t *testing.T) {
	w := newTestWorld(t, Config{}, shaft(nil), Deps{})
	c := joinAndSpawn(t, w)
	tickN(w, 60)

	tr := newTrigger(t, w, gamecore.Input{})
	tr.press()
	if got := c.Ammo(tuning.WeaponGun); got != -1 {
		t.Fatalf("expected unlimited gun ammo to stay -1, got %d", got)
	}
	tickN(w, 10)

	c.GiveWeaponAmmo(tuning.WeaponGun, 2)
	w.PostSnap()
	for want := 1; want >= 0; want-- {
		tr.press()
		if got := c.Ammo(tuning.WeaponGun); got != want {
			t.Fatalf("expected %d shots left, got %d", want, got)
		}
		tickN(w, 10)
	}
	if got := soundsFor(t, w, 0)[events.SoundGunFire]; got != 2 {
		t.Fatalf("expected two shots, got %d", got)
	}

	projectiles := len(w.projectiles)
	tr.press()
	sounds := soundsFor(t, w, 0)
	if sounds[events.SoundGunFire] != 2 || len(w.projectiles) != projectiles {
		t.Fatalf("expected an empty gun not to fire, got %d shots", sounds[events.SoundGunFire])
	}
	if sounds[events.SoundWeaponNoAmmo] != 1 {
		t.Fatalf("expected the no ammo sound, got %d", sounds[events.SoundWeaponNoAmmo])
	}
	if want := noAmmoReloadMillis * DefaultTickSpeed / 1000; c.reloadTimer != want {
		t.Fatalf("expected reload timer %d after a dry fire, got %d", want, c.reloadTimer)
	}

	c.GiveWeaponAmmo(tuning.WeaponNinja, 3)
	if got := c.Ammo(tuning.WeaponNinja); got != -1 {
		t.Fatalf("expected ninja to ignore the ammo count, got %d", got)
	}
}

func TestNinjaHitsEachVictimOncePerDash(t *testing.T) {
	w := newTestWorld(t, Config{}, arena(), Deps{})
	a, b := joinPair(t, w)
	tickN(w, 30)

	a.GiveNinja()
	place(a, collision.CellCenter(2, 3))
	place(b, collision.CellCenter(4, 3))
	w.PostSnap()

	tr := newTrigger(t, w, gamecore.Input{TargetX: 1})
	tr.press()
	if a.core.Ninja.CurrentMoveTime == 0 {
		t.Fatalf("expected the press to start a dash")
	}
	tickN(w, ninjaMoveTime*DefaultTickSpeed/1000+2)

	if got := soundsFor(t, w, 0)[events.SoundNinjaHit]; got != 1 {
		t.Fatalf("expected one ninja hit, got %d", got)
	}
	if a.numObjectsHit != 1 || a.hitObjects[0] != b.ID() {
		t.Fatalf("expected client %d recorded once, got %v", b.ID(), a.hitObjects[:a.numObjectsHit])
	}
	if a.Pos()[0] <= b.Pos()[0] {
		t.Fatalf("expected the dash to pass the victim, attacker %v victim %v", a.Pos(), b.Pos())
	}
}

func TestHammerUnfreezesItsVictim(t *testing.T) {
	w := newTestWorld(t, Config{}, arena(), Deps{})
	a, b := joinPair(t, w)
	tickN(w, 30)

	a.SetWeapon(tuning.WeaponHammer)
	place(a, collision.CellCenter(3, 3))
	place(b, collision.CellCenter(3, 3).Add(geom.V(gamecore.PhysSize, 0)))
	if !b.FreezeFor(3) {
		t.Fatalf("expected the victim to freeze")
	}

	tr := newTrigger(t, w, gamecore.Input{TargetX: 1})
	tr.press()
	if b.FreezeTime() != 0 {
		t.Fatalf("expected the hammer to unfreeze its victim, got %d", b.FreezeTime())
	}
	want := int(tuning.Default().HammerHitFireDelay * DefaultTickSpeed / 1000)
	if a.reloadTimer != want {
		t.Fatalf("expected the hit fire delay %d, got %d", want, a.reloadTimer)
	}
	if b.core.Vel[1] >= 0 {
		t.Fatalf("expected the victim to be knocked up, got %v", b.core.Vel)
	}
}

type hookRecorder struct {
	antibot.Nop
	ground, player int
}

func (r *hookRecorder) OnHookAttach(_ int, player bool) {
	if player {
		r.player++
	} else {
		r.ground++
	}
}

func TestHookPressReportsAttachKind(t *testing.T) {
	rec := &hookRecorder{}
	w := newTestWorld(t, Config{}, shaft(nil), Deps{Antibot: rec})
	joinAndSpawn(t, w)
	tickN(w, 60)

	if err := w.SetInput(0, gamecore.Input{Hook: 1}, false); err != nil {
		t.Fatalf("SetInput returned error: %v", err)
	}
	tickN(w, 10)
	if rec.ground != 1 || rec.player != 0 {
		t.Fatalf("expected one non-player attach for one press, got ground=%d player=%d", rec.ground, rec.player)
	}

	rec = &hookRecorder{}
	w = newTestWorld(t, Config{}, arena(), Deps{Antibot: rec})
	a, b := joinPair(t, w)
	tickN(w, 30)
	place(a, collision.CellCenter(3, 3))
	place(b, collision.CellCenter(6, 3))
	w.PostSnap()

	if err := w.SetInput(0, gamecore.Input{Hook: 1, TargetX: 1}, false); err != nil {
		t.Fatalf("SetInput returned error: %v", err)
	}
	w.Tick()
	if a.core.HookedPlayer() != b.ID() {
		t.Fatalf("expected client 0 to hook client %d, got %d", b.ID(), a.core.HookedPlayer())
	}
	if rec.player != 1 || rec.ground != 0 {
		t.Fatalf("expected one player attach, got ground=%d player=%d", rec.ground, rec.player)
	}
	if got := soundsFor(t, w, b.ID())[events.SoundHookAttachPlayer]; got != 1 {
		t.Fatalf("expected the hooked player to hear the attach, got %d", got)
	}
	if got := soundsFor(t, w, a.ID())[events.SoundHookAttachPlayer]; got != 0 {
		t.Fatalf("expected the hooker not to get its own attach sound, got %d", got)
	}
}
