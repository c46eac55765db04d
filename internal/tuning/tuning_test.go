package tuning

import "testing"

func TestEffectiveAppliesFakeBits(t *testing.T) {
	base := Default()
	got := Effective(base, FakeNoColl|FakeNoJump)
	if got.PlayerCollision != 0 || got.GroundJumpImpulse != 0 {
		t.Fatalf("expected collision and jump zeroed, got %+v", got)
	}
	if got.PlayerHooking != base.PlayerHooking {
		t.Fatalf("expected hooking untouched, got %v", got.PlayerHooking)
	}
	if got.JetpackStrength != 0 {
		t.Fatalf("expected jetpack hidden without the jetpack bit, got %v", got.JetpackStrength)
	}
	if withJetpack := Effective(base, FakeJetpack); withJetpack.JetpackStrength != base.JetpackStrength {
		t.Fatalf("expected jetpack strength kept, got %v", withJetpack.JetpackStrength)
	}
	if solo := Effective(base, FakeSolo); solo.PlayerCollision != 0 || solo.PlayerHooking != 0 {
		t.Fatalf("expected solo to hide collision and hooking, got %+v", solo)
	}
}

func TestZonesOverridesAndMessages(t *testing.T) {
	custom := Default()
	custom.Gravity = 0.25
	zones := NewZones(Default(), []ZoneConfig{
		{Zone: 3, Params: custom, EnterMessage: "low gravity", LeaveMessage: "bye"},
		{Zone: 0, Params: Params{}},
		{Zone: 999, Params: Params{}},
	})
	if zones.Get(3).Gravity != 0.25 {
		t.Fatalf("expected zone 3 override, got %v", zones.Get(3).Gravity)
	}
	if zones.Global().Gravity != Default().Gravity {
		t.Fatalf("expected global zone untouched")
	}
	enter, leave := zones.Messages(3)
	if enter != "low gravity" || leave != "bye" {
		t.Fatalf("unexpected messages %q %q", enter, leave)
	}
	if zones.Get(-1).Gravity != Default().Gravity {
		t.Fatalf("expected default params for an invalid zone")
	}
}

func TestFireDelay(t *testing.T) {
	p := Default()
	if p.FireDelay(WeaponLaser) != 800 || p.FireDelay(WeaponHammer) != 125 {
		t.Fatalf("unexpected fire delays")
	}
	if p.FireDelay(42) != 0 {
		t.Fatalf("expected 0 for unknown weapon")
	}
}
