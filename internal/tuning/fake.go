package tuning

// Fake tuning bits: per-character exceptions the client has to be told so its
// prediction matches the server.
const (
	FakeFreeze = 1 << iota
	FakeSolo
	FakeNoJump
	FakeNoColl
	FakeNoHook
	FakeJetpack
	FakeNoHammer
)

// Effective returns the table a client with the given fake bits receives.
func Effective(p Params, fake int) Params {
	if fake&(FakeSolo|FakeNoColl) != 0 {
		p.PlayerCollision = 0
	}
	if fake&(FakeSolo|FakeNoHook) != 0 {
		p.PlayerHooking = 0
	}
	if fake&FakeNoJump != 0 {
		p.GroundJumpImpulse = 0
	}
	if fake&FakeJetpack == 0 {
		p.JetpackStrength = 0
	}
	if fake&FakeNoHammer != 0 {
		p.HammerStrength = 0
	}
	return p
}
