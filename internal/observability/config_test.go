package observability

import "testing"

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv(t *testing.T) {
	cfg, err := FromEnv(Config{}, lookupFrom(map[string]string{EnvPprofTrace: "true"}))
	if err != nil || !cfg.EnablePprofTrace {
		t.Fatalf("expected pprof to be enabled, got %+v err=%v", cfg, err)
	}

	cfg, err = FromEnv(Config{EnablePprofTrace: true}, lookupFrom(nil))
	if err != nil || !cfg.EnablePprofTrace {
		t.Fatalf("expected an unset variable to keep the default, got %+v err=%v", cfg, err)
	}

	if _, err := FromEnv(Config{}, lookupFrom(map[string]string{EnvPprofTrace: "maybe"})); err == nil {
		t.Fatalf("expected an invalid value to fail")
	}
}
