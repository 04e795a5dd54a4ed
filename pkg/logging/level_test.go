package logging

import "testing"

func TestNameToLevelRoundTrip(t *testing.T) {
	cases := map[string]Level{
		"disabled": LevelDisabled,
		"error":    LevelError,
		"warn":     LevelWarn,
		"info":     LevelInfo,
		"debug":    LevelDebug,
	}
	for name, want := range cases {
		got, ok := NameToLevel(name)
		if !ok {
			t.Errorf("NameToLevel(%q) reported invalid, want valid", name)
			continue
		}
		if got != want {
			t.Errorf("NameToLevel(%q) = %v, want %v", name, got, want)
		}
		if got.String() != name {
			t.Errorf("Level(%v).String() = %q, want %q", got, got.String(), name)
		}
	}
}

func TestNameToLevelInvalid(t *testing.T) {
	if _, ok := NameToLevel("verbose"); ok {
		t.Error("expected unrecognised level name to report invalid")
	}
}

func TestLevelOrdering(t *testing.T) {
	if !(LevelDisabled < LevelError && LevelError < LevelWarn && LevelWarn < LevelInfo && LevelInfo < LevelDebug) {
		t.Error("expected level constants to be strictly ordered")
	}
}
