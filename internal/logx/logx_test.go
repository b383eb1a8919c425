package logx

import (
	"testing"

	"go.uber.org/zap"
)

func TestGetScope_FollowsInit(t *testing.T) {
	t.Cleanup(func() { Init("info", "console") })
	scope := GetScope("test")

	Init("debug", "json")
	if !scope.base().Core().Enabled(zap.DebugLevel) {
		t.Fatal("scope logger should pick up the reconfigured level")
	}

	Init("error", "text")
	if scope.base().Core().Enabled(zap.InfoLevel) {
		t.Fatal("info should be disabled after switching to error level")
	}
	scope.Error("still logged")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "debug", "WARNING": "warn", "error": "error", "": "info", "bogus": "info"}
	for in, want := range cases {
		if got := parseLevel(in).String(); got != want {
			t.Fatalf("parseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
