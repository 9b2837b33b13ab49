package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNew_IsNop(t *testing.T) {
	l := New()
	if l.Log == nil {
		t.Fatal("Log must not be nil")
	}
	if l.Log.Core().Enabled(zap.ErrorLevel) {
		t.Error("default logger should be a no-op")
	}
}

func TestInit_Levels(t *testing.T) {
	cases := []struct {
		level   string
		enabled zap.AtomicLevel
		wantErr bool
	}{
		{level: "Info", enabled: zap.NewAtomicLevelAt(zap.InfoLevel)},
		{level: "debug", enabled: zap.NewAtomicLevelAt(zap.DebugLevel)},
		{level: "WARN", enabled: zap.NewAtomicLevelAt(zap.WarnLevel)},
		{level: "loud", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			l := New()
			err := l.Init(tc.level)
			if tc.wantErr {
				if err == nil || !strings.Contains(err.Error(), "parse log level") {
					t.Fatalf("expected parse error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Init(%q) failed: %v", tc.level, err)
			}
			want := tc.enabled.Level()
			if !l.Log.Core().Enabled(want) {
				t.Errorf("level %v should be enabled", want)
			}
			if want > zap.DebugLevel && l.Log.Core().Enabled(want-1) {
				t.Errorf("level %v should be disabled", want-1)
			}
		})
	}
}

func TestInitConsole(t *testing.T) {
	l := New()
	if err := l.InitConsole("warn"); err != nil {
		t.Fatalf("InitConsole failed: %v", err)
	}
	if l.Log.Core().Enabled(zap.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
}
