package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"wsncollect/pkg/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "debug", "": "info", "WARNING": "warn", "error": "error"}
	for in, want := range cases {
		lvl, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if lvl.String() != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, lvl, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestSetupLoggerWritesJSONFile(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	path := filepath.Join(t.TempDir(), "sub", "node.log")
	lg, err := SetupLogger(config.LogConfig{Level: "info", Format: "json", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	lg.Debug("hidden")
	lg.Info("route updated", zap.String("parent", "01:00"))
	_ = lg.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := string(b)
	if strings.Contains(s, "hidden") {
		t.Fatalf("debug line written at info level: %s", s)
	}
	if !strings.Contains(s, `"msg":"route updated"`) || !strings.Contains(s, `"parent":"01:00"`) {
		t.Fatalf("unexpected log contents: %s", s)
	}
}

func TestSetupLoggerRejectsBadLevel(t *testing.T) {
	if _, err := SetupLogger(config.LogConfig{Level: "chatty"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNodeLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	NodeLogger(zap.New(core), "01:00", true).Info("up")
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	ctx := entries[0].ContextMap()
	if ctx["addr"] != "01:00" || ctx["role"] != "sink" {
		t.Fatalf("fields = %v", ctx)
	}
}
