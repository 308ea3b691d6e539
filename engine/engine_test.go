package engine

import (
	"context"
	"testing"

	"github.com/spaghettifunk/texlab/engine/core"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig: %v", err)
	}
	return New(cfg)
}

func TestApplicationConfig(t *testing.T) {
	e := newTestEngine(t)
	if e.app.Name != DEFAULT_TITLE {
		t.Fatalf("name: got %q, want %q", e.app.Name, DEFAULT_TITLE)
	}
	if e.app.StartWidth != 1600 || e.app.StartHeight != 900 {
		t.Fatalf("size: got %dx%d, want 1600x900", e.app.StartWidth, e.app.StartHeight)
	}
	if e.Stage() != EngineStageUninitialized {
		t.Fatalf("stage: got %v, want %v", e.Stage(), EngineStageUninitialized)
	}
}

func TestRunRequiresInitialize(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Run(context.Background()); err == nil {
		t.Fatalf("expected Run to fail before Initialize")
	}
}

func TestEventsWithoutLoopAreIgnored(t *testing.T) {
	e := newTestEngine(t)
	if e.onFileDropped(core.EventContext{Type: core.EVENT_CODE_FILE_DROPPED, Data: &core.DropEvent{}}) {
		t.Fatalf("an empty drop should not be handled")
	}
	if e.onSourceChanged(core.EventContext{Type: core.EVENT_CODE_SOURCE_CHANGED, Data: &core.SystemEvent{}}) {
		t.Fatalf("a source change without paths should not be handled")
	}
	// No loop yet, so this must not panic.
	e.Open("missing.png")
}
