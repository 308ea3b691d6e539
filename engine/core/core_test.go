package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestEventSystemStopsAtFirstHandler(t *testing.T) {
	es := NewEventSystem()
	var calls []string
	es.Register(EVENT_CODE_KEY_PRESSED, func(EventContext) bool {
		calls = append(calls, "first")
		return true
	})
	es.Register(EVENT_CODE_KEY_PRESSED, func(EventContext) bool {
		calls = append(calls, "second")
		return false
	})

	if !es.Fire(EventContext{Type: EVENT_CODE_KEY_PRESSED}) {
		t.Fatal("Fire: got false, want true")
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Fatalf("calls: got %v, want [first]", calls)
	}
}

func TestEventSystemUnregister(t *testing.T) {
	es := NewEventSystem()
	n := 0
	id := es.Register(EVENT_CODE_FILE_DROPPED, func(EventContext) bool {
		n++
		return false
	})
	es.Fire(EventContext{Type: EVENT_CODE_FILE_DROPPED})
	if !es.Unregister(EVENT_CODE_FILE_DROPPED, id) {
		t.Fatal("Unregister: got false, want true")
	}
	es.Fire(EventContext{Type: EVENT_CODE_FILE_DROPPED})
	if n != 1 {
		t.Fatalf("handler calls: got %d, want 1", n)
	}
	if es.Unregister(EVENT_CODE_FILE_DROPPED, id) {
		t.Fatal("second Unregister: got true, want false")
	}
}

func TestInputKeyEdges(t *testing.T) {
	es := NewEventSystem()
	var pressed []KeyCode
	es.Register(EVENT_CODE_KEY_PRESSED, func(ctx EventContext) bool {
		pressed = append(pressed, ctx.Data.(*KeyEvent).KeyCode)
		return false
	})
	in := NewInput(es)

	in.ProcessKey(KEY_S, true)
	in.ProcessKey(KEY_S, true)
	if !in.IsKeyPressed(KEY_S) {
		t.Fatal("IsKeyPressed before Update: got false, want true")
	}
	in.Update()
	if in.IsKeyPressed(KEY_S) {
		t.Fatal("IsKeyPressed after Update: got true, want false")
	}
	if !in.IsKeyDown(KEY_S) {
		t.Fatal("IsKeyDown: got false, want true")
	}
	if len(pressed) != 1 {
		t.Fatalf("pressed events: got %d, want 1", len(pressed))
	}
}

func TestInputWheelAccumulatesPerFrame(t *testing.T) {
	in := NewInput(nil)
	in.ProcessMouseWheel(1)
	in.ProcessMouseWheel(2)
	if got := in.WheelDelta(); got != 3 {
		t.Fatalf("WheelDelta: got %v, want 3", got)
	}
	in.Update()
	if got := in.WheelDelta(); got != 0 {
		t.Fatalf("WheelDelta after Update: got %v, want 0", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LogLevelDebug},
		{" WARN ", LogLevelWarn},
		{"error", LogLevelError},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLogLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestErrorsWrap(t *testing.T) {
	err := fmt.Errorf("create texture: %w", ErrUpload)
	if !errors.Is(err, ErrUpload) {
		t.Fatal("errors.Is(ErrUpload): got false, want true")
	}
	if errors.Is(err, ErrCodec) {
		t.Fatal("errors.Is(ErrCodec): got true, want false")
	}
}

func TestMeasure(t *testing.T) {
	secs, err := Measure(func() error { return ErrCodec })
	if !errors.Is(err, ErrCodec) {
		t.Fatalf("Measure error: got %v, want %v", err, ErrCodec)
	}
	if secs < 0 {
		t.Fatalf("Measure seconds: got %v, want >= 0", secs)
	}
}

func TestFrameMetricsRollingAverage(t *testing.T) {
	m := NewFrameMetrics()
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.010)
	}
	if got := m.FrameTime(); got < 9.999 || got > 10.001 {
		t.Fatalf("FrameTime: got %v, want 10", got)
	}
	for i := 0; i < AVG_COUNT; i++ {
		m.Update(0.020)
	}
	if got := m.FrameTime(); got < 19.999 || got > 20.001 {
		t.Fatalf("FrameTime: got %v, want 20", got)
	}
	// 60 frames took 900ms, one second has not passed yet.
	if got := m.FPS(); got != 0 {
		t.Fatalf("FPS: got %v, want 0", got)
	}
	// The 64th frame crosses one second.
	for i := 0; i < 4; i++ {
		m.Update(0.030)
	}
	if got := m.FPS(); got != 63 {
		t.Fatalf("FPS: got %v, want 63", got)
	}
}
