package views

import (
	"strings"
	"testing"

	"github.com/spaghettifunk/texlab/engine/codec"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/components"
	"github.com/spaghettifunk/texlab/engine/viewer"
)

type fakeWindow struct {
	titles []string
}

func (w *fakeWindow) SetTitle(title string) {
	w.titles = append(w.titles, title)
}

func newDescription() *viewer.FrameDescription {
	return &viewer.FrameDescription{
		Settings: viewer.DefaultSettings(),
		Viewport: components.ViewportState{Zoom: 1},
	}
}

func TestHUDKeysChangeSettings(t *testing.T) {
	input := core.NewInput(nil)
	hud := NewHUD(input, nil, "TexLab")
	desc := newDescription()

	if in := hud.NewFrame(desc); in.NewSettings != nil {
		t.Fatalf("settings changed without input")
	}

	input.ProcessKey(core.KEY_F, true)
	in := hud.NewFrame(desc)
	if in.NewSettings == nil {
		t.Fatalf("F did not change settings")
	}
	if want := codec.NextCandidate(desc.Settings.Format, 1); in.NewSettings.Format != want {
		t.Fatalf("format: got %s, want %s", in.NewSettings.Format, want)
	}
	input.Update()

	// Held keys do not repeat.
	if in := hud.NewFrame(desc); in.NewSettings != nil {
		t.Fatalf("held key changed settings again")
	}
	input.ProcessKey(core.KEY_F, false)
	input.Update()

	input.ProcessKey(core.KEY_LSHIFT, true)
	input.ProcessKey(core.KEY_F, true)
	in = hud.NewFrame(desc)
	if want := codec.NextCandidate(desc.Settings.Format, -1); in.NewSettings == nil || in.NewSettings.Format != want {
		t.Fatalf("shift+F: got %v, want %s", in.NewSettings, want)
	}
	input.ProcessKey(core.KEY_LSHIFT, false)
	input.ProcessKey(core.KEY_F, false)
	input.Update()

	desc.Settings.AlphaWeight = viewer.MAX_ALPHA_WEIGHT
	input.ProcessKey(core.KEY_RBRACKET, true)
	in = hud.NewFrame(desc)
	if in.NewSettings == nil || in.NewSettings.AlphaWeight != viewer.MAX_ALPHA_WEIGHT {
		t.Fatalf("alpha weight not clamped: %v", in.NewSettings)
	}
	input.ProcessKey(core.KEY_RBRACKET, false)
	input.Update()

	input.ProcessKey(core.KEY_Q, true)
	in = hud.NewFrame(desc)
	if in.NewSettings == nil || in.NewSettings.Quality != codec.QualityBest {
		t.Fatalf("quality: got %v, want Best", in.NewSettings)
	}
}

func TestHUDMouseAndActions(t *testing.T) {
	input := core.NewInput(nil)
	hud := NewHUD(input, nil, "TexLab")
	desc := newDescription()

	input.ProcessMouseMove(40, 60)
	input.ProcessButton(core.BUTTON_LEFT, true)
	input.ProcessMouseWheel(2)
	input.ProcessKey(core.KEY_S, true)
	in := hud.NewFrame(desc)
	if !in.PanBegin || in.PanEnd {
		t.Fatalf("pan: begin %v end %v", in.PanBegin, in.PanEnd)
	}
	if in.WheelDelta != 2 || in.Pointer.X != 40 || in.Pointer.Y != 60 {
		t.Fatalf("pointer: got %v wheel %f", in.Pointer, in.WheelDelta)
	}
	if !in.Save || in.Quit {
		t.Fatalf("actions: save %v quit %v", in.Save, in.Quit)
	}
	input.Update()

	input.ProcessButton(core.BUTTON_LEFT, false)
	input.ProcessKey(core.KEY_ESCAPE, true)
	in = hud.NewFrame(desc)
	if in.PanBegin || !in.PanEnd || in.WheelDelta != 0 {
		t.Fatalf("release: %+v", in)
	}
	if !in.Quit {
		t.Fatalf("escape did not quit")
	}
}

func TestHUDTitle(t *testing.T) {
	window := &fakeWindow{}
	hud := NewHUD(core.NewInput(nil), window, "TexLab")
	desc := newDescription()
	hud.NewFrame(desc)
	hud.NewFrame(desc)
	if len(window.titles) != 1 {
		t.Fatalf("title updates: got %d, want 1", len(window.titles))
	}
	if !strings.Contains(window.titles[0], "drop an image") {
		t.Fatalf("empty title: %s", window.titles[0])
	}

	desc.HasImage = true
	desc.Path = "/tmp/brick.png"
	desc.ResolvedFormat = "BC7_UNORM"
	desc.Metrics = viewer.Metrics{SourceBytes: 262144, CompressedBytes: 65536, CompressionRatio: 4}
	desc.HasLastError = true
	title := hud.Title(desc)
	for _, want := range []string{"brick.png", "BC7_UNORM", "262,144", "65,536", "4.00:1", "ERROR"} {
		if !strings.Contains(title, want) {
			t.Fatalf("title %q missing %q", title, want)
		}
	}
}
