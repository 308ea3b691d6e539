package views

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spaghettifunk/texlab/engine/codec"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
	"github.com/spaghettifunk/texlab/engine/viewer"
)

const ALPHA_WEIGHT_STEP float32 = 0.25

// TitleSetter is the part of the window the HUD writes to.
type TitleSetter interface {
	SetTitle(title string)
}

// HUD is the keyboard and mouse front end. It reads the core input state
// once per frame and reports what it shows through the window title.
type HUD struct {
	input     *core.Input
	window    TitleSetter
	baseTitle string
	printer   *message.Printer
	title     string
}

func NewHUD(input *core.Input, window TitleSetter, baseTitle string) *HUD {
	return &HUD{
		input:     input,
		window:    window,
		baseTitle: baseTitle,
		printer:   message.NewPrinter(language.English),
	}
}

func (h *HUD) NewFrame(desc *viewer.FrameDescription) viewer.Intents {
	in := h.input
	x, y := in.MousePosition()
	intents := viewer.Intents{
		Pointer:    math.NewVec2(x, y),
		WheelDelta: in.WheelDelta(),
		PanBegin:   in.IsButtonDown(core.BUTTON_LEFT) && !in.WasButtonDown(core.BUTTON_LEFT),
		PanEnd:     !in.IsButtonDown(core.BUTTON_LEFT) && in.WasButtonDown(core.BUTTON_LEFT),
		Save:       in.IsKeyPressed(core.KEY_S),
		ResetView:  in.IsKeyPressed(core.KEY_R),
		Quit:       in.IsKeyPressed(core.KEY_ESCAPE),
	}

	s := desc.Settings
	changed := true
	switch {
	case in.IsKeyPressed(core.KEY_F):
		step := 1
		if in.IsShiftDown() {
			step = -1
		}
		s.Format = codec.NextCandidate(s.Format, step)
	case in.IsKeyPressed(core.KEY_Q):
		s.Quality = (s.Quality + 1) % codec.QualityCount
	case in.IsKeyPressed(core.KEY_M):
		s.GenerateMipmaps = !s.GenerateMipmaps
	case in.IsKeyPressed(core.KEY_K):
		s.MipFilter = (s.MipFilter + 1) % codec.MipFilterCount
	case in.IsKeyPressed(core.KEY_G):
		s.SRGB = !s.SRGB
	case in.IsKeyPressed(core.KEY_N):
		s.IsNormalMap = !s.IsNormalMap
	case in.IsKeyPressed(core.KEY_Z):
		s.ReconstructZ = !s.ReconstructZ
	case in.IsKeyPressed(core.KEY_LBRACKET):
		s.AlphaWeight -= ALPHA_WEIGHT_STEP
	case in.IsKeyPressed(core.KEY_RBRACKET):
		s.AlphaWeight += ALPHA_WEIGHT_STEP
	case in.IsKeyPressed(core.KEY_C):
		s.ChannelView = (s.ChannelView + 1) % metadata.ChannelViewCount
	default:
		changed = false
	}
	if changed {
		s = s.Normalized()
		intents.NewSettings = &s
	}

	if title := h.Title(desc); title != h.title {
		h.title = title
		if h.window != nil {
			h.window.SetTitle(title)
		}
	}
	return intents
}

// Title renders the frame description as a one-line window title.
func (h *HUD) Title(desc *viewer.FrameDescription) string {
	p := h.printer
	parts := []string{h.baseTitle}
	if !desc.HasImage {
		parts = append(parts, "drop an image to start")
	} else {
		m := desc.Metrics
		parts = append(parts,
			filepath.Base(desc.Path),
			p.Sprintf("%s %s mips:%v %s", desc.ResolvedFormat, desc.Settings.Quality, desc.Settings.GenerateMipmaps, desc.Settings.MipFilter),
			p.Sprintf("%d → %d bytes (%.2f:1)", m.SourceBytes, m.CompressedBytes, m.CompressionRatio),
			p.Sprintf("load %.0f ms, compress %.0f ms", desc.LastLoadSeconds*1000, desc.LastCompressSeconds*1000),
			p.Sprintf("view %s α%.2f", desc.Settings.ChannelView, desc.Settings.AlphaWeight),
		)
		if desc.Path == "" {
			parts[1] = "in-memory image"
		}
	}
	parts = append(parts, p.Sprintf("zoom %.2fx", desc.Viewport.Zoom), p.Sprintf("%.0f FPS", desc.FPS))
	if desc.IsProcessing {
		parts = append(parts, "processing")
	}
	if desc.HasLastError {
		parts = append(parts, "ERROR")
	}
	return strings.Join(parts, " | ")
}
