package viewer

import (
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/components"
)

// FrameDescription is everything the UI collaborator may show for a frame.
type FrameDescription struct {
	Path           string
	Settings       Settings
	ResolvedFormat string
	Metrics        Metrics
	Source         renderer.Texture
	Compressed     renderer.Texture
	Viewport       components.ViewportState
	SurfaceWidth   uint32
	SurfaceHeight  uint32

	HasImage            bool
	HasLastError        bool
	LastError           error
	IsProcessing        bool
	LastLoadSeconds     float64
	LastCompressSeconds float64
	LastSaved           string
	FPS                 float64
	FrameTime           float64
}

// Intents is what the UI wants done after looking at a frame.
type Intents struct {
	WheelDelta float32
	Pointer    math.Vec2
	PanBegin   bool
	PanEnd     bool

	NewSettings *Settings
	LoadPath    string
	Save        bool
	ResetView   bool
	Quit        bool
}

// UI turns a frame description into user intents. Implementations must not
// block.
type UI interface {
	NewFrame(desc *FrameDescription) Intents
}

// NoUI never asks for anything.
type NoUI struct{}

func (NoUI) NewFrame(*FrameDescription) Intents {
	return Intents{}
}
