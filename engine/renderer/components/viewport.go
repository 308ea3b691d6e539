package components

import (
	"github.com/spaghettifunk/texlab/engine/math"
)

const (
	DEFAULT_ZOOM_SENSITIVITY float32 = 0.1
	DEFAULT_MIN_ZOOM         float32 = 1.0
	DEFAULT_MAX_ZOOM         float32 = 64.0
)

/**
 * @brief Pan/zoom state of the comparison view. Only ViewportController
 * mutates it; everyone else reads a copy.
 */
type ViewportState struct {
	/** @brief Current zoom factor, always inside [MinZoom, MaxZoom]. */
	Zoom float32
	/** @brief Screen-space offset applied to the drawn images. */
	Pan math.Vec2
	/** @brief Pointer position recorded by the last pan step. */
	LastPointer math.Vec2
	IsPanning   bool
}

// ImageToScreen maps an unzoomed image-space point onto the screen.
func (s ViewportState) ImageToScreen(p math.Vec2) math.Vec2 {
	return p.MulScalar(s.Zoom).Add(s.Pan)
}

// ScreenToImage is the inverse of ImageToScreen.
func (s ViewportState) ScreenToImage(p math.Vec2) math.Vec2 {
	return p.Sub(s.Pan).MulScalar(1 / s.Zoom)
}

type ViewportController struct {
	state       ViewportState
	sensitivity float32
	minZoom     float32
	maxZoom     float32
}

func NewViewportController() *ViewportController {
	return NewViewportControllerWithLimits(DEFAULT_ZOOM_SENSITIVITY, DEFAULT_MIN_ZOOM, DEFAULT_MAX_ZOOM)
}

func NewViewportControllerWithLimits(sensitivity, minZoom, maxZoom float32) *ViewportController {
	if sensitivity <= 0 {
		sensitivity = DEFAULT_ZOOM_SENSITIVITY
	}
	if minZoom <= 0 || maxZoom < minZoom {
		minZoom, maxZoom = DEFAULT_MIN_ZOOM, DEFAULT_MAX_ZOOM
	}
	vc := &ViewportController{
		sensitivity: sensitivity,
		minZoom:     minZoom,
		maxZoom:     maxZoom,
	}
	vc.Reset()
	return vc
}

func (vc *ViewportController) Reset() {
	vc.state = ViewportState{Zoom: vc.minZoom}
}

func (vc *ViewportController) State() ViewportState {
	return vc.state
}

// Zoom changes the zoom by wheelDelta*sensitivity and re-anchors the pan so
// the image point under pointer stays under pointer.
func (vc *ViewportController) Zoom(wheelDelta float32, pointer math.Vec2) {
	oldZoom := vc.state.Zoom
	newZoom := math.Clamp(oldZoom+wheelDelta*vc.sensitivity, vc.minZoom, vc.maxZoom)
	if newZoom == oldZoom {
		return
	}
	scale := newZoom / oldZoom
	vc.state.Pan = vc.state.Pan.Sub(pointer).MulScalar(scale).Add(pointer)
	vc.state.Zoom = newZoom
}

// BeginPan starts a drag. Calling it while already panning keeps the
// original reference point.
func (vc *ViewportController) BeginPan(pointer math.Vec2) {
	if vc.state.IsPanning {
		return
	}
	vc.state.IsPanning = true
	vc.state.LastPointer = pointer
}

func (vc *ViewportController) UpdatePan(pointer math.Vec2) {
	if !vc.state.IsPanning {
		return
	}
	vc.state.Pan = vc.state.Pan.Add(pointer.Sub(vc.state.LastPointer))
	vc.state.LastPointer = pointer
}

func (vc *ViewportController) EndPan() {
	vc.state.IsPanning = false
}
