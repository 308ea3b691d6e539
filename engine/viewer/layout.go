package viewer

import (
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/components"
)

const (
	PANEL_MARGIN     float32 = 6
	MIN_IMAGE_EXTENT float32 = 10
)

var (
	sourcePlaceholder     = math.NewVec4(0.25, 0.18, 0.18, 1)
	compressedPlaceholder = math.NewVec4(0.18, 0.18, 0.25, 1)
)

// PanelRects splits the surface into the source (left) and compressed
// (right) panels.
func PanelRects(width, height uint32) (math.Rect, math.Rect) {
	half := float32(width) / 2
	h := float32(height)
	return math.NewRect(0, 0, half, h), math.NewRect(half, 0, half, h)
}

// ImageRect is where the full image lands inside panel under the viewport.
func ImageRect(panel math.Rect, view components.ViewportState) math.Rect {
	w := max(MIN_IMAGE_EXTENT, panel.Width()-PANEL_MARGIN) * view.Zoom
	h := panel.Height() * view.Zoom
	return math.NewRect(panel.Min.X, panel.Min.Y, w, h).Translate(view.Pan)
}

// layoutPanel clips the image to its panel and derives the texel rect that
// maps onto the visible part. A nil texture yields a placeholder item.
func layoutPanel(panel math.Rect, view components.ViewportState, tex renderer.Texture, placeholder math.Vec4, s Settings) renderer.DrawItem {
	full := ImageRect(panel, view)
	visible := full.Intersect(panel)
	item := renderer.DrawItem{Dest: visible, Placeholder: placeholder, Channel: s.ChannelView}
	if tex == nil || visible.Empty() {
		return item
	}
	desc := tex.Desc()
	sx := float32(desc.Width) / full.Width()
	sy := float32(desc.Height) / full.Height()
	item.Texture = tex
	item.Source = math.Rect{
		Min: math.NewVec2((visible.Min.X-full.Min.X)*sx, (visible.Min.Y-full.Min.Y)*sy),
		Max: math.NewVec2((visible.Max.X-full.Min.X)*sx, (visible.Max.Y-full.Min.Y)*sy),
	}
	return item
}

// Layout builds the draw list for both panels.
func Layout(width, height uint32, view components.ViewportState, source, compressed renderer.Texture, s Settings) []renderer.DrawItem {
	left, right := PanelRects(width, height)
	return []renderer.DrawItem{
		layoutPanel(left, view, source, sourcePlaceholder, s),
		layoutPanel(right, view, compressed, compressedPlaceholder, s),
	}
}
