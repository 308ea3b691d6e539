package viewer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/texlab/engine/codec"
	"github.com/spaghettifunk/texlab/engine/core"
	vmath "github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/components"
	"github.com/spaghettifunk/texlab/engine/renderer/headless"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

func gradientImage(t *testing.T, w, h uint32) *metadata.Image {
	t.Helper()
	img, err := metadata.NewImage(metadata.ImageMetadata{
		Width: w, Height: h, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1,
	})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	sr := &img.Subresources[0]
	for y := uint32(0); y < h; y++ {
		row := sr.Row(y)
		for x := uint32(0); x < w; x++ {
			row[x*4+0] = byte(x)
			row[x*4+1] = byte(y)
			row[x*4+2] = byte(x ^ y)
			row[x*4+3] = 255
		}
	}
	return img
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 4), G: uint8(y * 4), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

func newLoop(t *testing.T, ui UI) (*headless.Device, *PresentationLoop) {
	t.Helper()
	dev, err := headless.New(headless.DefaultOptions())
	if err != nil {
		t.Fatalf("headless.New: %v", err)
	}
	rc, err := renderer.NewContext(dev, dev.Swapchain())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	pl, err := NewPresentationLoop(rc, NewAnalyzer(codec.NewNative(), DefaultSettings()), LoopConfig{UI: ui})
	if err != nil {
		t.Fatalf("NewPresentationLoop: %v", err)
	}
	t.Cleanup(func() {
		if err := pl.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
		rc.Release()
	})
	return dev, pl
}

func TestDefaultSettingsCompressSmallerThanSource(t *testing.T) {
	a := NewAnalyzer(codec.NewNative(), DefaultSettings())
	if err := a.LoadImage(gradientImage(t, 256, 256)); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	c := a.Compressed()
	if c == nil || len(c.Subresources) == 0 {
		t.Fatalf("no compressed image")
	}
	if c.Metadata.Format != metadata.PixelFormatBC7Unorm {
		t.Fatalf("format: got %s, want %s", c.Metadata.Format, metadata.PixelFormatBC7Unorm)
	}
	if c.Metadata.MipLevels != 9 {
		t.Fatalf("mip levels: got %d, want 9", c.Metadata.MipLevels)
	}
	m := a.Metrics()
	if m.SourceBytes != 256*256*4 {
		t.Fatalf("source bytes: got %d, want %d", m.SourceBytes, 256*256*4)
	}
	if m.CompressedBytes == 0 || m.CompressedBytes >= m.SourceBytes {
		t.Fatalf("compressed bytes: got %d, source %d", m.CompressedBytes, m.SourceBytes)
	}
	if m.CompressionRatio <= 1 {
		t.Fatalf("ratio: got %f, want > 1", m.CompressionRatio)
	}
	if a.HasLastError {
		t.Fatalf("unexpected error flag: %v", a.LastError())
	}
}

func TestSRGBSubstitutesTargetFormat(t *testing.T) {
	s := DefaultSettings()
	s.Format = metadata.PixelFormatBC1Unorm
	s.SRGB = true
	s.GenerateMipmaps = false
	a := NewAnalyzer(codec.NewNative(), s)
	if got := a.ResolvedFormat(); got != metadata.PixelFormatBC1UnormSrgb {
		t.Fatalf("resolved format: got %s, want %s", got, metadata.PixelFormatBC1UnormSrgb)
	}
	if err := a.LoadImage(gradientImage(t, 64, 64)); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if got := a.Compressed().Metadata.Format; got != metadata.PixelFormatBC1UnormSrgb {
		t.Fatalf("compressed format: got %s, want %s", got, metadata.PixelFormatBC1UnormSrgb)
	}
	// Formats without an sRGB variant pass through.
	s.Format = metadata.PixelFormatBC4Unorm
	if _, err := a.ApplySettings(s); err != nil {
		t.Fatalf("ApplySettings: %v", err)
	}
	if got := a.ResolvedFormat(); got != metadata.PixelFormatBC4Unorm {
		t.Fatalf("resolved format: got %s, want %s", got, metadata.PixelFormatBC4Unorm)
	}
}

func TestSaveWithoutImageFails(t *testing.T) {
	dir := t.TempDir()
	a := NewAnalyzer(codec.NewNative(), DefaultSettings())
	path, err := a.SaveCurrentAsDDS()
	if !errors.Is(err, core.ErrNoImage) {
		t.Fatalf("save error: got %v, want ErrNoImage", err)
	}
	if path != "" {
		t.Fatalf("path: got %q, want empty", path)
	}
	if !a.HasLastError {
		t.Fatalf("error flag not set")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("files written: %d", len(entries))
	}
}

func TestSaveWritesNextToSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "brick.png")
	writePNG(t, src, 32, 16)

	s := DefaultSettings()
	s.GenerateMipmaps = false
	a := NewAnalyzer(codec.NewNative(), s)
	if err := a.LoadTexture(src); err != nil {
		t.Fatalf("LoadTexture: %v", err)
	}
	path, err := a.SaveCurrentAsDDS()
	if err != nil {
		t.Fatalf("SaveCurrentAsDDS: %v", err)
	}
	if want := filepath.Join(dir, "brick.dds"); path != want {
		t.Fatalf("path: got %s, want %s", path, want)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	// DDS header with DX10 extension plus 8x4 BC7 blocks.
	if want := int64(148 + 8*4*16); info.Size() != want {
		t.Fatalf("size: got %d, want %d", info.Size(), want)
	}
}

func TestApplySettingsRebuildsOnlyWhenNeeded(t *testing.T) {
	a := NewAnalyzer(codec.NewNative(), DefaultSettings())
	s := a.Settings()
	s.ChannelView = metadata.ChannelViewA
	changed, err := a.ApplySettings(s)
	if err != nil || changed {
		t.Fatalf("apply without image: changed %v, err %v", changed, err)
	}
	if err := a.LoadImage(gradientImage(t, 16, 16)); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	first := a.Compressed()

	s.ChannelView = metadata.ChannelViewR
	if changed, _ := a.ApplySettings(s); changed {
		t.Fatalf("channel view change rebuilt the preview")
	}
	if a.Compressed() != first {
		t.Fatalf("compressed image replaced")
	}

	s.Quality = codec.QualityBest
	s.AlphaWeight = 9
	if changed, _ := a.ApplySettings(s); !changed {
		t.Fatalf("quality change did not rebuild")
	}
	if got := a.Settings().AlphaWeight; got != MAX_ALPHA_WEIGHT {
		t.Fatalf("alpha weight: got %f, want %f", got, MAX_ALPHA_WEIGHT)
	}
}

func TestPendingSlotLastWriteWins(t *testing.T) {
	var p PendingSlot
	var replaced []*Request
	set := func(r *Request) {
		p.Update(func(waiting *Request) *Request {
			replaced = append(replaced, waiting)
			return r
		})
	}
	set(&Request{Path: "a.png"})
	set(&Request{Path: "b.png"})
	if replaced[0] != nil {
		t.Fatalf("first update replaced %v", replaced[0])
	}
	if r := replaced[1]; r == nil || r.Path != "a.png" {
		t.Fatalf("replaced: got %v, want a.png", r)
	}
	if r := p.Take(); r == nil || r.Path != "b.png" {
		t.Fatalf("taken: got %v, want b.png", r)
	}
	if r := p.Take(); r != nil {
		t.Fatalf("second Take: got %v, want nil", r)
	}
}

func TestSubmitKeepsWaitingSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 16, 16)

	dev, pl := newLoop(t, nil)
	ctx := context.Background()
	s := pl.Analyzer().Settings()
	s.Format = metadata.PixelFormatBC1Unorm
	pl.SubmitSettings(s)
	// A reload of the same file lands before the settings were processed.
	pl.Submit(&Request{Path: path})
	if err := pl.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	a := pl.Analyzer()
	if got := a.Document().Path; got != path {
		t.Fatalf("document: got %s, want %s", got, path)
	}
	if got := a.Settings().Format; got != metadata.PixelFormatBC1Unorm {
		t.Fatalf("settings format: got %v, want %v", got, metadata.PixelFormatBC1Unorm)
	}
	if got := pl.CompressedTexture().Desc().Format; got != metadata.PixelFormatBC1Unorm {
		t.Fatalf("compressed texture format: got %v, want %v", got, metadata.PixelFormatBC1Unorm)
	}

	// Explicit settings on the newer request win.
	pl.SubmitSettings(s)
	bc7 := s
	bc7.Format = metadata.PixelFormatBC7Unorm
	pl.Submit(&Request{Path: path, Settings: &bc7})
	if err := pl.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got := pl.CompressedTexture().Desc().Format; got != metadata.PixelFormatBC7Unorm {
		t.Fatalf("compressed texture format: got %v, want %v", got, metadata.PixelFormatBC7Unorm)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestLoopProcessesOnlyNewestRequest(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.png")
	second := filepath.Join(dir, "second.png")
	writePNG(t, first, 8, 8)
	writePNG(t, second, 12, 4)

	dev, pl := newLoop(t, nil)
	var loaded []string
	pl.onSourceLoaded = func(p string) { loaded = append(loaded, p) }

	pl.Submit(&Request{Path: first})
	pl.Submit(&Request{Path: second})
	if err := pl.Frame(context.Background()); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got := pl.Analyzer().Document().Path; got != second {
		t.Fatalf("document: got %s, want %s", got, second)
	}
	if len(loaded) != 1 || loaded[0] != second {
		t.Fatalf("loaded: got %v, want [%s]", loaded, second)
	}
	if got := pl.SourceTexture().Desc().Width; got != 12 {
		t.Fatalf("source width: got %d, want 12", got)
	}
	if pl.HasPending() {
		t.Fatalf("request left pending")
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestCodecFailureKeepsTextures(t *testing.T) {
	_, pl := newLoop(t, nil)
	pl.Submit(&Request{Image: gradientImage(t, 32, 32)})
	if err := pl.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	source, compressed := pl.SourceTexture(), pl.CompressedTexture()
	if source == nil || compressed == nil {
		t.Fatalf("textures missing after load")
	}

	pl.Submit(&Request{Path: filepath.Join(t.TempDir(), "missing.png")})
	if err := pl.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	a := pl.Analyzer()
	if !a.HasLastError || !errors.Is(a.LastError(), core.ErrCodec) {
		t.Fatalf("error flag: %v, err %v", a.HasLastError, a.LastError())
	}
	if pl.SourceTexture() != source || pl.CompressedTexture() != compressed {
		t.Fatalf("textures changed after codec failure")
	}
	if a.Document().Path != "" {
		t.Fatalf("document replaced by failed load")
	}

	// Unsupported target: the settings are kept, the preview is not.
	s := a.Settings()
	s.Format = metadata.PixelFormatBC6HUF16
	pl.SubmitSettings(s)
	if err := pl.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if !a.HasLastError {
		t.Fatalf("error flag not set for BC6H")
	}
	if pl.CompressedTexture() != compressed {
		t.Fatalf("compressed texture changed after failed rebuild")
	}
}

func TestFailedLoadStillUploadsMergedSettings(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.png")
	writePNG(t, first, 16, 16)

	dev, pl := newLoop(t, nil)
	ctx := context.Background()
	pl.Submit(&Request{Path: first})
	if err := pl.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got := pl.CompressedTexture().Desc().Format; got != metadata.PixelFormatBC7Unorm {
		t.Fatalf("compressed format: got %v, want %v", got, metadata.PixelFormatBC7Unorm)
	}

	pl.Submit(&Request{Path: filepath.Join(dir, "missing.png")})
	s := pl.Analyzer().Settings()
	s.Format = metadata.PixelFormatBC1Unorm
	pl.SubmitSettings(s)
	if err := pl.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	a := pl.Analyzer()
	if !a.HasLastError {
		t.Fatalf("error flag not set for the missing file")
	}
	if got := a.Document().Path; got != first {
		t.Fatalf("document: got %s, want %s", got, first)
	}
	want := a.Compressed().Metadata.Format
	if want != metadata.PixelFormatBC1Unorm {
		t.Fatalf("analyzer format: got %v, want %v", want, metadata.PixelFormatBC1Unorm)
	}
	if got := pl.CompressedTexture().Desc().Format; got != want {
		t.Fatalf("compressed texture format: got %v, want %v", got, want)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestUploadFailureDrawsPlaceholder(t *testing.T) {
	dev, pl := newLoop(t, nil)
	dev.SetFailures(true, false, false)
	pl.Submit(&Request{Image: gradientImage(t, 16, 16)})

	index := dev.Swapchain().CurrentBackBufferIndex()
	if err := pl.Frame(context.Background()); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if pl.SourceTexture() != nil || pl.CompressedTexture() != nil {
		t.Fatalf("texture present after failed upload")
	}
	if pl.Analyzer().HasLastError {
		t.Fatalf("upload failure set the codec error flag")
	}
	cmds := dev.Swapchain().Buffer(index).Commands()
	if len(cmds) != 3 {
		t.Fatalf("commands: got %d, want 3", len(cmds))
	}
	if cmds[0].Kind != headless.CommandClear || cmds[1].Kind != headless.CommandFill || cmds[2].Kind != headless.CommandFill {
		t.Fatalf("command kinds: %v", cmds)
	}
	if dev.LiveTextures() != 0 {
		t.Fatalf("live textures: got %d, want 0", dev.LiveTextures())
	}

	// The next load works again and replaces the placeholders.
	dev.SetFailures(false, false, false)
	pl.Submit(&Request{Image: gradientImage(t, 16, 16)})
	index = dev.Swapchain().CurrentBackBufferIndex()
	if err := pl.Frame(context.Background()); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	cmds = dev.Swapchain().Buffer(index).Commands()
	if len(cmds) != 3 || cmds[1].Kind != headless.CommandDraw || cmds[2].Kind != headless.CommandDraw {
		t.Fatalf("commands after recovery: %v", cmds)
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

type scriptedUI struct {
	frames []Intents
	seen   []*FrameDescription
}

func (u *scriptedUI) NewFrame(desc *FrameDescription) Intents {
	u.seen = append(u.seen, desc)
	if len(u.frames) == 0 {
		return Intents{}
	}
	in := u.frames[0]
	u.frames = u.frames[1:]
	return in
}

func TestIntentsDriveViewport(t *testing.T) {
	ui := &scriptedUI{frames: []Intents{
		{WheelDelta: 5, Pointer: vmath.NewVec2(100, 100)},
		{PanBegin: true, Pointer: vmath.NewVec2(10, 10)},
		{Pointer: vmath.NewVec2(30, 5)},
		{PanEnd: true, Pointer: vmath.NewVec2(30, 5)},
		{Quit: true},
	}}
	_, pl := newLoop(t, ui)
	ctx := context.Background()

	if err := pl.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	v := pl.Viewport().State()
	if v.Zoom != 1.5 || !v.Pan.Compare(vmath.NewVec2(-50, -50), 1e-4) {
		t.Fatalf("after zoom: got zoom %f pan %v, want 1.5 (-50,-50)", v.Zoom, v.Pan)
	}
	for i := 0; i < 3; i++ {
		if err := pl.Frame(ctx); err != nil {
			t.Fatalf("Frame: %v", err)
		}
	}
	v = pl.Viewport().State()
	if v.IsPanning || !v.Pan.Compare(vmath.NewVec2(-30, -55), 1e-4) {
		t.Fatalf("after pan: got pan %v panning %v, want (-30,-55)", v.Pan, v.IsPanning)
	}
	if err := pl.Run(ctx, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !pl.QuitRequested() {
		t.Fatalf("quit not requested")
	}
	if got := len(ui.seen); got != 5 {
		t.Fatalf("frames seen by UI: got %d, want 5", got)
	}
	if ui.seen[0].HasImage || ui.seen[0].SurfaceWidth != 1280 {
		t.Fatalf("first description: %+v", ui.seen[0])
	}
}

func TestResizeAppliesAtFrameBoundary(t *testing.T) {
	dev, pl := newLoop(t, nil)
	ctx := context.Background()
	sc := dev.Swapchain()

	pl.RequestResize(0, 0)
	presents := sc.Presents()
	if err := pl.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if !pl.Suspended() || sc.Presents() != presents {
		t.Fatalf("minimised frame presented")
	}

	pl.RequestResize(640, 480)
	if w, h := sc.Extent(); w != 1280 || h != 720 {
		t.Fatalf("resized before the frame boundary: %dx%d", w, h)
	}
	if err := pl.Frame(ctx); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if w, h := sc.Extent(); w != 640 || h != 480 {
		t.Fatalf("extent: got %dx%d, want 640x480", w, h)
	}
	if pl.Suspended() || sc.Presents() != presents+1 {
		t.Fatalf("frame not presented after restore")
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func TestLayoutClipsToPanels(t *testing.T) {
	dev, err := headless.New(headless.DefaultOptions())
	if err != nil {
		t.Fatalf("headless.New: %v", err)
	}
	tex, err := dev.CreateTexture(metadata.TextureDesc{
		Width: 256, Height: 256, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1,
	}, metadata.ResourceStateShaderResource)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	left, right := PanelRects(800, 600)
	if left != vmath.NewRect(0, 0, 400, 600) || right != vmath.NewRect(400, 0, 400, 600) {
		t.Fatalf("panels: got %v %v", left, right)
	}

	view := components.ViewportState{Zoom: 2, Pan: vmath.NewVec2(-100, -50)}
	items := Layout(800, 600, view, tex, nil, DefaultSettings())
	if len(items) != 2 {
		t.Fatalf("items: got %d, want 2", len(items))
	}
	src := items[0]
	if src.Dest != left {
		t.Fatalf("left dest: got %v, want %v", src.Dest, left)
	}
	sx, sy := float32(256)/788, float32(256)/1200
	if !near(src.Source.Min.X, 100*sx) || !near(src.Source.Max.X, 500*sx) ||
		!near(src.Source.Min.Y, 50*sy) || !near(src.Source.Max.Y, 650*sy) {
		t.Fatalf("left source rect: got %v", src.Source)
	}
	cmp := items[1]
	if cmp.Texture != nil || cmp.Dest != right || cmp.Placeholder != compressedPlaceholder {
		t.Fatalf("right item: %+v", cmp)
	}

	// Panned completely out of its panel.
	view.Pan = vmath.NewVec2(1000, 0)
	items = Layout(800, 600, view, tex, tex, DefaultSettings())
	for i, item := range items {
		if !item.Dest.Empty() {
			t.Fatalf("item %d dest not empty: %v", i, item.Dest)
		}
	}
}

func TestImageRectKeepsMinimumWidth(t *testing.T) {
	r := ImageRect(vmath.NewRect(0, 0, 4, 20), components.ViewportState{Zoom: 1})
	if r.Width() != MIN_IMAGE_EXTENT || r.Height() != 20 {
		t.Fatalf("rect: got %v", r)
	}
}
