package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/components"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

var DEFAULT_CLEAR_COLOR = math.NewVec4(0.1, 0.1, 0.1, 1)

type LoopConfig struct {
	ClearColor math.Vec4
	Viewport   *components.ViewportController
	UI         UI
	// OnSourceLoaded is called with the path of every source file that
	// became the current document.
	OnSourceLoaded func(path string)
}

// PresentationLoop drives one frame at a time: pending uploads first, then
// the UI pass, then recording and presenting the side-by-side view.
type PresentationLoop struct {
	rc        *renderer.Context
	scheduler *renderer.FrameScheduler
	uploader  *renderer.SubresourceUploader
	analyzer  *Analyzer
	viewport  *components.ViewportController
	ui        UI

	pending    PendingSlot
	source     *renderer.TextureSlot
	compressed *renderer.TextureSlot

	clearColor     math.Vec4
	onSourceLoaded func(path string)

	clock     *core.Clock
	lastTime  float64
	metrics   *core.FrameMetrics
	lastSaved string

	resizeMutex   sync.Mutex
	resizeWidth   uint32
	resizeHeight  uint32
	resizePending bool
	suspended     bool

	quit bool
}

func NewPresentationLoop(rc *renderer.Context, analyzer *Analyzer, cfg LoopConfig) (*PresentationLoop, error) {
	scheduler, err := renderer.NewFrameScheduler(rc)
	if err != nil {
		return nil, err
	}
	if cfg.Viewport == nil {
		cfg.Viewport = components.NewViewportController()
	}
	if cfg.UI == nil {
		cfg.UI = NoUI{}
	}
	if cfg.ClearColor == (math.Vec4{}) {
		cfg.ClearColor = DEFAULT_CLEAR_COLOR
	}
	pl := &PresentationLoop{
		rc:             rc,
		scheduler:      scheduler,
		uploader:       renderer.NewSubresourceUploader(),
		analyzer:       analyzer,
		viewport:       cfg.Viewport,
		ui:             cfg.UI,
		source:         renderer.NewTextureSlot("source"),
		compressed:     renderer.NewTextureSlot("compressed"),
		clearColor:     cfg.ClearColor,
		onSourceLoaded: cfg.OnSourceLoaded,
		clock:          core.NewClock(),
		metrics:        core.NewFrameMetrics(),
	}
	pl.clock.Start()
	return pl, nil
}

func (pl *PresentationLoop) Analyzer() *Analyzer {
	return pl.analyzer
}

func (pl *PresentationLoop) Scheduler() *renderer.FrameScheduler {
	return pl.scheduler
}

func (pl *PresentationLoop) Viewport() *components.ViewportController {
	return pl.viewport
}

func (pl *PresentationLoop) SourceTexture() renderer.Texture {
	return pl.source.Texture()
}

func (pl *PresentationLoop) CompressedTexture() renderer.Texture {
	return pl.compressed.Texture()
}

func (pl *PresentationLoop) Metrics() *core.FrameMetrics {
	return pl.metrics
}

func (pl *PresentationLoop) QuitRequested() bool {
	return pl.quit
}

func (pl *PresentationLoop) RequestQuit() {
	pl.quit = true
}

func (pl *PresentationLoop) Suspended() bool {
	return pl.suspended
}

// Submit queues r, replacing any request that has not been processed yet.
// Settings still waiting there carry over when r brings none.
func (pl *PresentationLoop) Submit(r *Request) {
	if r == nil {
		return
	}
	pl.pending.Update(func(waiting *Request) *Request {
		if waiting == nil {
			return r
		}
		if r.Settings == nil && waiting.Settings != nil {
			r.Settings = waiting.Settings
		}
		if waiting.Path != "" || waiting.Image != nil {
			core.LogDebug("Pending request for %s replaced by %s.", waiting, r)
		}
		return r
	})
}

// SubmitSettings changes settings on the next iteration. A load that is
// already waiting keeps its source and picks up the new settings.
func (pl *PresentationLoop) SubmitSettings(s Settings) {
	pl.pending.Update(func(waiting *Request) *Request {
		if waiting == nil {
			return &Request{Settings: &s}
		}
		waiting.Settings = &s
		return waiting
	})
}

// HasPending reports whether a request is waiting for the next iteration.
func (pl *PresentationLoop) HasPending() bool {
	return !pl.pending.IsEmpty()
}

// RequestResize applies at the next frame boundary.
func (pl *PresentationLoop) RequestResize(width, height uint32) {
	pl.resizeMutex.Lock()
	defer pl.resizeMutex.Unlock()
	pl.resizeWidth, pl.resizeHeight = width, height
	pl.resizePending = true
}

func (pl *PresentationLoop) applyResize(ctx context.Context) error {
	pl.resizeMutex.Lock()
	w, h, pending := pl.resizeWidth, pl.resizeHeight, pl.resizePending
	pl.resizePending = false
	pl.resizeMutex.Unlock()
	if !pending {
		return nil
	}
	if w == 0 || h == 0 {
		if !pl.suspended {
			core.LogDebug("Surface minimised, rendering suspended.")
		}
		pl.suspended = true
		return nil
	}
	cw, ch := pl.rc.Swapchain.Extent()
	pl.suspended = false
	if cw == w && ch == h {
		return nil
	}
	return pl.scheduler.Resize(ctx, w, h)
}

/**
 * @brief Consumes the pending request, if any.
 *
 * Codec failures are left on the analyzer's sticky error flag and upload
 * failures leave the affected slot empty; neither is returned. Only frame
 * operation failures, which are fatal, come back as errors.
 */
func (pl *PresentationLoop) ProcessPending(ctx context.Context) error {
	r := pl.pending.Take()
	if r == nil {
		return nil
	}
	pl.analyzer.IsProcessing = true
	defer func() { pl.analyzer.IsProcessing = false }()

	previewChanged := false
	if r.Settings != nil {
		// A failed rebuild keeps the old preview; a load below may still succeed.
		previewChanged, _ = pl.analyzer.ApplySettings(*r.Settings)
	}

	// A failed load keeps the old source, but a preview rebuilt from merged
	// settings above still has to reach the GPU.
	sourceChanged := false
	switch {
	case r.Path != "":
		sourceChanged = pl.analyzer.LoadTexture(r.Path) == nil
	case r.Image != nil:
		sourceChanged = pl.analyzer.LoadImage(r.Image) == nil
	}

	if sourceChanged {
		if err := pl.upload(ctx, pl.source, pl.analyzer.Source()); err != nil {
			return err
		}
	}
	if sourceChanged || previewChanged {
		if err := pl.upload(ctx, pl.compressed, pl.analyzer.Compressed()); err != nil {
			return err
		}
	}
	if sourceChanged && r.Path != "" && pl.onSourceLoaded != nil {
		pl.onSourceLoaded(r.Path)
	}
	return nil
}

// upload copies img into slot through a one-off command list and waits for
// the device before the staging buffer is released.
func (pl *PresentationLoop) upload(ctx context.Context, slot *renderer.TextureSlot, img *metadata.Image) error {
	list, err := pl.scheduler.BeginUpload(ctx)
	if err != nil {
		return err
	}
	texture, staging, uploadErr := pl.uploader.Upload(pl.rc.Device, list, img)
	submitErr := pl.scheduler.SubmitUpload(ctx)
	if staging != nil {
		staging.Release()
	}
	if submitErr != nil {
		if texture != nil {
			texture.Release()
		}
		return submitErr
	}
	if uploadErr != nil {
		core.LogError("Upload of %s texture failed: %s", slot.Name(), uploadErr)
		slot.Release()
		return nil
	}
	slot.Replace(texture)
	return nil
}

func (pl *PresentationLoop) describe() *FrameDescription {
	w, h := pl.rc.Swapchain.Extent()
	desc := &FrameDescription{
		Settings:            pl.analyzer.Settings(),
		ResolvedFormat:      pl.analyzer.ResolvedFormat().String(),
		Metrics:             pl.analyzer.Metrics(),
		Source:              pl.source.Texture(),
		Compressed:          pl.compressed.Texture(),
		Viewport:            pl.viewport.State(),
		SurfaceWidth:        w,
		SurfaceHeight:       h,
		HasImage:            pl.analyzer.HasImage(),
		HasLastError:        pl.analyzer.HasLastError,
		LastError:           pl.analyzer.LastError(),
		IsProcessing:        pl.analyzer.IsProcessing || pl.HasPending(),
		LastLoadSeconds:     pl.analyzer.LastLoadSeconds,
		LastCompressSeconds: pl.analyzer.LastCompressSeconds,
		LastSaved:           pl.lastSaved,
	}
	if doc := pl.analyzer.Document(); doc != nil {
		desc.Path = doc.Path
	}
	desc.FPS, desc.FrameTime = pl.metrics.Frame()
	return desc
}

func (pl *PresentationLoop) handleIntents(in Intents) {
	if in.PanBegin {
		pl.viewport.BeginPan(in.Pointer)
	}
	pl.viewport.UpdatePan(in.Pointer)
	if in.PanEnd {
		pl.viewport.EndPan()
	}
	if in.WheelDelta != 0 {
		pl.viewport.Zoom(in.WheelDelta, in.Pointer)
	}
	if in.ResetView {
		pl.viewport.Reset()
	}
	if in.LoadPath != "" {
		pl.Submit(&Request{Path: in.LoadPath})
	}
	if in.NewSettings != nil {
		pl.SubmitSettings(*in.NewSettings)
	}
	if in.Save {
		if path, err := pl.analyzer.SaveCurrentAsDDS(); err == nil {
			pl.lastSaved = path
			core.LogInfo("Saved %s.", path)
		}
	}
	if in.Quit {
		pl.quit = true
	}
}

// Frame runs one loop iteration. A returned error is a frame operation
// failure and ends the session.
func (pl *PresentationLoop) Frame(ctx context.Context) error {
	pl.clock.Update()
	now := pl.clock.Elapsed()
	delta := now - pl.lastTime
	pl.lastTime = now

	if err := pl.applyResize(ctx); err != nil {
		return err
	}
	if err := pl.ProcessPending(ctx); err != nil {
		return err
	}
	if pl.suspended {
		return nil
	}

	if _, err := pl.scheduler.BeginFrame(ctx); err != nil {
		return err
	}
	pl.handleIntents(pl.ui.NewFrame(pl.describe()))

	w, h := pl.rc.Swapchain.Extent()
	pl.scheduler.RecordPresentationTransition()
	pl.scheduler.RecordClear(pl.clearColor)
	pl.scheduler.RecordUIDraw(Layout(w, h, pl.viewport.State(), pl.source.Texture(), pl.compressed.Texture(), pl.analyzer.Settings()))
	if err := pl.scheduler.EndFrame(); err != nil {
		return err
	}
	pl.metrics.Update(delta)
	return nil
}

// Run calls Frame until quit is requested, ctx ends or a frame fails. poll is
// called before every frame to pump platform events.
func (pl *PresentationLoop) Run(ctx context.Context, poll func()) error {
	for !pl.quit {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if poll != nil {
			poll()
		}
		if err := pl.Frame(ctx); err != nil {
			return fmt.Errorf("frame %d: %w", pl.scheduler.FrameCount(), err)
		}
	}
	return nil
}

// Shutdown waits for the device and releases every GPU object the loop owns.
func (pl *PresentationLoop) Shutdown(ctx context.Context) error {
	err := pl.scheduler.WaitForIdle(ctx)
	pl.source.Release()
	pl.compressed.Release()
	pl.scheduler.Release()
	uploads, bytes := pl.uploader.Stats()
	core.LogInfo("Presentation loop shut down after %d frames, %d uploads (%d staging bytes).", pl.scheduler.FrameCount(), uploads, bytes)
	return err
}
