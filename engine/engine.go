package engine

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/texlab/engine/assets"
	"github.com/spaghettifunk/texlab/engine/codec"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/platform"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/vulkan"
	"github.com/spaghettifunk/texlab/engine/viewer"
	"github.com/spaghettifunk/texlab/engine/views"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Everything has been released
	EngineStageShutdown
)

func (s Stage) String() string {
	switch s {
	case EngineStageInitializing:
		return "initializing"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	case EngineStageShutdown:
		return "shut down"
	default:
		return "uninitialized"
	}
}

type Engine struct {
	currentStage Stage
	config       *Config
	app          *ApplicationConfig

	events   *core.EventSystem
	input    *core.Input
	platform *platform.Platform
	device   *vulkan.Device
	rc       *renderer.Context
	loop     *viewer.PresentationLoop
	hud      *views.HUD
	watcher  *assets.SourceWatcher

	listeners []listener
}

type listener struct {
	code core.EventCode
	id   uint64
}

func New(cfg *Config) *Engine {
	events := core.NewEventSystem()
	input := core.NewInput(events)
	return &Engine{
		currentStage: EngineStageUninitialized,
		config:       cfg,
		app:          cfg.Application(),
		events:       events,
		input:        input,
		platform:     platform.New(events, input),
	}
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

/**
 * @brief Opens the window, brings up the Vulkan device and builds the
 * presentation loop on top of it.
 *
 * Any error wraps core.ErrDeviceInit and is fatal; whatever was created
 * before the failure is released by Shutdown.
 */
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	core.SetLogLevel(e.app.LogLevel)

	if err := e.platform.Startup(e.app.Name, e.app.StartWidth, e.app.StartHeight, e.app.Show); err != nil {
		return err
	}

	device, err := vulkan.New(e.platform.Window(), vulkan.Options{
		ApplicationName: e.app.Name,
		BufferCount:     e.config.Render.FrameCount,
		VSync:           e.config.Render.VSync,
		Validation:      e.config.Render.Validation,
	})
	if err != nil {
		return err
	}
	e.device = device

	if e.rc, err = renderer.NewContext(device, device.Swapchain()); err != nil {
		return err
	}

	settings, err := e.config.Settings.Resolve()
	if err != nil {
		return fmt.Errorf("analyzer settings: %w: %w", core.ErrDeviceInit, err)
	}
	analyzer := viewer.NewAnalyzer(codec.NewNative(), settings)
	e.hud = views.NewHUD(e.input, e.platform, e.app.Name)

	if e.app.WatchSource {
		if e.watcher, err = assets.NewSourceWatcher(e.onSourceRewritten); err != nil {
			// The viewer works without it.
			core.LogWarn("Source watching disabled: %s", err)
			e.watcher = nil
		}
	}

	e.loop, err = viewer.NewPresentationLoop(e.rc, analyzer, viewer.LoopConfig{
		ClearColor:     e.config.ClearColor(),
		Viewport:       e.config.NewViewportController(),
		UI:             e.hud,
		OnSourceLoaded: e.onSourceLoaded,
	})
	if err != nil {
		return fmt.Errorf("presentation loop: %w: %w", core.ErrDeviceInit, err)
	}

	e.register(core.EVENT_CODE_APPLICATION_QUIT, e.onQuit)
	e.register(core.EVENT_CODE_RESIZED, e.onResized)
	e.register(core.EVENT_CODE_FILE_DROPPED, e.onFileDropped)
	e.register(core.EVENT_CODE_SOURCE_CHANGED, e.onSourceChanged)

	e.currentStage = EngineStageInitialized
	core.LogInfo("Engine initialized on %s.", device.Name())
	return nil
}

func (e *Engine) register(code core.EventCode, fn core.FnOnEvent) {
	e.listeners = append(e.listeners, listener{code: code, id: e.events.Register(code, fn)})
}

// Open queues path as the next document, exactly like a dropped file.
func (e *Engine) Open(path string) {
	if e.loop != nil {
		e.loop.Submit(&viewer.Request{Path: path})
	}
}

// Run drives the presentation loop until the window closes, quit is
// requested or ctx ends. A frame operation failure is returned as is.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine is %s, not initialized", e.currentStage)
	}
	e.currentStage = EngineStageRunning

	err := e.loop.Run(ctx, func() {
		// Input state is rolled over before the window callbacks record the
		// next frame's transitions.
		e.input.Update()
		if !e.platform.PumpMessages() {
			e.loop.RequestQuit()
		}
	})
	if err != nil {
		core.LogError("Presentation loop stopped: %s", err)
	}
	return err
}

func (e *Engine) Shutdown(ctx context.Context) error {
	e.currentStage = EngineStageShuttingDown
	for _, l := range e.listeners {
		e.events.Unregister(l.code, l.id)
	}
	e.listeners = nil

	var err error
	if e.watcher != nil {
		if werr := e.watcher.Close(); werr != nil {
			core.LogWarn("Closing source watcher: %s", werr)
		}
		e.watcher = nil
	}
	if e.loop != nil {
		err = e.loop.Shutdown(ctx)
		e.loop = nil
	}
	if e.rc != nil {
		e.rc.Release()
		e.rc = nil
	}
	if e.device != nil {
		e.device.Release()
		e.device = nil
	}
	e.platform.Shutdown()
	e.events.Shutdown()
	e.currentStage = EngineStageShutdown
	return err
}

func (e *Engine) onQuit(context core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	if e.loop != nil {
		e.loop.RequestQuit()
	}
	return true
}

func (e *Engine) onResized(context core.EventContext) bool {
	se, ok := context.Data.(*core.SystemEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	core.LogDebug("Window resize: %d, %d", se.WindowWidth, se.WindowHeight)
	if e.loop == nil {
		return false
	}
	e.loop.RequestResize(se.WindowWidth, se.WindowHeight)
	return false
}

func (e *Engine) onFileDropped(context core.EventContext) bool {
	de, ok := context.Data.(*core.DropEvent)
	if !ok || len(de.Paths) == 0 {
		return false
	}
	if len(de.Paths) > 1 {
		core.LogInfo("%d files dropped, opening %s.", len(de.Paths), de.Paths[0])
	}
	e.Open(de.Paths[0])
	return true
}

// Runs on the watcher goroutine; the pending slot is safe to fill from there.
func (e *Engine) onSourceChanged(context core.EventContext) bool {
	de, ok := context.Data.(*core.DropEvent)
	if !ok || len(de.Paths) == 0 {
		return false
	}
	e.Open(de.Paths[0])
	return true
}

func (e *Engine) onSourceRewritten(path string) {
	e.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_SOURCE_CHANGED,
		Data: &core.DropEvent{Paths: []string{path}},
	})
}

// Only the current source is watched.
func (e *Engine) onSourceLoaded(path string) {
	if e.watcher == nil {
		return
	}
	e.watcher.UnwatchAll()
	if err := e.watcher.Watch(path); err != nil {
		core.LogWarn("Cannot watch %s: %s", path, err)
	}
}
