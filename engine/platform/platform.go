package platform

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/texlab/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// ShowMode is how the window first appears.
type ShowMode uint8

const (
	ShowNormal ShowMode = iota
	ShowMaximized
	ShowHidden
)

func ParseShowMode(s string) (ShowMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return ShowNormal, nil
	case "maximized", "maximised":
		return ShowMaximized, nil
	case "hidden":
		return ShowHidden, nil
	default:
		return ShowNormal, fmt.Errorf("unknown window show mode %q", s)
	}
}

type Platform struct {
	window *glfw.Window
	events *core.EventSystem
	input  *core.Input
}

func New(events *core.EventSystem, input *core.Input) *Platform {
	return &Platform{events: events, input: input}
}

func (p *Platform) Startup(title string, width, height uint32, show ShowMode) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize glfw: %w: %w", core.ErrDeviceInit, err)
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return fmt.Errorf("no Vulkan loader found: %w", core.ErrDeviceInit)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("create window: %w: %w", core.ErrDeviceInit, err)
	}
	p.window = window

	window.SetKeyCallback(p.keyCallback)
	window.SetMouseButtonCallback(p.mouseButtonCallback)
	window.SetCursorPosCallback(p.cursorPosCallback)
	window.SetScrollCallback(p.scrollCallback)
	window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	window.SetDropCallback(p.dropCallback)
	window.SetCloseCallback(p.closeCallback)

	switch show {
	case ShowMaximized:
		window.Maximize()
		window.Show()
	case ShowHidden:
	default:
		window.Show()
	}
	core.LogInfo("Window created (%dx%d).", width, height)
	return nil
}

// Window is the native window the renderer creates its surface on.
func (p *Platform) Window() *glfw.Window {
	return p.window
}

func (p *Platform) SetTitle(title string) {
	if p.window != nil {
		p.window.SetTitle(title)
	}
}

func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.window.GetFramebufferSize()
	return uint32(max(w, 0)), uint32(max(h, 0))
}

// PumpMessages dispatches pending window events to the callbacks. It
// returns false once the window was asked to close.
func (p *Platform) PumpMessages() bool {
	glfw.PollEvents()
	return !p.window.ShouldClose()
}

func (p *Platform) Shutdown() {
	if p.window != nil {
		p.window.Destroy()
		p.window = nil
	}
	glfw.Terminate()
}

func (p *Platform) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action == glfw.Repeat {
		return
	}
	code := translateKey(key)
	if code == core.KEY_UNKNOWN {
		return
	}
	p.input.ProcessKey(code, action == glfw.Press)
}

func (p *Platform) mouseButtonCallback(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	var b core.Button
	switch button {
	case glfw.MouseButtonLeft:
		b = core.BUTTON_LEFT
	case glfw.MouseButtonRight:
		b = core.BUTTON_RIGHT
	case glfw.MouseButtonMiddle:
		b = core.BUTTON_MIDDLE
	default:
		return
	}
	p.input.ProcessButton(b, action == glfw.Press)
}

func (p *Platform) cursorPosCallback(w *glfw.Window, xpos, ypos float64) {
	p.input.ProcessMouseMove(float32(xpos), float32(ypos))
}

func (p *Platform) scrollCallback(w *glfw.Window, xoff, yoff float64) {
	p.input.ProcessMouseWheel(float32(yoff))
}

func (p *Platform) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(max(width, 0)), WindowHeight: uint32(max(height, 0))},
	})
}

func (p *Platform) dropCallback(w *glfw.Window, names []string) {
	if len(names) == 0 {
		return
	}
	p.events.Fire(core.EventContext{
		Type: core.EVENT_CODE_FILE_DROPPED,
		Data: &core.DropEvent{Paths: append([]string(nil), names...)},
	})
}

func (p *Platform) closeCallback(w *glfw.Window) {
	p.events.Fire(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

// translateKey maps glfw keys onto the virtual-key codes the input state uses.
func translateKey(key glfw.Key) core.KeyCode {
	switch {
	case key >= glfw.KeyA && key <= glfw.KeyZ:
		return core.KEY_A + core.KeyCode(key-glfw.KeyA)
	case key >= glfw.Key0 && key <= glfw.Key9:
		return core.KEY_0 + core.KeyCode(key-glfw.Key0)
	case key >= glfw.KeyF1 && key <= glfw.KeyF4:
		return core.KEY_F1 + core.KeyCode(key-glfw.KeyF1)
	}
	switch key {
	case glfw.KeyEscape:
		return core.KEY_ESCAPE
	case glfw.KeyEnter:
		return core.KEY_ENTER
	case glfw.KeyTab:
		return core.KEY_TAB
	case glfw.KeyBackspace:
		return core.KEY_BACKSPACE
	case glfw.KeySpace:
		return core.KEY_SPACE
	case glfw.KeyLeft:
		return core.KEY_LEFT
	case glfw.KeyRight:
		return core.KEY_RIGHT
	case glfw.KeyUp:
		return core.KEY_UP
	case glfw.KeyDown:
		return core.KEY_DOWN
	case glfw.KeyLeftShift:
		return core.KEY_LSHIFT
	case glfw.KeyRightShift:
		return core.KEY_RSHIFT
	case glfw.KeyLeftControl:
		return core.KEY_LCONTROL
	case glfw.KeyRightControl:
		return core.KEY_RCONTROL
	case glfw.KeyMinus:
		return core.KEY_MINUS
	case glfw.KeyEqual:
		return core.KEY_PLUS
	case glfw.KeyLeftBracket:
		return core.KEY_LBRACKET
	case glfw.KeyRightBracket:
		return core.KEY_RBRACKET
	}
	return core.KEY_UNKNOWN
}
