package core

import "sync"

// System internal event codes.
type EventCode uint16

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT EventCode = iota + 1
	// Keyboard key pressed. Data: *KeyEvent
	EVENT_CODE_KEY_PRESSED
	// Keyboard key released. Data: *KeyEvent
	EVENT_CODE_KEY_RELEASED
	// Mouse button pressed. Data: *MouseEvent
	EVENT_CODE_BUTTON_PRESSED
	// Mouse button released. Data: *MouseEvent
	EVENT_CODE_BUTTON_RELEASED
	// Mouse moved. Data: *MouseEvent
	EVENT_CODE_MOUSE_MOVED
	// Mouse wheel. Data: *MouseEvent
	EVENT_CODE_MOUSE_WHEEL
	// Resized/resolution changed from the OS. Data: *SystemEvent
	EVENT_CODE_RESIZED
	// Files dropped onto the window. Data: *DropEvent
	EVENT_CODE_FILE_DROPPED
	// A watched source file changed on disk. Data: *DropEvent
	EVENT_CODE_SOURCE_CHANGED

	MAX_EVENT_CODE
)

type KeyEvent struct {
	KeyCode KeyCode
	Shift   bool
	Control bool
}

type MouseEvent struct {
	Button Button
	PosX   float32
	PosY   float32
	Scroll float32
}

type SystemEvent struct {
	WindowWidth  uint32
	WindowHeight uint32
}

type DropEvent struct {
	Paths []string
}

type EventContext struct {
	Type EventCode
	Data interface{}
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	id       uint64
	callback FnOnEvent
}

// EventSystem dispatches events synchronously to listeners in registration
// order. A listener returning true stops the dispatch.
type EventSystem struct {
	mu         sync.RWMutex
	nextID     uint64
	registered [MAX_EVENT_CODE][]registeredEvent
}

func NewEventSystem() *EventSystem {
	return &EventSystem{}
}

// Register returns a handle that can be passed to Unregister.
func (es *EventSystem) Register(code EventCode, onEvent FnOnEvent) uint64 {
	if code >= MAX_EVENT_CODE || onEvent == nil {
		LogWarn("refusing to register listener for event code %d", code)
		return 0
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	es.nextID++
	es.registered[code] = append(es.registered[code], registeredEvent{id: es.nextID, callback: onEvent})
	return es.nextID
}

func (es *EventSystem) Unregister(code EventCode, id uint64) bool {
	if code >= MAX_EVENT_CODE {
		return false
	}
	es.mu.Lock()
	defer es.mu.Unlock()
	events := es.registered[code]
	for i := range events {
		if events[i].id == id {
			es.registered[code] = append(events[:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 */
func (es *EventSystem) Fire(context EventContext) bool {
	if context.Type >= MAX_EVENT_CODE {
		return false
	}
	es.mu.RLock()
	events := make([]registeredEvent, len(es.registered[context.Type]))
	copy(events, es.registered[context.Type])
	es.mu.RUnlock()

	for _, e := range events {
		if e.callback(context) {
			return true
		}
	}
	return false
}

func (es *EventSystem) Shutdown() {
	es.mu.Lock()
	defer es.mu.Unlock()
	for i := range es.registered {
		es.registered[i] = nil
	}
}
