package headless

import (
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// stateful is implemented by every resource a list can transition.
type stateful interface {
	ID() core.ResourceID
	currentState() metadata.ResourceState
	setState(metadata.ResourceState)
}

type Texture struct {
	device   *Device
	id       core.ResourceID
	desc     metadata.TextureDesc
	state    metadata.ResourceState
	data     [][]byte
	released bool
}

func (t *Texture) ID() core.ResourceID {
	return t.id
}

func (t *Texture) State() metadata.ResourceState {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return t.state
}

func (t *Texture) currentState() metadata.ResourceState {
	return t.state
}

func (t *Texture) setState(s metadata.ResourceState) {
	t.state = s
}

func (t *Texture) Desc() metadata.TextureDesc {
	return t.desc
}

// SubresourceData returns a tightly packed copy of subresource i.
func (t *Texture) SubresourceData(i uint32) []byte {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return append([]byte(nil), t.data[i]...)
}

func (t *Texture) Released() bool {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	return t.released
}

func (t *Texture) Release() {
	t.device.mu.Lock()
	defer t.device.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.device.textures--
}

type StagingBuffer struct {
	device   *Device
	data     []byte
	mapped   bool
	released bool
}

func (b *StagingBuffer) Size() uint64 {
	return uint64(len(b.data))
}

func (b *StagingBuffer) Map() ([]byte, error) {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	if b.device.opts.FailMap {
		return nil, fmt.Errorf("map staging buffer: %w", ErrInjected)
	}
	if b.released {
		return nil, fmt.Errorf("map staging buffer: %w", core.ErrResourceReleased)
	}
	b.mapped = true
	return b.data, nil
}

func (b *StagingBuffer) Unmap() {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	b.mapped = false
}

func (b *StagingBuffer) Release() {
	b.device.mu.Lock()
	defer b.device.mu.Unlock()
	b.released = true
}

type CommandKind uint8

const (
	CommandClear CommandKind = iota
	CommandDraw
	CommandFill
)

// Command is one executed operation on a back buffer.
type Command struct {
	Kind    CommandKind
	Texture core.ResourceID
	Source  math.Rect
	Dest    math.Rect
	Color   math.Vec4
	Channel metadata.ChannelView
}

type RenderTarget struct {
	device   *Device
	id       core.ResourceID
	width    uint32
	height   uint32
	state    metadata.ResourceState
	commands []Command
}

func (r *RenderTarget) ID() core.ResourceID {
	return r.id
}

func (r *RenderTarget) State() metadata.ResourceState {
	r.device.mu.Lock()
	defer r.device.mu.Unlock()
	return r.state
}

func (r *RenderTarget) currentState() metadata.ResourceState {
	return r.state
}

func (r *RenderTarget) setState(s metadata.ResourceState) {
	r.state = s
}

func (r *RenderTarget) Width() uint32 {
	return r.width
}

func (r *RenderTarget) Height() uint32 {
	return r.height
}

// Commands returns the operations executed on this buffer since the last clear.
func (r *RenderTarget) Commands() []Command {
	r.device.mu.Lock()
	defer r.device.mu.Unlock()
	return append([]Command(nil), r.commands...)
}
