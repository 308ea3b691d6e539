package renderer

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

const FRAME_COUNT uint32 = 2

type FrameState uint8

const (
	FrameStateIdle FrameState = iota
	FrameStateRecording
	FrameStateUploading
)

func (s FrameState) String() string {
	switch s {
	case FrameStateRecording:
		return "recording"
	case FrameStateUploading:
		return "uploading"
	default:
		return "idle"
	}
}

/**
 * @brief One of the rotating per-frame resource sets.
 */
type FrameSlot struct {
	Index     uint32
	Allocator CommandAllocator
	// Back buffer this slot renders into for the current frame.
	Target RenderTarget
	// Value signaled after this slot's last submission. The allocator may be
	// reset once the fence has reached it.
	FenceValue uint64
}

// DrawItem is one textured (or placeholder) rectangle of the UI draw list.
type DrawItem struct {
	// Nil draws Placeholder over Dest.
	Texture     Texture
	Source      math.Rect
	Dest        math.Rect
	Placeholder math.Vec4
	Channel     metadata.ChannelView
}

// FrameScheduler drives the per-frame command recording and the fence
// protocol guarding each slot's allocator.
type FrameScheduler struct {
	ctx     *Context
	slots   []*FrameSlot
	list    CommandList
	current *FrameSlot
	state   FrameState
	frames  uint64
}

func NewFrameScheduler(ctx *Context) (*FrameScheduler, error) {
	count := ctx.Swapchain.BufferCount()
	if count == 0 {
		return nil, fmt.Errorf("swapchain has no buffers: %w", core.ErrDeviceInit)
	}
	fs := &FrameScheduler{
		ctx:   ctx,
		slots: make([]*FrameSlot, count),
	}
	for i := uint32(0); i < count; i++ {
		alloc, err := ctx.Device.CreateCommandAllocator()
		if err != nil {
			fs.Release()
			return nil, fmt.Errorf("create command allocator %d: %w: %w", i, core.ErrDeviceInit, err)
		}
		fs.slots[i] = &FrameSlot{Index: i, Allocator: alloc}
	}
	list, err := ctx.Device.CreateCommandList(fs.slots[0].Allocator)
	if err != nil {
		fs.Release()
		return nil, fmt.Errorf("create command list: %w: %w", core.ErrDeviceInit, err)
	}
	fs.list = list
	core.LogInfo("Frame scheduler created with %d frame slots.", count)
	return fs, nil
}

func (fs *FrameScheduler) State() FrameState {
	return fs.state
}

func (fs *FrameScheduler) FrameCount() uint64 {
	return fs.frames
}

func (fs *FrameScheduler) SlotCount() int {
	return len(fs.slots)
}

func (fs *FrameScheduler) Slot(index uint32) *FrameSlot {
	return fs.slots[index]
}

// acquireSlot waits until the GPU has finished the slot's previous work and
// reopens the shared command list on its allocator.
func (fs *FrameScheduler) acquireSlot(ctx context.Context, next FrameState) (*FrameSlot, error) {
	if fs.state != FrameStateIdle {
		return nil, fmt.Errorf("begin %s while %s: %w: %w", next, fs.state, core.ErrFrameOperation, core.ErrRecordingActive)
	}
	// Present may recreate the swapchain with a different image count.
	if count := fs.ctx.Swapchain.BufferCount(); int(count) != len(fs.slots) {
		if err := fs.WaitForIdle(ctx); err != nil {
			return nil, err
		}
		if err := fs.resizeSlots(count); err != nil {
			return nil, err
		}
	}
	index := fs.ctx.Swapchain.CurrentBackBufferIndex()
	if int(index) >= len(fs.slots) {
		return nil, fmt.Errorf("back buffer index %d out of range: %w", index, core.ErrFrameOperation)
	}
	slot := fs.slots[index]

	if err := fs.ctx.WaitForValue(ctx, slot.FenceValue); err != nil {
		return nil, fmt.Errorf("wait for frame slot %d: %w: %w", index, core.ErrFrameOperation, err)
	}
	if err := slot.Allocator.Reset(); err != nil {
		return nil, fmt.Errorf("reset allocator of slot %d: %w: %w", index, core.ErrFrameOperation, err)
	}
	if err := fs.list.Reset(slot.Allocator); err != nil {
		return nil, fmt.Errorf("reset command list: %w: %w", core.ErrFrameOperation, err)
	}
	slot.Target = fs.ctx.Swapchain.BackBuffer(index)
	fs.current = slot
	fs.state = next
	return slot, nil
}

// submit closes the list, executes it and records the fence value that
// guards the current slot.
func (fs *FrameScheduler) submit() error {
	slot := fs.current
	fs.state = FrameStateIdle
	fs.current = nil
	if err := fs.list.Close(); err != nil {
		return fmt.Errorf("close command list: %w: %w", core.ErrFrameOperation, err)
	}
	if err := fs.ctx.Queue.ExecuteCommandLists(fs.list); err != nil {
		return fmt.Errorf("execute command list: %w: %w", core.ErrFrameOperation, err)
	}
	value, err := fs.ctx.Signal()
	if err != nil {
		return err
	}
	slot.FenceValue = value
	return nil
}

// BeginFrame blocks until the current slot is reusable and opens recording.
func (fs *FrameScheduler) BeginFrame(ctx context.Context) (*FrameSlot, error) {
	return fs.acquireSlot(ctx, FrameStateRecording)
}

func (fs *FrameScheduler) RecordPresentationTransition() {
	fs.list.Transition(fs.current.Target, metadata.ResourceStatePresent, metadata.ResourceStateRenderTarget)
}

func (fs *FrameScheduler) RecordClear(color math.Vec4) {
	fs.list.ClearRenderTarget(fs.current.Target, color)
}

func (fs *FrameScheduler) RecordUIDraw(items []DrawItem) {
	for _, item := range items {
		if item.Dest.Empty() {
			continue
		}
		if item.Texture == nil {
			fs.list.FillRect(fs.current.Target, item.Dest, item.Placeholder)
			continue
		}
		fs.list.DrawTexture(fs.current.Target, item.Texture, item.Source, item.Dest, item.Channel)
	}
}

// EndFrame transitions the back buffer to present, submits, signals and
// presents. The next slot is whatever the swapchain reports afterwards.
func (fs *FrameScheduler) EndFrame() error {
	if fs.state != FrameStateRecording {
		return fmt.Errorf("end frame while %s: %w", fs.state, core.ErrFrameOperation)
	}
	fs.list.Transition(fs.current.Target, metadata.ResourceStateRenderTarget, metadata.ResourceStatePresent)
	if err := fs.submit(); err != nil {
		return err
	}
	if err := fs.ctx.Swapchain.Present(); err != nil {
		return fmt.Errorf("present: %w: %w", core.ErrFrameOperation, err)
	}
	fs.frames++
	return nil
}

// BeginUpload opens the shared command list for one-off transfer work.
func (fs *FrameScheduler) BeginUpload(ctx context.Context) (CommandList, error) {
	if _, err := fs.acquireSlot(ctx, FrameStateUploading); err != nil {
		return nil, err
	}
	return fs.list, nil
}

// SubmitUpload executes the upload list and waits for the device to go idle
// so staging memory can be released right after.
func (fs *FrameScheduler) SubmitUpload(ctx context.Context) error {
	if fs.state != FrameStateUploading {
		return fmt.Errorf("submit upload while %s: %w", fs.state, core.ErrFrameOperation)
	}
	if err := fs.submit(); err != nil {
		return err
	}
	return fs.WaitForIdle(ctx)
}

// WaitForIdle blocks until every submitted command has completed.
func (fs *FrameScheduler) WaitForIdle(ctx context.Context) error {
	if err := fs.ctx.WaitForIdle(ctx); err != nil {
		return fmt.Errorf("wait for idle: %w", err)
	}
	return nil
}

// Resize waits for the GPU and recreates the swapchain buffers.
func (fs *FrameScheduler) Resize(ctx context.Context, width, height uint32) error {
	if err := fs.WaitForIdle(ctx); err != nil {
		return err
	}
	if err := fs.ctx.Swapchain.Resize(width, height); err != nil {
		return fmt.Errorf("resize swapchain to %dx%d: %w: %w", width, height, core.ErrFrameOperation, err)
	}
	return fs.resizeSlots(fs.ctx.Swapchain.BufferCount())
}

// resizeSlots matches the slot ring to a recreated swapchain. Slot 0 keeps
// its allocator because the shared command list was created from it.
func (fs *FrameScheduler) resizeSlots(count uint32) error {
	if count == 0 {
		return fmt.Errorf("swapchain has no buffers: %w", core.ErrFrameOperation)
	}
	old := uint32(len(fs.slots))
	if count == old {
		return nil
	}
	for i := count; i < old; i++ {
		fs.slots[i].Allocator.Release()
	}
	if count < old {
		fs.slots = fs.slots[:count]
	}
	for i := old; i < count; i++ {
		alloc, err := fs.ctx.Device.CreateCommandAllocator()
		if err != nil {
			return fmt.Errorf("create command allocator %d: %w: %w", i, core.ErrFrameOperation, err)
		}
		fs.slots = append(fs.slots, &FrameSlot{Index: i, Allocator: alloc})
	}
	core.LogInfo("Frame scheduler resized from %d to %d frame slots.", old, count)
	return nil
}

func (fs *FrameScheduler) Release() {
	if fs.list != nil {
		fs.list.Release()
		fs.list = nil
	}
	for _, slot := range fs.slots {
		if slot != nil && slot.Allocator != nil {
			slot.Allocator.Release()
			slot.Allocator = nil
		}
	}
}
