package renderer

import (
	"context"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// Resource is anything a command list can transition.
type Resource interface {
	ID() core.ResourceID
	State() metadata.ResourceState
}

// Texture is a device-resident 2D texture (or texture array).
type Texture interface {
	Resource
	Desc() metadata.TextureDesc
	Release()
}

// RenderTarget is a presentable back buffer.
type RenderTarget interface {
	Resource
	Width() uint32
	Height() uint32
}

// StagingBuffer is linear CPU-writable, GPU-readable memory.
type StagingBuffer interface {
	Size() uint64
	Map() ([]byte, error)
	Unmap()
	Release()
}

// CommandAllocator owns the memory behind recorded commands. It may only be
// reset once the GPU has finished every list recorded from it.
type CommandAllocator interface {
	Reset() error
	Release()
}

// CommandList records GPU work. Commands run in recorded order once the list
// is executed on a Queue.
type CommandList interface {
	// Reset reopens the list for recording against alloc.
	Reset(alloc CommandAllocator) error
	Close() error
	Transition(res Resource, before, after metadata.ResourceState)
	CopyBufferToTexture(dst Texture, subresource uint32, src StagingBuffer, footprint metadata.SubresourceFootprint)
	ClearRenderTarget(rt RenderTarget, color math.Vec4)
	// DrawTexture scales the src texel rect of mip 0 into the dst rect of rt.
	DrawTexture(rt RenderTarget, tex Texture, src, dst math.Rect, channel metadata.ChannelView)
	FillRect(rt RenderTarget, dst math.Rect, color math.Vec4)
	Release()
}

// Fence is a monotonically increasing counter signaled by the Queue.
type Fence interface {
	CompletedValue() uint64
	// Wait blocks until CompletedValue() >= value or ctx is done.
	Wait(ctx context.Context, value uint64) error
	Release()
}

type Queue interface {
	ExecuteCommandLists(lists ...CommandList) error
	// Signal sets fence to value once all previously submitted work completes.
	Signal(fence Fence, value uint64) error
}

type Swapchain interface {
	BufferCount() uint32
	// CurrentBackBufferIndex is the buffer the next frame renders into.
	CurrentBackBufferIndex() uint32
	BackBuffer(index uint32) RenderTarget
	Present() error
	// Resize recreates the buffers. The caller must make sure the GPU is idle.
	Resize(width, height uint32) error
	Extent() (uint32, uint32)
	Release()
}

type Device interface {
	Name() string
	CreateTexture(desc metadata.TextureDesc, initial metadata.ResourceState) (Texture, error)
	// CopyableFootprints lays out desc in a staging buffer using the device's alignment rules.
	CopyableFootprints(desc metadata.TextureDesc) (*metadata.FootprintTable, error)
	CreateStagingBuffer(size uint64) (StagingBuffer, error)
	CreateCommandAllocator() (CommandAllocator, error)
	// CreateCommandList returns a closed list bound to alloc.
	CreateCommandList(alloc CommandAllocator) (CommandList, error)
	CreateFence(initial uint64) (Fence, error)
	Queue() Queue
	Release()
}
