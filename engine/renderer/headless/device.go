// Package headless is an in-memory GPU device. Work submitted to its queue
// runs on a simulated timeline that tests can hold back and advance by hand,
// so fence waits and resource lifetimes behave like on a real device.
package headless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

var ErrInjected = errors.New("injected failure")

type Options struct {
	RowPitchAlignment  uint64
	PlacementAlignment uint64
	BufferCount        uint32
	Width              uint32
	Height             uint32
	// When set, submitted work only completes on Advance/AdvanceAll.
	ManualCompletion bool

	FailCreateTexture bool
	FailCreateStaging bool
	FailMap           bool
}

func DefaultOptions() Options {
	return Options{
		RowPitchAlignment:  metadata.TextureDataPitchAlignment,
		PlacementAlignment: metadata.TextureDataPlacementAlignment,
		BufferCount:        renderer.FRAME_COUNT,
		Width:              1280,
		Height:             720,
	}
}

type Device struct {
	mu         sync.Mutex
	opts       Options
	queue      *Queue
	swapchain  *Swapchain
	violations []string
	textures   int
	released   bool
}

func New(opts Options) (*Device, error) {
	if opts.BufferCount < 2 {
		return nil, fmt.Errorf("headless swapchain needs at least 2 buffers, got %d: %w", opts.BufferCount, core.ErrDeviceInit)
	}
	if opts.RowPitchAlignment == 0 || opts.PlacementAlignment == 0 {
		return nil, fmt.Errorf("alignments must be non-zero: %w", core.ErrDeviceInit)
	}
	d := &Device{opts: opts}
	d.queue = &Queue{device: d}
	d.swapchain = newSwapchain(d, opts.BufferCount, opts.Width, opts.Height)
	core.LogDebug("Headless device created (%d buffers, %dx%d).", opts.BufferCount, opts.Width, opts.Height)
	return d, nil
}

// SetFailures changes fault injection after creation.
func (d *Device) SetFailures(texture, staging, mapping bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.FailCreateTexture = texture
	d.opts.FailCreateStaging = staging
	d.opts.FailMap = mapping
}

func (d *Device) Name() string {
	return "Headless"
}

func (d *Device) Swapchain() *Swapchain {
	return d.swapchain
}

func (d *Device) CreateTexture(desc metadata.TextureDesc, initial metadata.ResourceState) (renderer.Texture, error) {
	table, err := metadata.ComputeCopyableFootprints(desc, 1, 1)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts.FailCreateTexture {
		return nil, fmt.Errorf("create texture: %w", ErrInjected)
	}
	t := &Texture{
		device: d,
		id:     core.NewResourceID(),
		desc:   desc,
		state:  initial,
		data:   make([][]byte, len(table.Footprints)),
	}
	for i, fp := range table.Footprints {
		t.data[i] = make([]byte, fp.RowSize*uint64(fp.RowCount))
	}
	d.textures++
	return t, nil
}

func (d *Device) CopyableFootprints(desc metadata.TextureDesc) (*metadata.FootprintTable, error) {
	return metadata.ComputeCopyableFootprints(desc, d.opts.RowPitchAlignment, d.opts.PlacementAlignment)
}

func (d *Device) CreateStagingBuffer(size uint64) (renderer.StagingBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts.FailCreateStaging {
		return nil, fmt.Errorf("create staging buffer: %w", ErrInjected)
	}
	if size == 0 {
		return nil, fmt.Errorf("zero sized staging buffer: %w", core.ErrUpload)
	}
	return &StagingBuffer{device: d, data: make([]byte, size)}, nil
}

func (d *Device) CreateCommandAllocator() (renderer.CommandAllocator, error) {
	return &CommandAllocator{device: d}, nil
}

func (d *Device) CreateCommandList(alloc renderer.CommandAllocator) (renderer.CommandList, error) {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return nil, fmt.Errorf("foreign command allocator %T", alloc)
	}
	return &CommandList{device: d, allocator: a, closed: true}, nil
}

func (d *Device) CreateFence(initial uint64) (renderer.Fence, error) {
	return newFence(initial), nil
}

func (d *Device) Queue() renderer.Queue {
	return d.queue
}

// Pending returns the number of submissions that have not completed yet.
func (d *Device) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue.pending)
}

// Advance completes up to n pending submissions in order and returns how
// many completed.
func (d *Device) Advance(n int) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.complete(n)
}

func (d *Device) AdvanceAll() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queue.complete(len(d.queue.pending))
}

// Violations lists every misuse the device detected: allocator resets with
// work in flight, transitions from the wrong state, reads of released memory.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// LiveTextures is the number of created and not yet released textures.
func (d *Device) LiveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.textures
}

func (d *Device) violation(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	core.LogError("Headless device violation: %s", msg)
	d.violations = append(d.violations, msg)
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return
	}
	if len(d.queue.pending) > 0 {
		d.violation("device released with %d submissions in flight", len(d.queue.pending))
	}
	d.released = true
}
