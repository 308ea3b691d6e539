package headless

import (
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

type Swapchain struct {
	device   *Device
	buffers  []*RenderTarget
	index    uint32
	presents uint64
	// Buffer count the next Resize recreates with; zero keeps the current one.
	resizeCount uint32
}

func newSwapchain(d *Device, count, width, height uint32) *Swapchain {
	s := &Swapchain{device: d}
	s.create(count, width, height)
	return s
}

func (s *Swapchain) create(count, width, height uint32) {
	s.buffers = make([]*RenderTarget, count)
	for i := range s.buffers {
		s.buffers[i] = &RenderTarget{
			device: s.device,
			id:     core.NewResourceID(),
			width:  width,
			height: height,
			state:  metadata.ResourceStatePresent,
		}
	}
	s.index = 0
}

func (s *Swapchain) BufferCount() uint32 {
	return uint32(len(s.buffers))
}

func (s *Swapchain) CurrentBackBufferIndex() uint32 {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	return s.index
}

func (s *Swapchain) BackBuffer(index uint32) renderer.RenderTarget {
	return s.buffers[index]
}

// Buffer returns the concrete back buffer for inspection.
func (s *Swapchain) Buffer(index uint32) *RenderTarget {
	return s.buffers[index]
}

func (s *Swapchain) Present() error {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.presents++
	s.index = (s.index + 1) % uint32(len(s.buffers))
	return nil
}

func (s *Swapchain) Presents() uint64 {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	return s.presents
}

func (s *Swapchain) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("resize to %dx%d: %w", width, height, core.ErrSwapchainBooting)
	}
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	if n := len(s.device.queue.pending); n > 0 {
		s.device.violation("swapchain resized with %d submissions in flight", n)
	}
	count := uint32(len(s.buffers))
	if s.resizeCount != 0 {
		count, s.resizeCount = s.resizeCount, 0
	}
	s.create(count, width, height)
	return nil
}

// SetResizeBufferCount makes the next Resize come back with count buffers,
// the way a driver may hand out more images than the minimum requested.
func (s *Swapchain) SetResizeBufferCount(count uint32) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	s.resizeCount = count
}

func (s *Swapchain) Extent() (uint32, uint32) {
	s.device.mu.Lock()
	defer s.device.mu.Unlock()
	return s.buffers[0].width, s.buffers[0].height
}

func (s *Swapchain) Release() {}
