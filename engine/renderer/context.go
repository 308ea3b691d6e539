package renderer

import (
	"context"
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
)

// Context bundles the per-session GPU objects every component shares: the
// device, its queue, the presentation surface and the fence counter.
type Context struct {
	Device    Device
	Queue     Queue
	Swapchain Swapchain

	fence          Fence
	nextFenceValue uint64
}

func NewContext(device Device, swapchain Swapchain) (*Context, error) {
	if device == nil || swapchain == nil {
		return nil, fmt.Errorf("render context needs a device and a swapchain: %w", core.ErrDeviceInit)
	}
	fence, err := device.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("create frame fence: %w: %w", core.ErrDeviceInit, err)
	}
	core.LogInfo("Render context created on %s with %d back buffers.", device.Name(), swapchain.BufferCount())
	return &Context{
		Device:         device,
		Queue:          device.Queue(),
		Swapchain:      swapchain,
		fence:          fence,
		nextFenceValue: 1,
	}, nil
}

// Signal asks the queue to signal the next counter value after everything
// submitted so far and returns that value.
func (c *Context) Signal() (uint64, error) {
	value := c.nextFenceValue
	if err := c.Queue.Signal(c.fence, value); err != nil {
		return 0, fmt.Errorf("signal fence %d: %w: %w", value, core.ErrFrameOperation, err)
	}
	c.nextFenceValue++
	return value, nil
}

// WaitForValue blocks until the device has completed value.
func (c *Context) WaitForValue(ctx context.Context, value uint64) error {
	if value == 0 || c.fence.CompletedValue() >= value {
		return nil
	}
	if err := c.fence.Wait(ctx, value); err != nil {
		return fmt.Errorf("wait for fence %d: %w", value, err)
	}
	return nil
}

func (c *Context) CompletedValue() uint64 {
	return c.fence.CompletedValue()
}

// WaitForIdle blocks until all submitted work has completed.
func (c *Context) WaitForIdle(ctx context.Context) error {
	value, err := c.Signal()
	if err != nil {
		return err
	}
	return c.WaitForValue(ctx, value)
}

func (c *Context) Release() {
	if c.fence != nil {
		c.fence.Release()
		c.fence = nil
	}
}
