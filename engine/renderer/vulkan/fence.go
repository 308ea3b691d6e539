package vulkan

import (
	"context"
	"fmt"
	"sync"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/core"
)

// How long one blocking wait lasts before ctx is checked again.
const FENCE_WAIT_SLICE = 10 * time.Millisecond

type fenceSignal struct {
	value  uint64
	handle vk.Fence
}

/**
 * @brief A monotonically increasing counter built from binary VkFences.
 *
 * Every Signal submits an empty batch guarded by its own VkFence. Signals
 * complete in submission order, so the counter is the value of the newest
 * signaled fence. Retired VkFences are reset and reused.
 */
type Fence struct {
	device    *Device
	mutex     sync.Mutex
	completed uint64
	pending   []fenceSignal
	free      []vk.Fence
}

func newFence(d *Device, initial uint64) *Fence {
	return &Fence{device: d, completed: initial}
}

func (f *Fence) acquire() (vk.Fence, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if n := len(f.free); n > 0 {
		handle := f.free[n-1]
		f.free = f.free[:n-1]
		return handle, nil
	}
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var handle vk.Fence
	if err := check(vk.CreateFence(f.device.logicalDevice, &fenceCreateInfo, nil, &handle), "create fence"); err != nil {
		return nil, err
	}
	return handle, nil
}

func (f *Fence) push(value uint64, handle vk.Fence) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.pending = append(f.pending, fenceSignal{value: value, handle: handle})
}

// retire drops every leading signal whose VkFence is signaled.
func (f *Fence) retire() error {
	for len(f.pending) > 0 {
		head := f.pending[0]
		switch res := vk.GetFenceStatus(f.device.logicalDevice, head.handle); res {
		case vk.Success:
			if err := check(vk.ResetFences(f.device.logicalDevice, 1, []vk.Fence{head.handle}), "reset fence"); err != nil {
				return err
			}
			f.free = append(f.free, head.handle)
			f.completed = max(f.completed, head.value)
			f.pending = f.pending[1:]
		case vk.NotReady:
			return nil
		default:
			return check(res, "fence status")
		}
	}
	return nil
}

func (f *Fence) CompletedValue() uint64 {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.retire(); err != nil {
		core.LogError("Fence poll failed: %s", err)
	}
	return f.completed
}

func (f *Fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mutex.Lock()
		if err := f.retire(); err != nil {
			f.mutex.Unlock()
			return err
		}
		if f.completed >= value {
			f.mutex.Unlock()
			return nil
		}
		var target vk.Fence
		for _, s := range f.pending {
			if s.value >= value {
				target = s.handle
				break
			}
		}
		f.mutex.Unlock()
		if target == nil {
			return fmt.Errorf("fence value %d was never signaled (completed %d)", value, f.completed)
		}

		res := vk.WaitForFences(f.device.logicalDevice, 1, []vk.Fence{target}, vk.True, uint64(FENCE_WAIT_SLICE.Nanoseconds()))
		if res != vk.Success && res != vk.Timeout {
			return check(res, "wait for fence")
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (f *Fence) Release() {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	for _, s := range f.pending {
		vk.WaitForFences(f.device.logicalDevice, 1, []vk.Fence{s.handle}, vk.True, ^uint64(0))
		vk.DestroyFence(f.device.logicalDevice, s.handle, nil)
	}
	for _, handle := range f.free {
		vk.DestroyFence(f.device.logicalDevice, handle, nil)
	}
	f.pending, f.free = nil, nil
}
