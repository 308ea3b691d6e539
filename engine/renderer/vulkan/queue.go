package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/renderer"
)

// Queue submits to the graphics queue. Lists that hand a swapchain image
// over for presentation also signal that image's render-complete semaphore.
type Queue struct {
	device *Device
}

func (q *Queue) ExecuteCommandLists(lists ...renderer.CommandList) error {
	buffers := make([]vk.CommandBuffer, 0, len(lists))
	var signals []vk.Semaphore
	var presented []*RenderTarget
	for _, l := range lists {
		list, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("foreign command list %T", l)
		}
		if list.recording {
			return fmt.Errorf("execute of a command list that is still recording")
		}
		if list.current == nil {
			continue
		}
		buffers = append(buffers, list.current)
		if rt := list.presents; rt != nil {
			signals = append(signals, rt.renderComplete)
			presented = append(presented, rt)
		}
	}
	if len(buffers) == 0 {
		return nil
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}
	err := q.device.locks.SafeQueueCall(q.device.graphicsFamily, func() error {
		return check(vk.QueueSubmit(q.device.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, nil), "queue submit")
	})
	if err != nil {
		return err
	}
	for _, rt := range presented {
		rt.rendered = true
	}
	return nil
}

// Signal submits an empty batch whose fence fires once everything before
// it has completed.
func (q *Queue) Signal(fence renderer.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("foreign fence %T", fence)
	}
	handle, err := f.acquire()
	if err != nil {
		return err
	}
	submitInfo := vk.SubmitInfo{
		SType: vk.StructureTypeSubmitInfo,
	}
	err = q.device.locks.SafeQueueCall(q.device.graphicsFamily, func() error {
		return check(vk.QueueSubmit(q.device.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, handle), "signal submit")
	})
	if err != nil {
		f.mutex.Lock()
		f.free = append(f.free, handle)
		f.mutex.Unlock()
		return err
	}
	f.push(value, handle)
	return nil
}
