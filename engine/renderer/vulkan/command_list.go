package vulkan

import (
	"fmt"
	stdmath "math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// Drawn instead of textures whose format cannot be blitted.
var unblitableColor = math.NewVec4(0.5, 0.0, 0.5, 1)

// CommandAllocator wraps a VkCommandPool. Resetting it recycles every
// command buffer allocated from it at once.
type CommandAllocator struct {
	device *Device
	pool   vk.CommandPool
}

func newCommandAllocator(d *Device) (*CommandAllocator, error) {
	a := &CommandAllocator{device: d}
	err := d.locks.SafeCall(CommandPoolManagement, func() error {
		poolCreateInfo := vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			QueueFamilyIndex: d.graphicsFamily,
			Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		}
		var pool vk.CommandPool
		if err := check(vk.CreateCommandPool(d.logicalDevice, &poolCreateInfo, nil, &pool), "create command pool"); err != nil {
			return err
		}
		a.pool = pool
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *CommandAllocator) Reset() error {
	return check(vk.ResetCommandPool(a.device.logicalDevice, a.pool, 0), "reset command pool")
}

func (a *CommandAllocator) Release() {
	if a.pool != nil {
		vk.DestroyCommandPool(a.device.logicalDevice, a.pool, nil)
		a.pool = nil
	}
}

/**
 * @brief Records into one primary command buffer per allocator.
 *
 * A VkCommandBuffer belongs to the pool it came from, so the list keeps one
 * buffer for each allocator it has been reset against and records into the
 * buffer of the current one.
 */
type CommandList struct {
	device    *Device
	allocator *CommandAllocator
	buffers   map[*CommandAllocator]vk.CommandBuffer
	current   vk.CommandBuffer
	recording bool
	// Swapchain image transitioned to present by this recording.
	presents *RenderTarget
}

func newCommandList(d *Device, a *CommandAllocator) *CommandList {
	return &CommandList{
		device:    d,
		allocator: a,
		buffers:   make(map[*CommandAllocator]vk.CommandBuffer),
	}
}

func (l *CommandList) bufferFor(a *CommandAllocator) (vk.CommandBuffer, error) {
	if buffer, ok := l.buffers[a]; ok {
		return buffer, nil
	}
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        a.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(l.device.logicalDevice, &allocateInfo, buffers), "allocate command buffer"); err != nil {
		return nil, err
	}
	l.buffers[a] = buffers[0]
	return buffers[0], nil
}

func (l *CommandList) Reset(alloc renderer.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("foreign command allocator %T", alloc)
	}
	if l.recording {
		return fmt.Errorf("reset of a command list that is still recording")
	}
	buffer, err := l.bufferFor(a)
	if err != nil {
		return err
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check(vk.BeginCommandBuffer(buffer, &beginInfo), "begin command buffer"); err != nil {
		return err
	}
	l.allocator = a
	l.current = buffer
	l.recording = true
	l.presents = nil
	return nil
}

func (l *CommandList) Close() error {
	if !l.recording {
		return fmt.Errorf("command list already closed")
	}
	l.recording = false
	return check(vk.EndCommandBuffer(l.current), "end command buffer")
}

func (l *CommandList) barrier(image vk.Image, subresources vk.ImageSubresourceRange, from, to vk.ImageLayout) {
	srcAccess, srcStage := layoutAccess(from)
	dstAccess, dstStage := layoutAccess(to)
	if from == vk.ImageLayoutPresentSrc {
		// Availability is guaranteed by the acquire fence.
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
	b := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    subresources,
	}
	vk.CmdPipelineBarrier(l.current, srcStage, dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{b})
}

func (l *CommandList) textureLayout(t *Texture, layout vk.ImageLayout) {
	if t.layout == layout {
		return
	}
	l.barrier(t.image, t.subresourceRange(), t.layout, layout)
	t.layout = layout
}

func (l *CommandList) targetLayout(rt *RenderTarget, layout vk.ImageLayout) {
	if rt.layout == layout {
		return
	}
	l.barrier(rt.image, colorRange(), rt.layout, layout)
	rt.layout = layout
}

// Transition moves res to after. The tracked layout is the source of the
// barrier, so images that start undefined transition correctly.
func (l *CommandList) Transition(res renderer.Resource, before, after metadata.ResourceState) {
	if !l.recording {
		core.LogError("Transition of %s recorded on a closed list.", res.ID().Short())
		return
	}
	switch r := res.(type) {
	case *Texture:
		l.textureLayout(r, imageLayout(after))
		r.state = after
	case *RenderTarget:
		l.targetLayout(r, imageLayout(after))
		r.state = after
		if after == metadata.ResourceStatePresent {
			l.presents = r
		}
	}
}

func (l *CommandList) CopyBufferToTexture(dst renderer.Texture, subresource uint32, src renderer.StagingBuffer, fp metadata.SubresourceFootprint) {
	t, ok := dst.(*Texture)
	b, ok2 := src.(*StagingBuffer)
	if !ok || !ok2 || !l.recording {
		return
	}
	l.textureLayout(t, vk.ImageLayoutTransferDstOptimal)
	mip, slice := subresourceLayers(t.desc, subresource)
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(fp.Offset),
		BufferRowLength:   bufferRowLength(fp),
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       mip,
			BaseArrayLayer: slice,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: fp.Width, Height: fp.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(l.current, b.buffer, t.image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (l *CommandList) ClearRenderTarget(rt renderer.RenderTarget, color math.Vec4) {
	r, ok := rt.(*RenderTarget)
	if !ok || !l.recording {
		return
	}
	l.targetLayout(r, vk.ImageLayoutTransferDstOptimal)
	value := clearColorValue(color)
	vk.CmdClearColorImage(l.current, r.image, vk.ImageLayoutTransferDstOptimal, &value, 1, []vk.ImageSubresourceRange{colorRange()})
}

// DrawTexture blits the src texel rect of mip 0, slice 0 into dst. The blit
// path shows every channel view as RGBA.
func (l *CommandList) DrawTexture(rt renderer.RenderTarget, tex renderer.Texture, src, dst math.Rect, channel metadata.ChannelView) {
	r, ok := rt.(*RenderTarget)
	t, ok2 := tex.(*Texture)
	if !ok || !ok2 || !l.recording {
		return
	}
	if !t.blitable {
		l.FillRect(rt, dst, unblitableColor)
		return
	}
	srcOffsets, okSrc := texelRect(src, t.desc.Width, t.desc.Height)
	dstOffsets, okDst := texelRect(dst, r.width, r.height)
	if !okSrc || !okDst {
		return
	}
	filter := vk.FilterLinear
	if dstOffsets[1].X-dstOffsets[0].X >= srcOffsets[1].X-srcOffsets[0].X {
		// Magnified texels stay sharp so block artifacts remain visible.
		filter = vk.FilterNearest
	}

	restore := t.layout
	l.textureLayout(t, vk.ImageLayoutTransferSrcOptimal)
	l.targetLayout(r, vk.ImageLayoutTransferDstOptimal)
	l.blit(t.image, r.image, srcOffsets, dstOffsets, filter)
	l.textureLayout(t, restore)
}

func (l *CommandList) FillRect(rt renderer.RenderTarget, dst math.Rect, color math.Vec4) {
	r, ok := rt.(*RenderTarget)
	if !ok || !l.recording {
		return
	}
	dstOffsets, okDst := texelRect(dst, r.width, r.height)
	if !okDst {
		return
	}
	solid, err := l.device.solidTexture()
	if err != nil {
		core.LogError("Placeholder fill skipped: %s", err)
		return
	}
	l.textureLayout(solid, vk.ImageLayoutTransferDstOptimal)
	value := clearColorValue(color)
	vk.CmdClearColorImage(l.current, solid.image, vk.ImageLayoutTransferDstOptimal, &value, 1, []vk.ImageSubresourceRange{colorRange()})
	l.textureLayout(solid, vk.ImageLayoutTransferSrcOptimal)
	l.targetLayout(r, vk.ImageLayoutTransferDstOptimal)
	l.blit(solid.image, r.image, [2]vk.Offset3D{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}}, dstOffsets, vk.FilterNearest)
}

func (l *CommandList) blit(src, dst vk.Image, srcOffsets, dstOffsets [2]vk.Offset3D, filter vk.Filter) {
	layers := vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	region := vk.ImageBlit{
		SrcSubresource: layers,
		SrcOffsets:     srcOffsets,
		DstSubresource: layers,
		DstOffsets:     dstOffsets,
	}
	vk.CmdBlitImage(l.current, src, vk.ImageLayoutTransferSrcOptimal, dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.ImageBlit{region}, filter)
}

func (l *CommandList) Release() {
	for a, buffer := range l.buffers {
		if a.pool != nil {
			vk.FreeCommandBuffers(l.device.logicalDevice, a.pool, 1, []vk.CommandBuffer{buffer})
		}
	}
	l.buffers = map[*CommandAllocator]vk.CommandBuffer{}
	l.current = nil
	l.recording = false
}

func colorRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}

func clearColorValue(c math.Vec4) vk.ClearColorValue {
	cv := vk.NewClearValue([]float32{c.X, c.Y, c.Z, c.W})
	var value vk.ClearColorValue
	copy(value[:], cv[:])
	return value
}

// texelRect rounds r outwards and clamps it to a width x height image. It
// reports false when nothing of r is left.
func texelRect(r math.Rect, width, height uint32) ([2]vk.Offset3D, bool) {
	x0 := int32(math.Clamp(stdmath.Floor(float64(r.Min.X)), 0, float64(width)))
	y0 := int32(math.Clamp(stdmath.Floor(float64(r.Min.Y)), 0, float64(height)))
	x1 := int32(math.Clamp(stdmath.Ceil(float64(r.Max.X)), 0, float64(width)))
	y1 := int32(math.Clamp(stdmath.Ceil(float64(r.Max.Y)), 0, float64(height)))
	offsets := [2]vk.Offset3D{{X: x0, Y: y0, Z: 0}, {X: x1, Y: y1, Z: 1}}
	return offsets, x1 > x0 && y1 > y0
}
