package headless

import (
	"fmt"

	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// op runs when its submission completes, with the device lock held.
type op func(d *Device)

type CommandList struct {
	device    *Device
	allocator *CommandAllocator
	ops       []op
	closed    bool
}

func (l *CommandList) Reset(alloc renderer.CommandAllocator) error {
	a, ok := alloc.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("foreign command allocator %T", alloc)
	}
	if !l.closed {
		return fmt.Errorf("reset of a command list that is still recording")
	}
	l.allocator = a
	l.ops = l.ops[:0]
	l.closed = false
	return nil
}

func (l *CommandList) Close() error {
	if l.closed {
		return fmt.Errorf("command list already closed")
	}
	l.closed = true
	return nil
}

func (l *CommandList) record(o op) {
	if l.closed {
		l.device.mu.Lock()
		l.device.violation("command recorded on a closed list")
		l.device.mu.Unlock()
		return
	}
	l.ops = append(l.ops, o)
}

func (l *CommandList) Transition(res renderer.Resource, before, after metadata.ResourceState) {
	r, ok := res.(stateful)
	if !ok {
		return
	}
	l.record(func(d *Device) {
		if cur := r.currentState(); cur != before {
			d.violation("resource %s transitioned from %s but is %s", r.ID().Short(), before, cur)
		}
		r.setState(after)
	})
}

func (l *CommandList) CopyBufferToTexture(dst renderer.Texture, subresource uint32, src renderer.StagingBuffer, fp metadata.SubresourceFootprint) {
	t, ok := dst.(*Texture)
	b, ok2 := src.(*StagingBuffer)
	if !ok || !ok2 {
		return
	}
	l.record(func(d *Device) {
		if b.released {
			d.violation("copy into %s reads a released staging buffer", t.id.Short())
			return
		}
		if t.released {
			d.violation("copy into released texture %s", t.id.Short())
			return
		}
		if t.state != metadata.ResourceStateCopyDest {
			d.violation("copy into %s while %s", t.id.Short(), t.state)
		}
		if int(subresource) >= len(t.data) {
			d.violation("copy into %s subresource %d out of range", t.id.Short(), subresource)
			return
		}
		out := t.data[subresource]
		for row := uint64(0); row < uint64(fp.RowCount); row++ {
			s := fp.Offset + row*fp.RowPitch
			o := row * fp.RowSize
			if s+fp.RowSize > uint64(len(b.data)) || o+fp.RowSize > uint64(len(out)) {
				d.violation("copy into %s subresource %d row %d out of bounds", t.id.Short(), subresource, row)
				return
			}
			copy(out[o:o+fp.RowSize], b.data[s:s+fp.RowSize])
		}
	})
}

func (l *CommandList) ClearRenderTarget(rt renderer.RenderTarget, color math.Vec4) {
	r, ok := rt.(*RenderTarget)
	if !ok {
		return
	}
	l.record(func(d *Device) {
		if r.state != metadata.ResourceStateRenderTarget {
			d.violation("clear of %s while %s", r.id.Short(), r.state)
		}
		r.commands = append(r.commands[:0], Command{Kind: CommandClear, Color: color})
	})
}

func (l *CommandList) DrawTexture(rt renderer.RenderTarget, tex renderer.Texture, src, dst math.Rect, channel metadata.ChannelView) {
	r, ok := rt.(*RenderTarget)
	t, ok2 := tex.(*Texture)
	if !ok || !ok2 {
		return
	}
	l.record(func(d *Device) {
		if t.released {
			d.violation("draw of released texture %s", t.id.Short())
			return
		}
		if t.state != metadata.ResourceStateShaderResource {
			d.violation("draw of %s while %s", t.id.Short(), t.state)
		}
		r.commands = append(r.commands, Command{Kind: CommandDraw, Texture: t.id, Source: src, Dest: dst, Channel: channel})
	})
}

func (l *CommandList) FillRect(rt renderer.RenderTarget, dst math.Rect, color math.Vec4) {
	r, ok := rt.(*RenderTarget)
	if !ok {
		return
	}
	l.record(func(d *Device) {
		r.commands = append(r.commands, Command{Kind: CommandFill, Dest: dst, Color: color})
	})
}

func (l *CommandList) Release() {}
