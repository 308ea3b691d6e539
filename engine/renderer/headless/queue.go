package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/spaghettifunk/texlab/engine/renderer"
)

// submission is one unit on the simulated timeline: either the ops of an
// executed command list or a fence signal.
type submission struct {
	ops       []op
	allocator *CommandAllocator
	fence     *Fence
	value     uint64
}

type Queue struct {
	device  *Device
	pending []submission
}

func (q *Queue) ExecuteCommandLists(lists ...renderer.CommandList) error {
	q.device.mu.Lock()
	defer q.device.mu.Unlock()
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("foreign command list %T", l)
		}
		if !cl.closed {
			return fmt.Errorf("execute of a command list that is still recording")
		}
		cl.allocator.inFlight++
		q.push(submission{ops: append([]op(nil), cl.ops...), allocator: cl.allocator})
	}
	return nil
}

func (q *Queue) Signal(fence renderer.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("foreign fence %T", fence)
	}
	q.device.mu.Lock()
	defer q.device.mu.Unlock()
	q.push(submission{fence: f, value: value})
	return nil
}

// push must be called with the device lock held.
func (q *Queue) push(s submission) {
	q.pending = append(q.pending, s)
	if !q.device.opts.ManualCompletion {
		q.complete(len(q.pending))
	}
}

// complete must be called with the device lock held.
func (q *Queue) complete(n int) int {
	n = min(n, len(q.pending))
	for i := 0; i < n; i++ {
		s := q.pending[i]
		for _, o := range s.ops {
			o(q.device)
		}
		if s.allocator != nil {
			s.allocator.inFlight--
		}
		if s.fence != nil {
			s.fence.set(s.value)
		}
	}
	q.pending = q.pending[n:]
	return n
}

type CommandAllocator struct {
	device   *Device
	inFlight int
	resets   int
}

func (a *CommandAllocator) Reset() error {
	a.device.mu.Lock()
	defer a.device.mu.Unlock()
	if a.inFlight > 0 {
		a.device.violation("command allocator reset with %d submissions in flight", a.inFlight)
		return fmt.Errorf("command allocator still in use by %d submissions", a.inFlight)
	}
	a.resets++
	return nil
}

func (a *CommandAllocator) Resets() int {
	a.device.mu.Lock()
	defer a.device.mu.Unlock()
	return a.resets
}

func (a *CommandAllocator) Release() {}

type Fence struct {
	mu      sync.Mutex
	value   uint64
	changed chan struct{}
}

func newFence(initial uint64) *Fence {
	return &Fence{value: initial, changed: make(chan struct{})}
}

func (f *Fence) set(value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value > f.value {
		f.value = value
	}
	close(f.changed)
	f.changed = make(chan struct{})
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value
}

func (f *Fence) Wait(ctx context.Context, value uint64) error {
	for {
		f.mu.Lock()
		if f.value >= value {
			f.mu.Unlock()
			return nil
		}
		changed := f.changed
		f.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("fence wait for %d: %w", value, ctx.Err())
		}
	}
}

func (f *Fence) Release() {}
