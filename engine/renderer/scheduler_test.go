package renderer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/headless"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

func newScheduler(t *testing.T, dev *headless.Device) (*renderer.Context, *renderer.FrameScheduler) {
	t.Helper()
	rc, err := renderer.NewContext(dev, dev.Swapchain())
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	fs, err := renderer.NewFrameScheduler(rc)
	if err != nil {
		t.Fatalf("NewFrameScheduler: %v", err)
	}
	t.Cleanup(func() {
		fs.Release()
		rc.Release()
	})
	return rc, fs
}

func runFrame(t *testing.T, fs *renderer.FrameScheduler, items []renderer.DrawItem) *renderer.FrameSlot {
	t.Helper()
	slot, err := fs.BeginFrame(context.Background())
	if err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	fs.RecordPresentationTransition()
	fs.RecordClear(math.NewVec4(0.1, 0.1, 0.1, 1))
	fs.RecordUIDraw(items)
	if err := fs.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	return slot
}

func TestFrameSchedulerRotatesSlots(t *testing.T) {
	dev := newDevice(t, false)
	_, fs := newScheduler(t, dev)

	for i := 0; i < 5; i++ {
		slot := runFrame(t, fs, nil)
		if want := uint32(i % 2); slot.Index != want {
			t.Fatalf("frame %d slot: got %d, want %d", i, slot.Index, want)
		}
		if slot.FenceValue == 0 {
			t.Fatalf("frame %d: slot fence value not recorded", i)
		}
	}
	if got := fs.FrameCount(); got != 5 {
		t.Fatalf("frame count: got %d, want 5", got)
	}
	if got := dev.Swapchain().Presents(); got != 5 {
		t.Fatalf("presents: got %d, want 5", got)
	}
	for i := uint32(0); i < 2; i++ {
		if got := dev.Swapchain().Buffer(i).State(); got != metadata.ResourceStatePresent {
			t.Fatalf("buffer %d state: got %v, want present", i, got)
		}
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestBeginFrameWaitsForSlotFence(t *testing.T) {
	dev := newDevice(t, true)
	_, fs := newScheduler(t, dev)

	// Two frames in flight, neither completed.
	runFrame(t, fs, nil)
	runFrame(t, fs, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := fs.BeginFrame(ctx); !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, core.ErrFrameOperation) {
		t.Fatalf("BeginFrame on busy slot: got %v, want deadline exceeded", err)
	}
	if fs.State() != renderer.FrameStateIdle {
		t.Fatalf("state after failed begin: got %v, want idle", fs.State())
	}

	done := make(chan error, 1)
	go func() {
		_, err := fs.BeginFrame(context.Background())
		done <- err
	}()
	select {
	case err := <-done:
		t.Fatalf("BeginFrame returned before the slot completed: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	// Complete frame 0's list and its signal; frame 1 stays in flight.
	dev.Advance(2)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("BeginFrame: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("BeginFrame did not return after the slot completed")
	}
	if got := dev.Pending(); got != 2 {
		t.Fatalf("pending submissions: got %d, want 2", got)
	}
	fs.RecordPresentationTransition()
	if err := fs.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
	dev.AdvanceAll()
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestWaitForIdleDrainsQueue(t *testing.T) {
	dev := newDevice(t, true)
	rc, fs := newScheduler(t, dev)
	runFrame(t, fs, nil)
	runFrame(t, fs, nil)

	done := make(chan error, 1)
	go func() {
		done <- fs.WaitForIdle(context.Background())
	}()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("WaitForIdle: %v", err)
			}
			if got := dev.Pending(); got != 0 {
				t.Fatalf("pending after idle: got %d, want 0", got)
			}
			if rc.CompletedValue() < 3 {
				t.Fatalf("completed value: got %d, want >= 3", rc.CompletedValue())
			}
			return
		case <-deadline:
			t.Fatalf("WaitForIdle did not return")
		default:
			dev.AdvanceAll()
			time.Sleep(time.Millisecond)
		}
	}
}

func TestFrameSchedulerRejectsNestedRecording(t *testing.T) {
	dev := newDevice(t, false)
	_, fs := newScheduler(t, dev)
	ctx := context.Background()

	if err := fs.EndFrame(); !errors.Is(err, core.ErrFrameOperation) {
		t.Fatalf("EndFrame while idle: got %v", err)
	}
	if _, err := fs.BeginFrame(ctx); err != nil {
		t.Fatalf("BeginFrame: %v", err)
	}
	if _, err := fs.BeginFrame(ctx); !errors.Is(err, core.ErrRecordingActive) {
		t.Fatalf("second BeginFrame: got %v, want ErrRecordingActive", err)
	}
	if _, err := fs.BeginUpload(ctx); !errors.Is(err, core.ErrRecordingActive) {
		t.Fatalf("BeginUpload while recording: got %v, want ErrRecordingActive", err)
	}
	if err := fs.SubmitUpload(ctx); !errors.Is(err, core.ErrFrameOperation) {
		t.Fatalf("SubmitUpload while recording: got %v", err)
	}
	fs.RecordPresentationTransition()
	if err := fs.EndFrame(); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}
}

func TestRecordUIDrawPlaceholderAndTexture(t *testing.T) {
	dev := newDevice(t, false)
	_, fs := newScheduler(t, dev)
	desc := metadata.TextureDesc{Width: 8, Height: 8, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1}
	tex, err := dev.CreateTexture(desc, metadata.ResourceStateShaderResource)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	items := []renderer.DrawItem{
		{Dest: math.NewRect(0, 0, 100, 100), Placeholder: math.NewVec4(1, 0, 1, 1)},
		{Dest: math.Rect{}},
		{Texture: tex, Source: math.NewRect(0, 0, 8, 8), Dest: math.NewRect(100, 0, 100, 100), Channel: metadata.ChannelViewA},
	}
	slot := runFrame(t, fs, items)

	cmds := dev.Swapchain().Buffer(slot.Index).Commands()
	if len(cmds) != 3 {
		t.Fatalf("commands: got %d, want 3", len(cmds))
	}
	if cmds[0].Kind != headless.CommandClear || cmds[1].Kind != headless.CommandFill || cmds[2].Kind != headless.CommandDraw {
		t.Fatalf("command kinds: got %v %v %v", cmds[0].Kind, cmds[1].Kind, cmds[2].Kind)
	}
	if cmds[2].Texture != tex.ID() || cmds[2].Channel != metadata.ChannelViewA {
		t.Fatalf("draw command: got %+v", cmds[2])
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestResizeRecreatesBuffers(t *testing.T) {
	dev := newDevice(t, true)
	_, fs := newScheduler(t, dev)
	runFrame(t, fs, nil)

	done := make(chan error, 1)
	go func() {
		done <- fs.Resize(context.Background(), 640, 480)
	}()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Resize: %v", err)
			}
			if w, h := dev.Swapchain().Extent(); w != 640 || h != 480 {
				t.Fatalf("extent: got %dx%d, want 640x480", w, h)
			}
			if v := dev.Violations(); len(v) != 0 {
				t.Fatalf("violations: %v", v)
			}
			return
		case <-deadline:
			t.Fatalf("Resize did not return")
		default:
			dev.AdvanceAll()
			time.Sleep(time.Millisecond)
		}
	}
}

func TestResizeFollowsSwapchainBufferCount(t *testing.T) {
	dev := newDevice(t, false)
	_, fs := newScheduler(t, dev)
	runFrame(t, fs, nil)

	dev.Swapchain().SetResizeBufferCount(3)
	if err := fs.Resize(context.Background(), 800, 600); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := fs.SlotCount(); got != 3 {
		t.Fatalf("slots after growing: got %d, want 3", got)
	}
	for i := 0; i < 6; i++ {
		slot := runFrame(t, fs, nil)
		if want := uint32(i % 3); slot.Index != want {
			t.Fatalf("frame %d slot: got %d, want %d", i, slot.Index, want)
		}
	}

	dev.Swapchain().SetResizeBufferCount(2)
	if err := fs.Resize(context.Background(), 640, 480); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := fs.SlotCount(); got != 2 {
		t.Fatalf("slots after shrinking: got %d, want 2", got)
	}
	for i := 0; i < 4; i++ {
		slot := runFrame(t, fs, nil)
		if want := uint32(i % 2); slot.Index != want {
			t.Fatalf("frame %d slot: got %d, want %d", i, slot.Index, want)
		}
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}
