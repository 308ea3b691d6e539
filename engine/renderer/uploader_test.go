package renderer_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer"
	"github.com/spaghettifunk/texlab/engine/renderer/headless"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

func newDevice(t *testing.T, manual bool) *headless.Device {
	t.Helper()
	opts := headless.DefaultOptions()
	opts.ManualCompletion = manual
	dev, err := headless.New(opts)
	if err != nil {
		t.Fatalf("headless.New: %v", err)
	}
	return dev
}

func patternImage(t *testing.T, meta metadata.ImageMetadata) *metadata.Image {
	t.Helper()
	img, err := metadata.NewImage(meta)
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	for s := range img.Subresources {
		for i := range img.Subresources[s].Pixels {
			img.Subresources[s].Pixels[i] = byte(i*7 + s*31)
		}
	}
	return img
}

// recordUpload records img on a fresh list and leaves it closed.
func recordUpload(t *testing.T, dev *headless.Device, img *metadata.Image) (renderer.Texture, renderer.StagingBuffer, renderer.CommandList, error) {
	t.Helper()
	alloc, err := dev.CreateCommandAllocator()
	if err != nil {
		t.Fatalf("CreateCommandAllocator: %v", err)
	}
	list, err := dev.CreateCommandList(alloc)
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	if err := list.Reset(alloc); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	tex, staging, uerr := renderer.NewSubresourceUploader().Upload(dev, list, img)
	if err := list.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return tex, staging, list, uerr
}

func TestUploadCopiesEverySubresourceRow(t *testing.T) {
	cases := []metadata.ImageMetadata{
		{Width: 37, Height: 19, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 3, ArraySize: 2},
		{Width: 6, Height: 6, Format: metadata.PixelFormatBC1Unorm, MipLevels: 1, ArraySize: 1},
		{Width: 64, Height: 32, Format: metadata.PixelFormatBC7Unorm, MipLevels: 7, ArraySize: 1},
		{Width: 3, Height: 5, Format: metadata.PixelFormatR16G16B16A16Float, MipLevels: 2, ArraySize: 3},
	}
	for _, meta := range cases {
		dev := newDevice(t, false)
		img := patternImage(t, meta)

		tex, staging, list, err := recordUpload(t, dev, img)
		if err != nil {
			t.Fatalf("%s upload: %v", meta.Format, err)
		}
		if err := dev.Queue().ExecuteCommandLists(list); err != nil {
			t.Fatalf("ExecuteCommandLists: %v", err)
		}
		staging.Release()

		ht := tex.(*headless.Texture)
		for i := range img.Subresources {
			got := ht.SubresourceData(uint32(i))
			if !bytes.Equal(got, img.Subresources[i].Pixels) {
				t.Fatalf("%s subresource %d: texture content differs from source", meta.Format, i)
			}
		}
		if v := dev.Violations(); len(v) != 0 {
			t.Fatalf("%s violations: %v", meta.Format, v)
		}
		tex.Release()
	}
}

func TestUploadStateTransitionsOnExecution(t *testing.T) {
	dev := newDevice(t, true)
	img := patternImage(t, metadata.ImageMetadata{Width: 16, Height: 16, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1})

	tex, staging, list, err := recordUpload(t, dev, img)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := dev.Queue().ExecuteCommandLists(list); err != nil {
		t.Fatalf("ExecuteCommandLists: %v", err)
	}
	if got := tex.State(); got != metadata.ResourceStateCopyDest {
		t.Fatalf("state before completion: got %v, want %v", got, metadata.ResourceStateCopyDest)
	}
	dev.AdvanceAll()
	if got := tex.State(); got != metadata.ResourceStateShaderResource {
		t.Fatalf("state after completion: got %v, want %v", got, metadata.ResourceStateShaderResource)
	}
	staging.Release()
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestUploadStagingMustOutliveExecution(t *testing.T) {
	dev := newDevice(t, true)
	img := patternImage(t, metadata.ImageMetadata{Width: 8, Height: 8, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1})

	_, staging, list, err := recordUpload(t, dev, img)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := dev.Queue().ExecuteCommandLists(list); err != nil {
		t.Fatalf("ExecuteCommandLists: %v", err)
	}
	staging.Release()
	dev.AdvanceAll()
	if v := dev.Violations(); len(v) == 0 {
		t.Fatalf("expected a violation for a released staging buffer")
	}
}

func TestUploadFailureLeavesNoTexture(t *testing.T) {
	img := func(t *testing.T) *metadata.Image {
		return patternImage(t, metadata.ImageMetadata{Width: 8, Height: 8, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1})
	}
	cases := []struct {
		name                      string
		texture, staging, mapping bool
	}{
		{"texture", true, false, false},
		{"staging", false, true, false},
		{"map", false, false, true},
	}
	for _, tc := range cases {
		dev := newDevice(t, false)
		dev.SetFailures(tc.texture, tc.staging, tc.mapping)

		tex, staging, _, err := recordUpload(t, dev, img(t))
		if !errors.Is(err, core.ErrUpload) || !errors.Is(err, headless.ErrInjected) {
			t.Fatalf("%s: got %v, want ErrUpload wrapping ErrInjected", tc.name, err)
		}
		if tex != nil || staging != nil {
			t.Fatalf("%s: resources returned on failure", tc.name)
		}
		if got := dev.LiveTextures(); got != 0 {
			t.Fatalf("%s: live textures: got %d, want 0", tc.name, got)
		}
	}
}

func TestUploadRejectsInvalidImages(t *testing.T) {
	dev := newDevice(t, false)

	_, _, _, err := recordUpload(t, dev, nil)
	if !errors.Is(err, core.ErrUpload) || !errors.Is(err, core.ErrInvalidImage) {
		t.Fatalf("nil image: got %v", err)
	}

	empty := &metadata.Image{Metadata: metadata.ImageMetadata{Width: 4, Height: 4, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1}}
	_, _, _, err = recordUpload(t, dev, empty)
	if !errors.Is(err, core.ErrInvalidImage) {
		t.Fatalf("image without pixels: got %v", err)
	}

	zero := &metadata.Image{Metadata: metadata.ImageMetadata{Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1}}
	_, _, _, err = recordUpload(t, dev, zero)
	if !errors.Is(err, core.ErrInvalidImage) {
		t.Fatalf("zero sized image: got %v", err)
	}
	// An R8 subresource inside an RGBA8 image is large enough for its own
	// rows but not for the rows the texture expects.
	meta := metadata.ImageMetadata{Width: 8, Height: 8, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1}
	mixed := &metadata.Image{Metadata: meta, Subresources: []metadata.Subresource{{
		Width: 8, Height: 8, Format: metadata.PixelFormatR8Unorm, RowPitch: 8, SlicePitch: 64, Pixels: make([]uint8, 64),
	}}}
	_, _, _, err = recordUpload(t, dev, mixed)
	if !errors.Is(err, core.ErrUpload) || !errors.Is(err, core.ErrInvalidImage) {
		t.Fatalf("subresource format mismatch: got %v", err)
	}

	small := &metadata.Image{Metadata: meta, Subresources: []metadata.Subresource{{
		Width: 4, Height: 4, Format: metadata.PixelFormatR8G8B8A8Unorm, RowPitch: 16, SlicePitch: 64, Pixels: make([]uint8, 64),
	}}}
	_, _, _, err = recordUpload(t, dev, small)
	if !errors.Is(err, core.ErrInvalidImage) {
		t.Fatalf("subresource extent mismatch: got %v", err)
	}

	if got := dev.LiveTextures(); got != 0 {
		t.Fatalf("live textures: got %d, want 0", got)
	}
}

func TestUploadThroughScheduler(t *testing.T) {
	dev := newDevice(t, false)
	_, fs := newScheduler(t, dev)
	ctx := context.Background()

	img := patternImage(t, metadata.ImageMetadata{Width: 37, Height: 19, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 3, ArraySize: 1})
	up := renderer.NewSubresourceUploader()

	list, err := fs.BeginUpload(ctx)
	if err != nil {
		t.Fatalf("BeginUpload: %v", err)
	}
	tex, staging, err := up.Upload(dev, list, img)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := fs.SubmitUpload(ctx); err != nil {
		t.Fatalf("SubmitUpload: %v", err)
	}
	staging.Release()

	if got := tex.State(); got != metadata.ResourceStateShaderResource {
		t.Fatalf("state: got %v, want %v", got, metadata.ResourceStateShaderResource)
	}
	if uploads, n := up.Stats(); uploads != 1 || n == 0 {
		t.Fatalf("stats: got %d uploads of %d bytes", uploads, n)
	}
	if fs.State() != renderer.FrameStateIdle {
		t.Fatalf("scheduler state: got %v, want idle", fs.State())
	}
	if v := dev.Violations(); len(v) != 0 {
		t.Fatalf("violations: %v", v)
	}
}

func TestTextureSlotReplaceReleasesPrevious(t *testing.T) {
	dev := newDevice(t, false)
	desc := metadata.TextureDesc{Width: 4, Height: 4, Format: metadata.PixelFormatR8G8B8A8Unorm, MipLevels: 1, ArraySize: 1}
	a, _ := dev.CreateTexture(desc, metadata.ResourceStateShaderResource)
	b, _ := dev.CreateTexture(desc, metadata.ResourceStateShaderResource)

	slot := renderer.NewTextureSlot("original")
	slot.Replace(a)
	slot.Replace(a)
	if a.(*headless.Texture).Released() {
		t.Fatalf("replacing with the same texture released it")
	}
	slot.Replace(b)
	if !a.(*headless.Texture).Released() {
		t.Fatalf("previous texture not released")
	}
	slot.Release()
	if !slot.IsEmpty() || dev.LiveTextures() != 0 {
		t.Fatalf("slot not empty after release: live %d", dev.LiveTextures())
	}
}
