package renderer

import (
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// SubresourceUploader turns a CPU image into a device texture through a
// staging buffer laid out by the device's copyable footprints.
type SubresourceUploader struct {
	uploadedBytes uint64
	uploads       uint64
}

func NewSubresourceUploader() *SubresourceUploader {
	return &SubresourceUploader{}
}

/**
 * @brief Records the upload of img into a new texture on list.
 *
 * The returned texture is in copy-dest state until list executes and becomes
 * shader-readable afterwards. The staging buffer backs the recorded copies
 * and must stay alive until the GPU has consumed them.
 * On failure nothing is returned and every partially created resource is released.
 */
func (u *SubresourceUploader) Upload(device Device, list CommandList, img *metadata.Image) (Texture, StagingBuffer, error) {
	if device == nil || list == nil {
		return nil, nil, fmt.Errorf("upload needs a device and a command list: %w", core.ErrUpload)
	}
	if err := img.Validate(); err != nil {
		return nil, nil, fmt.Errorf("upload source: %w: %w", core.ErrUpload, err)
	}

	desc := img.Metadata.TextureDesc()
	texture, err := device.CreateTexture(desc, metadata.ResourceStateCopyDest)
	if err != nil {
		return nil, nil, fmt.Errorf("create %dx%d %s texture: %w: %w", desc.Width, desc.Height, desc.Format, core.ErrUpload, err)
	}

	table, err := device.CopyableFootprints(desc)
	if err != nil {
		texture.Release()
		return nil, nil, fmt.Errorf("footprints: %w: %w", core.ErrUpload, err)
	}
	if len(table.Footprints) != len(img.Subresources) {
		texture.Release()
		return nil, nil, fmt.Errorf("device returned %d footprints for %d subresources: %w", len(table.Footprints), len(img.Subresources), core.ErrUpload)
	}

	staging, err := device.CreateStagingBuffer(table.TotalSize)
	if err != nil {
		texture.Release()
		return nil, nil, fmt.Errorf("create %d byte staging buffer: %w: %w", table.TotalSize, core.ErrUpload, err)
	}

	if err := fillStaging(staging, table, img); err != nil {
		staging.Release()
		texture.Release()
		return nil, nil, err
	}

	for i, fp := range table.Footprints {
		list.CopyBufferToTexture(texture, uint32(i), staging, fp)
	}
	list.Transition(texture, metadata.ResourceStateCopyDest, metadata.ResourceStateShaderResource)

	u.uploads++
	u.uploadedBytes += table.TotalSize
	core.LogDebug("Recorded upload of texture %s (%dx%d %s, %d subresources, %d staging bytes).",
		texture.ID().Short(), desc.Width, desc.Height, desc.Format, len(table.Footprints), table.TotalSize)
	return texture, staging, nil
}

// fillStaging copies every source row into its padded slot in the staging
// buffer. Source and destination pitches differ, so rows are copied one by one.
func fillStaging(staging StagingBuffer, table *metadata.FootprintTable, img *metadata.Image) error {
	dst, err := staging.Map()
	if err != nil {
		return fmt.Errorf("map staging buffer: %w: %w", core.ErrUpload, err)
	}
	defer staging.Unmap()

	if uint64(len(dst)) < table.TotalSize {
		return fmt.Errorf("mapped %d bytes, need %d: %w", len(dst), table.TotalSize, core.ErrUpload)
	}

	for i, fp := range table.Footprints {
		src := &img.Subresources[i]
		if src.Width != fp.Width || src.Height != fp.Height {
			return fmt.Errorf("subresource %d is %dx%d, footprint expects %dx%d: %w", i, src.Width, src.Height, fp.Width, fp.Height, core.ErrUpload)
		}
		for row := uint32(0); row < fp.RowCount; row++ {
			s := uint64(row) * src.RowPitch
			d := fp.Offset + uint64(row)*fp.RowPitch
			if s+fp.RowSize > uint64(len(src.Pixels)) {
				return fmt.Errorf("subresource %d row %d ends past its %d bytes: %w", i, row, len(src.Pixels), core.ErrUpload)
			}
			copy(dst[d:d+fp.RowSize], src.Pixels[s:s+fp.RowSize])
		}
	}
	return nil
}

// Stats returns the number of uploads recorded and the staging bytes they used.
func (u *SubresourceUploader) Stats() (uploads, bytes uint64) {
	return u.uploads, u.uploadedBytes
}
