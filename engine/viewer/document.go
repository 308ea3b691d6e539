package viewer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/texlab/engine/codec"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

// Codec is the image library the analyzer drives.
type Codec interface {
	Decode(path string) (*metadata.Image, error)
	GenerateMipChain(img *metadata.Image, filter codec.MipFilter) (*metadata.Image, error)
	Compress(img *metadata.Image, target metadata.PixelFormat, flags codec.CompressFlags, alphaWeight float32) (*metadata.Image, error)
	EncodeContainerFile(img *metadata.Image, path string) error
}

// TextureDocument is a decoded source image and where it came from.
type TextureDocument struct {
	ID     core.ResourceID
	Path   string
	Source *metadata.Image
}

func LoadFromFile(c Codec, path string) (*TextureDocument, error) {
	img, err := c.Decode(path)
	if err != nil {
		return nil, err
	}
	return &TextureDocument{ID: core.NewResourceID(), Path: path, Source: img}, nil
}

func LoadFromImage(img *metadata.Image) (*TextureDocument, error) {
	if err := img.Validate(); err != nil {
		return nil, fmt.Errorf("load image: %w: %w", core.ErrCodec, err)
	}
	return &TextureDocument{ID: core.NewResourceID(), Source: img}, nil
}

// ContainerPath is the source path with its extension replaced by .dds.
func (d *TextureDocument) ContainerPath() string {
	if d.Path == "" {
		return ""
	}
	return strings.TrimSuffix(d.Path, filepath.Ext(d.Path)) + ".dds"
}

// PreviewCache holds the compressed rendition of a document.
type PreviewCache struct {
	Compressed *metadata.Image
}

// Rebuild produces the compressed image for doc under settings. The cache is
// only replaced when every step succeeds.
func (p *PreviewCache) Rebuild(c Codec, doc *TextureDocument, s Settings) error {
	if doc == nil || doc.Source == nil {
		return core.ErrNoImage
	}
	working := doc.Source
	if s.IsNormalMap && s.ReconstructZ {
		working = working.Clone()
		if err := codec.ReconstructZ(working); err != nil {
			return err
		}
	}
	if s.GenerateMipmaps {
		mips, err := c.GenerateMipChain(working, s.MipFilter)
		if err != nil {
			return err
		}
		working = mips
	}
	out, err := c.Compress(working, s.ResolvedFormat(), s.CompressFlags(), s.AlphaWeight)
	if err != nil {
		return err
	}
	p.Compressed = out
	return nil
}

func (p *PreviewCache) SaveAsDDS(c Codec, path string) error {
	if p.Compressed == nil {
		return core.ErrNoImage
	}
	return c.EncodeContainerFile(p.Compressed, path)
}
