package viewer

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
)

type Metrics struct {
	SourceBytes      uint64
	CompressedBytes  uint64
	CompressionRatio float64
}

// Analyzer owns the loaded document, its compressed preview and the
// settings that produced it. Failures never escape as panics: they set the
// sticky HasLastError flag and leave the previous images in place.
type Analyzer struct {
	codec    Codec
	document *TextureDocument
	preview  PreviewCache
	settings Settings

	HasLastError        bool
	IsProcessing        bool
	LastLoadSeconds     float64
	LastCompressSeconds float64
	lastErr             error
}

func NewAnalyzer(c Codec, settings Settings) *Analyzer {
	return &Analyzer{codec: c, settings: settings.Normalized()}
}

func (a *Analyzer) Settings() Settings {
	return a.settings
}

func (a *Analyzer) Document() *TextureDocument {
	return a.document
}

func (a *Analyzer) HasImage() bool {
	return a.document != nil
}

func (a *Analyzer) Source() *metadata.Image {
	if a.document == nil {
		return nil
	}
	return a.document.Source
}

func (a *Analyzer) Compressed() *metadata.Image {
	return a.preview.Compressed
}

func (a *Analyzer) ResolvedFormat() metadata.PixelFormat {
	return a.settings.ResolvedFormat()
}

// LastError is the failure behind HasLastError, nil when the flag is clear.
func (a *Analyzer) LastError() error {
	return a.lastErr
}

func (a *Analyzer) fail(op string, err error) error {
	if !errors.Is(err, core.ErrCodec) && !errors.Is(err, core.ErrNoImage) {
		err = fmt.Errorf("%w: %w", core.ErrCodec, err)
	}
	err = fmt.Errorf("%s: %w", op, err)
	a.HasLastError = true
	a.lastErr = err
	core.LogError("%s", err)
	return err
}

func (a *Analyzer) begin() {
	a.HasLastError = false
	a.lastErr = nil
}

// LoadTexture decodes path and builds its preview with the current settings.
func (a *Analyzer) LoadTexture(path string) error {
	a.begin()
	var doc *TextureDocument
	seconds, err := core.Measure(func() error {
		var err error
		doc, err = LoadFromFile(a.codec, path)
		return err
	})
	if err != nil {
		return a.fail("load "+path, err)
	}
	a.LastLoadSeconds = seconds
	return a.adopt(doc)
}

// LoadImage uses an already decoded image as the source.
func (a *Analyzer) LoadImage(img *metadata.Image) error {
	a.begin()
	doc, err := LoadFromImage(img)
	if err != nil {
		return a.fail("load image", err)
	}
	a.LastLoadSeconds = 0
	return a.adopt(doc)
}

// adopt builds the preview of doc and only then makes it current.
func (a *Analyzer) adopt(doc *TextureDocument) error {
	var preview PreviewCache
	seconds, err := core.Measure(func() error {
		return preview.Rebuild(a.codec, doc, a.settings)
	})
	if err != nil {
		return a.fail("compress", err)
	}
	a.LastCompressSeconds = seconds
	a.document = doc
	a.preview = preview
	core.LogInfo("Loaded %s (%dx%d) as %s.", a.describe(), doc.Source.Metadata.Width, doc.Source.Metadata.Height, a.ResolvedFormat())
	return nil
}

// ApplySettings stores s and rebuilds the preview when an image is loaded.
// It returns whether the compressed image changed.
func (a *Analyzer) ApplySettings(s Settings) (bool, error) {
	a.begin()
	s = s.Normalized()
	rebuild := a.document != nil && (a.preview.Compressed == nil || a.settings.affectsCompression(s))
	a.settings = s
	if !rebuild {
		return false, nil
	}
	var preview PreviewCache
	seconds, err := core.Measure(func() error {
		return preview.Rebuild(a.codec, a.document, a.settings)
	})
	if err != nil {
		return false, a.fail("apply settings", err)
	}
	a.LastCompressSeconds = seconds
	a.preview = preview
	return true, nil
}

// SaveCurrentAsDDS writes the compressed image next to its source and
// returns the path written.
func (a *Analyzer) SaveCurrentAsDDS() (string, error) {
	a.begin()
	if a.document == nil || a.preview.Compressed == nil {
		return "", a.fail("save", core.ErrNoImage)
	}
	path := a.document.ContainerPath()
	if path == "" {
		return "", a.fail("save", fmt.Errorf("document has no source path: %w", core.ErrNoImage))
	}
	if err := a.preview.SaveAsDDS(a.codec, path); err != nil {
		return "", a.fail("save "+path, err)
	}
	return path, nil
}

func (a *Analyzer) Metrics() Metrics {
	var m Metrics
	if src := a.Source(); src != nil {
		m.SourceBytes = uint64(src.Metadata.Width) * uint64(src.Metadata.Height) * 4
	}
	if c := a.preview.Compressed; c != nil && len(c.Subresources) > 0 {
		m.CompressedBytes = c.Subresources[0].SlicePitch
	}
	if m.CompressedBytes > 0 {
		m.CompressionRatio = float64(m.SourceBytes) / float64(m.CompressedBytes)
	}
	return m
}

func (a *Analyzer) describe() string {
	if a.document == nil {
		return "nothing"
	}
	if a.document.Path != "" {
		return a.document.Path
	}
	return "image " + a.document.ID.Short()
}
