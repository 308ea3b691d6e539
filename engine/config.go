package engine

import (
	_ "embed"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/texlab/engine/codec"
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/math"
	"github.com/spaghettifunk/texlab/engine/platform"
	"github.com/spaghettifunk/texlab/engine/renderer/components"
	"github.com/spaghettifunk/texlab/engine/renderer/metadata"
	"github.com/spaghettifunk/texlab/engine/viewer"
)

//go:embed defaults.toml
var defaultConfig []byte

type WindowConfig struct {
	Title  string `toml:"title"`
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	Show   string `toml:"show"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type ViewportConfig struct {
	Sensitivity float32 `toml:"sensitivity"`
	MinZoom     float32 `toml:"min_zoom"`
	MaxZoom     float32 `toml:"max_zoom"`
}

type RenderConfig struct {
	FrameCount uint32    `toml:"frame_count"`
	ClearColor []float32 `toml:"clear_color"`
	VSync      bool      `toml:"vsync"`
	Validation bool      `toml:"validation"`
}

type SettingsConfig struct {
	Format          string  `toml:"format"`
	MipFilter       string  `toml:"mip_filter"`
	GenerateMipmaps bool    `toml:"generate_mipmaps"`
	SRGB            bool    `toml:"srgb"`
	Quality         string  `toml:"quality"`
	AlphaWeight     float32 `toml:"alpha_weight"`
	ChannelView     string  `toml:"channel_view"`
	NormalMap       bool    `toml:"normal_map"`
	ReconstructZ    bool    `toml:"reconstruct_z"`
}

type WatchConfig struct {
	Enabled bool `toml:"enabled"`
}

// Config is the launch configuration. It is read once from the embedded
// defaults and never written back.
type Config struct {
	Window   WindowConfig   `toml:"window"`
	Log      LogConfig      `toml:"log"`
	Viewport ViewportConfig `toml:"viewport"`
	Render   RenderConfig   `toml:"render"`
	Settings SettingsConfig `toml:"settings"`
	Watch    WatchConfig    `toml:"watch"`
}

func DefaultConfig() (*Config, error) {
	return ParseConfig(defaultConfig)
}

func ParseConfig(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return fmt.Errorf("window size %dx%d is empty", c.Window.Width, c.Window.Height)
	}
	if _, err := platform.ParseShowMode(c.Window.Show); err != nil {
		return err
	}
	if c.Render.FrameCount < 2 {
		return fmt.Errorf("frame_count must be at least 2, got %d", c.Render.FrameCount)
	}
	if n := len(c.Render.ClearColor); n != 0 && n != 4 {
		return fmt.Errorf("clear_color needs 4 components, got %d", n)
	}
	if _, err := c.Settings.Resolve(); err != nil {
		return err
	}
	return nil
}

func (c *Config) LogLevel() core.LogLevel {
	return core.ParseLogLevel(c.Log.Level)
}

func (c *Config) ShowMode() platform.ShowMode {
	mode, _ := platform.ParseShowMode(c.Window.Show)
	return mode
}

func (c *Config) ClearColor() math.Vec4 {
	if len(c.Render.ClearColor) != 4 {
		return viewer.DEFAULT_CLEAR_COLOR
	}
	cc := c.Render.ClearColor
	return math.NewVec4(cc[0], cc[1], cc[2], cc[3])
}

func (c *Config) NewViewportController() *components.ViewportController {
	return components.NewViewportControllerWithLimits(c.Viewport.Sensitivity, c.Viewport.MinZoom, c.Viewport.MaxZoom)
}

// Resolve turns the textual settings into analyzer settings.
func (s SettingsConfig) Resolve() (viewer.Settings, error) {
	out := viewer.DefaultSettings()
	var err error
	if s.Format != "" {
		if out.Format, err = metadata.ParsePixelFormat(s.Format); err != nil {
			return out, err
		}
		if codec.CandidateIndex(out.Format) < 0 {
			return out, fmt.Errorf("preview format %s: %w", s.Format, core.ErrUnsupportedFormat)
		}
	}
	if s.MipFilter != "" {
		if out.MipFilter, err = codec.ParseMipFilter(s.MipFilter); err != nil {
			return out, err
		}
	}
	if s.Quality != "" {
		if out.Quality, err = codec.ParseQuality(s.Quality); err != nil {
			return out, err
		}
	}
	if s.ChannelView != "" {
		if out.ChannelView, err = metadata.ParseChannelView(s.ChannelView); err != nil {
			return out, err
		}
	}
	out.GenerateMipmaps = s.GenerateMipmaps
	out.SRGB = s.SRGB
	out.AlphaWeight = s.AlphaWeight
	out.IsNormalMap = s.NormalMap
	out.ReconstructZ = s.ReconstructZ
	return out.Normalized(), nil
}
