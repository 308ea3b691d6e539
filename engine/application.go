package engine

import (
	"github.com/spaghettifunk/texlab/engine/core"
	"github.com/spaghettifunk/texlab/engine/platform"
)

const DEFAULT_TITLE = "Texture Artifact Analyzer & Converter"

type ApplicationConfig struct {
	// The application name used in the window title.
	Name string
	// Window starting width.
	StartWidth uint32
	// Window starting height.
	StartHeight uint32
	// How the window first appears.
	Show     platform.ShowMode
	LogLevel core.LogLevel
	// Re-queue the current source when it changes on disk.
	WatchSource bool
}

func (c *Config) Application() *ApplicationConfig {
	name := c.Window.Title
	if name == "" {
		name = DEFAULT_TITLE
	}
	return &ApplicationConfig{
		Name:        name,
		StartWidth:  c.Window.Width,
		StartHeight: c.Window.Height,
		Show:        c.ShowMode(),
		LogLevel:    c.LogLevel(),
		WatchSource: c.Watch.Enabled,
	}
}
