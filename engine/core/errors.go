package core

import (
	"errors"
)

// Failure classes. Components wrap these with fmt.Errorf("...: %w", ...) so
// the orchestration layer can decide between aborting and recording state.
var (
	// Adapter, device, swapchain or heap creation failed. Aborts startup.
	ErrDeviceInit = errors.New("device initialization failed")
	// Allocator/list reset or submission failed mid-run. Fatal.
	ErrFrameOperation = errors.New("frame operation failed")
	// Bad source image or resource/mapping allocation failure. The texture is left absent.
	ErrUpload = errors.New("texture upload failed")
	// Decode, compress or encode failure. Sets the sticky error flag.
	ErrCodec = errors.New("codec operation failed")
)

var (
	ErrNoImage           = errors.New("no image loaded")
	ErrInvalidImage      = errors.New("invalid image")
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrRecordingActive   = errors.New("command list is already recording")
	ErrResourceReleased  = errors.New("resource already released")
	ErrSwapchainBooting  = errors.New("swapchain resized or recreated, booting")
	ErrUnknown           = errors.New("unknown")
)
