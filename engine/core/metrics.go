package core

import "github.com/spaghettifunk/texlab/engine/containers"

const AVG_COUNT = 30

// FrameMetrics keeps a rolling frame time average and a frames-per-second count.
type FrameMetrics struct {
	msTimes            *containers.RingQueue[float64]
	msTotal            float64
	msAVG              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{msTimes: containers.NewRingQueue[float64](AVG_COUNT)}
}

func (m *FrameMetrics) Update(frameElapsedTime float64) {
	// Average over the last AVG_COUNT frames.
	frameMS := frameElapsedTime * 1000.0
	if oldest, ok := m.msTimes.Push(frameMS); ok {
		m.msTotal -= oldest
	}
	m.msTotal += frameMS
	m.msAVG = m.msTotal / float64(m.msTimes.Len())

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
}

func (m *FrameMetrics) FPS() float64 {
	return m.fps
}

func (m *FrameMetrics) FrameTime() float64 {
	return m.msAVG
}

func (m *FrameMetrics) Frame() (float64, float64) {
	return m.fps, m.msAVG
}
