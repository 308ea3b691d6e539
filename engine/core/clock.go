package core

import "time"

type Clock struct {
	startTime time.Time
	running   bool
	elapsed   time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called just before checking elapsed time.
// Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = time.Since(c.startTime)
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = time.Now()
	c.running = true
	c.elapsed = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.Update()
	c.running = false
}

// Elapsed returns the elapsed time in seconds as of the last Update or Stop.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}

// Measure runs fn and returns how long it took in seconds along with its error.
func Measure(fn func() error) (float64, error) {
	c := NewClock()
	c.Start()
	err := fn()
	c.Stop()
	return c.Elapsed(), err
}
