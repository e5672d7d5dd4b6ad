package testutil

import "sync"

// ManualFrames is a deterministic frame source for scheduler tests.
//
// Nothing advances on its own: tests call Advance between driver calls to
// move to the next host frame. Realtime advances by the same delta as the
// frame clock unless set explicitly. The fixed step equals the frame delta
// until SetFixedDelta is called.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualFrames struct {
	mu       sync.Mutex
	frame    int64
	delta    float64
	fixed    float64
	realtime float64
}

// NewManualFrames creates a frame source at frame 0 with the given delta.
func NewManualFrames(delta float64) *ManualFrames {
	return &ManualFrames{delta: delta}
}

// FrameCount returns the current frame number.
func (f *ManualFrames) FrameCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

// DeltaTime returns the configured delta.
func (f *ManualFrames) DeltaTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.delta
}

// FixedDeltaTime returns the fixed step, or the frame delta if none was set.
func (f *ManualFrames) FixedDeltaTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fixed > 0 {
		return f.fixed
	}
	return f.delta
}

// Realtime returns seconds since the source was created.
func (f *ManualFrames) Realtime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.realtime
}

// Advance moves to the next frame and adds delta to realtime.
func (f *ManualFrames) Advance() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame++
	f.realtime += f.delta
}

// AdvanceBy moves n frames forward.
func (f *ManualFrames) AdvanceBy(n int) {
	for range n {
		f.Advance()
	}
}

// SetDelta changes the delta reported from now on.
func (f *ManualFrames) SetDelta(delta float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delta = delta
}

// SetFixedDelta changes the fixed step reported from now on.
func (f *ManualFrames) SetFixedDelta(delta float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixed = delta
}

// SetRealtime overrides realtime without touching the frame counter.
func (f *ManualFrames) SetRealtime(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.realtime = t
}
