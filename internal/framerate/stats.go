// Package framerate measures the draw rate of the render loop.
//
// A Meter keeps a bounded window of recent frame timestamps; Stats derives
// mean FPS, the spread of instantaneous FPS, inter-frame jitter and a
// stability verdict from that window.
package framerate

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a fraction of mean FPS.
	// 60 FPS mean → stable if stddev < 9 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of the expected interval.
	// 60 FPS (16.6ms) → stable if jitter < 3.3ms
	jitterStabilityThreshold = 0.20

	// DefaultWindow is the number of timestamps retained (about two seconds at 60 Hz).
	DefaultWindow = 120
)

// Stats is a summary of a timestamp window.
type Stats struct {
	Frames       int
	Duration     time.Duration
	FPSMean      float64
	FPSStdDev    float64
	FPSMin       float64
	FPSMax       float64
	JitterMean   float64 // seconds
	JitterStdDev float64 // seconds
	JitterMax    float64 // seconds
	IsStable     bool
}

// Calculate summarizes frameTimes, which must be in ascending order.
//
// Mean FPS is derived from the span between the first and last timestamp.
// Fewer than two timestamps yield a zero Stats (with Frames set).
func Calculate(frameTimes []time.Time) Stats {
	n := len(frameTimes)
	if n < 2 {
		return Stats{Frames: n}
	}

	span := frameTimes[n-1].Sub(frameTimes[0])
	out := Stats{Frames: n, Duration: span}
	if span <= 0 {
		return out
	}

	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		intervals = append(intervals, frameTimes[i].Sub(frameTimes[i-1]).Seconds())
	}

	out.FPSMean = float64(len(intervals)) / span.Seconds()

	instantaneous := make([]float64, 0, len(intervals))
	for _, iv := range intervals {
		if iv > 0 {
			instantaneous = append(instantaneous, 1.0/iv)
		}
	}
	if len(instantaneous) == 0 {
		return out
	}

	out.FPSMin, out.FPSMax = instantaneous[0], instantaneous[0]
	for _, fps := range instantaneous {
		out.FPSMin = math.Min(out.FPSMin, fps)
		out.FPSMax = math.Max(out.FPSMax, fps)
	}
	out.FPSStdDev = stddev(instantaneous, out.FPSMean)

	expected := 1.0 / out.FPSMean
	jitters := make([]float64, len(intervals))
	var sum float64
	for i, iv := range intervals {
		j := math.Abs(iv - expected)
		jitters[i] = j
		sum += j
		out.JitterMax = math.Max(out.JitterMax, j)
	}
	out.JitterMean = sum / float64(len(jitters))
	out.JitterStdDev = stddev(jitters, out.JitterMean)

	out.IsStable = out.FPSStdDev < out.FPSMean*fpsStabilityThreshold &&
		out.JitterMean < expected*jitterStabilityThreshold

	return out
}

func stddev(values []float64, mean float64) float64 {
	var sumSquares float64
	for _, v := range values {
		d := v - mean
		sumSquares += d * d
	}
	return math.Sqrt(sumSquares / float64(len(values)))
}

// Meter records frame timestamps into a ring of fixed capacity.
// It is safe for concurrent use.
type Meter struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
}

// NewMeter creates a meter retaining the last window timestamps.
// window <= 1 selects DefaultWindow.
func NewMeter(window int) *Meter {
	if window <= 1 {
		window = DefaultWindow
	}
	return &Meter{times: make([]time.Time, window)}
}

// Observe records one drawn frame.
func (m *Meter) Observe(t time.Time) {
	m.mu.Lock()
	m.times[m.next] = t
	m.next = (m.next + 1) % len(m.times)
	if m.next == 0 {
		m.full = true
	}
	m.mu.Unlock()
}

// Reset discards the window, e.g. after playback resumes.
func (m *Meter) Reset() {
	m.mu.Lock()
	m.next = 0
	m.full = false
	m.mu.Unlock()
}

// Stats summarizes the current window.
func (m *Meter) Stats() Stats {
	m.mu.Lock()
	var ordered []time.Time
	if m.full {
		ordered = make([]time.Time, 0, len(m.times))
		ordered = append(ordered, m.times[m.next:]...)
		ordered = append(ordered, m.times[:m.next]...)
	} else {
		ordered = append([]time.Time(nil), m.times[:m.next]...)
	}
	m.mu.Unlock()

	return Calculate(ordered)
}
