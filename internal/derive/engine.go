// Package derive maps the latest frame and window statistics into the
// parameters consumed by the scene and panel.
package derive

import (
	"math"
	"time"

	"codeberg.org/mutker/motortwin/internal/stats"
	"codeberg.org/mutker/motortwin/internal/telemetry"
)

// Parameters is produced fresh on every tick.
type Parameters struct {
	FrameColor        RGB              `json:"frame_color"`
	WireColor         RGB              `json:"wire_color"`
	ParticleAmplitude float64          `json:"particle_amplitude"`
	Status            telemetry.Status `json:"status"`
}

// Engine computes Parameters. The particle amplitude is rate limited to
// one update per interval.
type Engine struct {
	interval    time.Duration
	now         func() time.Time
	amplitude   float64
	amplitudeAt time.Time
	primed      bool
}

type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func NewEngine(interval time.Duration, opts ...Option) *Engine {
	e := &Engine{
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetInterval changes the amplitude rate limit.
func (e *Engine) SetInterval(interval time.Duration) {
	e.interval = interval
}

func (e *Engine) Compute(latest telemetry.Frame, w stats.Window) Parameters {
	return Parameters{
		FrameColor:        Heatmap(latest.Temperature),
		WireColor:         VoltageMap(w.Voltage.Average() * math.Sqrt2),
		ParticleAmplitude: e.particleAmplitude(w.Current.Average() * math.Sqrt2),
		Status:            latest.Status,
	}
}

func (e *Engine) particleAmplitude(target float64) float64 {
	now := e.now()
	if !e.primed || now.Sub(e.amplitudeAt) >= e.interval {
		e.amplitude = target
		e.amplitudeAt = now
		e.primed = true
	}
	return e.amplitude
}
