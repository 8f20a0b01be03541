// Package stats computes rotation-synchronized RMS aggregates over the
// tail of the rolling history.
package stats

import (
	"math"

	"codeberg.org/mutker/motortwin/internal/telemetry"
	"gonum.org/v1/gonum/floats"
)

// Source is the read side of the rolling history.
type Source interface {
	Len() int
	Snapshot(maxLen int) []telemetry.Frame
}

// Phases holds one value per motor phase.
type Phases struct {
	U float64 `json:"u"`
	V float64 `json:"v"`
	W float64 `json:"w"`
}

// Average returns the mean of the three phases, or 0 if it is not a
// number.
func (p Phases) Average() float64 {
	avg := (p.U + p.V + p.W) / 3
	if math.IsNaN(avg) {
		return 0
	}
	return avg
}

// Window is the result of one computation. Length is the number of
// frames the RMS values were taken over.
type Window struct {
	Length  int    `json:"length"`
	Voltage Phases `json:"rms_voltage"`
	Current Phases `json:"rms_current"`
}

// WindowLength returns the number of trailing frames for the given
// shaft speed (rev/min), clamped to [1, available]. A stopped motor
// yields 0.
//
// The ratio (2π·speed/60) / (speed/60) cancels to 2π, so every
// positive speed yields the same length. It is kept as is.
func WindowLength(speed float64, available int) int {
	if speed <= 0 || available <= 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0
	}

	revsPerSecond := speed / 60
	n := math.Round(2 * math.Pi * revsPerSecond / revsPerSecond)

	if n > float64(available) {
		return available
	}
	return max(int(n), 1)
}

// Compute snapshots the window from src and computes per-phase RMS
// voltage and current.
func Compute(src Source, speed float64) Window {
	n := WindowLength(speed, src.Len())
	if n == 0 {
		return Window{}
	}

	frames := src.Snapshot(n)

	return Window{
		Length: len(frames),
		Voltage: Phases{
			U: rms(frames, func(f telemetry.Frame) float64 { return f.VoltageU }),
			V: rms(frames, func(f telemetry.Frame) float64 { return f.VoltageV }),
			W: rms(frames, func(f telemetry.Frame) float64 { return f.VoltageW }),
		},
		Current: Phases{
			U: rms(frames, func(f telemetry.Frame) float64 { return f.CurrentU }),
			V: rms(frames, func(f telemetry.Frame) float64 { return f.CurrentV }),
			W: rms(frames, func(f telemetry.Frame) float64 { return f.CurrentW }),
		},
	}
}

func rms(frames []telemetry.Frame, value func(telemetry.Frame) float64) float64 {
	if len(frames) == 0 {
		return 0
	}

	xs := make([]float64, len(frames))
	for i, f := range frames {
		xs[i] = value(f)
	}

	return math.Sqrt(floats.Dot(xs, xs) / float64(len(xs)))
}
