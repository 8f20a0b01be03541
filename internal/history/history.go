package history

import (
	"math"
	"time"

	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/telemetry"
)

const (
	historySpan = time.Minute
	minCapacity = 1
	maxCapacity = 60000
)

// History is a bounded, arrival-ordered buffer of frames. It is not safe
// for concurrent use; the pipeline goroutine owns it.
type History struct {
	frames   []telemetry.Frame
	capacity int
	last     time.Time
	appended bool
}

// New returns an empty history holding at most capacity frames.
func New(capacity int) *History {
	capacity = clampCapacity(capacity)
	return &History{
		frames:   make([]telemetry.Frame, 0, capacity),
		capacity: capacity,
	}
}

// CapacityFor returns the number of frames covering one minute at the
// given sample interval.
func CapacityFor(sampleInterval time.Duration) int {
	ms := float64(sampleInterval) / float64(time.Millisecond)
	if ms <= 0 {
		return maxCapacity
	}

	return clampCapacity(int(math.Round(float64(historySpan/time.Millisecond) / ms)))
}

// Seed fills the buffer with n synthetic zero frames. Seeded frames
// bypass the ordering check and do not count as appended.
func (h *History) Seed(n int) {
	for i := 0; i < n; i++ {
		h.frames = append(h.frames, telemetry.Frame{Status: telemetry.Unknown})
	}
	h.trim()
}

// Append adds a frame whose timestamp is strictly after the last
// appended one, discarding the oldest frames beyond capacity.
func (h *History) Append(f telemetry.Frame) error {
	if h.appended && !f.Timestamp.After(h.last) {
		return errors.New().WithData(ErrOutOfOrder, struct {
			Timestamp time.Time
			Last      time.Time
		}{
			Timestamp: f.Timestamp,
			Last:      h.last,
		})
	}

	h.frames = append(h.frames, f)
	h.last = f.Timestamp
	h.appended = true
	h.trim()

	return nil
}

// SetCapacity changes the capacity and trims the oldest frames if
// needed.
func (h *History) SetCapacity(n int) {
	h.capacity = clampCapacity(n)
	h.trim()
}

// Snapshot returns a copy of the most recent min(maxLen, Len()) frames,
// oldest first.
func (h *History) Snapshot(maxLen int) []telemetry.Frame {
	n := min(max(maxLen, 0), len(h.frames))
	out := make([]telemetry.Frame, n)
	copy(out, h.frames[len(h.frames)-n:])

	return out
}

// Latest returns the newest frame, seeded or appended.
func (h *History) Latest() (telemetry.Frame, bool) {
	if len(h.frames) == 0 {
		return telemetry.Frame{}, false
	}

	return h.frames[len(h.frames)-1], true
}

func (h *History) Len() int {
	return len(h.frames)
}

func (h *History) Capacity() int {
	return h.capacity
}

func (h *History) trim() {
	if over := len(h.frames) - h.capacity; over > 0 {
		clear(h.frames[:over])
		h.frames = h.frames[over:]
	}
}

func clampCapacity(n int) int {
	return min(max(n, minCapacity), maxCapacity)
}
