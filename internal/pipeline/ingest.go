package pipeline

import (
	"time"

	"codeberg.org/mutker/motortwin/internal/history"
	"codeberg.org/mutker/motortwin/internal/telemetry"
)

// ingest appends decoded frames and tracks the observed sensor interval.
type ingest struct {
	history        *history.History
	adaptive       bool
	last           time.Time
	sensorInterval time.Duration
}

func (i *ingest) Append(f telemetry.Frame) error {
	if err := i.history.Append(f); err != nil {
		return err
	}

	if !i.last.IsZero() {
		i.sensorInterval = f.Timestamp.Sub(i.last)
		if i.adaptive {
			i.history.SetCapacity(adaptiveCapacity(i.history.Capacity(), i.sensorInterval))
		}
	}
	i.last = f.Timestamp

	return nil
}

// adaptiveCapacity follows the observed interval but shrinks by at most
// one frame per append, so a single late frame cannot empty the history.
func adaptiveCapacity(current int, interval time.Duration) int {
	target := history.CapacityFor(interval)
	if target < current {
		return current - 1
	}
	return target
}
