package metrics

import (
	"context"
	"time"
)

// Recorder stores tick summaries and connection transitions.
type Recorder interface {
	Record(ctx context.Context, rec *TickRecord) error
	RecordTransition(ctx context.Context, tr *Transition) error
	Close() error
}

// Repository is the storage behind a Recorder.
type Repository interface {
	Record(rec *TickRecord) error
	RecordTransition(tr *Transition) error
	Close() error
}

// TickRecord is the persisted summary of one published tick.
type TickRecord struct {
	Timestamp         time.Time
	Connection        string
	Status            string
	Speed             float64
	Temperature       float64
	WindowLength      int
	RMSVoltage        float64
	RMSCurrent        float64
	FrameColor        string
	WireColor         string
	ParticleAmplitude float64
	NetworkLatency    time.Duration
	RenderingLatency  time.Duration
	SensorInterval    time.Duration
}

type Transition struct {
	Timestamp time.Time
	From      string
	To        string
}
