package pipeline

import (
	"context"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/derive"
	"codeberg.org/mutker/motortwin/internal/stats"
	"codeberg.org/mutker/motortwin/internal/telemetry"
)

// Scene is the update consumed by the 3D scene.
type Scene struct {
	FrameColor        derive.RGB `json:"frameColor"`
	WireColor         derive.RGB `json:"wireColor"`
	ParticleAmplitude float64    `json:"particleAmplitude"`
	RotationSpeed     float64    `json:"rotationSpeed"`
}

// Statistic holds the panel readouts.
type Statistic struct {
	NetworkLatency   time.Duration
	RenderingLatency time.Duration
	SensorInterval   time.Duration
	FramesAccepted   uint64
	FramesDropped    uint64
}

// Tick is one published output of the schedule loop. Snapshot is owned
// by the receiver.
type Tick struct {
	At         time.Time
	Scene      Scene
	Latest     telemetry.Frame
	Snapshot   []telemetry.Frame
	Window     stats.Window
	Status     telemetry.Status
	Connection connection.State
	Statistic  Statistic
}

// Publisher receives every tick and connection transition.
type Publisher interface {
	PublishTick(ctx context.Context, t Tick) error
	PublishConnection(ctx context.Context, from, to connection.State) error
}
