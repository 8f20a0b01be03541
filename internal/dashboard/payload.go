package dashboard

import (
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"codeberg.org/mutker/motortwin/internal/stats"
	"codeberg.org/mutker/motortwin/internal/telemetry"
)

type statisticPayload struct {
	NetworkLatency   float64 `json:"networkLatency"`
	RenderingLatency float64 `json:"renderingLatency"`
	SensorInterval   float64 `json:"sensorInterval"`
	FramesAccepted   uint64  `json:"framesAccepted"`
	FramesDropped    uint64  `json:"framesDropped"`
}

type panelPayload struct {
	At         time.Time         `json:"at"`
	Latest     telemetry.Frame   `json:"latest"`
	Snapshot   []telemetry.Frame `json:"snapshot"`
	Window     stats.Window      `json:"window"`
	Status     telemetry.Status  `json:"status"`
	Connection string            `json:"connection"`
	Statistic  statisticPayload  `json:"statistic"`
}

type connectionPayload struct {
	From  connection.State `json:"from"`
	To    connection.State `json:"to"`
	Label string           `json:"label"`
}

type statePayload struct {
	Scene pipeline.Scene `json:"scene"`
	Panel panelPayload   `json:"panel"`
}

type settingsPayload struct {
	UpdateInterval   int64 `json:"interval"`
	ScopeSize        int   `json:"scope_size"`
	SampleInterval   int64 `json:"sample_interval"`
	AdaptiveSampling bool  `json:"adaptive_sampling"`
	StreamTimeout    int64 `json:"stream_timeout"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func newPanelPayload(t *pipeline.Tick) panelPayload {
	return panelPayload{
		At:         t.At,
		Latest:     t.Latest,
		Snapshot:   t.Snapshot,
		Window:     t.Window,
		Status:     t.Status,
		Connection: t.Connection.Label(),
		Statistic: statisticPayload{
			NetworkLatency:   millis(t.Statistic.NetworkLatency),
			RenderingLatency: millis(t.Statistic.RenderingLatency),
			SensorInterval:   millis(t.Statistic.SensorInterval),
			FramesAccepted:   t.Statistic.FramesAccepted,
			FramesDropped:    t.Statistic.FramesDropped,
		},
	}
}

func newSettingsPayload(s pipeline.Settings) settingsPayload {
	return settingsPayload{
		UpdateInterval:   s.UpdateInterval.Milliseconds(),
		ScopeSize:        s.ScopeSize,
		SampleInterval:   s.SampleInterval.Milliseconds(),
		AdaptiveSampling: s.AdaptiveSampling,
		StreamTimeout:    s.StreamTimeout.Milliseconds(),
	}
}
