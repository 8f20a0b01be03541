package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/derive"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"codeberg.org/mutker/motortwin/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTick(t *testing.T) {
	at := time.UnixMilli(1714557600250)
	tick := pipeline.Tick{
		At: at,
		Scene: pipeline.Scene{
			FrameColor:        derive.LowTemperature,
			WireColor:         derive.OverVoltage,
			ParticleAmplitude: 2.5,
			RotationSpeed:     1480,
		},
		Latest:     telemetry.Frame{Speed: 1480},
		Status:     telemetry.ParseStatus("E042"),
		Connection: connection.Streaming,
	}

	values, err := EncodeTick(tick)
	require.NoError(t, err)

	assert.Equal(t, "tick", values["type"])
	assert.Equal(t, "1714557600250", values["at"])
	assert.Equal(t, "E042", values["status"])
	assert.Equal(t, "streaming", values["connection"])
	assert.Equal(t, "1480", values["speed"])

	var scene map[string]any
	require.NoError(t, json.Unmarshal([]byte(values["scene"].(string)), &scene))
	assert.Equal(t, "#4073a1", scene["frameColor"])
	assert.Equal(t, "#807200", scene["wireColor"])
}

func TestPublishDropsWhenQueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 2
	r := New(cfg)
	defer r.client.Close()

	ctx := context.Background()
	for range 5 {
		require.NoError(t, r.PublishTick(ctx, pipeline.Tick{}))
	}
	require.NoError(t, r.PublishConnection(ctx, connection.Listening, connection.Streaming))

	assert.Len(t, r.queue, 2)
}

func TestDefaults(t *testing.T) {
	r := New(Config{})
	defer r.client.Close()

	assert.Equal(t, DefaultStream, r.cfg.Stream)
	assert.Equal(t, DefaultQueueSize, cap(r.queue))
}
