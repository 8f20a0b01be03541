package derive_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"codeberg.org/mutker/motortwin/internal/derive"
	"codeberg.org/mutker/motortwin/internal/stats"
	"codeberg.org/mutker/motortwin/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeatmap(t *testing.T) {
	assert.Equal(t, derive.LowTemperature, derive.Heatmap(10))
	assert.Equal(t, derive.LowTemperature, derive.Heatmap(-40))

	// 60 °C is only 50/60 of the way to the hot colour.
	at60 := derive.Heatmap(60)
	assert.Equal(t, derive.RGB{R: 125, G: 19, B: 26}, at60)
	assert.Equal(t, at60, derive.Heatmap(70))
	assert.NotEqual(t, derive.HighTemperature, at60)

	// 40 °C: fraction 0.5, channels truncated.
	assert.Equal(t, derive.RGB{R: 101, G: 57, B: 80}, derive.Heatmap(40))
}

func TestVoltageMap(t *testing.T) {
	assert.Equal(t, derive.UnderVoltage, derive.VoltageMap(0))
	assert.Equal(t, derive.UnderVoltage, derive.VoltageMap(-3))
	assert.Equal(t, derive.OverVoltage, derive.VoltageMap(50))
	assert.Equal(t, derive.OverVoltage, derive.VoltageMap(120))
	assert.Equal(t, derive.RGB{R: 70, G: 165, B: 0}, derive.VoltageMap(25))
	assert.Equal(t, derive.UnderVoltage, derive.VoltageMap(math.NaN()))
}

func TestLerpTruncates(t *testing.T) {
	c := derive.Lerp(derive.RGB{R: 0, G: 10, B: 255}, derive.RGB{R: 3, G: 0, B: 0}, 0.5)
	assert.Equal(t, derive.RGB{R: 1, G: 5, B: 127}, c)
}

func TestRGBText(t *testing.T) {
	b, err := json.Marshal(derive.HighTemperature)
	require.NoError(t, err)
	assert.Equal(t, `"#8a0000"`, string(b))

	var c derive.RGB
	require.NoError(t, json.Unmarshal([]byte(`"#0cd900"`), &c))
	assert.Equal(t, derive.UnderVoltage, c)
	assert.Error(t, c.UnmarshalText([]byte("red")))
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestEngineCompute(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	e := derive.NewEngine(200*time.Millisecond, derive.WithClock(clock.Now))

	w := stats.Window{
		Length:  7,
		Voltage: stats.Phases{U: 10, V: 10, W: 10},
		Current: stats.Phases{U: 2, V: 2, W: 2},
	}
	frame := telemetry.Frame{Temperature: 10, Status: telemetry.ParseStatus("OVERLOAD")}

	p := e.Compute(frame, w)

	assert.Equal(t, derive.LowTemperature, p.FrameColor)
	assert.Equal(t, derive.VoltageMap(10*math.Sqrt2), p.WireColor)
	assert.Equal(t, derive.RGB{R: 44, G: 187, B: 0}, p.WireColor)
	assert.InDelta(t, 2*math.Sqrt2, p.ParticleAmplitude, 1e-12)
	assert.Equal(t, "OVERLOAD", p.Status.String())
}

func TestEngineAmplitudeRateLimit(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	e := derive.NewEngine(200*time.Millisecond, derive.WithClock(clock.Now))

	window := func(i float64) stats.Window {
		return stats.Window{Current: stats.Phases{U: i, V: i, W: i}}
	}

	assert.InDelta(t, 1*math.Sqrt2, e.Compute(telemetry.Frame{}, window(1)).ParticleAmplitude, 1e-12)

	clock.now = clock.now.Add(50 * time.Millisecond)
	assert.InDelta(t, 1*math.Sqrt2, e.Compute(telemetry.Frame{}, window(3)).ParticleAmplitude, 1e-12)

	clock.now = clock.now.Add(150 * time.Millisecond)
	assert.InDelta(t, 3*math.Sqrt2, e.Compute(telemetry.Frame{}, window(3)).ParticleAmplitude, 1e-12)

	e.SetInterval(time.Second)
	clock.now = clock.now.Add(500 * time.Millisecond)
	assert.InDelta(t, 3*math.Sqrt2, e.Compute(telemetry.Frame{}, window(4)).ParticleAmplitude, 1e-12)
}

func TestEngineZeroWindow(t *testing.T) {
	e := derive.NewEngine(200 * time.Millisecond)
	p := e.Compute(telemetry.Frame{Temperature: 25}, stats.Window{})

	assert.Equal(t, derive.UnderVoltage, p.WireColor)
	assert.Zero(t, p.ParticleAmplitude)
	assert.Equal(t, telemetry.Unknown, p.Status)
}
