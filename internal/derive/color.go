package derive

import (
	"fmt"
	"math"
)

// RGB is an 8-bit colour. It marshals as "#rrggbb".
type RGB struct {
	R, G, B uint8
}

var (
	LowTemperature  = RGB{R: 64, G: 115, B: 161}
	HighTemperature = RGB{R: 138, G: 0, B: 0}
	UnderVoltage    = RGB{R: 12, G: 217, B: 0}
	OverVoltage     = RGB{R: 128, G: 114, B: 0}
)

const (
	minHeatmapTemperature = 10
	maxHeatmapTemperature = 60
	// The fraction is taken over 60 degrees, not the 50 degree clamp
	// range, so the hottest colour is never fully reached.
	heatmapSpan = 60

	maxWiringVoltage = 50
)

func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c RGB) String() string {
	return c.Hex()
}

func (c RGB) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *RGB) UnmarshalText(b []byte) error {
	var r, g, bl uint8
	if _, err := fmt.Sscanf(string(b), "#%02x%02x%02x", &r, &g, &bl); err != nil {
		return fmt.Errorf("invalid colour %q: %w", b, err)
	}
	*c = RGB{R: r, G: g, B: bl}
	return nil
}

// Lerp interpolates each channel from a to b and truncates toward zero.
func Lerp(a, b RGB, frac float64) RGB {
	return RGB{
		R: lerpChannel(a.R, b.R, frac),
		G: lerpChannel(a.G, b.G, frac),
		B: lerpChannel(a.B, b.B, frac),
	}
}

func lerpChannel(a, b uint8, frac float64) uint8 {
	v := (float64(b)-float64(a))*frac + float64(a)
	return uint8(clamp(math.Trunc(v), 0, 255))
}

// Heatmap maps a frame temperature in °C to the motor body colour.
func Heatmap(temperature float64) RGB {
	t := clamp(temperature, minHeatmapTemperature, maxHeatmapTemperature)
	return Lerp(LowTemperature, HighTemperature, (t-minHeatmapTemperature)/heatmapSpan)
}

// VoltageMap maps a peak voltage to the input wiring colour.
func VoltageMap(peak float64) RGB {
	v := clamp(peak, 0, maxWiringVoltage)
	return Lerp(UnderVoltage, OverVoltage, v/maxWiringVoltage)
}

func clamp(value, minValue, maxValue float64) float64 {
	if math.IsNaN(value) || value < minValue {
		return minValue
	}

	if value > maxValue {
		return maxValue
	}

	return value
}
