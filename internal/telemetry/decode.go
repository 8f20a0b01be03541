package telemetry

import (
	"encoding/json"
	"math"

	"codeberg.org/mutker/motortwin/internal/errors"
	"github.com/relvacode/iso8601"
)

// payload mirrors the wire format. Pointers distinguish absent keys from
// zero values.
type payload struct {
	Timestamp      *string  `json:"timestamp"`
	Status         *string  `json:"status"`
	MotorCondition *string  `json:"motor_condition"`
	Speed          *float64 `json:"speed"`
	Temperature    *float64 `json:"temperature"`
	CurrentU       *float64 `json:"current_u"`
	CurrentV       *float64 `json:"current_v"`
	CurrentW       *float64 `json:"current_w"`
	VoltageU       *float64 `json:"voltage_u"`
	VoltageV       *float64 `json:"voltage_v"`
	VoltageW       *float64 `json:"voltage_w"`
	VibrationX     *float64 `json:"vibration_x"`
	VibrationY     *float64 `json:"vibration_y"`
	VibrationZ     *float64 `json:"vibration_z"`
}

// Decode validates one raw message and normalizes it into a Frame.
//
// timestamp, status (or motor_condition), speed and temperature are
// required. Current, voltage and vibration channels default to 0 when
// absent.
func Decode(raw []byte) (Frame, error) {
	errFactory := errors.New()

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Frame{}, errFactory.Wrap(ErrMalformedPayload, err)
	}

	if p.Timestamp == nil {
		return Frame{}, errFactory.WithData(ErrMissingField, "timestamp")
	}
	ts, err := iso8601.ParseString(*p.Timestamp)
	if err != nil {
		return Frame{}, errFactory.Wrap(ErrMalformedPayload, err)
	}

	status := p.Status
	if status == nil {
		status = p.MotorCondition
	}
	if status == nil {
		return Frame{}, errFactory.WithData(ErrMissingField, "status")
	}

	if p.Speed == nil {
		return Frame{}, errFactory.WithData(ErrMissingField, "speed")
	}
	if p.Temperature == nil {
		return Frame{}, errFactory.WithData(ErrMissingField, "temperature")
	}

	f := Frame{
		Timestamp:   ts,
		Status:      ParseStatus(*status),
		Speed:       *p.Speed,
		Temperature: *p.Temperature,
		CurrentU:    orZero(p.CurrentU),
		CurrentV:    orZero(p.CurrentV),
		CurrentW:    orZero(p.CurrentW),
		VoltageU:    orZero(p.VoltageU),
		VoltageV:    orZero(p.VoltageV),
		VoltageW:    orZero(p.VoltageW),
		VibrationX:  orZero(p.VibrationX),
		VibrationY:  orZero(p.VibrationY),
		VibrationZ:  orZero(p.VibrationZ),
	}

	if f.Speed < 0 {
		return Frame{}, errFactory.WithData(ErrInvalidField, "speed")
	}
	if name, ok := nonFinite(f); ok {
		return Frame{}, errFactory.WithData(ErrInvalidField, name)
	}

	return f, nil
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func nonFinite(f Frame) (string, bool) {
	fields := []struct {
		name  string
		value float64
	}{
		{"speed", f.Speed},
		{"temperature", f.Temperature},
		{"current_u", f.CurrentU},
		{"current_v", f.CurrentV},
		{"current_w", f.CurrentW},
		{"voltage_u", f.VoltageU},
		{"voltage_v", f.VoltageV},
		{"voltage_w", f.VoltageW},
		{"vibration_x", f.VibrationX},
		{"vibration_y", f.VibrationY},
		{"vibration_z", f.VibrationZ},
	}
	for _, field := range fields {
		if math.IsNaN(field.value) || math.IsInf(field.value, 0) {
			return field.name, true
		}
	}

	return "", false
}
