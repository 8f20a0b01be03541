package telemetry

import (
	"time"
)

// StatusKind classifies the motor condition reported by a frame.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusNormal
	StatusError
)

const (
	normalToken  = "NORMAL"
	unknownToken = "UNKNOWN"
)

// Status is the motor condition of a frame. Code holds the raw status
// string for StatusError.
type Status struct {
	Kind StatusKind
	Code string
}

var (
	Normal  = Status{Kind: StatusNormal}
	Unknown = Status{Kind: StatusUnknown}
)

// ParseStatus maps a raw status token. Anything other than NORMAL or
// UNKNOWN is an error condition carrying the raw string.
func ParseStatus(raw string) Status {
	switch raw {
	case normalToken:
		return Normal
	case unknownToken:
		return Unknown
	default:
		return Status{Kind: StatusError, Code: raw}
	}
}

func (s Status) String() string {
	switch s.Kind {
	case StatusNormal:
		return normalToken
	case StatusError:
		return s.Code
	default:
		return unknownToken
	}
}

func (s Status) IsError() bool {
	return s.Kind == StatusError
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}

// Frame is one telemetry sample. Frames are passed by value and never
// modified after decoding.
type Frame struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      Status    `json:"status"`
	Speed       float64   `json:"speed"`
	Temperature float64   `json:"temperature"`
	CurrentU    float64   `json:"current_u"`
	CurrentV    float64   `json:"current_v"`
	CurrentW    float64   `json:"current_w"`
	VoltageU    float64   `json:"voltage_u"`
	VoltageV    float64   `json:"voltage_v"`
	VoltageW    float64   `json:"voltage_w"`
	VibrationX  float64   `json:"vibration_x"`
	VibrationY  float64   `json:"vibration_y"`
	VibrationZ  float64   `json:"vibration_z"`
}

// Synthetic reports whether f is a zero-valued placeholder frame.
func (f Frame) Synthetic() bool {
	return f.Timestamp.IsZero()
}
