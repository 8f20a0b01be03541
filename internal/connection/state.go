package connection

import "codeberg.org/mutker/motortwin/internal/errors"

// State is the lifecycle state of the inbound telemetry stream.
type State int

const (
	Idle State = iota
	Connecting
	Reconnecting
	Listening
	Streaming
	Disconnected
)

var stateNames = map[State]string{
	Idle:         "idle",
	Connecting:   "connecting",
	Reconnecting: "reconnecting",
	Listening:    "listening",
	Streaming:    "streaming",
	Disconnected: "disconnected",
}

// Panel labels as shown on the connection readout.
var stateLabels = map[State]string{
	Idle:         "IDLE",
	Connecting:   "CONNECTING",
	Reconnecting: "RECONNECTING",
	Listening:    "CONNECTED",
	Streaming:    "STREAMING",
	Disconnected: "DISCONNECTED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Label returns the text shown to the operator.
func (s State) Label() string {
	if label, ok := stateLabels[s]; ok {
		return label
	}
	return "UNKNOWN"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var transitions = map[State][]State{
	Idle:         {Connecting, Disconnected},
	Connecting:   {Listening, Disconnected},
	Reconnecting: {Reconnecting, Listening, Disconnected},
	Listening:    {Streaming, Reconnecting, Disconnected},
	Streaming:    {Streaming, Listening, Reconnecting, Disconnected},
	Disconnected: {Connecting, Reconnecting, Disconnected},
}

// CanTransition reports whether from → to is a legal transition.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an ErrInvalidTransition error when from → to is
// not legal.
func CheckTransition(from, to State) error {
	if CanTransition(from, to) {
		return nil
	}
	return errors.New().WithData(ErrInvalidTransition, struct {
		From string
		To   string
	}{
		From: from.String(),
		To:   to.String(),
	})
}
