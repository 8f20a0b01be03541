package connection

import "time"

type EventKind int

const (
	EventConnecting EventKind = iota
	EventConnected
	EventConnectFailed
	EventReconnecting
	EventDisconnected
	EventError
	EventMessage
)

var eventNames = map[EventKind]string{
	EventConnecting:    "connecting",
	EventConnected:     "connected",
	EventConnectFailed: "connect_failed",
	EventReconnecting:  "reconnecting",
	EventDisconnected:  "disconnected",
	EventError:         "error",
	EventMessage:       "message",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event is one item on the boundary between the transport and the
// supervisor.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	At      time.Time
	Err     error
}

func Message(topic string, payload []byte, at time.Time) Event {
	return Event{Kind: EventMessage, Topic: topic, Payload: payload, At: at}
}

func Lifecycle(kind EventKind, at time.Time, err error) Event {
	return Event{Kind: kind, At: at, Err: err}
}
