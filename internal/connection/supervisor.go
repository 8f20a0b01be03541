package connection

import (
	"time"

	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/telemetry"
)

// Appender accepts decoded frames.
type Appender interface {
	Append(f telemetry.Frame) error
}

// Observer is notified after every state transition.
type Observer func(from, to State)

type Decoder func(raw []byte) (telemetry.Frame, error)

// Supervisor owns the connection state machine and feeds decoded frames
// to an Appender. It is driven from a single goroutine.
type Supervisor struct {
	state         State
	appender      Appender
	decode        Decoder
	now           func() time.Time
	observers     []Observer
	lastMessageAt time.Time
	latency       time.Duration
	accepted      uint64
	dropped       uint64
}

type Option func(*Supervisor)

func WithDecoder(d Decoder) Option {
	return func(s *Supervisor) {
		s.decode = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Supervisor) {
		s.now = now
	}
}

func WithObserver(o Observer) Option {
	return func(s *Supervisor) {
		s.observers = append(s.observers, o)
	}
}

func NewSupervisor(appender Appender, opts ...Option) *Supervisor {
	s := &Supervisor{
		state:    Idle,
		appender: appender,
		decode:   telemetry.Decode,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe registers an observer for subsequent transitions.
func (s *Supervisor) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Supervisor) State() State {
	return s.state
}

// Latency is the time between the two most recent messages.
func (s *Supervisor) Latency() time.Duration {
	return s.latency
}

// Counters returns the number of accepted and dropped frames.
func (s *Supervisor) Counters() (accepted, dropped uint64) {
	return s.accepted, s.dropped
}

// Handle applies one transport event.
func (s *Supervisor) Handle(ev Event) {
	switch ev.Kind {
	case EventConnecting:
		s.transition(Connecting)
	case EventConnected:
		s.transition(Listening)
	case EventConnectFailed:
		logger.Warn().Err(ev.Err).Msg("Connection attempt failed")
		s.transition(Disconnected)
	case EventReconnecting:
		s.transition(Reconnecting)
	case EventDisconnected:
		s.lastMessageAt = time.Time{}
		s.latency = 0
		s.transition(Disconnected)
	case EventError:
		logger.WarnWithCode(errors.New().Wrap(ErrTransport, ev.Err)).Msg("Transport error")
	case EventMessage:
		s.receive(ev)
	}
}

// Demote moves a stalled Streaming connection back to Listening.
func (s *Supervisor) Demote() {
	if s.state == Streaming {
		s.transition(Listening)
	}
}

func (s *Supervisor) receive(ev Event) {
	at := ev.At
	if at.IsZero() {
		at = s.now()
	}
	if !s.lastMessageAt.IsZero() {
		s.latency = at.Sub(s.lastMessageAt)
	}
	s.lastMessageAt = at

	frame, err := s.decode(ev.Payload)
	if err == nil {
		err = s.appender.Append(frame)
	}
	if err != nil {
		s.dropped++
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.WarnWithCode(appErr).Str("topic", ev.Topic).Msg("Dropped frame")
		} else {
			logger.Warn().Err(err).Str("topic", ev.Topic).Msg("Dropped frame")
		}
		return
	}

	s.accepted++
	s.transition(Streaming)
}

func (s *Supervisor) transition(to State) {
	from := s.state
	if err := CheckTransition(from, to); err != nil {
		logger.Debug().Err(err).Msg("Ignored connection transition")
		return
	}

	s.state = to
	if from != to {
		logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("Connection state changed")
	}
	for _, o := range s.observers {
		o(from, to)
	}
}
