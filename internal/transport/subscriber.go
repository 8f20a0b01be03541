package transport

import (
	"context"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Sink receives connection events. Deliver may block.
type Sink interface {
	Deliver(ctx context.Context, ev connection.Event) error
}

// Subscriber maps paho client callbacks onto connection events.
type Subscriber struct {
	opts Options
	sink Sink
}

func NewSubscriber(opts Options, sink Sink) *Subscriber {
	return &Subscriber{opts: opts, sink: sink}
}

// Run connects, retrying until the first connection succeeds, and stays
// subscribed until ctx is done. Reconnects after that are owned by the
// MQTT client.
func (s *Subscriber) Run(ctx context.Context) error {
	clientID := s.opts.ClientIDOrRandom("motortwin")
	opts := s.opts.clientOptions(clientID)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.emit(ctx, connection.Lifecycle(connection.EventConnected, time.Now(), nil))
		s.subscribe(ctx, c)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("Connection to broker lost")
		s.emit(ctx, connection.Lifecycle(connection.EventDisconnected, time.Now(), err))
	})
	opts.SetReconnectingHandler(func(mqtt.Client, *mqtt.ClientOptions) {
		s.emit(ctx, connection.Lifecycle(connection.EventReconnecting, time.Now(), nil))
	})

	client := mqtt.NewClient(opts)
	logger.Info().Str("broker", s.opts.Broker).Str("client_id", clientID).Msg("Connecting to broker")

	if err := s.connect(ctx, client); err != nil {
		return err
	}

	<-ctx.Done()
	client.Disconnect(disconnectQuiesce)
	// ctx is already done; the receiver may have stopped too.
	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.emit(closeCtx, connection.Lifecycle(connection.EventDisconnected, time.Now(), nil))

	return nil
}

func (s *Subscriber) connect(ctx context.Context, client mqtt.Client) error {
	for {
		s.emit(ctx, connection.Lifecycle(connection.EventConnecting, time.Now(), nil))

		token := client.Connect()
		select {
		case <-token.Done():
		case <-ctx.Done():
			return nil
		}
		if token.Error() == nil {
			return nil
		}

		err := errors.New().Wrap(ErrConnectFailed, token.Error())
		logger.WarnWithCode(err).Dur("retry_in", s.opts.retryInterval()).Msg("Failed to connect to broker")
		s.emit(ctx, connection.Lifecycle(connection.EventConnectFailed, time.Now(), err))

		select {
		case <-time.After(s.opts.retryInterval()):
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context, c mqtt.Client) {
	token := c.Subscribe(s.opts.Topic, s.opts.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		if !MatchTopic(s.opts.Topic, msg.Topic()) {
			logger.Debug().Str("topic", msg.Topic()).Msg("Ignored message outside topic filter")
			return
		}
		s.emit(ctx, connection.Message(msg.Topic(), msg.Payload(), time.Now()))
	})

	if !token.WaitTimeout(s.opts.connectTimeout()) {
		err := errors.New().WithMessage(ErrSubscribeFailed, "subscribe timed out")
		s.emit(ctx, connection.Lifecycle(connection.EventError, time.Now(), err))
		return
	}
	if token.Error() != nil {
		err := errors.New().Wrap(ErrSubscribeFailed, token.Error())
		s.emit(ctx, connection.Lifecycle(connection.EventError, time.Now(), err))
		return
	}

	logger.Info().Str("topic", s.opts.Topic).Msg("Subscribed")
}

func (s *Subscriber) emit(ctx context.Context, ev connection.Event) {
	if err := s.sink.Deliver(ctx, ev); err != nil {
		logger.Debug().Err(err).Str("event", ev.Kind.String()).Msg("Event not delivered")
	}
}
