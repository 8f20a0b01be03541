package transport

import (
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends raw payloads to the configured topic.
type Publisher struct {
	client mqtt.Client
	opts   Options
}

// Dial connects a publishing client.
func Dial(opts Options) (*Publisher, error) {
	clientID := opts.ClientIDOrRandom("motorsim")
	client := mqtt.NewClient(opts.clientOptions(clientID))

	token := client.Connect()
	if !token.WaitTimeout(opts.connectTimeout()) {
		return nil, errors.New().WithMessage(ErrConnectFailed, "connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, errors.New().Wrap(ErrConnectFailed, err)
	}

	logger.Info().Str("broker", opts.Broker).Str("client_id", clientID).Msg("Connected to broker")

	return &Publisher{client: client, opts: opts}, nil
}

func (p *Publisher) Publish(payload []byte) error {
	token := p.client.Publish(p.opts.Topic, p.opts.QoS, false, payload)
	if !token.WaitTimeout(p.opts.connectTimeout()) {
		return errors.New().WithMessage(ErrPublishFailed, "publish timed out")
	}
	if err := token.Error(); err != nil {
		return errors.New().Wrap(ErrPublishFailed, err)
	}
	return nil
}

func (p *Publisher) Close() {
	p.client.Disconnect(disconnectQuiesce)
}
