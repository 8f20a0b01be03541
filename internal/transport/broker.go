package transport

import (
	"log/slog"
	"os"

	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// Broker is an in-process MQTT broker accepting every client.
type Broker struct {
	server  *mochi.Server
	address string
}

func NewBroker(address string) (*Broker, error) {
	server := mochi.New(&mochi.Options{
		InlineClient: false,
		Logger:       slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	})

	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return nil, errors.New().Wrap(ErrBrokerFailed, err)
	}

	cfg := listeners.Config{
		Type:    "tcp",
		ID:      "motortwin",
		Address: address,
	}
	if err := server.AddListener(listeners.NewTCP(cfg)); err != nil {
		return nil, errors.New().Wrap(ErrBrokerFailed, err)
	}

	return &Broker{server: server, address: address}, nil
}

// Start begins serving in the background.
func (b *Broker) Start() error {
	if err := b.server.Serve(); err != nil {
		return errors.New().Wrap(ErrBrokerFailed, err)
	}
	logger.Info().Str("address", b.address).Msg("Embedded broker started")
	return nil
}

func (b *Broker) Close() error {
	return b.server.Close()
}
