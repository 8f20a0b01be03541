// Package relay appends published ticks to a Redis stream for other
// consumers.
package relay

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/pipeline"
	"github.com/go-redis/redis/v8"
)

const (
	ErrRelayUnavailable = errors.ErrorCode("relay_unavailable")
	ErrRelayWrite       = errors.ErrorCode("relay_write_failed")

	DefaultStream    = "motortwin:ticks"
	DefaultMaxLen    = 10000
	DefaultQueueSize = 256
	writeTimeout     = 2 * time.Second
)

type Config struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	Stream    string
	MaxLen    int64
	QueueSize int
}

func DefaultConfig() Config {
	return Config{
		Addr:      "localhost:6379",
		Stream:    DefaultStream,
		MaxLen:    DefaultMaxLen,
		QueueSize: DefaultQueueSize,
	}
}

// Relay queues entries from the pipeline goroutine and writes them from
// its own, so a slow Redis never stalls a tick.
type Relay struct {
	client *redis.Client
	cfg    Config
	queue  chan map[string]any
}

func New(cfg Config) *Relay {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}

	return &Relay{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		cfg:   cfg,
		queue: make(chan map[string]any, cfg.QueueSize),
	}
}

// Ping checks that the server is reachable.
func (r *Relay) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.New().Wrap(ErrRelayUnavailable, err)
	}
	return nil
}

// Run writes queued entries until ctx is done, then closes the client.
func (r *Relay) Run(ctx context.Context) error {
	defer r.client.Close()

	logger.Info().Str("addr", r.cfg.Addr).Str("stream", r.cfg.Stream).Msg("Relay started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case values := <-r.queue:
			if err := r.write(ctx, values); err != nil {
				logger.WarnWithCode(errors.New().Wrap(ErrRelayWrite, err)).Msg("Failed to relay entry")
			}
		}
	}
}

func (r *Relay) write(ctx context.Context, values map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.cfg.Stream,
		MaxLen: r.cfg.MaxLen,
		Approx: true,
		Values: values,
	}).Err()
}

func (r *Relay) PublishTick(_ context.Context, t pipeline.Tick) error {
	values, err := EncodeTick(t)
	if err != nil {
		return err
	}
	r.enqueue(values)
	return nil
}

func (r *Relay) PublishConnection(_ context.Context, from, to connection.State) error {
	r.enqueue(map[string]any{
		"type": "connection",
		"from": from.String(),
		"to":   to.String(),
		"at":   strconv.FormatInt(time.Now().UnixMilli(), 10),
	})
	return nil
}

func (r *Relay) enqueue(values map[string]any) {
	select {
	case r.queue <- values:
	default:
		logger.Warn().Str("stream", r.cfg.Stream).Msg("Relay queue full, dropping entry")
	}
}

// EncodeTick flattens a tick into stream field values.
func EncodeTick(t pipeline.Tick) (map[string]any, error) {
	scene, err := json.Marshal(t.Scene)
	if err != nil {
		return nil, errors.New().Wrap(ErrRelayWrite, err)
	}

	return map[string]any{
		"type":       "tick",
		"at":         strconv.FormatInt(t.At.UnixMilli(), 10),
		"scene":      string(scene),
		"status":     t.Status.String(),
		"connection": t.Connection.String(),
		"speed":      strconv.FormatFloat(t.Latest.Speed, 'f', -1, 64),
	}, nil
}
