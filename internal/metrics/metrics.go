// Package metrics records a per-tick session log to sqlite.
package metrics

import (
	"context"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/pipeline"
)

type service struct {
	repo Repository
}

type noopRecorder struct{}

// NewService returns a sqlite backed recorder, or a no-op one when
// recording is disabled.
func NewService(cfg Config) (Recorder, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Tick recording disabled, using no-op recorder")
		return noopRecorder{}, nil
	}

	repo, err := NewRepository(cfg, logger.Default())
	if err != nil {
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, rec *TickRecord) error {
	errFactory := errors.New()

	if rec == nil {
		return errFactory.New(ErrInvalidTick)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrTimeout, ctx.Err())
	default:
	}

	if err := s.repo.Record(rec); err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}
	return nil
}

func (s *service) RecordTransition(ctx context.Context, tr *Transition) error {
	if err := ctx.Err(); err != nil {
		return errors.New().Wrap(ErrTimeout, err)
	}
	if err := s.repo.RecordTransition(tr); err != nil {
		return errors.New().Wrap(ErrRecordFailed, err)
	}
	return nil
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (noopRecorder) Record(context.Context, *TickRecord) error           { return nil }
func (noopRecorder) RecordTransition(context.Context, *Transition) error { return nil }
func (noopRecorder) Close() error                                        { return nil }

// Publisher adapts a Recorder to the pipeline.
type Publisher struct {
	rec Recorder
	now func() time.Time
}

func NewPublisher(rec Recorder) *Publisher {
	return &Publisher{rec: rec, now: time.Now}
}

func (p *Publisher) PublishTick(ctx context.Context, t pipeline.Tick) error {
	return p.rec.Record(ctx, NewTickRecord(t))
}

func (p *Publisher) PublishConnection(ctx context.Context, from, to connection.State) error {
	return p.rec.RecordTransition(ctx, &Transition{
		Timestamp: p.now(),
		From:      from.String(),
		To:        to.String(),
	})
}

// NewTickRecord summarizes a tick for storage.
func NewTickRecord(t pipeline.Tick) *TickRecord {
	return &TickRecord{
		Timestamp:         t.At,
		Connection:        t.Connection.String(),
		Status:            t.Status.String(),
		Speed:             t.Latest.Speed,
		Temperature:       t.Latest.Temperature,
		WindowLength:      t.Window.Length,
		RMSVoltage:        t.Window.Voltage.Average(),
		RMSCurrent:        t.Window.Current.Average(),
		FrameColor:        t.Scene.FrameColor.Hex(),
		WireColor:         t.Scene.WireColor.Hex(),
		ParticleAmplitude: t.Scene.ParticleAmplitude,
		NetworkLatency:    t.Statistic.NetworkLatency,
		RenderingLatency:  t.Statistic.RenderingLatency,
		SensorInterval:    t.Statistic.SensorInterval,
	}
}
