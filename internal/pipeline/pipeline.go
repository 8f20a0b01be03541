// Package pipeline owns the rolling history and runs the schedule loop
// that turns it into published ticks.
package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/motortwin/internal/connection"
	"codeberg.org/mutker/motortwin/internal/derive"
	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/history"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/stats"
)

const defaultEventBuffer = 64

type transition struct {
	from, to connection.State
}

// Pipeline is driven by a single goroutine in Run. Deliver and Configure
// are safe to call from any goroutine.
type Pipeline struct {
	settings   Settings
	requested  time.Duration
	current    atomic.Pointer[Settings]
	history    *history.History
	ingest     *ingest
	supervisor *connection.Supervisor
	engine     *derive.Engine
	publishers []Publisher
	now        func() time.Time

	events  chan connection.Event
	changes chan Change

	pending   []transition
	idle      time.Duration
	lastSeen  time.Time
	rendering time.Duration
}

type Option func(*options)

type options struct {
	publishers  []Publisher
	now         func() time.Time
	eventBuffer int
}

func WithPublisher(p Publisher) Option {
	return func(o *options) {
		o.publishers = append(o.publishers, p)
	}
}

// WithClock replaces time.Now for the pipeline and its engine.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func WithEventBuffer(n int) Option {
	return func(o *options) {
		o.eventBuffer = n
	}
}

// New validates settings, seeds the history and wires the supervisor.
func New(settings Settings, opts ...Option) (*Pipeline, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	o := options{now: time.Now, eventBuffer: defaultEventBuffer}
	for _, opt := range opts {
		opt(&o)
	}

	h := history.New(history.CapacityFor(settings.SampleInterval))
	h.Seed(h.Capacity() + 1)

	p := &Pipeline{
		settings:   settings,
		requested:  settings.UpdateInterval,
		history:    h,
		ingest:     &ingest{history: h, adaptive: settings.AdaptiveSampling},
		engine:     derive.NewEngine(settings.UpdateInterval, derive.WithClock(o.now)),
		publishers: o.publishers,
		now:        o.now,
		events:     make(chan connection.Event, max(o.eventBuffer, 0)),
		changes:    make(chan Change, 1),
	}
	p.supervisor = connection.NewSupervisor(p.ingest,
		connection.WithClock(o.now),
		connection.WithObserver(func(from, to connection.State) {
			if from != to {
				p.pending = append(p.pending, transition{from, to})
			}
		}),
	)
	p.storeSettings()

	return p, nil
}

// AddPublisher registers pub. It must be called before Run.
func (p *Pipeline) AddPublisher(pub Publisher) {
	p.publishers = append(p.publishers, pub)
}

// Settings returns the active settings.
func (p *Pipeline) Settings() Settings {
	return *p.current.Load()
}

// Deliver queues a transport event, blocking until there is room or ctx
// is done.
func (p *Pipeline) Deliver(ctx context.Context, ev connection.Event) error {
	select {
	case p.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Configure validates and queues a runtime setting change.
func (p *Pipeline) Configure(ctx context.Context, c Change) error {
	if err := c.Validate(); err != nil {
		return err
	}

	select {
	case p.changes <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events, changes and ticks until ctx is done. The next
// tick is armed only after the current one returns.
func (p *Pipeline) Run(ctx context.Context) error {
	timer := time.NewTimer(p.settings.UpdateInterval)
	defer timer.Stop()

	logger.Info().
		Dur("interval", p.settings.UpdateInterval).
		Int("capacity", p.history.Capacity()).
		Msg("Pipeline started")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Pipeline stopped")
			return nil
		case ev := <-p.events:
			p.supervisor.Handle(ev)
			p.flushTransitions(ctx)
		case c := <-p.changes:
			p.apply(c)
		case <-timer.C:
			p.tick(ctx)
			timer.Reset(p.settings.UpdateInterval)
		}
	}
}

func (p *Pipeline) tick(ctx context.Context) {
	start := p.now()
	latest, _ := p.history.Latest()
	fresh := !latest.Timestamp.Equal(p.lastSeen)

	if !fresh && p.idle > p.settings.StreamTimeout && p.supervisor.State() == connection.Streaming {
		logger.Warn().Dur("idle", p.idle).Msg("No new frames, stream is stale")
		p.supervisor.Demote()
		p.flushTransitions(ctx)
		p.idle = 0
	}

	if p.requested != p.settings.UpdateInterval {
		logger.Debug().
			Dur("from", p.settings.UpdateInterval).
			Dur("to", p.requested).
			Msg("Update interval changed")
		p.settings.UpdateInterval = p.requested
		p.engine.SetInterval(p.requested)
		p.storeSettings()
		return
	}

	p.idle += p.settings.UpdateInterval
	if fresh {
		p.idle = 0
		p.lastSeen = latest.Timestamp
	}

	window := stats.Compute(p.history, latest.Speed)
	params := p.engine.Compute(latest, window)
	accepted, dropped := p.supervisor.Counters()

	t := Tick{
		At: start,
		Scene: Scene{
			FrameColor:        params.FrameColor,
			WireColor:         params.WireColor,
			ParticleAmplitude: params.ParticleAmplitude,
			RotationSpeed:     latest.Speed,
		},
		Latest:     latest,
		Snapshot:   p.history.Snapshot(p.settings.ScopeSize),
		Window:     window,
		Status:     params.Status,
		Connection: p.supervisor.State(),
		Statistic: Statistic{
			NetworkLatency:   p.supervisor.Latency(),
			RenderingLatency: p.rendering,
			SensorInterval:   p.ingest.sensorInterval,
			FramesAccepted:   accepted,
			FramesDropped:    dropped,
		},
	}

	for _, pub := range p.publishers {
		if err := pub.PublishTick(ctx, t); err != nil {
			logger.WarnWithCode(errors.New().Wrap(ErrPublishFailed, err)).Msg("Failed to publish tick")
		}
	}

	p.rendering = p.now().Sub(start)
}

func (p *Pipeline) apply(c Change) {
	switch c.Setting {
	case SettingUpdateInterval:
		p.requested = time.Duration(c.Value) * time.Millisecond
	case SettingScopeSize:
		p.settings.ScopeSize = c.Value
	case SettingSampleInterval:
		p.settings.SampleInterval = time.Duration(c.Value) * time.Millisecond
		if !p.settings.AdaptiveSampling {
			p.history.SetCapacity(history.CapacityFor(p.settings.SampleInterval))
		}
	}

	logger.Debug().Str("setting", string(c.Setting)).Int("value", c.Value).Msg("Setting changed")
	p.storeSettings()
}

func (p *Pipeline) flushTransitions(ctx context.Context) {
	for _, tr := range p.pending {
		for _, pub := range p.publishers {
			if err := pub.PublishConnection(ctx, tr.from, tr.to); err != nil {
				logger.WarnWithCode(errors.New().Wrap(ErrPublishFailed, err)).Msg("Failed to publish connection state")
			}
		}
	}
	p.pending = p.pending[:0]
}

func (p *Pipeline) storeSettings() {
	s := p.settings
	s.UpdateInterval = p.requested
	p.current.Store(&s)
}
