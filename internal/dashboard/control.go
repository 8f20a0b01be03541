package dashboard

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/motortwin/internal/errors"
	"codeberg.org/mutker/motortwin/internal/logger"
	"codeberg.org/mutker/motortwin/internal/pipeline"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	configureWait   = time.Second
)

// Controller accepts runtime setting changes.
type Controller interface {
	Configure(ctx context.Context, c pipeline.Change) error
	Settings() pipeline.Settings
}

// control forwards panel changes to the controller. Update interval
// changes are debounced so dragging a slider yields one change.
type control struct {
	ctl      Controller
	debounce time.Duration

	mu      sync.Mutex
	pending *time.Timer
}

func (c *control) apply(ctx context.Context, setting string, value int) {
	change := pipeline.Change{Setting: pipeline.Setting(setting), Value: value}
	if err := change.Validate(); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.WarnWithCode(appErr).Str("setting", setting).Int("value", value).Msg("Rejected setting change")
		}
		return
	}

	if change.Setting != pipeline.SettingUpdateInterval || c.debounce <= 0 {
		c.configure(ctx, change)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
	// The request context ends with the websocket, so the timer uses its own.
	c.pending = time.AfterFunc(c.debounce, func() {
		c.configure(context.Background(), change)
	})
}

func (c *control) configure(ctx context.Context, change pipeline.Change) {
	ctx, cancel := context.WithTimeout(ctx, configureWait)
	defer cancel()

	if err := c.ctl.Configure(ctx, change); err != nil {
		logger.Warn().Err(err).Str("setting", string(change.Setting)).Msg("Setting change not applied")
	}
}

func (c *control) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		c.pending.Stop()
	}
}
