package pipeline

import (
	"fmt"
	"time"

	"codeberg.org/mutker/motortwin/internal/errors"
)

const (
	MinUpdateInterval     = 100 * time.Millisecond
	MaxUpdateInterval     = time.Second
	DefaultUpdateInterval = 200 * time.Millisecond
	MinScopeSize          = 1
	MaxScopeSize          = 4096
	DefaultScopeSize      = 256
	MinSampleInterval     = time.Millisecond
	MaxSampleInterval     = time.Minute
	DefaultSampleInterval = 100 * time.Millisecond
	DefaultStreamTimeout  = 30 * time.Second
)

// Settings are the tunables of the schedule loop.
type Settings struct {
	UpdateInterval   time.Duration `json:"update_interval"`
	ScopeSize        int           `json:"scope_size"`
	SampleInterval   time.Duration `json:"sample_interval"`
	AdaptiveSampling bool          `json:"adaptive_sampling"`
	StreamTimeout    time.Duration `json:"stream_timeout"`
}

func DefaultSettings() Settings {
	return Settings{
		UpdateInterval:   DefaultUpdateInterval,
		ScopeSize:        DefaultScopeSize,
		SampleInterval:   DefaultSampleInterval,
		AdaptiveSampling: true,
		StreamTimeout:    DefaultStreamTimeout,
	}
}

func (s Settings) Validate() error {
	if err := validateUpdateInterval(s.UpdateInterval); err != nil {
		return err
	}
	if err := validateScopeSize(s.ScopeSize); err != nil {
		return err
	}
	if err := validateSampleInterval(s.SampleInterval); err != nil {
		return err
	}
	if s.StreamTimeout <= 0 {
		return errors.New().WithMessage(errors.ErrInvalidInterval,
			fmt.Sprintf("stream timeout must be positive, got %s", s.StreamTimeout))
	}

	return nil
}

func validateUpdateInterval(d time.Duration) error {
	if d < MinUpdateInterval || d > MaxUpdateInterval {
		return errors.New().WithMessage(errors.ErrInvalidInterval,
			fmt.Sprintf("update interval must be between %s and %s, got %s", MinUpdateInterval, MaxUpdateInterval, d))
	}
	return nil
}

func validateScopeSize(n int) error {
	if n < MinScopeSize || n > MaxScopeSize {
		return errors.New().WithMessage(ErrInvalidSetting,
			fmt.Sprintf("scope size must be between %d and %d, got %d", MinScopeSize, MaxScopeSize, n))
	}
	return nil
}

func validateSampleInterval(d time.Duration) error {
	if d < MinSampleInterval || d > MaxSampleInterval {
		return errors.New().WithMessage(errors.ErrInvalidInterval,
			fmt.Sprintf("sample interval must be between %s and %s, got %s", MinSampleInterval, MaxSampleInterval, d))
	}
	return nil
}

// Setting names a runtime-adjustable value.
type Setting string

const (
	SettingUpdateInterval Setting = "interval"
	SettingScopeSize      Setting = "scope_size"
	SettingSampleInterval Setting = "sample_interval"
)

// Change is a runtime setting update. Intervals are in milliseconds.
type Change struct {
	Setting Setting `json:"setting"`
	Value   int     `json:"value"`
}

// Validate checks the change against the same bounds as Settings.
func (c Change) Validate() error {
	switch c.Setting {
	case SettingUpdateInterval:
		return validateUpdateInterval(time.Duration(c.Value) * time.Millisecond)
	case SettingScopeSize:
		return validateScopeSize(c.Value)
	case SettingSampleInterval:
		return validateSampleInterval(time.Duration(c.Value) * time.Millisecond)
	default:
		return errors.New().WithData(ErrInvalidSetting, c.Setting)
	}
}
