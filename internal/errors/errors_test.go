package errors_test

import (
	"fmt"
	"testing"

	"codeberg.org/mutker/motortwin/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessage(t *testing.T) {
	f := errors.New()

	assert.Equal(t, "Invalid interval value", f.New(errors.ErrInvalidInterval).Error())
	assert.Equal(t, "custom", f.WithMessage(errors.ErrInvalidInterval, "custom").Error())
	assert.Equal(t, "Invalid interval value: 50", f.WithData(errors.ErrInvalidInterval, 50).Error())
	assert.Equal(t, "unknown_code", f.New(errors.ErrorCode("unknown_code")).Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := errors.New().Wrap(errors.ErrInitFailed, cause)

	assert.Equal(t, "Initialization failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, errors.ErrInitFailed, err.Code())
}

func TestHasCode(t *testing.T) {
	f := errors.New()
	inner := f.New(errors.ErrTimeout)
	outer := f.Wrap(errors.ErrMainLoop, fmt.Errorf("loop: %w", inner))

	assert.True(t, errors.HasCode(outer, errors.ErrMainLoop))
	assert.True(t, errors.HasCode(outer, errors.ErrTimeout))
	assert.False(t, errors.HasCode(outer, errors.ErrInternal))
	assert.False(t, errors.HasCode(nil, errors.ErrInternal))
	assert.False(t, errors.HasCode(fmt.Errorf("plain"), errors.ErrInternal))

	code, ok := errors.CodeOf(outer)
	require.True(t, ok)
	assert.Equal(t, errors.ErrMainLoop, code)
}

func TestCopiesDoNotMutate(t *testing.T) {
	base := errors.New().New(errors.ErrInvalidConfig)
	withData := base.WithData("field")

	assert.Nil(t, base.GetData())
	assert.Equal(t, "field", withData.GetData())
	assert.Equal(t, errors.ErrInvalidConfig, withData.Code())
}
