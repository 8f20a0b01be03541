package pipeline

import "codeberg.org/mutker/motortwin/internal/errors"

const (
	ErrInvalidSetting = errors.ErrorCode("pipeline_invalid_setting")
	ErrPublishFailed  = errors.ErrorCode("pipeline_publish_failed")
)
