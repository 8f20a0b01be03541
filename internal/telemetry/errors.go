package telemetry

import "codeberg.org/mutker/motortwin/internal/errors"

const (
	// Decode Errors
	ErrMalformedPayload = errors.ErrorCode("telemetry_malformed_payload")
	ErrMissingField     = errors.ErrorCode("telemetry_missing_field")
	ErrInvalidField     = errors.ErrorCode("telemetry_invalid_field")
)
