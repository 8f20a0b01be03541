package connection

import "codeberg.org/mutker/motortwin/internal/errors"

const (
	ErrInvalidTransition = errors.ErrorCode("connection_invalid_transition")
	ErrTransport         = errors.ErrorCode("connection_transport_error")
)
