package history

import "codeberg.org/mutker/motortwin/internal/errors"

const (
	ErrOutOfOrder = errors.ErrorCode("history_out_of_order")
)
