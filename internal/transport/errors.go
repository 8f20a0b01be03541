package transport

import "codeberg.org/mutker/motortwin/internal/errors"

const (
	ErrConnectFailed   = errors.ErrorCode("transport_connect_failed")
	ErrSubscribeFailed = errors.ErrorCode("transport_subscribe_failed")
	ErrPublishFailed   = errors.ErrorCode("transport_publish_failed")
	ErrBrokerFailed    = errors.ErrorCode("transport_broker_failed")
)
