package sigma

import "github.com/gear6io/dspbridge/pkg/errors"

// Bridge protocol error codes
var (
	ErrServerListenFailed = errors.MustNewCode("sigma.server_listen_failed")
	ErrTruncatedFrame     = errors.MustNewCode("sigma.truncated_frame")
	ErrPayloadTooLarge    = errors.MustNewCode("sigma.payload_too_large")
	ErrUnknownCommand     = errors.MustNewCode("sigma.unknown_command")
	ErrDispatchFailed     = errors.MustNewCode("sigma.dispatch_failed")
	ErrResponseFailed     = errors.MustNewCode("sigma.response_failed")
)
