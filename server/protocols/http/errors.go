package http

import "github.com/gear6io/dspbridge/pkg/errors"

// Admin API error codes
var (
	ErrServerListenFailed = errors.MustNewCode("http.server_listen_failed")
	ErrInvalidAddress     = errors.MustNewCode("http.invalid_address")
	ErrInvalidBody        = errors.MustNewCode("http.invalid_body")
)
