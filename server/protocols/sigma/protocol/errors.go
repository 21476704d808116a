package protocol

import "github.com/gear6io/dspbridge/pkg/errors"

var (
	ErrShortHeader       = errors.MustNewCode("protocol.short_header")
	ErrUnexpectedCommand = errors.MustNewCode("protocol.unexpected_command")
)
