package cli

import "github.com/gear6io/dspbridge/pkg/errors"

var (
	ErrInvalidArgument = errors.MustNewCode("cli.invalid_argument")
	ErrLoggerSetup     = errors.MustNewCode("cli.logger_setup_failed")
)
