package dsp

import "github.com/gear6io/dspbridge/pkg/errors"

var (
	ErrUnsupportedFamily = errors.MustNewCode("dsp.unsupported_family")
	ErrSafeloadAlignment = errors.MustNewCode("dsp.safeload_alignment")
	ErrSafeloadTooLarge  = errors.MustNewCode("dsp.safeload_too_large")
	ErrSafeloadEmpty     = errors.MustNewCode("dsp.safeload_empty")
	ErrBus               = errors.MustNewCode("dsp.bus")
	ErrUnknownFormat     = errors.MustNewCode("dsp.unknown_format")
	ErrPinNotFound       = errors.MustNewCode("dsp.pin_not_found")
	ErrInvalidVolume     = errors.MustNewCode("dsp.invalid_volume")
)
