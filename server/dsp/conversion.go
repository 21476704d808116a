package dsp

import (
	"fmt"
	"math"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/regcodec"
	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DBToLinear converts decibels to a linear gain.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear gain to decibels; 0 maps to -Inf.
func LinearToDB(linear float64) float64 {
	return 20 * math.Log10(linear)
}

// ValidateDB rejects levels no gain can be derived from. -Inf is allowed
// and mutes.
func ValidateDB(db float64) error {
	if math.IsNaN(db) || math.IsInf(db, 1) {
		return errors.New(ErrInvalidVolume, fmt.Sprintf("%v dB is not a usable volume", db), nil)
	}
	return nil
}

// toFixed rounds v to a signed fixed point integer with frac fractional bits
// and saturates it to the given integer width.
func toFixed(v float64, frac uint, width uint) int64 {
	scaled := math.Round(v * float64(int64(1)<<frac))
	lo := -float64(int64(1) << (width - 1))
	hi := float64(int64(1)<<(width-1) - 1)
	return int64(Clamp(scaled, lo, hi))
}

func fromFixed(v int64, frac uint) float64 {
	return float64(v) / float64(int64(1)<<frac)
}

func regInt(v int32) []byte {
	return regcodec.Int32Bytes(v)
}

func fromRegInt(b []byte) int32 {
	return regcodec.Int32(b, 0)
}
