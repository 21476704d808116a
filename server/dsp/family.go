package dsp

import (
	"fmt"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/hardware/bus"
	"github.com/gear6io/dspbridge/server/regcodec"
)

// ParameterSize is the width of one parameter register.
const ParameterSize = 4

// SafeloadCapacity is the number of words one safeload can update, on every
// supported family.
const SafeloadCapacity = 5

// Family captures everything that differs between supported chips: the
// numeric format of parameter RAM and the register choreography for safeload
// and soft reset.
type Family interface {
	Name() string
	EncodeFloat(v float64) []byte
	DecodeFloat(b []byte) float64
	// Safeload writes already validated words.
	Safeload(b bus.Bus, address uint16, words [][]byte) error
	SoftReset(b bus.Bus) error
}

// NewFamily returns the family registered under name.
func NewFamily(name string) (Family, error) {
	switch name {
	case config.DspTypeADAU14xx:
		return ADAU14xx{}, nil
	case config.DspTypeADAU1701:
		return ADAU1701{}, nil
	default:
		return nil, errors.New(ErrUnsupportedFamily, fmt.Sprintf("unsupported dsp type %q", name), nil)
	}
}

// ADAU14xx covers the ADAU145x/146x parts: 8.24 parameters and a dedicated
// safeload block in the control register space.
type ADAU14xx struct{}

const (
	adau14xxSafeloadData    uint16 = 0x6000
	adau14xxSafeloadAddress uint16 = 0x6005
	adau14xxSafeloadCount   uint16 = 0x6006
	adau14xxSoftReset       uint16 = 0xF890
)

func (ADAU14xx) Name() string { return config.DspTypeADAU14xx }

func (ADAU14xx) EncodeFloat(v float64) []byte {
	return regcodec.Int32Bytes(int32(toFixed(v, 24, 32)))
}

func (ADAU14xx) DecodeFloat(b []byte) float64 {
	return fromFixed(int64(regcodec.Int32(b, 0)), 24)
}

func (ADAU14xx) Safeload(b bus.Bus, address uint16, words [][]byte) error {
	for i, w := range words {
		if err := b.Write(adau14xxSafeloadData+uint16(i), w); err != nil {
			return err
		}
	}
	// The chip expects the target address minus one.
	if err := b.Write(adau14xxSafeloadAddress, regcodec.Int32Bytes(int32(address)-1)); err != nil {
		return err
	}
	return b.Write(adau14xxSafeloadCount, regcodec.Int32Bytes(int32(len(words))))
}

func (ADAU14xx) SoftReset(b bus.Bus) error {
	if err := b.Write(adau14xxSoftReset, regcodec.Uint16Bytes(0)); err != nil {
		return err
	}
	return b.Write(adau14xxSoftReset, regcodec.Uint16Bytes(1))
}

// ADAU1701 covers the ADAU1701/1702 parts: 5.23 parameters in 28 bits and
// the IST-triggered safeload registers.
type ADAU1701 struct{}

const (
	adau1701SafeloadData    uint16 = 0x0810
	adau1701SafeloadAddress uint16 = 0x0815
	adau1701CoreControl     uint16 = 0x081C

	adau1701CoreControlCR  uint16 = 0x0004
	adau1701CoreControlIST uint16 = 0x0020

	adau1701ParameterMask uint32 = 0x0FFFFFFF
)

func (ADAU1701) Name() string { return config.DspTypeADAU1701 }

func (ADAU1701) EncodeFloat(v float64) []byte {
	fixed := toFixed(v, 23, 28)
	out := make([]byte, ParameterSize)
	regcodec.PutUint32(out, 0, uint32(int32(fixed))&adau1701ParameterMask)
	return out
}

func (ADAU1701) DecodeFloat(b []byte) float64 {
	raw := regcodec.Uint32(b, 0) & adau1701ParameterMask
	// sign-extend from bit 27
	return fromFixed(int64(int32(raw<<4)>>4), 23)
}

func (ADAU1701) Safeload(b bus.Bus, address uint16, words [][]byte) error {
	for i, w := range words {
		// data registers are 5 bytes wide, the top byte is unused for parameters
		data := append([]byte{0}, w...)
		if err := b.Write(adau1701SafeloadData+uint16(i), data); err != nil {
			return err
		}
		if err := b.Write(adau1701SafeloadAddress+uint16(i), regcodec.Uint16Bytes(address+uint16(i))); err != nil {
			return err
		}
	}
	return updateCoreControl(b, func(v uint16) uint16 { return v | adau1701CoreControlIST })
}

func (ADAU1701) SoftReset(b bus.Bus) error {
	if err := updateCoreControl(b, func(v uint16) uint16 { return v &^ adau1701CoreControlCR }); err != nil {
		return err
	}
	return updateCoreControl(b, func(v uint16) uint16 { return v | adau1701CoreControlCR })
}

func updateCoreControl(b bus.Bus, fn func(uint16) uint16) error {
	current, err := b.Read(adau1701CoreControl, 2)
	if err != nil {
		return err
	}
	return b.Write(adau1701CoreControl, regcodec.Uint16Bytes(fn(regcodec.Uint16(current, 0))))
}
