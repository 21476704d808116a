// Package dsp implements register-level control of a SigmaDSP: plain and
// safeload writes, reads, parameter and volume semantics, resets and pins.
package dsp

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/hardware/bus"
	"github.com/gear6io/dspbridge/server/hardware/pins"
	"github.com/rs/zerolog"
)

// ResetPinName is the pin HardReset pulses.
const ResetPinName = "reset"

// DataFormat selects how a parameter register is interpreted.
type DataFormat int

const (
	FormatFloat DataFormat = iota
	FormatInt
)

func (f DataFormat) String() string {
	if f == FormatInt {
		return "int"
	}
	return "float"
}

// ParseDataFormat accepts "float" and "int"; empty means float.
func ParseDataFormat(s string) (DataFormat, error) {
	switch strings.ToLower(s) {
	case "", "float":
		return FormatFloat, nil
	case "int":
		return FormatInt, nil
	default:
		return 0, errors.New(ErrUnknownFormat, fmt.Sprintf("unknown data format %q", s), nil)
	}
}

// Value is a parameter as seen by callers.
type Value struct {
	Format DataFormat
	Float  float64
	Int    int32
}

func FloatValue(f float64) Value { return Value{Format: FormatFloat, Float: f} }
func IntValue(i int32) Value     { return Value{Format: FormatInt, Int: i} }

func (v Value) String() string {
	if v.Format == FormatInt {
		return fmt.Sprintf("%d", v.Int)
	}
	return fmt.Sprintf("%g", v.Float)
}

// Dsp owns one bus and the pins wired to the chip. All bus access goes
// through mu, so the bridge worker and the admin API never interleave
// transactions.
type Dsp struct {
	family Family
	bus    bus.Bus
	pins   *pins.Set
	logger zerolog.Logger

	mu    sync.Mutex
	sleep func(time.Duration)
}

// New wires a family, a bus and a pin set together. A nil set starts empty.
func New(family Family, b bus.Bus, set *pins.Set, logger zerolog.Logger) *Dsp {
	if set == nil {
		set = pins.NewSet()
	}
	return &Dsp{
		family: family,
		bus:    b,
		pins:   set,
		logger: logger.With().Str("component", "dsp").Str("family", family.Name()).Logger(),
		sleep:  time.Sleep,
	}
}

func (d *Dsp) Family() Family { return d.family }

func (d *Dsp) BusName() string { return d.bus.Name() }

// Write stores data verbatim starting at address.
func (d *Dsp) Write(address uint16, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(address, data)
}

func (d *Dsp) write(address uint16, data []byte) error {
	if err := d.bus.Write(address, data); err != nil {
		return errors.New(ErrBus, "write failed", err).AddContext("address", fmt.Sprintf("0x%04x", address))
	}
	return nil
}

// Read returns length bytes starting at address.
func (d *Dsp) Read(address uint16, length int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read(address, length)
}

func (d *Dsp) read(address uint16, length int) ([]byte, error) {
	data, err := d.bus.Read(address, length)
	if err != nil {
		return nil, errors.New(ErrBus, "read failed", err).AddContext("address", fmt.Sprintf("0x%04x", address))
	}
	return data, nil
}

// Safeload updates up to SafeloadCapacity consecutive words atomically.
// data must be a whole number of 4-byte words.
func (d *Dsp) Safeload(address uint16, data []byte) error {
	words, err := splitWords(data)
	if err != nil {
		return err.AddContext("address", fmt.Sprintf("0x%04x", address))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.family.Safeload(d.bus, address, words); err != nil {
		return errors.New(ErrBus, "safeload failed", err).AddContext("address", fmt.Sprintf("0x%04x", address))
	}
	return nil
}

func splitWords(data []byte) ([][]byte, *errors.Error) {
	switch {
	case len(data) == 0:
		return nil, errors.New(ErrSafeloadEmpty, "safeload without data", nil)
	case len(data)%ParameterSize != 0:
		return nil, errors.New(ErrSafeloadAlignment,
			fmt.Sprintf("safeload of %d bytes is not a whole number of %d-byte words", len(data), ParameterSize), nil)
	case len(data)/ParameterSize > SafeloadCapacity:
		return nil, errors.New(ErrSafeloadTooLarge,
			fmt.Sprintf("safeload of %d words exceeds capacity of %d", len(data)/ParameterSize, SafeloadCapacity), nil)
	}

	words := make([][]byte, 0, len(data)/ParameterSize)
	for i := 0; i < len(data); i += ParameterSize {
		words = append(words, data[i:i+ParameterSize])
	}
	return words, nil
}

// SetParameterValue encodes v in the family's register format.
func (d *Dsp) SetParameterValue(address uint16, v Value) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(address, d.encode(v))
}

func (d *Dsp) encode(v Value) []byte {
	if v.Format == FormatInt {
		return regInt(v.Int)
	}
	return d.family.EncodeFloat(v.Float)
}

// GetParameterValue reads one parameter register.
func (d *Dsp) GetParameterValue(address uint16, format DataFormat) (Value, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.getParameter(address, format)
}

func (d *Dsp) getParameter(address uint16, format DataFormat) (Value, error) {
	raw, err := d.read(address, ParameterSize)
	if err != nil {
		return Value{}, err
	}
	if format == FormatInt {
		return IntValue(fromRegInt(raw)), nil
	}
	return FloatValue(d.family.DecodeFloat(raw)), nil
}

// SetVolume stores the linear gain for db, never above unity, and returns
// the stored value in dB.
func (d *Dsp) SetVolume(db float64, address uint16) (float64, error) {
	if err := ValidateDB(db); err != nil {
		return math.NaN(), err
	}
	linear := Clamp(DBToLinear(db), 0, 1)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(address, d.family.EncodeFloat(linear)); err != nil {
		return math.NaN(), err
	}

	result := LinearToDB(linear)
	d.logger.Info().Float64("db", result).Str("address", fmt.Sprintf("0x%04x", address)).Msg("Set volume")
	return result, nil
}

// AdjustVolume scales the stored gain by db, clamped to [0, 1], and returns
// the new value in dB.
func (d *Dsp) AdjustVolume(db float64, address uint16) (float64, error) {
	if err := ValidateDB(db); err != nil {
		return math.NaN(), err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current, err := d.getParameter(address, FormatFloat)
	if err != nil {
		return math.NaN(), err
	}

	linear := Clamp(current.Float*DBToLinear(db), 0, 1)
	if err := d.write(address, d.family.EncodeFloat(linear)); err != nil {
		return math.NaN(), err
	}

	result := LinearToDB(linear)
	d.logger.Info().
		Float64("from_db", LinearToDB(current.Float)).
		Float64("to_db", result).
		Str("address", fmt.Sprintf("0x%04x", address)).
		Msg("Adjusted volume")
	return result, nil
}

// SoftReset restarts the core through its control registers.
func (d *Dsp) SoftReset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.softReset()
}

func (d *Dsp) softReset() error {
	d.logger.Info().Msg("Soft-resetting the DSP")
	if err := d.family.SoftReset(d.bus); err != nil {
		return errors.New(ErrBus, "soft reset failed", err)
	}
	return nil
}

// HardReset pulses the reset pin for delay. Without a reset pin it falls
// back to SoftReset. No bus transaction runs while the pin is held.
func (d *Dsp) HardReset(delay time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	pin, ok := d.pins.Get(ResetPinName)
	if !ok {
		d.logger.Info().Msg("No hard-reset pin defined, falling back to soft reset")
		return d.softReset()
	}

	d.logger.Info().Int("pin", pin.Number).Msg("Hard-resetting the DSP")
	if err := pin.On(); err != nil {
		return err
	}
	d.sleep(delay)
	return pin.Off()
}

// Pin looks a pin up by name.
func (d *Dsp) Pin(name string) (*pins.Pin, bool) {
	return d.pins.Get(name)
}

// AddPin registers p unless a pin of that name exists.
func (d *Dsp) AddPin(p *pins.Pin) bool {
	added := d.pins.Add(p)
	if added {
		d.logger.Info().Str("pin", p.Name).Int("number", p.Number).Msg("Added DSP pin")
	}
	return added
}

// RemovePin drops the pin with that name, if any.
func (d *Dsp) RemovePin(name string) bool {
	return d.pins.Remove(name)
}

// Pins lists all pins in the order they were added.
func (d *Dsp) Pins() []*pins.Pin {
	return d.pins.All()
}

// Close releases the bus.
func (d *Dsp) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bus.Close()
}
