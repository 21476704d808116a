package dsp

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/hardware/bus"
	"github.com/gear6io/dspbridge/server/hardware/pins"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func newTestDsp(t *testing.T, family Family) (*Dsp, *bus.Memory) {
	t.Helper()
	mem := bus.NewRecordingMemory()
	return New(family, mem, nil, zerolog.Nop()), mem
}

func TestNewFamily(t *testing.T) {
	f, err := NewFamily("adau14xx")
	require.NoError(t, err)
	assert.Equal(t, "adau14xx", f.Name())

	f, err = NewFamily("adau1701")
	require.NoError(t, err)
	assert.Equal(t, "adau1701", f.Name())

	_, err = NewFamily("adau1761")
	assert.True(t, errors.HasCode(err, ErrUnsupportedFamily))
}

func TestADAU14xxFixedPoint(t *testing.T) {
	f := ADAU14xx{}
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, f.EncodeFloat(1.0))
	assert.Equal(t, []byte{0x00, 0x80, 0x00, 0x00}, f.EncodeFloat(0.5))
	assert.Equal(t, []byte{0xFF, 0x00, 0x00, 0x00}, f.EncodeFloat(-1.0))
	assert.Equal(t, []byte{0x7F, 0xFF, 0xFF, 0xFF}, f.EncodeFloat(1000), "saturates")

	assert.Equal(t, -1.0, f.DecodeFloat([]byte{0xFF, 0x00, 0x00, 0x00}))
	assert.InDelta(t, 0.123, f.DecodeFloat(f.EncodeFloat(0.123)), 1e-7)
}

func TestADAU1701FixedPoint(t *testing.T) {
	f := ADAU1701{}
	assert.Equal(t, []byte{0x00, 0x80, 0x00, 0x00}, f.EncodeFloat(1.0))
	assert.Equal(t, []byte{0x0F, 0x80, 0x00, 0x00}, f.EncodeFloat(-1.0))
	assert.Equal(t, []byte{0x07, 0xFF, 0xFF, 0xFF}, f.EncodeFloat(20), "saturates at 28 bits")

	assert.Equal(t, -1.0, f.DecodeFloat([]byte{0x0F, 0x80, 0x00, 0x00}))
	assert.Equal(t, 1.0, f.DecodeFloat([]byte{0x00, 0x80, 0x00, 0x00}))
	assert.InDelta(t, -0.75, f.DecodeFloat(f.EncodeFloat(-0.75)), 1e-6)
}

func TestWriteRead(t *testing.T) {
	d, _ := newTestDsp(t, ADAU14xx{})
	require.NoError(t, d.Write(0x0010, []byte{1, 2, 3, 4, 5, 6, 7, 8}))

	data, err := d.Read(0x0011, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, data)
}

func TestSafeloadADAU14xx(t *testing.T) {
	d, mem := newTestDsp(t, ADAU14xx{})
	payload := []byte{0, 0, 0, 1, 0, 0, 0, 2}

	require.NoError(t, d.Safeload(0x0100, payload))

	writes := mem.Writes()
	require.Len(t, writes, 4)
	assert.Equal(t, bus.Transaction{Write: true, Address: 0x6000, Data: []byte{0, 0, 0, 1}}, writes[0])
	assert.Equal(t, bus.Transaction{Write: true, Address: 0x6001, Data: []byte{0, 0, 0, 2}}, writes[1])
	assert.Equal(t, bus.Transaction{Write: true, Address: 0x6005, Data: []byte{0, 0, 0x00, 0xFF}}, writes[2])
	assert.Equal(t, bus.Transaction{Write: true, Address: 0x6006, Data: []byte{0, 0, 0, 2}}, writes[3])
}

func TestSafeloadADAU1701(t *testing.T) {
	d, mem := newTestDsp(t, ADAU1701{})
	require.NoError(t, mem.Write(0x081C, []byte{0x00, 0x1C}))
	mem.Reset()

	require.NoError(t, d.Safeload(0x0020, []byte{0, 0x80, 0, 0}))

	writes := mem.Writes()
	require.Len(t, writes, 3)
	assert.Equal(t, bus.Transaction{Write: true, Address: 0x0810, Data: []byte{0, 0, 0x80, 0, 0}}, writes[0])
	assert.Equal(t, bus.Transaction{Write: true, Address: 0x0815, Data: []byte{0x00, 0x20}}, writes[1])
	assert.Equal(t, bus.Transaction{Write: true, Address: 0x081C, Data: []byte{0x00, 0x3C}}, writes[2])
}

func TestSafeloadViolations(t *testing.T) {
	d, mem := newTestDsp(t, ADAU14xx{})

	tests := []struct {
		name string
		data []byte
		code errors.Code
	}{
		{"empty", nil, ErrSafeloadEmpty},
		{"partial word", make([]byte, 6), ErrSafeloadAlignment},
		{"six words", make([]byte, 24), ErrSafeloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Safeload(0x0010, tt.data)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
	assert.Empty(t, mem.Writes(), "rejected safeloads never touch the bus")

	require.NoError(t, d.Safeload(0x0010, make([]byte, 20)), "five words is the capacity")
}

func TestParameterValues(t *testing.T) {
	d, _ := newTestDsp(t, ADAU14xx{})

	require.NoError(t, d.SetParameterValue(0x0040, FloatValue(0.25)))
	v, err := d.GetParameterValue(0x0040, FormatFloat)
	require.NoError(t, err)
	assert.Equal(t, 0.25, v.Float)

	v, err = d.GetParameterValue(0x0040, FormatInt)
	require.NoError(t, err)
	assert.Equal(t, int32(0x00400000), v.Int)

	require.NoError(t, d.SetParameterValue(0x0041, IntValue(-2)))
	v, err = d.GetParameterValue(0x0041, FormatInt)
	require.NoError(t, err)
	assert.Equal(t, "-2", v.String())
}

func TestParseDataFormat(t *testing.T) {
	f, err := ParseDataFormat("INT")
	require.NoError(t, err)
	assert.Equal(t, FormatInt, f)

	f, err = ParseDataFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatFloat, f)

	_, err = ParseDataFormat("double")
	assert.True(t, errors.HasCode(err, ErrUnknownFormat))
}

func TestSetVolumeClamps(t *testing.T) {
	for _, family := range []Family{ADAU14xx{}, ADAU1701{}} {
		t.Run(family.Name(), func(t *testing.T) {
			d, mem := newTestDsp(t, family)

			db, err := d.SetVolume(6, 0x0050)
			require.NoError(t, err)
			assert.Equal(t, 0.0, db)
			stored, _ := mem.Read(0x0050, 4)
			assert.Equal(t, family.EncodeFloat(1), stored, "never above unity")

			db, err = d.SetVolume(math.Inf(-1), 0x0050)
			require.NoError(t, err)
			assert.True(t, math.IsInf(db, -1))
			stored, _ = mem.Read(0x0050, 4)
			assert.Equal(t, []byte{0, 0, 0, 0}, stored)

			db, err = d.SetVolume(-6, 0x0050)
			require.NoError(t, err)
			assert.InDelta(t, -6, db, 1e-9)
		})
	}
}

func TestVolumeRejectsUnusableLevels(t *testing.T) {
	d, mem := newTestDsp(t, ADAU14xx{})

	for _, db := range []float64{math.NaN(), math.Inf(1)} {
		_, err := d.SetVolume(db, 0x0050)
		assert.True(t, errors.HasCode(err, ErrInvalidVolume), "set %v", db)

		_, err = d.AdjustVolume(db, 0x0050)
		assert.True(t, errors.HasCode(err, ErrInvalidVolume), "adjust %v", db)
	}
	assert.Empty(t, mem.Transactions())
	assert.NoError(t, ValidateDB(math.Inf(-1)))
}

func TestAdjustVolume(t *testing.T) {
	d, _ := newTestDsp(t, ADAU14xx{})
	require.NoError(t, d.SetParameterValue(0x0060, FloatValue(0.5)))

	db, err := d.AdjustVolume(20, 0x0060)
	require.NoError(t, err)
	assert.Equal(t, 0.0, db, "5x gain on 0.5 clamps to unity")

	db, err = d.AdjustVolume(-20, 0x0060)
	require.NoError(t, err)
	assert.InDelta(t, -20, db, 1e-6)

	v, err := d.GetParameterValue(0x0060, FormatFloat)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, v.Float, 1e-6)
}

func TestSoftReset(t *testing.T) {
	d, mem := newTestDsp(t, ADAU14xx{})
	require.NoError(t, d.SoftReset())
	assert.Equal(t, []bus.Transaction{
		{Write: true, Address: 0xF890, Data: []byte{0, 0}},
		{Write: true, Address: 0xF890, Data: []byte{0, 1}},
	}, mem.Writes())

	d, mem = newTestDsp(t, ADAU1701{})
	require.NoError(t, mem.Write(0x081C, []byte{0x00, 0x1C}))
	mem.Reset()
	require.NoError(t, d.SoftReset())
	assert.Equal(t, []bus.Transaction{
		{Write: true, Address: 0x081C, Data: []byte{0x00, 0x18}},
		{Write: true, Address: 0x081C, Data: []byte{0x00, 0x1C}},
	}, mem.Writes())
}

func openTestPin(t *testing.T, name string, line *gpiotest.Pin, mode pins.Mode) *pins.Pin {
	t.Helper()
	p, err := pins.Open(name, line.Num, mode, func(int) (gpio.PinIO, error) { return line, nil })
	require.NoError(t, err)
	return p
}

func TestHardResetPulsesPin(t *testing.T) {
	d, mem := newTestDsp(t, ADAU14xx{})
	line := &gpiotest.Pin{N: "GPIO17", Num: 17}
	require.True(t, d.AddPin(openTestPin(t, ResetPinName, line, pins.Output{ActiveHigh: false})))

	var during gpio.Level
	var slept time.Duration
	d.sleep = func(delay time.Duration) {
		slept = delay
		during = line.L
	}

	require.NoError(t, d.HardReset(10*time.Millisecond))
	assert.Equal(t, gpio.Low, during, "active-low reset asserted while waiting")
	assert.Equal(t, gpio.High, line.L)
	assert.Equal(t, 10*time.Millisecond, slept)
	assert.Empty(t, mem.Writes())
}

func TestHardResetExcludesBusAccess(t *testing.T) {
	d, mem := newTestDsp(t, ADAU14xx{})
	line := &gpiotest.Pin{N: "GPIO17", Num: 17}
	require.True(t, d.AddPin(openTestPin(t, ResetPinName, line, pins.Output{ActiveHigh: true})))

	var busFree bool
	d.sleep = func(time.Duration) {
		if d.mu.TryLock() {
			busFree = true
			d.mu.Unlock()
		}
	}

	require.NoError(t, d.HardReset(time.Millisecond))
	assert.False(t, busFree, "a write could have run while the chip was held in reset")

	// the lock is released afterwards
	require.NoError(t, d.Write(0x0001, []byte{0, 0, 0, 1}))
	assert.Len(t, mem.Writes(), 1)
}

func TestHardResetFallsBackToSoftReset(t *testing.T) {
	d, mem := newTestDsp(t, ADAU14xx{})
	require.NoError(t, d.HardReset(0))
	assert.Len(t, mem.Writes(), 2)
}

func TestPinManagement(t *testing.T) {
	d, _ := newTestDsp(t, ADAU14xx{})
	mute := openTestPin(t, "mute", &gpiotest.Pin{N: "GPIO22", Num: 22}, pins.Output{ActiveHigh: true})

	assert.True(t, d.AddPin(mute))
	assert.False(t, d.AddPin(openTestPin(t, "mute", &gpiotest.Pin{N: "GPIO23", Num: 23}, pins.Output{})))

	p, ok := d.Pin("mute")
	require.True(t, ok)
	assert.Equal(t, 22, p.Number)
	assert.Len(t, d.Pins(), 1)

	assert.True(t, d.RemovePin("mute"))
	_, ok = d.Pin("mute")
	assert.False(t, ok)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1.0, Clamp(1.5, 0.0, 1.0))
	assert.Equal(t, 0.0, Clamp(-0.1, 0.0, 1.0))
	assert.Equal(t, 7, Clamp(7, 0, 10))
	assert.Equal(t, "b", Clamp("z", "a", "b"))
}

// failingBus fails every transaction.
type failingBus struct{}

func (failingBus) Write(uint16, []byte) error       { return fmt.Errorf("nack") }
func (failingBus) Read(uint16, int) ([]byte, error) { return nil, fmt.Errorf("nack") }
func (failingBus) Close() error                     { return nil }
func (failingBus) Name() string                     { return "failing" }

func TestBusErrorsAreCoded(t *testing.T) {
	d := New(ADAU14xx{}, failingBus{}, nil, zerolog.Nop())

	err := d.Write(0x0001, []byte{1})
	assert.True(t, errors.HasCode(err, ErrBus))

	_, err = d.SetVolume(0, 0x0001)
	assert.True(t, errors.HasCode(err, ErrBus))

	err = d.Safeload(0x0001, make([]byte, 4))
	assert.True(t, errors.HasCode(err, ErrBus))
}
