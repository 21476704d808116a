package bus

import (
	"fmt"
	"strconv"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/regcodec"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

const i2cMaxPayloadBytes = (MaxTransferBytes - AddressLength) / WordSize * WordSize

// I2C talks to a SigmaDSP at a 7-bit device address. Every transaction starts
// with the 16-bit register address.
type I2C struct {
	bus  i2c.BusCloser
	dev  conn.Conn
	name string
}

// OpenI2C opens /dev/i2c-<bus> and targets addr.
func OpenI2C(busNumber int, addr uint16) (*I2C, error) {
	b, err := i2creg.Open(strconv.Itoa(busNumber))
	if err != nil {
		return nil, errors.New(ErrOpenFailed, "failed to open i2c bus", err).AddContext("bus", strconv.Itoa(busNumber))
	}
	return &I2C{
		bus:  b,
		dev:  &i2c.Dev{Bus: b, Addr: addr},
		name: fmt.Sprintf("I2C%d@0x%02x", busNumber, addr),
	}, nil
}

// NewI2C wraps a device connection, mainly for tests.
func NewI2C(dev conn.Conn) *I2C {
	return &I2C{dev: dev, name: "i2c"}
}

func (b *I2C) Write(address uint16, data []byte) error {
	return chunk(address, data, i2cMaxPayloadBytes, func(address uint16, data []byte) error {
		frame := make([]byte, AddressLength+len(data))
		regcodec.PutUint16(frame, 0, address)
		copy(frame[AddressLength:], data)
		if err := b.dev.Tx(frame, nil); err != nil {
			return transferError(b.name, "write", address, err)
		}
		return nil
	})
}

// Read writes the register address and reads length bytes in one combined
// transaction.
func (b *I2C) Read(address uint16, length int) ([]byte, error) {
	data := make([]byte, length)
	if err := b.dev.Tx(regcodec.Uint16Bytes(address), data); err != nil {
		return nil, transferError(b.name, "read", address, err)
	}
	return data, nil
}

func (b *I2C) Close() error {
	if b.bus == nil {
		return nil
	}
	return b.bus.Close()
}

func (b *I2C) Name() string {
	return b.name
}
