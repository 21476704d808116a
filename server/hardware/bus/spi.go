package bus

import (
	"fmt"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/regcodec"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// SPI frame layout: one R/W byte followed by the 16-bit register address.
const (
	spiHeaderLength = 1 + AddressLength
	spiWrite        = 0x00
	spiRead         = 0x01

	// Largest payload that fits one transfer, rounded down to whole words.
	spiMaxPayloadBytes = (MaxTransferBytes - spiHeaderLength) / WordSize * WordSize
)

// SPI talks to a SigmaDSP in SPI mode 0, 8 bits per word.
type SPI struct {
	port spi.PortCloser
	conn conn.Conn
	name string
}

// OpenSPI opens /dev/spidev<bus>.<chipSelect>. SigmaDSPs accept up to 20 MHz;
// the default of 16 MHz is the nearest step most hosts can produce.
func OpenSPI(busNumber, chipSelect int, speedHz int64) (*SPI, error) {
	name := fmt.Sprintf("SPI%d.%d", busNumber, chipSelect)
	port, err := spireg.Open(name)
	if err != nil {
		return nil, errors.New(ErrOpenFailed, "failed to open spi port", err).AddContext("port", name)
	}

	c, err := port.Connect(physic.Frequency(speedHz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, errors.New(ErrOpenFailed, "failed to configure spi port", err).AddContext("port", name)
	}

	return &SPI{port: port, conn: c, name: name}, nil
}

// NewSPI wraps an already connected port, mainly for tests.
func NewSPI(c conn.Conn) *SPI {
	return &SPI{conn: c, name: "spi"}
}

// BuildSPIFrame prefixes data with the write header.
func BuildSPIFrame(command byte, address uint16, data []byte) []byte {
	frame := make([]byte, spiHeaderLength+len(data))
	frame[0] = command
	regcodec.PutUint16(frame, 1, address)
	copy(frame[spiHeaderLength:], data)
	return frame
}

// Write splits data into transfers that fit the bus limit.
func (s *SPI) Write(address uint16, data []byte) error {
	return chunk(address, data, spiMaxPayloadBytes, func(address uint16, data []byte) error {
		if err := s.conn.Tx(BuildSPIFrame(spiWrite, address, data), nil); err != nil {
			return transferError(s.name, "write", address, err)
		}
		return nil
	})
}

// Read clocks out zeros after the read header and keeps what comes back.
func (s *SPI) Read(address uint16, length int) ([]byte, error) {
	request := BuildSPIFrame(spiRead, address, make([]byte, length))
	response := make([]byte, len(request))
	if err := s.conn.Tx(request, response); err != nil {
		return nil, transferError(s.name, "read", address, err)
	}
	return response[spiHeaderLength:], nil
}

func (s *SPI) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

func (s *SPI) Name() string {
	return s.name
}
