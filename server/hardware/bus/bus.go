// Package bus implements the register transports a SigmaDSP can sit behind.
package bus

import (
	"fmt"

	"github.com/gear6io/dspbridge/pkg/errors"
)

// Bus moves raw register bytes to and from the chip. Implementations are not
// safe for concurrent use; the DSP worker serializes access.
type Bus interface {
	Write(address uint16, data []byte) error
	Read(address uint16, length int) ([]byte, error)
	Close() error
	Name() string
}

var (
	ErrOpenFailed     = errors.MustNewCode("bus.open_failed")
	ErrTransferFailed = errors.MustNewCode("bus.transfer_failed")
	ErrOutOfRange     = errors.MustNewCode("bus.out_of_range")
)

// AddressLength is the size of the register address prefix on both buses.
const AddressLength = 2

// MaxTransferBytes bounds a single bus transaction, header included.
const MaxTransferBytes = 4096

// WordSize is the increment of one register address.
const WordSize = 4

func transferError(bus string, op string, address uint16, err error) error {
	return errors.New(ErrTransferFailed, fmt.Sprintf("%s %s failed", bus, op), err).
		AddContext("address", fmt.Sprintf("0x%04x", address))
}

// chunk splits a write into transfers of at most maxPayload bytes. Each chunk
// starts maxPayload/WordSize addresses after the previous one, since register
// addresses count 32-bit words.
func chunk(address uint16, data []byte, maxPayload int, fn func(address uint16, data []byte) error) error {
	for len(data) > 0 {
		n := len(data)
		if n > maxPayload {
			n = maxPayload
		}
		if err := fn(address, data[:n]); err != nil {
			return err
		}
		address += uint16(n / WordSize)
		data = data[n:]
	}
	return nil
}
