package bus

import (
	"fmt"
	"sync"

	"github.com/gear6io/dspbridge/pkg/errors"
)

// Transaction records one call made against a Memory bus.
type Transaction struct {
	Write   bool
	Address uint16
	Data    []byte
}

// Memory simulates a chip's register space. Addresses count WordSize-byte
// words, so a multi-word write at A fills A, A+1, ... like on the real part.
type Memory struct {
	mu     sync.Mutex
	space  []byte
	record bool
	log    []Transaction
}

// NewMemory returns a zeroed register space covering all 16-bit addresses.
// It keeps no transaction log, so it is safe to run indefinitely.
func NewMemory() *Memory {
	return &Memory{space: make([]byte, 0x10000*WordSize)}
}

// NewRecordingMemory is NewMemory with every transaction kept for
// Transactions and Writes. Meant for tests.
func NewRecordingMemory() *Memory {
	m := NewMemory()
	m.record = true
	return m
}

func (m *Memory) keep(tx Transaction) {
	if m.record {
		m.log = append(m.log, tx)
	}
}

func (m *Memory) bounds(address uint16, length int) (int, error) {
	start := int(address) * WordSize
	if length < 0 || start+length > len(m.space) {
		return 0, errors.New(ErrOutOfRange, fmt.Sprintf("%d bytes at 0x%04x exceed register space", length, address), nil)
	}
	return start, nil
}

func (m *Memory) Write(address uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, err := m.bounds(address, len(data))
	if err != nil {
		return err
	}
	copy(m.space[start:], data)
	m.keep(Transaction{Write: true, Address: address, Data: append([]byte(nil), data...)})
	return nil
}

func (m *Memory) Read(address uint16, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, err := m.bounds(address, length)
	if err != nil {
		return nil, err
	}
	data := append([]byte(nil), m.space[start:start+length]...)
	m.keep(Transaction{Address: address, Data: append([]byte(nil), data...)})
	return data, nil
}

// Transactions returns a copy of everything recorded so far; always empty
// unless the bus came from NewRecordingMemory.
func (m *Memory) Transactions() []Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Transaction(nil), m.log...)
}

// Writes filters Transactions down to writes.
func (m *Memory) Writes() []Transaction {
	var writes []Transaction
	for _, tx := range m.Transactions() {
		if tx.Write {
			writes = append(writes, tx)
		}
	}
	return writes
}

// Reset clears the transaction log, not the register contents.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) Name() string { return "memory" }
