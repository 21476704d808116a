// Package message defines the requests that cross from the protocol bridge
// to the chip-owning side, and the Exchange that carries them.
package message

import "fmt"

// Kind names a request type for logs and metric labels.
type Kind string

const (
	KindWrite    Kind = "write"
	KindSafeload Kind = "safeload"
	KindRead     Kind = "read"
)

// Request is implemented by Write, Safeload and Read only.
type Request interface {
	Kind() Kind
	isRequest()
}

// Write is an unconditional block write starting at Address.
type Write struct {
	Address uint16
	Data    []byte
}

// Safeload asks the chip to update a few 4-byte words atomically.
type Safeload struct {
	Address uint16
	Data    []byte
}

// Read asks for Length bytes starting at Address. It is answered by exactly
// one ReadResult.
type Read struct {
	Address uint16
	Length  uint32
}

// ReadResult carries the bytes read for a Read.
type ReadResult struct {
	Data []byte
}

func (Write) Kind() Kind    { return KindWrite }
func (Safeload) Kind() Kind { return KindSafeload }
func (Read) Kind() Kind     { return KindRead }

func (Write) isRequest()    {}
func (Safeload) isRequest() {}
func (Read) isRequest()     {}

func (w Write) String() string {
	return fmt.Sprintf("write %d bytes to 0x%04x", len(w.Data), w.Address)
}

func (s Safeload) String() string {
	return fmt.Sprintf("safeload %d bytes to 0x%04x", len(s.Data), s.Address)
}

func (r Read) String() string {
	return fmt.Sprintf("read %d bytes from 0x%04x", r.Length, r.Address)
}
