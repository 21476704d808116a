package protocol

import (
	"fmt"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/regcodec"
)

// WriteHeader precedes PayloadLength bytes of register data.
//
// TotalLength and Channel are informational; framing relies only on the
// fixed header size and PayloadLength.
type WriteHeader struct {
	Safeload      bool
	Channel       uint8
	TotalLength   uint32
	ChipAddress   uint8 // 7-bit bus address, R/W bit removed
	PayloadLength uint32
	Address       uint16
}

// ReadHeader asks for DataLength bytes at Address.
type ReadHeader struct {
	TotalLength uint32
	ChipAddress uint8
	DataLength  uint32
	Address     uint16
}

// ReadResponseHeader precedes DataLength bytes of register data.
type ReadResponseHeader struct {
	TotalLength uint32
	ChipAddress uint8
	DataLength  uint32
	Address     uint16
	Status      uint8
}

// CommandOf peeks at the opcode of a header.
func CommandOf(header []byte) Command {
	return Command(header[0])
}

func checkHeader(b []byte, want Command) error {
	if len(b) < HeaderLength {
		return errors.New(ErrShortHeader, fmt.Sprintf("header needs %d bytes, got %d", HeaderLength, len(b)), nil)
	}
	if got := CommandOf(b); got != want {
		return errors.New(ErrUnexpectedCommand, fmt.Sprintf("expected %s header, got command 0x%02x", want, byte(got)), nil)
	}
	return nil
}

// DecodeWriteHeader parses a 14-byte write header.
func DecodeWriteHeader(b []byte) (WriteHeader, error) {
	if err := checkHeader(b, CommandWrite); err != nil {
		return WriteHeader{}, err
	}
	return WriteHeader{
		Safeload:      regcodec.Uint8(b, writeOffsetSafeload) == 1,
		Channel:       regcodec.Uint8(b, writeOffsetChannel),
		TotalLength:   regcodec.Uint32(b, writeOffsetTotalLength),
		ChipAddress:   regcodec.Uint8(b, writeOffsetChipAddress) >> 1,
		PayloadLength: regcodec.Uint32(b, writeOffsetPayloadLength),
		Address:       regcodec.Uint16(b, writeOffsetAddress),
	}, nil
}

// Encode renders the header, shifting ChipAddress back over the R/W bit.
func (h WriteHeader) Encode() []byte {
	b := make([]byte, HeaderLength)
	regcodec.PutUint8(b, 0, byte(CommandWrite))
	if h.Safeload {
		regcodec.PutUint8(b, writeOffsetSafeload, 1)
	}
	regcodec.PutUint8(b, writeOffsetChannel, h.Channel)
	regcodec.PutUint32(b, writeOffsetTotalLength, h.TotalLength)
	regcodec.PutUint8(b, writeOffsetChipAddress, h.ChipAddress<<1)
	regcodec.PutUint32(b, writeOffsetPayloadLength, h.PayloadLength)
	regcodec.PutUint16(b, writeOffsetAddress, h.Address)
	return b
}

// DecodeReadHeader parses a 14-byte read request header.
func DecodeReadHeader(b []byte) (ReadHeader, error) {
	if err := checkHeader(b, CommandRead); err != nil {
		return ReadHeader{}, err
	}
	return ReadHeader{
		TotalLength: regcodec.Uint32(b, readOffsetTotalLength),
		ChipAddress: regcodec.Uint8(b, readOffsetChipAddress),
		DataLength:  regcodec.Uint32(b, readOffsetDataLength),
		Address:     regcodec.Uint16(b, readOffsetAddress),
	}, nil
}

func (h ReadHeader) Encode() []byte {
	b := make([]byte, HeaderLength)
	regcodec.PutUint8(b, 0, byte(CommandRead))
	regcodec.PutUint32(b, readOffsetTotalLength, h.TotalLength)
	regcodec.PutUint8(b, readOffsetChipAddress, h.ChipAddress)
	regcodec.PutUint32(b, readOffsetDataLength, h.DataLength)
	regcodec.PutUint16(b, readOffsetAddress, h.Address)
	return b
}

// DecodeReadResponseHeader parses a 14-byte read response header.
func DecodeReadResponseHeader(b []byte) (ReadResponseHeader, error) {
	if err := checkHeader(b, CommandReadResponse); err != nil {
		return ReadResponseHeader{}, err
	}
	return ReadResponseHeader{
		TotalLength: regcodec.Uint32(b, readOffsetTotalLength),
		ChipAddress: regcodec.Uint8(b, readOffsetChipAddress),
		DataLength:  regcodec.Uint32(b, readOffsetDataLength),
		Address:     regcodec.Uint16(b, readOffsetAddress),
		Status:      regcodec.Uint8(b, readOffsetStatus),
	}, nil
}

// Encode renders the header. Status and the reserved byte are one byte each.
func (h ReadResponseHeader) Encode() []byte {
	b := make([]byte, HeaderLength)
	regcodec.PutUint8(b, 0, byte(CommandReadResponse))
	regcodec.PutUint32(b, readOffsetTotalLength, h.TotalLength)
	regcodec.PutUint8(b, readOffsetChipAddress, h.ChipAddress)
	regcodec.PutUint32(b, readOffsetDataLength, h.DataLength)
	regcodec.PutUint16(b, readOffsetAddress, h.Address)
	regcodec.PutUint8(b, readOffsetStatus, h.Status)
	regcodec.PutUint8(b, readOffsetReserved, 0)
	return b
}

// EncodeReadResponse builds the complete response frame for req. The payload
// is always exactly req.DataLength bytes: short data is zero-padded and long
// data is cut.
func EncodeReadResponse(req ReadHeader, data []byte) []byte {
	frame := make([]byte, HeaderLength+int(req.DataLength))
	header := ReadResponseHeader{
		TotalLength: uint32(HeaderLength) + req.DataLength,
		ChipAddress: req.ChipAddress,
		DataLength:  req.DataLength,
		Address:     req.Address,
		Status:      StatusSuccess,
	}
	copy(frame, header.Encode())
	copy(frame[HeaderLength:], data)
	return frame
}
