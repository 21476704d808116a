package protocol

import (
	"testing"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWriteHeaderExample(t *testing.T) {
	raw := []byte{0x09, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03, 0x00, 0x10}

	h, err := DecodeWriteHeader(raw)
	require.NoError(t, err)
	assert.False(t, h.Safeload)
	assert.Equal(t, uint32(3), h.PayloadLength)
	assert.Equal(t, uint16(0x0010), h.Address)
}

func TestDecodeWriteHeaderFields(t *testing.T) {
	raw := []byte{0x09, 0x01, 0x02, 0x00, 0x00, 0x00, 0x16, 0x77, 0x00, 0x00, 0x00, 0x08, 0x60, 0x00}

	h, err := DecodeWriteHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, WriteHeader{
		Safeload:      true,
		Channel:       2,
		TotalLength:   0x16,
		ChipAddress:   0x3B,
		PayloadLength: 8,
		Address:       0x6000,
	}, h)
}

func TestWriteHeaderRoundTrip(t *testing.T) {
	cases := []WriteHeader{
		{},
		{Safeload: true, Channel: 0xFF, TotalLength: 0xFFFFFFFF, ChipAddress: 0x7F, PayloadLength: 0xFFFFFFFF, Address: 0xFFFF},
		{Channel: 1, TotalLength: 18, ChipAddress: 0x3B, PayloadLength: 4, Address: 0x0123},
	}
	for _, want := range cases {
		got, err := DecodeWriteHeader(want.Encode())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestDecodeReadHeaderExample(t *testing.T) {
	raw := []byte{0x0A, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x20, 0x00, 0x00}

	h, err := DecodeReadHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, ReadHeader{DataLength: 2, Address: 0x0020}, h)
}

func TestReadHeaderRoundTrip(t *testing.T) {
	cases := []ReadHeader{
		{},
		{TotalLength: 0xFFFFFFFF, ChipAddress: 0xFF, DataLength: 0xFFFFFFFF, Address: 0xFFFF},
		{TotalLength: 14, ChipAddress: 0x76, DataLength: 4, Address: 0xF000},
	}
	for _, want := range cases {
		got, err := DecodeReadHeader(want.Encode())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReadResponseHeaderRoundTrip(t *testing.T) {
	want := ReadResponseHeader{TotalLength: 18, ChipAddress: 0x3B, DataLength: 4, Address: 0xBEEF, Status: StatusFailure}

	b := want.Encode()
	got, err := DecodeReadResponseHeader(b)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, byte(StatusFailure), b[12])
	assert.Equal(t, byte(0), b[13])
}

func TestEncodeReadResponseExample(t *testing.T) {
	frame := EncodeReadResponse(ReadHeader{DataLength: 2, Address: 0x0020}, []byte{0x01, 0x02})

	expected := []byte{0x0B, 0x00, 0x00, 0x00, 0x10, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00, 0x20, 0x00, 0x00, 0x01, 0x02}
	assert.Equal(t, expected, frame)
}

func TestEncodeReadResponseLengths(t *testing.T) {
	for _, length := range []uint32{0, 1, 4, 17, 4096} {
		req := ReadHeader{ChipAddress: 0x3B, DataLength: length, Address: 0x1234}
		data := make([]byte, length)
		for i := range data {
			data[i] = byte(i)
		}

		frame := EncodeReadResponse(req, data)
		require.Len(t, frame, HeaderLength+int(length))

		h, err := DecodeReadResponseHeader(frame[:HeaderLength])
		require.NoError(t, err)
		assert.Equal(t, uint32(HeaderLength)+length, h.TotalLength)
		assert.Equal(t, uint16(0x1234), h.Address)
		assert.Equal(t, length, h.DataLength)
		assert.Equal(t, StatusSuccess, h.Status)
		assert.Equal(t, data, frame[HeaderLength:])
	}
}

func TestEncodeReadResponseFixesPayloadLength(t *testing.T) {
	short := EncodeReadResponse(ReadHeader{DataLength: 4}, []byte{0xAA})
	assert.Equal(t, []byte{0xAA, 0x00, 0x00, 0x00}, short[HeaderLength:])

	long := EncodeReadResponse(ReadHeader{DataLength: 1}, []byte{0xAA, 0xBB})
	assert.Equal(t, []byte{0xAA}, long[HeaderLength:])
}

func TestDecodeRejectsWrongCommand(t *testing.T) {
	_, err := DecodeWriteHeader(ReadHeader{}.Encode())
	assert.True(t, errors.HasCode(err, ErrUnexpectedCommand))

	_, err = DecodeReadHeader(WriteHeader{}.Encode())
	assert.True(t, errors.HasCode(err, ErrUnexpectedCommand))

	_, err = DecodeReadHeader([]byte{0x0A, 0x00})
	assert.True(t, errors.HasCode(err, ErrShortHeader))
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "Write", CommandWrite.String())
	assert.Equal(t, "ReadResponse", CommandReadResponse.String())
	assert.Equal(t, "Unknown", Command(0x42).String())
	assert.True(t, CommandRead.IsKnown())
	assert.False(t, Command(0x00).IsKnown())
}
