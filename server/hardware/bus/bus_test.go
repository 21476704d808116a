package bus

import (
	"bytes"
	"testing"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
)

func TestBuildSPIFrame(t *testing.T) {
	frame := BuildSPIFrame(spiWrite, 0x6005, []byte{0xAA, 0xBB})
	assert.Equal(t, []byte{0x00, 0x60, 0x05, 0xAA, 0xBB}, frame)
}

func TestSPIWriteSingleTransfer(t *testing.T) {
	rec := &conntest.Record{}
	s := NewSPI(rec)

	require.NoError(t, s.Write(0x0010, []byte{1, 2, 3, 4}))
	require.Len(t, rec.Ops, 1)
	assert.Equal(t, []byte{0x00, 0x00, 0x10, 1, 2, 3, 4}, rec.Ops[0].W)
}

func TestSPIWriteIsChunked(t *testing.T) {
	rec := &conntest.Record{}
	s := NewSPI(rec)

	data := bytes.Repeat([]byte{0x5A}, spiMaxPayloadBytes+8)
	require.NoError(t, s.Write(0x0100, data))
	require.Len(t, rec.Ops, 2)

	first, second := rec.Ops[0].W, rec.Ops[1].W
	assert.LessOrEqual(t, len(first), MaxTransferBytes)
	assert.Equal(t, spiHeaderLength+spiMaxPayloadBytes, len(first))
	assert.Equal(t, []byte{0x00, 0x01, 0x00}, first[:3])

	// the second chunk starts one address per 4-byte word later
	next := uint16(0x0100 + spiMaxPayloadBytes/WordSize)
	assert.Equal(t, []byte{0x00, byte(next >> 8), byte(next)}, second[:3])
	assert.Len(t, second, spiHeaderLength+8)
}

func TestSPIRead(t *testing.T) {
	play := &conntest.Playback{
		Ops: []conntest.IO{{
			W: []byte{0x01, 0x00, 0x20, 0x00, 0x00},
			R: []byte{0xFF, 0xFF, 0xFF, 0x12, 0x34},
		}},
	}
	s := NewSPI(play)

	data, err := s.Read(0x0020, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, data)
	require.NoError(t, play.Close())
}

func TestI2CWriteAndRead(t *testing.T) {
	play := &conntest.Playback{
		Ops: []conntest.IO{
			{W: []byte{0xF8, 0x90, 0x00, 0x01}},
			{W: []byte{0x00, 0x20}, R: []byte{0xCA, 0xFE}},
		},
	}
	b := NewI2C(play)

	require.NoError(t, b.Write(0xF890, []byte{0x00, 0x01}))
	data, err := b.Read(0x0020, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCA, 0xFE}, data)
	require.NoError(t, play.Close())
}

func TestMemoryIsWordAddressed(t *testing.T) {
	m := NewRecordingMemory()

	require.NoError(t, m.Write(0x0010, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	word, err := m.Read(0x0011, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6, 7, 8}, word)

	assert.Len(t, m.Writes(), 1)
	assert.Len(t, m.Transactions(), 2)
	m.Reset()
	assert.Empty(t, m.Transactions())
}

func TestMemoryKeepsNoLogByDefault(t *testing.T) {
	m := NewMemory()
	for i := 0; i < 1000; i++ {
		_, err := m.Read(0x0000, 4)
		require.NoError(t, err)
		require.NoError(t, m.Write(0x0001, []byte{0, 0, 0, byte(i)}))
	}

	assert.Empty(t, m.Transactions())
	assert.Empty(t, m.Writes())
	word, err := m.Read(0x0001, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, byte(999 % 256)}, word)
}

func TestMemoryOutOfRange(t *testing.T) {
	m := NewMemory()
	err := m.Write(0xFFFF, make([]byte, 8))
	assert.True(t, errors.HasCode(err, ErrOutOfRange))

	_, err = m.Read(0xFFFF, 4)
	assert.NoError(t, err)
}
