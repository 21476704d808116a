package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/dsp"
	"github.com/gear6io/dspbridge/server/protocols/sigma/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := config.LoadDefaultConfig()
	cfg.Dsp.Protocol = config.ProtocolMemory
	cfg.Dsp.Pins = map[string]config.PinConfig{
		"reset": {Mode: config.PinModeOutput, Number: 17},
	}
	cfg.Bridge.Address = config.LOCALHOST_ADDRESS
	cfg.Bridge.Port = 0
	cfg.Admin.Enabled = false
	return cfg
}

func TestServerLifecycle(t *testing.T) {
	s, err := New(memoryConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	conn, err := net.Dial("tcp", s.BridgeAddr())
	require.NoError(t, err)
	defer conn.Close()

	write := protocol.WriteHeader{PayloadLength: 4, Address: 0x0040, TotalLength: 18}.Encode()
	_, err = conn.Write(append(write, 0x00, 0x80, 0x00, 0x00))
	require.NoError(t, err)
	_, err = conn.Write(protocol.ReadHeader{DataLength: 4, Address: 0x0040}.Encode())
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	frame := make([]byte, protocol.HeaderLength+4)
	_, err = io.ReadFull(conn, frame)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x80, 0x00, 0x00}, frame[protocol.HeaderLength:])

	v, err := s.Dsp().GetParameterValue(0x0040, dsp.FormatFloat)
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.Float)

	status := s.GetStatus()
	assert.Equal(t, "memory", status["bus"])

	require.NoError(t, s.Shutdown())
}

func TestNewRejectsUnknownFamily(t *testing.T) {
	cfg := memoryConfig()
	cfg.Dsp.Type = "adau1452x"
	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}
