package sigma

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/message"
	"github.com/gear6io/dspbridge/server/metrics"
	"github.com/gear6io/dspbridge/server/protocols/sigma/protocol"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State of a connection's frame loop.
type State int32

const (
	AwaitingHeader State = iota
	Dispatching
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting_header"
	case Dispatching:
		return "dispatching"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options tune a connection's tolerance for odd input.
type Options struct {
	MaxPayloadBytes uint32
	UnknownCommands string
}

// OptionsFromConfig copies the relevant bridge settings.
func OptionsFromConfig(cfg config.BridgeConfig) Options {
	return Options{MaxPayloadBytes: cfg.MaxPayloadBytes, UnknownCommands: cfg.UnknownCommands}
}

// ConnectionHandler decodes frames from one SigmaStudio connection and hands
// the resulting requests to the Exchange. Frames are processed strictly in
// the order they arrive.
type ConnectionHandler struct {
	conn     net.Conn
	id       string
	exchange *message.Exchange
	opts     Options
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	state    atomic.Int32
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(conn net.Conn, exchange *message.Exchange, opts Options, m *metrics.Metrics, logger zerolog.Logger) *ConnectionHandler {
	if opts.MaxPayloadBytes == 0 {
		opts.MaxPayloadBytes = config.DEFAULT_MAX_PAYLOAD_BYTES
	}
	if opts.UnknownCommands == "" {
		opts.UnknownCommands = config.UnknownCommandsIgnore
	}
	if m == nil {
		m = metrics.New()
	}

	id := uuid.NewString()
	return &ConnectionHandler{
		conn:     conn,
		id:       id,
		exchange: exchange,
		opts:     opts,
		metrics:  m,
		logger: logger.With().
			Str("connection", id).
			Str("client", conn.RemoteAddr().String()).
			Logger(),
	}
}

func (h *ConnectionHandler) ID() string { return h.id }

func (h *ConnectionHandler) State() State { return State(h.state.Load()) }

func (h *ConnectionHandler) setState(s State) { h.state.Store(int32(s)) }

// Handle runs the frame loop until the peer closes the connection, a frame
// is malformed, or ctx is cancelled. A clean close returns nil.
func (h *ConnectionHandler) Handle(ctx context.Context) error {
	defer func() {
		h.setState(Closed)
		h.conn.Close()
	}()

	// a cancelled ctx unblocks whichever read the loop is parked in
	stop := context.AfterFunc(ctx, func() { h.conn.Close() })
	defer stop()

	header := make([]byte, protocol.HeaderLength)
	for {
		if ctx.Err() != nil {
			return nil
		}
		h.setState(AwaitingHeader)

		n, err := io.ReadFull(h.conn, header)
		if err != nil {
			if n == 0 && stderrors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return h.fault(ErrTruncatedFrame, fmt.Sprintf("connection ended after %d of %d header bytes", n, protocol.HeaderLength), err)
		}

		h.setState(Dispatching)
		if err := h.dispatch(ctx, header); err != nil {
			return err
		}
	}
}

func (h *ConnectionHandler) dispatch(ctx context.Context, header []byte) error {
	switch cmd := protocol.CommandOf(header); cmd {
	case protocol.CommandWrite:
		return h.handleWrite(ctx, header)
	case protocol.CommandRead:
		return h.handleRead(ctx, header)
	default:
		return h.handleUnknown(cmd)
	}
}

func (h *ConnectionHandler) handleWrite(ctx context.Context, header []byte) error {
	hdr, err := protocol.DecodeWriteHeader(header)
	if err != nil {
		return err
	}
	if hdr.PayloadLength > h.opts.MaxPayloadBytes {
		return h.fault(ErrPayloadTooLarge,
			fmt.Sprintf("payload of %d bytes exceeds limit of %d", hdr.PayloadLength, h.opts.MaxPayloadBytes), nil)
	}

	data := make([]byte, hdr.PayloadLength)
	if n, err := io.ReadFull(h.conn, data); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return h.fault(ErrTruncatedFrame, fmt.Sprintf("connection ended after %d of %d payload bytes", n, hdr.PayloadLength), err)
	}

	var req message.Request = message.Write{Address: hdr.Address, Data: data}
	if hdr.Safeload {
		req = message.Safeload{Address: hdr.Address, Data: data}
	}

	h.logger.Debug().
		Str("kind", string(req.Kind())).
		Uint16("address", hdr.Address).
		Uint32("length", hdr.PayloadLength).
		Msg("Received write")

	if err := h.exchange.Send(ctx, req); err != nil {
		return h.dispatchFailed(ctx, err)
	}
	return nil
}

func (h *ConnectionHandler) handleRead(ctx context.Context, header []byte) error {
	start := time.Now()
	hdr, err := protocol.DecodeReadHeader(header)
	if err != nil {
		return err
	}
	if hdr.DataLength > h.opts.MaxPayloadBytes {
		return h.fault(ErrPayloadTooLarge,
			fmt.Sprintf("read of %d bytes exceeds limit of %d", hdr.DataLength, h.opts.MaxPayloadBytes), nil)
	}

	h.logger.Debug().Uint16("address", hdr.Address).Uint32("length", hdr.DataLength).Msg("Received read")

	result, err := h.exchange.Read(ctx, message.Read{Address: hdr.Address, Length: hdr.DataLength})
	if err != nil {
		return h.dispatchFailed(ctx, err)
	}

	if _, err := h.conn.Write(protocol.EncodeReadResponse(hdr, result.Data)); err != nil {
		return errors.New(ErrResponseFailed, "failed to send read response", err).AddContext("connection", h.id)
	}
	h.metrics.ReadLatency.Observe(time.Since(start).Seconds())
	return nil
}

func (h *ConnectionHandler) handleUnknown(cmd protocol.Command) error {
	h.metrics.UnknownCommands.Inc()

	if h.opts.UnknownCommands == config.UnknownCommandsClose {
		h.logger.Warn().Uint8("command", uint8(cmd)).Msg("Unknown command, closing connection")
		return errors.New(ErrUnknownCommand, fmt.Sprintf("unknown command 0x%02x", uint8(cmd)), nil).
			AddContext("connection", h.id)
	}

	h.logger.Warn().Uint8("command", uint8(cmd)).Msg("Unknown command ignored")
	return nil
}

// fault logs a framing problem that ends this connection only.
func (h *ConnectionHandler) fault(code errors.Code, msg string, cause error) error {
	h.metrics.ConnectionFaults.Inc()
	h.logger.Warn().Err(cause).Str("code", code.String()).Msg(msg)
	return errors.New(code, msg, cause).AddContext("connection", h.id)
}

func (h *ConnectionHandler) dispatchFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.HasCode(err, message.ErrExchangeClosed) {
		// shutting down
		return nil
	}
	return errors.New(ErrDispatchFailed, "failed to hand request to the dsp", err).AddContext("connection", h.id)
}
