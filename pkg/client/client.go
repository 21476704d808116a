// Package client speaks the SigmaStudio TCP/IP channel protocol from the
// host side. It is what the CLI uses and what tests drive the bridge with.
package client

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/gear6io/dspbridge/server/protocols/sigma/protocol"
)

// Options configures a Client
type Options struct {
	Addr string // default 127.0.0.1:8087

	// ChipAddress goes into every header; the bridge does not check it.
	ChipAddress uint8 // default 0x3B
	Channel     uint8

	DialTimeout  time.Duration // default 5 seconds
	ReadTimeout  time.Duration // default 5 seconds
	WriteTimeout time.Duration // default 5 seconds

	DialContext func(ctx context.Context, addr string) (net.Conn, error)

	Logger *zap.Logger
}

// SetDefaults sets default values for options
func (o *Options) SetDefaults() *Options {
	if o.Addr == "" {
		o.Addr = "127.0.0.1:8087"
	}
	if o.ChipAddress == 0 {
		o.ChipAddress = 0x3B
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = 5 * time.Second
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Client holds one connection. Calls are serialized, so a Read always gets
// the response to its own request.
type Client struct {
	opt  *Options
	conn net.Conn
	mu   sync.Mutex
}

// Dial connects to a bridge.
func Dial(ctx context.Context, opt *Options) (*Client, error) {
	if opt == nil {
		opt = &Options{}
	}
	o := opt.SetDefaults()

	var conn net.Conn
	var err error
	if o.DialContext != nil {
		conn, err = o.DialContext(ctx, o.Addr)
	} else {
		dialer := &net.Dialer{Timeout: o.DialTimeout}
		conn, err = dialer.DialContext(ctx, "tcp", o.Addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", o.Addr)
	}

	o.Logger.Debug("connected", zap.String("addr", o.Addr))
	return &Client{opt: o, conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn net.Conn, opt *Options) *Client {
	if opt == nil {
		opt = &Options{}
	}
	return &Client{opt: opt.SetDefaults(), conn: conn}
}

// Write performs a plain block write.
func (c *Client) Write(ctx context.Context, address uint16, data []byte) error {
	return c.write(ctx, false, address, data)
}

// Safeload performs a safeload write. The bridge rejects anything that is
// not 1 to 5 whole 4-byte words, but silently: there is no acknowledgment.
func (c *Client) Safeload(ctx context.Context, address uint16, data []byte) error {
	return c.write(ctx, true, address, data)
}

func (c *Client) write(ctx context.Context, safeload bool, address uint16, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := protocol.WriteHeader{
		Safeload:      safeload,
		Channel:       c.opt.Channel,
		TotalLength:   uint32(protocol.HeaderLength + len(data)),
		ChipAddress:   c.opt.ChipAddress,
		PayloadLength: uint32(len(data)),
		Address:       address,
	}

	if err := c.conn.SetWriteDeadline(c.deadline(ctx, c.opt.WriteTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if _, err := c.conn.Write(append(h.Encode(), data...)); err != nil {
		return errors.Wrap(err, "send write")
	}

	c.opt.Logger.Debug("write",
		zap.Bool("safeload", safeload),
		zap.Uint16("address", address),
		zap.Int("length", len(data)),
	)
	return nil
}

// Read fetches length bytes starting at address.
func (c *Client) Read(ctx context.Context, address uint16, length uint32) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := protocol.ReadHeader{
		TotalLength: protocol.HeaderLength,
		ChipAddress: c.opt.ChipAddress,
		DataLength:  length,
		Address:     address,
	}

	if err := c.conn.SetWriteDeadline(c.deadline(ctx, c.opt.WriteTimeout)); err != nil {
		return nil, errors.Wrap(err, "set write deadline")
	}
	if _, err := c.conn.Write(req.Encode()); err != nil {
		return nil, errors.Wrap(err, "send read")
	}

	if err := c.conn.SetReadDeadline(c.deadline(ctx, c.opt.ReadTimeout)); err != nil {
		return nil, errors.Wrap(err, "set read deadline")
	}
	header := make([]byte, protocol.HeaderLength)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, errors.Wrap(err, "read response header")
	}
	resp, err := protocol.DecodeReadResponseHeader(header)
	if err != nil {
		return nil, errors.Wrap(err, "decode response header")
	}
	if resp.Address != address || resp.DataLength != length {
		return nil, errors.Errorf("response for %d bytes at 0x%04x does not match request for %d bytes at 0x%04x",
			resp.DataLength, resp.Address, length, address)
	}

	data := make([]byte, resp.DataLength)
	if _, err := io.ReadFull(c.conn, data); err != nil {
		return nil, errors.Wrap(err, "read response payload")
	}
	if resp.Status != protocol.StatusSuccess {
		return nil, errors.Errorf("read at 0x%04x failed with status %d", address, resp.Status)
	}

	c.opt.Logger.Debug("read", zap.Uint16("address", address), zap.Uint32("length", length))
	return data, nil
}

func (c *Client) deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}

// Close closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
