package message

import (
	"context"
	"sync"

	"github.com/gear6io/dspbridge/pkg/errors"
)

var (
	ErrExchangeClosed = errors.MustNewCode("message.exchange_closed")
)

// Envelope wraps a request on its way to the consumer. Reads carry their own
// one-slot reply channel, which is how results find the right caller when
// several connections read at once.
type Envelope struct {
	Request Request
	reply   chan ReadResult
}

// Reply hands the result of a Read back to the waiting sender. It never
// blocks and is a no-op for writes and for a second call.
func (e Envelope) Reply(result ReadResult) {
	if e.reply == nil {
		return
	}
	select {
	case e.reply <- result:
	default:
	}
}

// Exchange is the request/response channel between any number of bridge
// connections and a single chip-side consumer. Requests are delivered in the
// order they were sent.
type Exchange struct {
	requests  chan Envelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewExchange creates an exchange whose request queue holds buffer envelopes
// before senders block.
func NewExchange(buffer int) *Exchange {
	if buffer < 0 {
		buffer = 0
	}
	return &Exchange{
		requests: make(chan Envelope, buffer),
		done:     make(chan struct{}),
	}
}

// Send delivers a request without waiting for it to be executed.
func (x *Exchange) Send(ctx context.Context, req Request) error {
	return x.enqueue(ctx, Envelope{Request: req})
}

// Read delivers req and blocks until the consumer replies. There is no
// timeout; only ctx or closing the exchange releases the caller.
func (x *Exchange) Read(ctx context.Context, req Read) (ReadResult, error) {
	env := Envelope{Request: req, reply: make(chan ReadResult, 1)}
	if err := x.enqueue(ctx, env); err != nil {
		return ReadResult{}, err
	}

	select {
	case result := <-env.reply:
		return result, nil
	case <-ctx.Done():
		return ReadResult{}, ctx.Err()
	case <-x.done:
		return ReadResult{}, errors.New(ErrExchangeClosed, "exchange closed while awaiting read result", nil)
	}
}

func (x *Exchange) enqueue(ctx context.Context, env Envelope) error {
	select {
	case <-x.done:
		return errors.New(ErrExchangeClosed, "exchange is closed", nil)
	default:
	}

	select {
	case x.requests <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-x.done:
		return errors.New(ErrExchangeClosed, "exchange is closed", nil)
	}
}

// Requests is the consumer end.
func (x *Exchange) Requests() <-chan Envelope {
	return x.requests
}

// Done is closed once Close has been called.
func (x *Exchange) Done() <-chan struct{} {
	return x.done
}

// Close releases every blocked sender. The request channel itself stays open
// so late senders fail cleanly instead of panicking.
func (x *Exchange) Close() {
	x.closeOnce.Do(func() {
		close(x.done)
	})
}

// Pending reports how many requests are queued and not yet consumed.
func (x *Exchange) Pending() int {
	return len(x.requests)
}
