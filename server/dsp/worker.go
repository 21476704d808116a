package dsp

import (
	"context"
	"fmt"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/message"
	"github.com/gear6io/dspbridge/server/metrics"
	"github.com/rs/zerolog"
)

// Worker is the single consumer of an Exchange. It executes requests one at
// a time, in arrival order.
type Worker struct {
	dsp      *Dsp
	exchange *message.Exchange
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewWorker(d *Dsp, exchange *message.Exchange, m *metrics.Metrics, logger zerolog.Logger) *Worker {
	if m == nil {
		m = metrics.New()
	}
	return &Worker{
		dsp:      d,
		exchange: exchange,
		metrics:  m,
		logger:   logger.With().Str("component", "dsp-worker").Logger(),
	}
}

// Run consumes requests until ctx is cancelled or the exchange is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Str("bus", w.dsp.BusName()).Msg("DSP worker started")
	defer w.logger.Info().Msg("DSP worker stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.exchange.Done():
			w.drain()
			return nil
		case env := <-w.exchange.Requests():
			w.Handle(env)
		}
	}
}

// drain executes whatever was queued before the exchange closed, so no
// acknowledged write is lost.
func (w *Worker) drain() {
	for {
		select {
		case env := <-w.exchange.Requests():
			w.Handle(env)
		default:
			return
		}
	}
}

// Handle executes one request. Errors are logged and counted; a read is
// always answered with exactly the requested number of bytes.
func (w *Worker) Handle(env message.Envelope) {
	start := time.Now()

	switch req := env.Request.(type) {
	case message.Write:
		w.count(req.Kind(), len(req.Data))
		if err := w.dsp.Write(req.Address, req.Data); err != nil {
			w.busError(req.Kind(), err, req.Address)
		}

	case message.Safeload:
		w.count(req.Kind(), len(req.Data))
		if err := w.dsp.Safeload(req.Address, req.Data); err != nil {
			if errors.HasCode(err, ErrBus) {
				w.busError(req.Kind(), err, req.Address)
				break
			}
			w.metrics.SafeloadViolations.Inc()
			w.logger.Error().Err(err).
				Str("code", errors.GetCode(err)).
				Uint16("address", req.Address).
				Int("bytes", len(req.Data)).
				Msg("Rejected safeload request")
		}

	case message.Read:
		w.count(req.Kind(), int(req.Length))
		data, err := w.dsp.Read(req.Address, int(req.Length))
		if err != nil {
			w.busError(req.Kind(), err, req.Address)
			data = make([]byte, req.Length)
		}
		env.Reply(message.ReadResult{Data: fit(data, int(req.Length))})

	default:
		w.logger.Warn().Str("type", fmt.Sprintf("%T", env.Request)).Msg("Dropping request of unknown kind")
		return
	}

	w.logger.Debug().
		Str("request", requestString(env.Request)).
		Dur("took", time.Since(start)).
		Msg("Executed request")
}

func (w *Worker) count(kind message.Kind, bytes int) {
	w.metrics.Requests.WithLabelValues(string(kind)).Inc()
	w.metrics.PayloadBytes.WithLabelValues(string(kind)).Add(float64(bytes))
}

func (w *Worker) busError(kind message.Kind, err error, address uint16) {
	w.metrics.BusErrors.WithLabelValues(string(kind)).Inc()
	w.logger.Error().Err(err).Str("kind", string(kind)).Uint16("address", address).Msg("Bus transaction failed")
}

// fit pads or truncates data to exactly n bytes.
func fit(data []byte, n int) []byte {
	if len(data) == n {
		return data
	}
	out := make([]byte, n)
	copy(out, data)
	return out
}

func requestString(r message.Request) string {
	if s, ok := r.(fmt.Stringer); ok {
		return s.String()
	}
	return string(r.Kind())
}
