// Package server wires the DSP, its worker, the SigmaStudio bridge and the
// admin API into one process.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/dsp"
	"github.com/gear6io/dspbridge/server/hardware"
	"github.com/gear6io/dspbridge/server/message"
	"github.com/gear6io/dspbridge/server/metrics"
	"github.com/gear6io/dspbridge/server/protocols/http"
	"github.com/gear6io/dspbridge/server/protocols/sigma"
	"github.com/gear6io/dspbridge/server/shared"
	"github.com/rs/zerolog"
)

var (
	ErrStartFailed = errors.MustNewCode("server.start_failed")
)

const (
	// ResetPulse is how long the reset pin is held at startup.
	ResetPulse = 10 * time.Millisecond

	// ShutdownTimeout bounds the whole of Shutdown.
	ShutdownTimeout = 30 * time.Second
)

// Server represents the main server that manages the DSP and its front ends
type Server struct {
	config      *config.Config
	logger      zerolog.Logger
	dsp         *dsp.Dsp
	exchange    *message.Exchange
	worker      *dsp.Worker
	metrics     *metrics.Metrics
	sigmaServer *sigma.Server
	httpServer  *http.Server
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	startTime   time.Time
}

// New opens the hardware and builds every component. Nothing listens until
// Start.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	family, err := dsp.NewFamily(cfg.Dsp.Type)
	if err != nil {
		return nil, err
	}

	hw, err := hardware.Open(cfg.Dsp, logger.With().Str("component", "hardware").Logger())
	if err != nil {
		return nil, err
	}

	queue := cfg.Bridge.QueueSize
	if queue <= 0 {
		queue = config.DEFAULT_QUEUE_SIZE
	}

	m := metrics.New()
	d := dsp.New(family, hw.Bus, hw.Pins, logger)
	exchange := message.NewExchange(queue)
	sigmaServer := sigma.NewServer(cfg.Bridge, exchange, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:      cfg,
		logger:      logger.With().Str("component", "server").Logger(),
		dsp:         d,
		exchange:    exchange,
		worker:      dsp.NewWorker(d, exchange, m, logger),
		metrics:     m,
		sigmaServer: sigmaServer,
		httpServer:  http.NewServer(cfg.Admin, d, sigmaServer, m, logger),
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
	}, nil
}

// Start resets the chip, then starts the worker and both listeners.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Msg("Starting dspbridge...")

	if err := s.dsp.HardReset(ResetPulse); err != nil {
		return errors.New(ErrStartFailed, "failed to reset the DSP", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.worker.Run(s.ctx); err != nil && s.ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("DSP worker stopped unexpectedly")
		}
	}()

	if err := s.sigmaServer.Start(ctx); err != nil {
		return errors.New(ErrStartFailed, "failed to start the SigmaStudio bridge", err)
	}
	if err := s.httpServer.Start(ctx); err != nil {
		return errors.New(ErrStartFailed, "failed to start the admin API", err)
	}

	s.logger.Info().
		Str("dsp_type", s.config.Dsp.Type).
		Str("bus", s.dsp.BusName()).
		Str("bridge_address", s.config.GetBridgeAddress()).
		Bool("admin_enabled", s.config.Admin.Enabled).
		Str("admin_address", s.config.GetAdminAddress()).
		Msg("All servers started")
	return nil
}

// Shutdown stops the listeners first so no new requests arrive, then the
// worker, then releases the bus.
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	for typ, err := range shared.ShutdownAll(shutdownCtx, s.components()...) {
		s.logger.Error().Err(err).Str("component", typ).Msg("Error stopping component")
	}

	// closing the exchange lets the worker finish what is queued; cancel
	// only once it is done or the deadline passes
	s.exchange.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Graceful shutdown completed")
	case <-shutdownCtx.Done():
		s.logger.Warn().Msg("Shutdown timeout, forcing close")
	}
	s.cancel()

	return s.dsp.Close()
}

// components lists the front ends in shutdown order: the admin API first so
// no new writes arrive, then the bridge.
func (s *Server) components() []shared.Component {
	return []shared.Component{s.httpServer, s.sigmaServer}
}

// Dsp exposes the chip for in-process callers.
func (s *Server) Dsp() *dsp.Dsp {
	return s.dsp
}

// BridgeAddr is the bound SigmaStudio listener, nil before Start.
func (s *Server) BridgeAddr() string {
	if addr := s.sigmaServer.Addr(); addr != nil {
		return addr.String()
	}
	return ""
}

// GetUptime returns the server uptime
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}

// GetStatus returns the server status
func (s *Server) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"uptime":     s.GetUptime().String(),
		"start_time": s.startTime,
		"dsp_type":   s.config.Dsp.Type,
		"bus":        s.dsp.BusName(),
		"bridge":     s.sigmaServer.GetStatus(),
		"admin":      s.httpServer.GetStatus(),
	}
}
