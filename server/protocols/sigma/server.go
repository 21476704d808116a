// Package sigma terminates SigmaStudio TCP/IP channel connections and turns
// their frames into requests on a message.Exchange.
package sigma

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/message"
	"github.com/gear6io/dspbridge/server/metrics"
	"github.com/rs/zerolog"
)

// Server represents the SigmaStudio bridge server. It keeps no protocol
// state of its own; connections only share the Exchange.
type Server struct {
	cfg      config.BridgeConfig
	exchange *message.Exchange
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns map[string]net.Conn
}

// NewServer creates a new bridge server instance
func NewServer(cfg config.BridgeConfig, exchange *message.Exchange, m *metrics.Metrics, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	if m == nil {
		m = metrics.New()
	}
	return &Server{
		cfg:      cfg,
		exchange: exchange,
		metrics:  m,
		logger:   logger.With().Str("component", "sigma-server").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[string]net.Conn),
	}
}

// Start listens on the configured address and accepts in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	s.logger.Info().Str("address", addr).Msg("Starting SigmaStudio bridge")

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.New(ErrServerListenFailed, fmt.Sprintf("failed to listen on %s", addr), err)
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptConnections()

	s.logger.Info().Str("address", listener.Addr().String()).Msg("SigmaStudio bridge started successfully")
	return nil
}

// Addr is the bound listener address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes the listener and every live connection, releases handlers
// blocked on a read and waits for them to return.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping SigmaStudio bridge")

	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing server listener")
		}
	}

	s.mu.Lock()
	for _, conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info().Msg("SigmaStudio bridge stopped")
	return nil
}

// GetType implements shared.Component.
func (s *Server) GetType() string {
	return "sigma"
}

// Shutdown implements shared.Component. Connections still draining when ctx
// expires are left to finish on their own.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- s.Stop() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("Error accepting connection")
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	handler := NewConnectionHandler(conn, s.exchange, OptionsFromConfig(s.cfg), s.metrics, s.logger)
	if !s.track(handler.ID(), conn) {
		conn.Close()
		return
	}
	defer s.untrack(handler.ID())

	s.metrics.Connections.Inc()
	s.metrics.ActiveConnections.Inc()
	defer s.metrics.ActiveConnections.Dec()

	clientAddr := conn.RemoteAddr().String()
	s.logger.Info().Str("client", clientAddr).Str("connection", handler.ID()).Msg("SigmaStudio connected")

	if err := handler.Handle(s.ctx); err != nil {
		s.logger.Error().Err(err).Str("client", clientAddr).Msg("Error handling connection")
	}

	s.logger.Info().Str("client", clientAddr).Str("connection", handler.ID()).Msg("SigmaStudio disconnected")
}

// track refuses new connections once Stop has begun.
func (s *Server) track(id string, conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[id] = conn
	return true
}

func (s *Server) untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// ActiveConnections reports how many connections are being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// GetStatus returns server status
func (s *Server) GetStatus() map[string]interface{} {
	status := map[string]interface{}{
		"address":            s.cfg.Address,
		"port":               s.cfg.Port,
		"active_connections": s.ActiveConnections(),
		"pending_requests":   s.exchange.Pending(),
		"unknown_commands":   s.cfg.UnknownCommands,
	}
	if addr := s.Addr(); addr != nil {
		status["listening"] = addr.String()
	}
	return status
}
