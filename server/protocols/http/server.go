// Package http serves the local admin API: status, metrics and the
// parameter, volume, reset and pin operations of the DSP.
package http

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server/config"
	"github.com/gear6io/dspbridge/server/dsp"
	"github.com/gear6io/dspbridge/server/metrics"
	"github.com/gear6io/dspbridge/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
)

// StatusProvider reports the state of another component for GET /status.
type StatusProvider interface {
	GetStatus() map[string]interface{}
}

// Server represents the admin HTTP server
type Server struct {
	cfg     config.AdminConfig
	dsp     *dsp.Dsp
	bridge  StatusProvider
	metrics *metrics.Metrics
	logger  zerolog.Logger
	app     *fiber.App
	started time.Time
	wg      sync.WaitGroup
}

// NewServer creates a new admin server instance. bridge may be nil.
func NewServer(cfg config.AdminConfig, d *dsp.Dsp, bridge StatusProvider, m *metrics.Metrics, logger zerolog.Logger) *Server {
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		cfg:     cfg,
		dsp:     d,
		bridge:  bridge,
		metrics: m,
		logger:  logger.With().Str("component", "http-server").Logger(),
		started: time.Now(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "dspbridge",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{Generator: utils.NewRequestID}))
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	s.app.Get("/parameters/:address", s.handleGetParameter)
	s.app.Put("/parameters/:address", s.handleSetParameter)

	s.app.Put("/volume/:address", s.handleSetVolume)
	s.app.Post("/volume/:address/adjust", s.handleAdjustVolume)

	s.app.Post("/reset", s.handleReset)

	s.app.Get("/pins", s.handleListPins)
	s.app.Put("/pins/:name", s.handleSetPin)
}

// App exposes the fiber app, mostly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the admin server unless it is disabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info().Msg("Admin API is disabled")
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	s.logger.Info().Str("address", addr).Msg("Starting admin API")

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.New(ErrServerListenFailed, fmt.Sprintf("failed to listen on %s", addr), err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.app.Listener(ln); err != nil {
			s.logger.Error().Err(err).Msg("Admin API error")
		}
	}()

	s.logger.Info().Msg("Admin API started successfully")
	return nil
}

// GetType implements shared.Component.
func (s *Server) GetType() string {
	return "admin"
}

// Shutdown implements shared.Component.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	s.logger.Info().Msg("Stopping admin API")

	if err := s.app.ShutdownWithContext(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Error during admin API shutdown")
	}

	s.wg.Wait()
	s.logger.Info().Msg("Admin API stopped")
	return nil
}

// GetStatus returns server status
func (s *Server) GetStatus() map[string]interface{} {
	return map[string]interface{}{
		"enabled": s.cfg.Enabled,
		"address": s.cfg.Address,
		"port":    s.cfg.Port,
	}
}
