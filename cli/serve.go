package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gear6io/dspbridge/pkg/errors"
	"github.com/gear6io/dspbridge/server"
	"github.com/gear6io/dspbridge/server/config"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Run the SigmaStudio bridge and, unless disabled, the admin API.

The DSP is reset once at startup: with a "reset" pin configured it is pulsed,
otherwise the chip is soft-reset over the bus.

Examples:
  dspbridge serve                          # built-in defaults (ADAU14xx on SPI0.0)
  dspbridge serve --config dspbridge.yml
  DSPBRIDGE_DSP_PROTOCOL=memory dspbridge serve   # no hardware needed`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "configuration file (.yml, .yaml or .toml)")
	rootCmd.AddCommand(serveCmd)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.LoadDefaultConfig()
		cfg.ApplyEnv()
		return cfg, cfg.Validate()
	}
	return config.LoadConfig(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, logManager, err := config.SetupLogger(cfg)
	if err != nil {
		return errors.New(ErrLoggerSetup, "failed to setup logger", err)
	}
	if logManager != nil {
		defer logManager.Close()
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create server")
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		_ = srv.Shutdown()
		return err
	}

	<-ctx.Done()

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
	logger.Info().Msg("Server stopped gracefully")
	return nil
}
