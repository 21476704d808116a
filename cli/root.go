package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gear6io/dspbridge/pkg/client"
)

var rootCmd = &cobra.Command{
	Use:   "dspbridge",
	Short: "SigmaStudio TCP/IP bridge for SigmaDSP chips",
	Long: `dspbridge lets SigmaStudio reach a SigmaDSP (ADAU14xx, ADAU1701) that
is wired to this host over I2C or SPI.

"dspbridge serve" runs the bridge. The other commands talk to a running
bridge the same way SigmaStudio does, which is handy for scripting and for
checking the wiring without SigmaStudio.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	bridgeAddr string
	timeout    time.Duration
	verbose    bool
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithContext runs the root command with ctx available to subcommands
func ExecuteWithContext(ctx context.Context) error {
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

// dial connects to the bridge named by the global flags.
func dial(ctx context.Context) (*client.Client, error) {
	logger := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err == nil {
			logger = l
		}
	}
	return client.Dial(ctx, &client.Options{
		Addr:         bridgeAddr,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		Logger:       logger,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&bridgeAddr, "addr", "a", "127.0.0.1:8087", "bridge address")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "network timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
