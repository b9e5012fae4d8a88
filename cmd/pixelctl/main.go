// Command pixelctl drives LED panels over UDP, simulates them and inspects
// their traffic.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/pixelctl/internal/config"
	"github.com/danmuck/pixelctl/internal/logging"
	"github.com/danmuck/pixelctl/internal/observability"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func main() {
	ctx, stop := signalContext(context.Background())
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pixelctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "pixelctl",
		Short:         "Drive, simulate and inspect UDP pixel panels",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			observability.InitLogger("pixelctl")
			if opts.logLevel != "" {
				level, ok := logging.ParseLevel(opts.logLevel)
				if !ok {
					return fmt.Errorf("unknown log level %q", opts.logLevel)
				}
				zerolog.SetGlobalLevel(level)
			}
			if opts.configPath == "" {
				opts.cfg = config.Default()
				return nil
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "TOML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")

	root.AddCommand(
		sendCmd(opts),
		listenCmd(opts),
		serveCmd(opts),
		simulateCmd(opts),
		inspectCmd(),
		replayCmd(opts),
		configCmd(),
	)
	return root
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
