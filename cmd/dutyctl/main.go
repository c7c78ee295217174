// Command dutyctl imports tariff schedules and resolves or prices HTS codes from the shell.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OpenNSW/duty/internal/app"
	"github.com/OpenNSW/duty/internal/config"
	"github.com/OpenNSW/duty/internal/logging"
)

// appOpener builds the duty engine for one command run
type appOpener func(ctx context.Context) (*app.App, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(openFromEnv).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// openFromEnv loads configuration the same way the server does. Logs go to stderr
// so command output stays machine readable.
func openFromEnv(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Log.Level, "text"))
	return app.New(ctx, cfg)
}

func newRootCmd(open appOpener) *cobra.Command {
	root := &cobra.Command{
		Use:          "dutyctl",
		Short:        "Import HTS schedules and calculate import duties",
		SilenceUsage: true,
	}
	root.AddCommand(
		newImportCmd(open),
		newResolveCmd(open),
		newCalcCmd(open),
	)
	return root
}

// withApp opens the engine, runs fn and closes the engine again
func withApp(cmd *cobra.Command, open appOpener, fn func(a *app.App) error) error {
	a, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()
	return fn(a)
}
