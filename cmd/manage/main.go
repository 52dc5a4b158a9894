// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/cinemadb/internal/config"
	"github.com/carterperez-dev/cinemadb/internal/core"
)

type app struct {
	configPath string
	cfg        *config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "manage",
		Short:         "Operator tasks for the cinemadb API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(
		a.migrateCmd(),
		a.createSuperuserCmd(),
		a.genKeysCmd(),
		a.tokensCmd(),
		a.notifierCmd(),
	)

	return root
}

func (a *app) openDatabase(ctx context.Context) (*core.Database, error) {
	return core.NewDatabase(ctx, a.cfg.Database)
}
