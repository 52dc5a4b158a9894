// AngelaMos | 2026
// commands.go

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/cinemadb/internal/auth"
	"github.com/carterperez-dev/cinemadb/internal/core"
	"github.com/carterperez-dev/cinemadb/internal/events"
	"github.com/carterperez-dev/cinemadb/internal/user"
)

const (
	defaultPruneGrace = 24 * time.Hour
	notifierQueue     = "cinemadb.notifier"
)

func (a *app) migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}

	steps := map[string]struct {
		short string
		run   func(ctx context.Context, db *core.Database) error
	}{
		"up": {"Apply every pending migration", func(ctx context.Context, db *core.Database) error {
			return core.Migrate(ctx, db.DB.DB)
		}},
		"down": {"Roll back the latest migration", func(ctx context.Context, db *core.Database) error {
			return core.MigrateDown(ctx, db.DB.DB)
		}},
		"status": {"Print the state of every migration", func(ctx context.Context, db *core.Database) error {
			return core.MigrationStatus(ctx, db.DB.DB)
		}},
	}

	for _, name := range []string{"up", "down", "status"} {
		step := steps[name]
		cmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: step.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.openDatabase(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // process exits next

				return step.run(cmd.Context(), db)
			},
		})
	}

	return cmd
}

func (a *app) createSuperuserCmd() *cobra.Command {
	var email, username, password string

	cmd := &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an owner account with staff access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits next

			svc := user.NewService(user.NewRepository(db.DB), nil, events.Noop{})
			account, err := svc.CreateSuperuser(ctx, email, username, password)
			if err != nil {
				var verr *core.ValidationError
				if errors.As(err, &verr) {
					return fmt.Errorf("invalid superuser: %v", verr.Fields)
				}
				return err
			}

			slog.Info("superuser created", "id", account.ID, "email", account.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "account username")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	for _, name := range []string{"email", "username", "password"} {
		_ = cmd.MarkFlagRequired(name) //nolint:errcheck // flag is defined above
	}

	return cmd
}

func (a *app) genKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genkeys",
		Short: "Write a new ES256 signing key pair to the configured paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := auth.GenerateKeyPair(a.cfg.JWT.PrivateKeyPath, a.cfg.JWT.PublicKeyPath); err != nil {
				return err
			}

			slog.Info("key pair written",
				"private", a.cfg.JWT.PrivateKeyPath,
				"public", a.cfg.JWT.PublicKeyPath,
			)
			return nil
		},
	}
}

func (a *app) tokensCmd() *cobra.Command {
	var grace time.Duration

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete refresh tokens that expired before the grace window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			db, err := a.openDatabase(ctx)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // process exits next

			n, err := auth.NewRepository(db.DB).DeleteExpired(ctx, grace)
			if err != nil {
				return err
			}

			slog.Info("refresh tokens pruned", "deleted", n, "grace", grace)
			return nil
		},
	}
	prune.Flags().DurationVar(&grace, "grace", defaultPruneGrace, "keep tokens expired for less than this")

	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Refresh token maintenance",
	}
	cmd.AddCommand(prune)
	return cmd
}

func (a *app) notifierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notifier",
		Short: "Consume account events and log the notifications they would send",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.AMQP.Enabled {
				return errors.New("amqp is disabled in config")
			}

			err := events.Consume(
				cmd.Context(),
				a.cfg.AMQP,
				notifierQueue,
				[]string{events.AccountRegistered, events.AccountPasswordReset},
				notify,
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func notify(_ context.Context, env events.Envelope) error {
	switch env.Type {
	case events.AccountRegistered:
		var e events.AccountRegisteredEvent
		if err := env.Decode(&e); err != nil {
			return err
		}
		slog.Info("welcome notification",
			"event_id", env.ID,
			"email", e.Email,
			"username", e.Username,
		)

	case events.AccountPasswordReset:
		var e events.PasswordResetEvent
		if err := env.Decode(&e); err != nil {
			return err
		}
		slog.Info("password reset notification",
			"event_id", env.ID,
			"email", e.Email,
			"confirm_url", e.ConfirmURL,
			"expires_at", e.ExpiresAt,
		)

	default:
		slog.Debug("ignoring event", "type", env.Type)
	}

	return nil
}
