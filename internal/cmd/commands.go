package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"example.com/fitlog/internal/auth"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/persistence"
)

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations for the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.log.Info().Str("driver", a.cfg.Store.Driver).Msg("applying migrations")
			if err := persistence.Migrate(a.cfg.Store); err != nil {
				return fmt.Errorf("migrating %s store: %w", a.cfg.Store.Driver, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", a.cfg.Store.Driver)
			return nil
		},
	}
}

func newTokenCommand(a *app) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.Issue(auth.Config{Secret: a.cfg.Auth.JWTSecret, Issuer: a.cfg.Auth.JWTIssuer}, subject, scopes, ttl)
			if err != nil {
				return err
			}
			a.log.Debug().Str("subject", subject).Strs("scopes", scopes).Dur("ttl", ttl).Msg("token issued")
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "identity the token is issued for")
	cmd.Flags().StringSliceVar(&scopes, "scopes", auth.DefaultScopes, "granted scopes")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newDeleteUserCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <subject>",
		Short: "Delete a user's profile and every activity it owns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := persistence.Open(ctx, a.cfg.Store, a.cfg.Outbox.Enabled, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			service := domain.NewService(store.Repo, domain.WithLogger(a.log))
			err = service.DeleteProfile(ctx, args[0])
			if errors.Is(err, domain.ErrProfileNotFound) {
				return fmt.Errorf("no profile for subject %q", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted profile of %s\n", args[0])
			return nil
		},
	}
}
