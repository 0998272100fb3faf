package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeep/internal/api/service"
	"github.com/aussiebroadwan/gatekeep/internal/api/store"
	"github.com/aussiebroadwan/gatekeep/internal/api/store/drivers/sqlite"
	"github.com/aussiebroadwan/gatekeep/pkg/jwtx"
	"github.com/aussiebroadwan/gatekeep/pkg/revocation"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Work with tokens offline",
	}

	var (
		refresh bool
		ttl     time.Duration
	)
	mint := &cobra.Command{
		Use:   "mint <email|user-id>",
		Short: "Sign a token for a user at its stored version",
		Long: `Sign a token with the configured secret for an existing user, found
by email or by ID. The version claim is read from the database so the token
is accepted until the user's next refresh exchange.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			principal, version, err := storedPrincipal(cmd, cfg.DatabaseFile, args[0])
			if err != nil {
				return err
			}

			if ttl <= 0 {
				ttl = cfg.JWT.AccessTTL()
				if refresh {
					ttl = cfg.JWT.RefreshTTL()
				}
			}

			signer, err := jwtx.NewSignerHS256([]byte(cfg.JWT.Secret))
			if err != nil {
				return err
			}
			claims := jwtx.NewTokenClaims(
				principal,
				strconv.FormatUint(version, 10),
				ttl,
				cfg.JWT.Issuer,
				cfg.JWT.Audience,
				time.Now(),
			)
			tok, err := signer.Sign(claims)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	mint.Flags().BoolVar(&refresh, "refresh", false, "use the refresh token lifetime")
	mint.Flags().DurationVar(&ttl, "ttl", 0, "override the token lifetime")

	cmd.AddCommand(mint)
	return cmd
}

// storedPrincipal resolves ref to a user and returns its email with the
// persisted version, falling back to the initial version for users that never
// refreshed.
func storedPrincipal(cmd *cobra.Command, dsn, ref string) (string, uint64, error) {
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return "", 0, fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.ApplyMigrations(); err != nil {
		return "", 0, fmt.Errorf("apply migrations: %w", err)
	}

	users := &service.UserService{Store: db}
	u, err := users.Lookup(cmd.Context(), ref)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return "", 0, fmt.Errorf("no user matches %q", ref)
	case err != nil:
		return "", 0, fmt.Errorf("look up user: %w", err)
	}

	tv, err := db.TokenVersions().GetVersion(cmd.Context(), u.Email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return u.Email, revocation.InitialVersion, nil
	case err != nil:
		return "", 0, fmt.Errorf("read version: %w", err)
	}
	return u.Email, tv.Version, nil
}
