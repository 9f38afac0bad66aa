package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/otafleet/otafleet/internal/auth"
	"github.com/otafleet/otafleet/internal/config"
	"github.com/otafleet/otafleet/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the PostgreSQL schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver != config.DriverPostgres {
			return fmt.Errorf("migrate needs the postgres driver, configured driver is %q", cfg.Storage.Driver)
		}

		stores, err := storage.Open(cmd.Context(), cfg, true, log)
		if err != nil {
			return err
		}
		defer stores.Close()

		log.Info().Msg("schema is up to date")
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin API bearer token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}

		subject, _ := cmd.Flags().GetString("subject")
		names, _ := cmd.Flags().GetStringSlice("role")
		roles := make([]auth.Role, 0, len(names))
		for _, name := range names {
			role, ok := auth.ParseRole(name)
			if !ok {
				return fmt.Errorf("unknown role %q", name)
			}
			roles = append(roles, role)
		}

		tokens := auth.NewJWTService(auth.JWTConfig{
			SigningKey: cfg.Auth.SigningKey,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			TTL:        cfg.Auth.TokenTTL,
		})
		token, exp, err := tokens.Issue(subject, roles...)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.UTC().Format(time.RFC3339))
		return nil
	},
}
