// Package main provides the entrypoint for the otafleet update server.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/otafleet/otafleet/internal/config"
	"github.com/otafleet/otafleet/internal/logging"
)

const serviceName = "otafleet-api"

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "otafleet-api",
	Short:         "OTA firmware update server",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("otafleet-api %s (built %s)\n", Version, BuildTime))
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (defaults to $OTAFLEET_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("subject", "", "token subject, e.g. the operator's email")
	tokenCmd.Flags().StringSlice("role", []string{"admin"}, "role to grant (admin or reader), repeatable")
	_ = tokenCmd.MarkFlagRequired("subject")
}

// setup loads configuration and builds the root logger.
func setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: serviceName,
		Version: Version,
	})
	return cfg, log, nil
}
