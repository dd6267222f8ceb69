// Package cli provides the qrtrackctl command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/qrtrack/internal/application"
	"github.com/JonMunkholm/qrtrack/internal/config"
	"github.com/JonMunkholm/qrtrack/internal/core"
	"github.com/JonMunkholm/qrtrack/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	actorID string
	orgID   string
	verbose bool

	app      *application.App
	closeLog func() error

	// openApp builds the application for a command; tests replace it.
	openApp = func(ctx context.Context, opts ...application.Option) (*application.App, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		closeLog = logging.Setup(level, cfg.Logging.Format, cfg.Logging.File)
		return application.Open(ctx, cfg, opts...)
	}
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "qrtrackctl",
	Short: "Administer QR check-in datasets",
	Long: `qrtrackctl runs maintenance and bulk operations against the same store
the qrtrack server uses: schema migration, participant imports, CSV exports,
record count repair, and manual check-ins.

Configuration comes from the environment (and .env), exactly as for the server.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		var err error
		app, err = openApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		return nil
	},
}

// actorContext carries the --user and --org flags as the acting identity, so
// CLI changes are audited like API ones.
func actorContext(ctx context.Context) context.Context {
	ctx = core.ContextWithActor(ctx, core.Actor{UserID: actorID, OrgID: orgID})
	return core.ContextWithUserAgent(ctx, "qrtrackctl/"+Version)
}

// Execute runs the root command and releases whatever the command opened,
// whether or not it succeeded.
func Execute(ctx context.Context) error {
	defer release()
	return rootCmd.ExecuteContext(ctx)
}

func release() {
	if app != nil {
		app.Close()
		app = nil
	}
	if closeLog != nil {
		_ = closeLog()
		closeLog = nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actorID, "user", "qrtrackctl", "acting user recorded in the audit log")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", "", "organization id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(recountCmd)
	rootCmd.AddCommand(checkinCmd)
}
