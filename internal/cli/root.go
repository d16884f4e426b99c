// Package cli implements billingctl, the operator command line for the billing service.
package cli

import (
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/erp/billing/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Option customizes the environment shared by all commands
type Option func(*Env)

// WithConfigLoader replaces config.Load
func WithConfigLoader(load func() (*config.Config, error)) Option {
	return func(e *Env) { e.loadConfig = load }
}

// WithDatabase makes commands use db instead of opening one from config.
// The caller keeps ownership of db.
func WithDatabase(db *persistence.Database) Option {
	return func(e *Env) {
		e.db = db
		e.ownsDB = false
	}
}

// WithLogger sets the command logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Env) { e.logger = logger }
}

// NewRootCommand creates the billingctl command tree
func NewRootCommand(opts ...Option) *cobra.Command {
	env := &Env{loadConfig: config.Load, ownsDB: true}
	for _, opt := range opts {
		opt(env)
	}

	cmd := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operate the billing service",
		Long:          "billingctl runs schema migrations, seeds development data, issues tokens and maintains document sequences.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.Close()
		},
	}
	cmd.PersistentFlags().StringVar(&env.logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	cmd.AddCommand(newMigrateCommand(env))
	cmd.AddCommand(newSeedCommand(env))
	cmd.AddCommand(newTokenCommand(env))
	cmd.AddCommand(newSequencesCommand(env))
	cmd.AddCommand(newSweepCommand(env))

	return cmd
}
