// Package cli implements shopctl, the storefront's admin command line.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/wichananm65/storefront/internal/database"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DatabaseURL string

	// open is swapped out in tests.
	open func(ctx context.Context, dsn string) (*sql.DB, error)
}

// NewRootCommand creates the root command for shopctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{open: database.Open})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shopctl",
		Short: "Storefront administration",
		Long:  "Apply migrations, seed the catalog and create accounts for the storefront database.",
	}

	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedProductsCommand(opts))
	cmd.AddCommand(NewAddUserCommand(opts))

	return cmd
}

func (o *RootOptions) connect(ctx context.Context) (*sql.DB, error) {
	if o.DatabaseURL == "" {
		return nil, errors.New("no database configured: set DATABASE_URL or pass --database-url")
	}
	return o.open(ctx, o.DatabaseURL)
}
