package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wichananm65/storefront/internal/database"
	"github.com/wichananm65/storefront/internal/product"
	"github.com/wichananm65/storefront/internal/user"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "migrate",
		Short:        "Apply pending schema migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.Migrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
			return nil
		},
	}
}

// NewSeedProductsCommand creates the seed-products command.
func NewSeedProductsCommand(rootOpts *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:          "seed-products",
		Short:        "Load the sample catalog",
		Long:         "Insert the sample products. Does nothing when the catalog already has rows unless --force is given.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			products := product.NewService(product.NewPostgresRepository(db))
			existing, err := products.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(existing) > 0 && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "Catalog already has %d product(s), skipping.\n", len(existing))
				return nil
			}

			for _, p := range product.SampleProducts() {
				created, err := products.Create(cmd.Context(), p)
				if err != nil {
					return fmt.Errorf("seed %q: %w", p.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s $%s\n", created.ID, created.Name, created.Price.StringFixed(2))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d product(s).\n", len(product.SampleProducts()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "seed even if products exist")
	return cmd
}

// NewAddUserCommand creates the add-user command.
func NewAddUserCommand(rootOpts *RootOptions) *cobra.Command {
	var in user.RegisterInput

	cmd := &cobra.Command{
		Use:          "add-user",
		Short:        "Create a customer account",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := rootOpts.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			id, err := user.NewService(user.NewPostgresRepository(db)).Register(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User '%s' created with id %d.\n", id.Username, id.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
