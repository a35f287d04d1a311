package cli

import (
	"fmt"

	"autoflow/app/objects"

	"github.com/spf13/cobra"
)

type SeedOptions struct {
	*RootOptions
	Tenant string
}

func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default automations",
		Long: `Create the system automations a tenant is missing.

Without --tenant every known user is seeded. Existing defaults, including
ones that were disabled, are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			ctx := newContext(cmd)
			tenants := []string{opts.Tenant}
			if opts.Tenant == "" {
				if tenants, err = objects.QueryUserIDs(ctx); err != nil {
					return err
				}
			}
			for _, tenant := range tenants {
				n, err := a.engine.SeedDefaults(ctx, tenant)
				if err != nil {
					return fmt.Errorf("seed %s: %w", tenant, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d automation(s) created\n", tenant, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Tenant, "tenant", "", "tenant (user id) to seed")
	return cmd
}
