package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tick",
		Short: "Run the automations that are due, once",
		Long: `Run every scheduled automation that is due and exit.

Meant to be invoked by cron every minute. Overlapping invocations are safe:
an automation already claimed by another tick is skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.engine.RunScheduledAutomations(newContext(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d automation(s)\n", n)
			return nil
		},
	}
}
