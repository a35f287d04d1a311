package cli

import (
	"context"
	"os/signal"
	"syscall"

	"autoflow/app/api"
	"autoflow/app/config"
	"autoflow/app/db"
	"autoflow/app/workflow"
	"autoflow/pkg/log"

	"github.com/spf13/cobra"
)

type ServeOptions struct {
	*RootOptions
	Migrate bool
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Serve the workflow dispatch, service account and automation API.

Scheduled automations are not run by the server itself; an external cron
calls POST /api/v1/scheduler/run or "autoflow tick" every minute.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "migrate the schema before serving")
	return cmd
}

func serve(cmd *cobra.Command, opts *ServeOptions) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	if opts.Migrate {
		if err := db.Migrate(db.GetDBConnection()); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Config.API
	if cfg.AdminKey == "" {
		log.Warn(nil, "api.admin_key is empty, admin endpoints are disabled")
	}
	srv := api.NewServer(api.Options{
		DB:            db.GetDBConnection(),
		Engine:        a.engine,
		Authenticator: a.auth,
		Resolver:      workflow.NewResolver(),
		Router:        a.router,
		AdminKey:      cfg.AdminKey,
	})
	return srv.ListenAndServe(ctx, cfg.Host, cfg.Port)
}
