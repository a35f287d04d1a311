// Package cli holds the autoflow command tree.
package cli

import (
	"fmt"
	"io"
	"time"

	"autoflow/app/actions"
	"autoflow/app/automation/engine"
	"autoflow/app/config"
	"autoflow/app/credential"
	"autoflow/app/db"
	"autoflow/app/events"
	"autoflow/app/workflow"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"github.com/spf13/cobra"
)

type RootOptions struct {
	ConfigFile string
}

// NewRootCommand builds the autoflow command and its subcommands.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "autoflow",
		Short:         "Automation engine and workflow action gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Initialize(opts.ConfigFile); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			lc := config.Config.LOG
			log.Initialize(log.Options{
				Format:          lc.Format,
				TimestampFormat: lc.TimestampFormat,
				DirPath:         lc.DirPath,
				Level:           lc.Level,
			})
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", config.DefaultConfigFile, "path to the ini configuration file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTickCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewServiceAccountCommand(opts))
	return cmd
}

// app is the wired object graph shared by the commands.
type app struct {
	publisher events.Publisher
	registry  *actions.Registry
	engine    *engine.Engine
	auth      *credential.Authenticator
	router    *workflow.Router
}

func openDB() error {
	dc := config.Config.Database
	return db.Init(&db.Config{
		Connection:  dc.Connection,
		Debug:       dc.Debug,
		PoolSize:    dc.PoolSize,
		IdleTimeout: dc.IdleTimeout,
	})
}

func bootstrap() (*app, error) {
	if err := openDB(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	cfg := config.Config
	publisher := events.NewPublisher(cfg.Messaging)
	registry := actions.NewDefaultRegistry(actions.Deps{Publisher: publisher})
	if err := actions.RegisterPlugins(registry, cfg.Engine.Plugins); err != nil {
		return nil, err
	}

	eng, err := engine.New(registry, publisher, cfg.Engine)
	if err != nil {
		return nil, err
	}
	auth, err := credential.New(cfg.Auth)
	if err != nil {
		return nil, err
	}
	return &app{
		publisher: publisher,
		registry:  registry,
		engine:    eng,
		auth:      auth,
		router:    workflow.NewRouter(registry, publisher, cfg.Engine.ActionTimeoutDuration()),
	}, nil
}

func (a *app) close() {
	if c, ok := a.publisher.(io.Closer); ok {
		_ = c.Close()
	}
	_ = db.Close()
}

func newContext(cmd *cobra.Command) *contextx.Context {
	ctx := contextx.NewContextFrom(cmd.Context(), db.GetDBConnection())
	ctx.Set(contextx.KeyRequestID, fmt.Sprintf("cli-%s-%d", cmd.Name(), time.Now().Unix()))
	return ctx
}
