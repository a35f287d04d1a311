// Package api exposes the engine, the credential store and the workflow
// router over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"autoflow/app/automation/engine"
	"autoflow/app/credential"
	"autoflow/app/workflow"
	"autoflow/pkg/log"

	"github.com/julienschmidt/httprouter"
	"gorm.io/gorm"
)

type Options struct {
	DB            *gorm.DB
	Engine        *engine.Engine
	Authenticator *credential.Authenticator
	Resolver      *workflow.Resolver
	Router        *workflow.Router
	AdminKey      string
}

type Server struct {
	db       *gorm.DB
	engine   *engine.Engine
	auth     *credential.Authenticator
	resolver *workflow.Resolver
	router   *workflow.Router
	adminKey string
}

func NewServer(opts Options) *Server {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = workflow.NewResolver()
	}
	return &Server{
		db:       opts.DB,
		engine:   opts.Engine,
		auth:     opts.Authenticator,
		resolver: resolver,
		router:   opts.Router,
		adminKey: opts.AdminKey,
	}
}

func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.PanicHandler = s.panicHandler
	router.NotFound = http.HandlerFunc(s.notFound)

	router.GET("/healthz", s.wrap(s.health))

	router.POST("/api/v1/workflow/dispatch", s.wrap(s.dispatch))

	router.POST("/api/v1/service-accounts", s.wrap(s.admin(s.createServiceAccount)))
	router.POST("/api/v1/service-accounts/:id/rotate", s.wrap(s.admin(s.rotateServiceAccount)))
	router.POST("/api/v1/service-accounts/:id/active", s.wrap(s.admin(s.setServiceAccountActive)))

	router.POST("/api/v1/scheduler/run", s.wrap(s.admin(s.runScheduled)))
	router.POST("/api/v1/defaults/seed", s.wrap(s.tenant(s.seedDefaults)))
	router.POST("/api/v1/events", s.wrap(s.tenant(s.publishEvent)))

	router.GET("/api/v1/automations", s.wrap(s.tenant(s.listAutomations)))
	router.POST("/api/v1/automations", s.wrap(s.tenant(s.createAutomation)))
	router.GET("/api/v1/automations/:id", s.wrap(s.tenant(s.getAutomation)))
	router.PUT("/api/v1/automations/:id", s.wrap(s.tenant(s.updateAutomation)))
	router.DELETE("/api/v1/automations/:id", s.wrap(s.tenant(s.deleteAutomation)))
	router.POST("/api/v1/automations/:id/toggle", s.wrap(s.tenant(s.toggleAutomation)))
	router.POST("/api/v1/automations/:id/test", s.wrap(s.tenant(s.testAutomation)))
	router.POST("/api/v1/automations/:id/run", s.wrap(s.tenant(s.runAutomation)))
	router.GET("/api/v1/automations/:id/runs", s.wrap(s.tenant(s.listRuns)))
	return router
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) ListenAndServe(ctx context.Context, host string, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Infof(nil, "api listening on %s", srv.Addr)
		errChan <- srv.ListenAndServe()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info(nil, "api stopped")
	return nil
}
