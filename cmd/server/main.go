package main

//	@title			Threatlens API
//	@version		0.1.0
//	@description	Assigns threat models and generated threat analyses to projects.
//	@schemes		http https
//	@BasePath		/api/v1

//  Bearer shared by every API client
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				API Bearer token (e.g., "Bearer threatlens"). Send X-Actor to attribute writes.

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/threatlens/threatlens/internal/bootstrap"
	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/infra/cache"
	dbpkg "github.com/threatlens/threatlens/internal/infra/db"
	"github.com/threatlens/threatlens/internal/infra/queue"
	"github.com/threatlens/threatlens/internal/modules/handler"
	"github.com/threatlens/threatlens/internal/modules/service"
	"github.com/threatlens/threatlens/internal/router"
	"github.com/threatlens/threatlens/internal/telemetry"
)

func main() {
	// build dependency injection container
	inj := bootstrap.BuildContainer()

	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj)
	defer func() { _ = log.Sync() }()
	db := do.MustInvoke[*gorm.DB](inj)
	rdb := do.MustInvoke[*redis.Client](inj)

	tp, err := telemetry.SetupTracing(cfg)
	if err != nil {
		log.Sugar().Warnw("failed to setup tracing, continuing without tracing", "err", err)
	} else if tp != nil {
		log.Sugar().Infow("OpenTelemetry tracing enabled", "endpoint", cfg.Telemetry.OtlpEndpoint)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(ctx); err != nil {
				log.Sugar().Errorw("failed to shutdown tracer", "err", err)
			}
		}()

		// plugins read the global tracer provider, so they go after SetupTracing
		if err := dbpkg.RegisterOpenTelemetryPlugin(db); err != nil {
			log.Sugar().Warnw("failed to register GORM OpenTelemetry plugin, continuing without database tracing", "err", err)
		}
		if err := cache.RegisterOpenTelemetryPlugin(rdb); err != nil {
			log.Sugar().Warnw("failed to register Redis OpenTelemetry plugin, continuing without Redis tracing", "err", err)
		}
	}

	// init gin
	gin.SetMode(cfg.App.Env)

	engine := router.NewRouter(router.RouterDeps{
		Config:            cfg,
		Log:               log,
		AssignmentHandler: do.MustInvoke[*handler.AssignmentHandler](inj),
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	srv := &http.Server{Addr: addr, Handler: engine}

	go func() {
		log.Sugar().Infow("starting http server", "addr", addr)
		log.Sugar().Infow("swagger url", "url", addr+"/swagger/index.html")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Sugar().Fatalw("listen error", "err", err)
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Sugar().Errorw("server shutdown", "err", err)
	}
	if p, ok := do.MustInvoke[service.EventPublisher](inj).(*queue.Publisher); ok {
		if err := p.Close(); err != nil {
			log.Sugar().Warnw("close event publisher", "err", err)
		}
	}
	if err := rdb.Close(); err != nil {
		log.Sugar().Warnw("close redis", "err", err)
	}
	log.Sugar().Info("server exited")
}
