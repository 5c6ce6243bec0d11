package bootstrap

import (
	"context"
	"time"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/infra/cache"
	"github.com/threatlens/threatlens/internal/infra/db"
	"github.com/threatlens/threatlens/internal/infra/logger"
	"github.com/threatlens/threatlens/internal/infra/queue"
	"github.com/threatlens/threatlens/internal/modules/handler"
	"github.com/threatlens/threatlens/internal/modules/repo"
	"github.com/threatlens/threatlens/internal/modules/service"
	"github.com/threatlens/threatlens/internal/pkg/identifier"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		// [optional] auto migrate
		if cfg.Database.AutoMigrate {
			if err := db.Migrate(d); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(cfg), nil
	})

	// Cache
	do.Provide(inj, func(i *do.Injector) (cache.Cache, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		c := cache.NewCache(ctx, do.MustInvoke[*redis.Client](i), cfg.Cache.Namespace)
		if _, ok := c.(*cache.MemoryCache); ok {
			log.Sugar().Warnw("redis unreachable, caching in process memory", "addr", cfg.Redis.Addr)
		}
		return c, nil
	})

	// RabbitMQ Connection
	do.Provide(inj, func(i *do.Injector) (*amqp.Connection, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return amqp.Dial(cfg.RabbitMQ.URL)
	})

	// assignment events
	do.Provide(inj, func(i *do.Injector) (service.EventPublisher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.RabbitMQ.Enabled {
			return queue.Nop{}, nil
		}
		log := do.MustInvoke[*zap.Logger](i)
		conn, err := do.Invoke[*amqp.Connection](i)
		if err != nil {
			log.Sugar().Warnw("rabbitmq unreachable, assignment events disabled", "err", err)
			return queue.Nop{}, nil
		}
		return queue.NewPublisher(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue, log)
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.Transactor, error) {
		return repo.NewTransactor(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ProjectRepo, error) {
		return repo.NewProjectRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.ThreatModelRepo, error) {
		return repo.NewThreatModelRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.SubjectRepo, error) {
		return repo.NewSubjectRepo(do.MustInvoke[*redis.Client](i)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.AssignmentService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewAssignmentService(service.AssignmentDeps{
			Projects:         do.MustInvoke[repo.ProjectRepo](i),
			ThreatModels:     do.MustInvoke[repo.ThreatModelRepo](i),
			Subjects:         do.MustInvoke[repo.SubjectRepo](i),
			Tx:               do.MustInvoke[repo.Transactor](i),
			Cache:            do.MustInvoke[cache.Cache](i),
			Events:           do.MustInvoke[service.EventPublisher](i),
			Classifier:       identifier.NewClassifier(cfg.Identifier.SubjectPrefixes...),
			Log:              do.MustInvoke[*zap.Logger](i),
			ListTTL:          time.Duration(cfg.Cache.ListTTLSec) * time.Second,
			ProjectExistsTTL: time.Duration(cfg.Cache.ProjectExistsTTLSec) * time.Second,
		}), nil
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.AssignmentHandler, error) {
		return handler.NewAssignmentHandler(do.MustInvoke[service.AssignmentService](i)), nil
	})

	return inj
}
