package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/proctored-exam/internal/auth"
	"github.com/iliyamo/proctored-exam/internal/config"
	"github.com/iliyamo/proctored-exam/internal/database"
	"github.com/iliyamo/proctored-exam/internal/fixtures"
	"github.com/iliyamo/proctored-exam/internal/handler"
	"github.com/iliyamo/proctored-exam/internal/metrics"
	"github.com/iliyamo/proctored-exam/internal/middleware"
	"github.com/iliyamo/proctored-exam/internal/proctor"
	"github.com/iliyamo/proctored-exam/internal/queue"
	"github.com/iliyamo/proctored-exam/internal/repository"
	"github.com/iliyamo/proctored-exam/internal/repository/memory"
	"github.com/iliyamo/proctored-exam/internal/router"
	"github.com/iliyamo/proctored-exam/internal/worker/sweeper"
)

// stores is the set of repositories one driver provides.
type stores struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	exams      repository.ExamRepository
	attempts   repository.AttemptRepository
	violations repository.ViolationRepository
}

// app is the wired process.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	db      *sql.DB
	rdb     *redis.Client
	stores  stores
	auth    *auth.Service
	proctor *proctor.Service
	metrics *metrics.Collector
	Echo    *echo.Echo
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	switch cfg.StoreDriver {
	case config.DriverMySQL:
		dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		db, err := database.Open(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		a.stores = stores{
			users:      repository.NewUserRepo(db),
			sessions:   repository.NewSessionRepo(db),
			exams:      repository.NewExamRepo(db),
			attempts:   repository.NewAttemptRepo(db),
			violations: repository.NewViolationRepo(db),
		}
	default:
		m := memory.New()
		a.stores = stores{
			users:      m.Users(),
			sessions:   m.Sessions(),
			exams:      m.Exams(),
			attempts:   m.Attempts(),
			violations: m.Violations(),
		}
		log.Warn("using in-memory store; data is lost on exit")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewCollector(reg)

	var pub queue.Publisher = queue.NopPublisher{}
	if cfg.RabbitEnabled {
		pub = queue.NewRabbitPublisher(cfg.RabbitURL, log)
	}

	a.auth = auth.NewService(a.stores.users, a.stores.sessions, auth.Config{
		Secret:     cfg.JWTSecret,
		SessionTTL: cfg.SessionTTL,
		BcryptCost: cfg.BcryptCost,
	}, auth.WithLogger(log), auth.WithMetrics(a.metrics))

	a.proctor = proctor.NewService(proctor.Deps{
		Users:      a.stores.users,
		Exams:      a.stores.exams,
		Attempts:   a.stores.attempts,
		Violations: a.stores.violations,
		Publisher:  pub,
		Metrics:    a.metrics,
		Logger:     log,
	}, cfg.MaxViolations)

	if cfg.Cache.Enabled {
		a.rdb = config.NewRedisClient(ctx)
		if a.rdb == nil {
			log.Warn("redis unavailable, response cache disabled")
		}
	}
	cache := middleware.NewRedisCache(cfg.Cache, a.rdb)

	h := router.Handlers{
		Auth:    handler.NewAuthHandler(a.auth),
		Exams:   handler.NewExamHandler(a.proctor),
		Attempt: handler.NewAttemptHandler(a.proctor),
		Admin:   handler.NewAdminHandler(a.proctor, a.auth),
		Metrics: metrics.Handler(reg),
	}
	if a.db != nil {
		h.Store = a.db
	}
	a.Echo = router.New(log, h, a.auth, cache)
	return a, nil
}

// StartBackground launches the session sweeper and, when RabbitMQ is
// enabled, the event consumer.  Both stop with ctx.
func (a *app) StartBackground(ctx context.Context) {
	job := sweeper.NewJob(a.stores.sessions, a.cfg.SweepInterval, a.log, a.metrics)
	go job.Start(ctx)

	if a.cfg.RabbitEnabled {
		c := queue.NewConsumer(a.cfg.RabbitURL, a.log)
		go func() {
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				a.log.Error("event consumer stopped", "error", err)
			}
		}()
	}
}

// Seed applies a fixture file to the configured store.
func (a *app) Seed(ctx context.Context, path string) error {
	f, err := fixtures.Load(path)
	if err != nil {
		return fmt.Errorf("load fixtures %s: %w", path, err)
	}
	sum, err := fixtures.Apply(ctx, f, a.auth, a.stores.users, a.stores.exams, time.Now().UTC())
	if err != nil {
		return err
	}
	a.log.Info("fixtures applied", "path", path, "users", sum.Users, "exams", sum.Exams)
	return nil
}

func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
