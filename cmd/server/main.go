package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/todo-auth/internal/config"
	"github.com/iliyamo/todo-auth/internal/database"
	"github.com/iliyamo/todo-auth/internal/handler"
	"github.com/iliyamo/todo-auth/internal/kv"
	"github.com/iliyamo/todo-auth/internal/logging"
	"github.com/iliyamo/todo-auth/internal/metrics"
	"github.com/iliyamo/todo-auth/internal/queue"
	"github.com/iliyamo/todo-auth/internal/ratelimit"
	"github.com/iliyamo/todo-auth/internal/repository"
	"github.com/iliyamo/todo-auth/internal/router"
	"github.com/iliyamo/todo-auth/internal/service"
	"github.com/iliyamo/todo-auth/internal/session"
	"github.com/iliyamo/todo-auth/internal/utils"
)

const (
	shutdownTimeout      = 10 * time.Second
	eventDeliveryTimeout = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.Log, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]handler.Check{}

	// Key-value store: sessions and rate limit counters.
	var (
		kvStore kv.Store
		limiter ratelimit.Limiter
		rdb     *redis.Client
	)
	if cfg.KVDriver == config.DriverRedis {
		rdb, err = config.NewRedisClient(cfg.Redis)
		if err != nil && cfg.IsProduction() {
			logger.WithError(err).Fatal("connect redis")
		}
		if err != nil {
			logger.WithError(err).Warn("redis unavailable, using in-memory sessions and rate limits")
		}
	}
	if rdb != nil {
		kvStore = kv.NewRedisStore(rdb)
		limiter = ratelimit.NewRedisLimiter(rdb)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		mem := kv.NewMemoryStore()
		memLimiter := ratelimit.NewMemoryLimiter()
		go memLimiter.Run(ctx, cfg.RateLimit.SweepInterval)
		go sweepLoop(ctx, mem, cfg.RateLimit.SweepInterval)
		kvStore, limiter = mem, memLimiter
	}

	// Credential records.
	var (
		users service.UserStore
		db    *sql.DB
	)
	switch cfg.StoreDriver {
	case config.DriverMySQL:
		db, err = database.Open(cfg.DB)
		if err != nil {
			logger.WithError(err).Fatal("connect mysql")
		}
		if cfg.DB.RunMigrations {
			if err := database.Migrate(ctx, db); err != nil {
				logger.WithError(err).Fatal("run migrations")
			}
		}
		users = repository.NewUserRepo(db)
		checks["mysql"] = db.PingContext
	default:
		logger.Warn("using in-memory user store; accounts are lost on restart")
		users = repository.NewMemoryUserRepo()
	}

	codec, err := utils.NewTokenCodec(cfg.JWTSecret)
	if err != nil {
		logger.WithError(err).Fatal("token codec")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Auth events.
	var events queue.Publisher = queue.NopPublisher{}
	var (
		amqpPub  *queue.AMQPPublisher
		buffered *queue.BufferedPublisher
	)
	if cfg.AMQP.Enabled {
		amqpPub = queue.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		buffered = queue.NewBufferedPublisher(amqpPub, cfg.AMQP.Buffer, eventDeliveryTimeout, logger)
		events = buffered
		if cfg.AMQP.Consume {
			consumer := &queue.Consumer{
				URL:    cfg.AMQP.URL,
				Queue:  cfg.AMQP.Queue,
				LogDir: cfg.AMQP.LogDir,
				Logger: logger,
			}
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.WithError(err).Error("auth event consumer stopped")
				}
			}()
		}
	}

	svc := service.NewAuthService(service.Deps{
		Users:    users,
		Sessions: session.NewStore(kvStore),
		Limiter:  limiter,
		Tokens:   codec,
		Events:   events,
		Metrics:  m,
		Logger:   logger,
		Policies: service.PoliciesFromConfig(cfg.RateLimit),
		FailureDelay: service.FailureDelay{
			Min:    cfg.LoginDelay.Min,
			Jitter: cfg.LoginDelay.Jitter,
		},
	})

	e := router.New(logger, m)
	if e.IPExtractor, err = router.IPExtractor(cfg.TrustedProxies); err != nil {
		logger.WithError(err).Fatal("trusted proxies")
	}
	router.RegisterRoutes(e, &handler.Health{Checks: checks}, m)
	router.RegisterAuth(e, handler.NewAuthHandler(svc, cfg.IsProduction()), svc)

	addr := ":" + cfg.Port
	go func() {
		logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http shutdown")
	}
	if buffered != nil {
		if err := buffered.Close(shutdownCtx); err != nil {
			logger.WithError(err).Warn("auth events left undelivered")
		}
		_ = amqpPub.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}

// sweepLoop drops expired in-memory sessions until ctx is done.
func sweepLoop(ctx context.Context, s *kv.MemoryStore, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
