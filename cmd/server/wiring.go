package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecertify/internal/events/relay"
	"ecertify/internal/ledger"
	ledgerhandler "ecertify/internal/ledger/handler"
	ledgermetrics "ecertify/internal/ledger/metrics"
	"ecertify/internal/platform/config"
	"ecertify/internal/platform/database"
	"ecertify/internal/platform/health"
	"ecertify/internal/platform/kafka"
	"ecertify/internal/platform/kafka/producer"
	"ecertify/internal/platform/metrics"
	redisclient "ecertify/internal/platform/redis"
	"ecertify/internal/platform/tracer"
	rlmetrics "ecertify/internal/ratelimit/metrics"
	ratelimitmw "ecertify/internal/ratelimit/middleware"
	ratelimitsvc "ecertify/internal/ratelimit/service"
	"ecertify/internal/ratelimit/store/bucket"
	"ecertify/internal/seeder"
	"ecertify/migrations"
	"ecertify/pkg/platform/circuit"
	"ecertify/pkg/platform/middleware/request"
	"ecertify/pkg/platform/middleware/requesttime"
	"ecertify/pkg/validation"
)

const requestTimeout = 30 * time.Second

// app holds what main needs to run and tear down the process.
type app struct {
	router  http.Handler
	sampler *metrics.Sampler
	relay   *relay.Worker

	health  *health.Handler
	closers []func() error
	log     *slog.Logger
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	procMetrics := metrics.New()
	a := &app{
		sampler: metrics.NewSampler(metrics.WithLogger(log), metrics.WithMetrics(procMetrics)),
		health:  health.New(cfg.Environment),
		log:     log,
	}

	stores, err := a.buildStores(ctx, cfg, procMetrics)
	if err != nil {
		a.close()
		return nil, err
	}

	l := ledger.New(stores,
		ledger.WithLogger(log),
		ledger.WithMetrics(ledgermetrics.New()),
		ledger.WithTracer(tracer.NewOTel(nil)),
		ledger.WithStrictContentRefs(cfg.StrictContentRefs),
		ledger.WithTxTimeout(cfg.LedgerTxTimeout),
	)

	if err := a.seedDemo(ctx, cfg, l); err != nil {
		a.close()
		return nil, err
	}

	var handlerOpts []ledgerhandler.Option
	limiter, err := a.buildRateLimiter(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	if limiter != nil {
		handlerOpts = append(handlerOpts, ledgerhandler.WithMutationMiddleware(limiter.PerActor()))
	}

	if err := a.buildRelay(cfg, l); err != nil {
		a.close()
		return nil, err
	}

	a.router = a.newRouter(ledgerhandler.New(l, log, handlerOpts...))
	return a, nil
}

// buildStores selects PostgreSQL when DATABASE_URL is set and the in-memory
// stores otherwise.
func (a *app) buildStores(ctx context.Context, cfg config.Server, procMetrics *metrics.Metrics) (ledger.Stores, error) {
	if cfg.Database.URL == "" {
		a.log.Info("using in-memory ledger stores")
		return ledger.MemoryStores(), nil
	}

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return ledger.Stores{}, fmt.Errorf("connect database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
		return ledger.Stores{}, err
	}

	a.health.RegisterCheck("database", pool.Health)
	a.sampler.Add("db_pool", func(context.Context) error {
		procMetrics.RecordDBStats(pool.Stats())
		return nil
	})
	a.log.Info("using postgres ledger stores")
	return ledger.PostgresStores(pool.DB()), nil
}

// seedDemo runs only against a fresh in-memory ledger outside production.
func (a *app) seedDemo(ctx context.Context, cfg config.Server, l *ledger.Ledger) error {
	if !cfg.SeedDemo {
		return nil
	}
	if cfg.IsProduction() || cfg.Database.URL != "" {
		a.log.Warn("ignoring ECERTIFY_SEED_DEMO outside in-memory development mode")
		return nil
	}
	if _, err := seeder.New(l, a.log).SeedAll(ctx); err != nil {
		return fmt.Errorf("seed demo data: %w", err)
	}
	return nil
}

// buildRateLimiter returns nil when the budget is disabled. Redis backs the
// window when configured so replicas share one budget per caller.
func (a *app) buildRateLimiter(ctx context.Context, cfg config.Server) (*ratelimitmw.Middleware, error) {
	if cfg.RateLimitPerMinute <= 0 {
		a.log.Info("rate limiting disabled")
		return nil, nil
	}

	var store ratelimitsvc.BucketStore
	rc, err := redisclient.New(ctx, cfg.Redis,
		redisclient.WithPoolMetrics(redisclient.NewPoolMetrics(prometheus.DefaultRegisterer)))
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		a.health.RegisterCheck("redis", rc.Health)
		a.sampler.Add("redis_pool", rc.RecordPoolStats)
		store = bucket.NewRedisBucketStore(rc.Client)
	} else {
		mem := bucket.NewInMemoryBucketStore()
		a.sampler.Add("ratelimit_sweep", func(ctx context.Context) error {
			mem.Sweep(ctx)
			return nil
		})
		store = mem
	}

	limiter, err := ratelimitsvc.New(store, cfg.RateLimitPerMinute,
		ratelimitsvc.WithLogger(a.log),
		ratelimitsvc.WithMetrics(rlmetrics.New(prometheus.DefaultRegisterer)),
	)
	if err != nil {
		return nil, err
	}
	return ratelimitmw.New(limiter, a.log), nil
}

// buildRelay publishes the outbox to Kafka when brokers are configured.
// Without Kafka, events stay readable through the events endpoint.
func (a *app) buildRelay(cfg config.Server, l *ledger.Ledger) error {
	if cfg.Kafka.Brokers == "" {
		a.log.Info("kafka not configured, event relay disabled")
		return nil
	}

	pcfg := kafka.NewProducerConfig(cfg.Kafka.Brokers)
	if cfg.Kafka.ClientID != "" {
		pcfg.ClientID = cfg.Kafka.ClientID
	}
	prod, err := producer.New(pcfg, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, prod.Close)
	a.health.RegisterCheck("kafka", kafka.ReadinessCheck(prod))

	breaker := circuit.New("kafka-relay")
	a.health.RegisterCheck("relay", breaker.Check)

	a.relay = relay.New(l.Outbox(), prod,
		relay.WithTopic(cfg.Kafka.EventsTopic),
		relay.WithBatchSize(cfg.Kafka.RelayBatch),
		relay.WithPollInterval(cfg.Kafka.RelayInterval),
		relay.WithMetrics(relay.NewMetrics(prometheus.DefaultRegisterer)),
		relay.WithBreaker(breaker),
		relay.WithLogger(a.log),
	)
	a.sampler.Add("outbox_depth", a.relay.UpdateMetrics)
	return nil
}

func (a *app) newRouter(ledgerHandler *ledgerhandler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(a.log))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(a.log))
	r.Use(request.LatencyMiddleware(request.NewMetrics(prometheus.DefaultRegisterer)))
	r.Use(chimiddleware.Timeout(requestTimeout))
	r.Use(request.BodyLimit(validation.MaxBodyBytes))
	r.Use(request.ContentTypeJSON)

	a.health.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	ledgerHandler.Register(r)

	return r
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}
