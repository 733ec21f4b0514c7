package di

import (
	"fmt"

	"SpinPull/internal/domain/models"
	"SpinPull/internal/domain/repository"
	domsvc "SpinPull/internal/domain/service"
	"SpinPull/internal/handler/api"
	"SpinPull/internal/handler/stream"
	mid "SpinPull/internal/middleware"
	internalrepo "SpinPull/internal/repository"
	"SpinPull/internal/service/cache"
	"SpinPull/internal/service/lock"
	"SpinPull/internal/service/ratelimit"
	"SpinPull/internal/services/analytics"
	"SpinPull/internal/services/predictor"
	"SpinPull/internal/usecase"
	"SpinPull/pkg/config"
	xhttp "SpinPull/pkg/http"
	pkgkafka "SpinPull/pkg/kafka"
	applogger "SpinPull/pkg/logger"
	"SpinPull/pkg/metrics"
	"SpinPull/pkg/queue"
	"SpinPull/pkg/server"
	"SpinPull/pkg/store"
	"SpinPull/pkg/util"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideLogger creates the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

func ProvideClock() util.Clock { return util.SystemClock() }

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCLIMetrics records onto a private registry; the CLI exposes none.
func ProvideCLIMetrics() repository.Metrics {
	return metrics.NewWithRegisterer(prometheus.NewRegistry())
}

// ProvideStore opens the configured state store backend.
func ProvideStore(cfg *config.Config, clock util.Clock) (store.Store, func(), error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Backend {
	case store.BackendMemory:
		st = store.NewMemoryStore(store.WithMemoryClock(clock.Now))
	default:
		st, err = store.NewRedisStore(
			store.WithRedisURL(cfg.Store.URL),
			store.WithRedisPrefix(cfg.Store.Prefix),
			store.WithRedisPool(cfg.Store.PoolSize, cfg.Store.MinIdle, cfg.Store.DialTimeout),
			store.WithDialTimeout(cfg.Store.DialTimeout),
			store.WithCommitTimeout(cfg.Store.CommitTimeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("state store: %w", err)
		}
	}
	return st, func() { _ = st.Close() }, nil
}

func ProvideStateRepository(st store.Store, l *applogger.Logger) *internalrepo.StateRepository {
	r := internalrepo.NewStateRepository(st)
	r.SetLogger(l.With("state_store"))
	return r
}

func ProvideCache(clock util.Clock) *cache.TTLCache {
	return cache.NewTTLCache(clock)
}

func ProvideWriterLock(cfg *config.Config, st store.Store, l *applogger.Logger) *lock.WriterLock {
	wl := lock.NewWriterLock(lock.Config{
		Distributed: cfg.Lock.Distributed,
		TTL:         cfg.Lock.TTL,
		Wait:        cfg.Lock.Wait,
	}, st)
	wl.SetLogger(l.With("writer_lock"))
	return wl
}

// ProvidePredictor selects the predictor variant. The ML variants fall back
// to the heuristic when the model service is unreachable.
func ProvidePredictor(cfg *config.Config, m repository.Metrics, l *applogger.Logger) (domsvc.Predictor, error) {
	heuristic := predictor.NewHeuristic(
		predictor.WithSeed(cfg.Predictor.Seed),
		predictor.WithHistoryWindow(cfg.Predictor.HistoryWindow),
	)
	kind, err := models.ParsePredictorType(cfg.Predictor.Type)
	if err != nil {
		return nil, err
	}
	if kind == models.PredictorHeuristic {
		return heuristic, nil
	}
	ml, err := analytics.NewMLPredictor(kind, cfg.Predictor.ML.URL, cfg.Predictor.ML.Timeout, heuristic,
		analytics.WithMLLogger(l.With("ml_predictor")),
		analytics.WithMLMetrics(m),
	)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}
	return ml, nil
}

func ProvideIngester(repo *internalrepo.StateRepository, clock util.Clock, cfg *config.Config, l *applogger.Logger) *usecase.Ingester {
	ing := usecase.NewIngester(repo, clock, usecase.IngestConfig{
		HistoryCap:        cfg.Ingest.HistoryCap,
		TimelineCap:       cfg.Ingest.TimelineCap,
		FeatureHistoryCap: cfg.Ingest.FeatureHistoryCap,
		CommitTimeout:     cfg.Store.CommitTimeout,
	})
	ing.SetLogger(l.With("ingest"))
	return ing
}

func ProvideRegistry(repo *internalrepo.StateRepository, clock util.Clock, m repository.Metrics, cfg *config.Config, l *applogger.Logger) *usecase.Registry {
	reg := usecase.NewRegistry(repo, clock, m, usecase.RegistryConfig{
		PendingCap:    cfg.Ingest.PendingCap,
		ResultTTL:     cfg.Ingest.ResultTTL,
		CommitTimeout: cfg.Store.CommitTimeout,
	})
	reg.SetLogger(l.With("registry"))
	return reg
}

func ProvideHub(l *applogger.Logger) *stream.Hub {
	h := stream.NewHub()
	h.SetLogger(l.With("stream"))
	return h
}

// ProvideBroadcaster exposes the hub as the orchestrator's live feed.
func ProvideBroadcaster(h *stream.Hub) repository.Broadcaster { return h }

// ProvideNoPublisher and ProvideNoBroadcaster stand in for the transports
// when the pipeline runs inside the CLI.
func ProvideNoPublisher() repository.EventPublisher { return nil }

func ProvideNoBroadcaster() repository.Broadcaster { return nil }

// Tools is the in-process pipeline used by spinctl.
type Tools struct {
	Config       *config.Config
	Store        store.Store
	Query        *usecase.QueryService
	Orchestrator *usecase.Orchestrator
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideEventPublisher returns nil when there is no producer, so the
// orchestrator skips publishing.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Events)
}

func ProvideOrchestrator(
	ing *usecase.Ingester,
	reg *usecase.Registry,
	repo *internalrepo.StateRepository,
	pred domsvc.Predictor,
	wl *lock.WriterLock,
	c *cache.TTLCache,
	m repository.Metrics,
	pub repository.EventPublisher,
	bc repository.Broadcaster,
	cfg *config.Config,
	l *applogger.Logger,
) *usecase.Orchestrator {
	o := usecase.NewOrchestrator(ing, reg, repo, pred, wl, c, m, usecase.OrchestratorConfig{
		SnapshotWindow: cfg.Predictor.HistoryWindow,
	})
	o.SetLogger(l.With("orchestrator"))
	if pub != nil {
		o.SetPublisher(pub)
	}
	if bc != nil {
		o.SetBroadcaster(bc)
	}
	return o
}

func ProvideQueryService(repo *internalrepo.StateRepository, reg *usecase.Registry, c *cache.TTLCache, cfg *config.Config) *usecase.QueryService {
	return usecase.NewQueryService(repo, reg, c, cfg.Cache.StatsTTL)
}

// ProvideSpinGate fronts the orchestrator for the bus intake paths.
func ProvideSpinGate(orch *usecase.Orchestrator, m repository.Metrics, clock util.Clock, cfg *config.Config, l *applogger.Logger) *mid.SpinGate {
	return mid.NewSpinGate(orch, m,
		mid.WithMaxRPS(cfg.Gate.MaxRPS),
		mid.WithDedupWindow(cfg.Gate.DedupWindow),
		mid.WithGateClock(clock),
		mid.WithGateLogger(l.With("spin_gate")),
	)
}

// ProvideKafkaConsumer creates a Kafka consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideKafkaSpinsHandler(gate *mid.SpinGate, m repository.Metrics, cfg *config.Config) *usecase.KafkaSpinsHandler {
	return usecase.NewKafkaSpinsHandler(cfg.Kafka.Topics.Spins, gate, m)
}

// ProvideQueueConsumer creates the Redis bus consumer. The bus shares the
// state store's Redis connection, so it is only available on that backend.
func ProvideQueueConsumer(cfg *config.Config, st store.Store, gate *mid.SpinGate, l *applogger.Logger) *queue.RedisQueue {
	rs, ok := st.(*store.RedisStore)
	if !cfg.Queue.Enabled || !ok {
		if cfg.Queue.Enabled {
			l.Warn("queue disabled: requires the redis store backend")
		}
		return nil
	}
	return queue.NewRedisConsumer(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rs.Client(), []queue.Job{usecase.NewSpinIngestJob(gate, l.With("spin_job"))},
		queue.WithKeyPrefix(cfg.Queue.Prefix))
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSec)
}

// ProvideHTTPHandler groups every route set served by the API.
func ProvideHTTPHandler(
	orch *usecase.Orchestrator,
	query *usecase.QueryService,
	rl *ratelimit.Limiter,
	hub *stream.Hub,
	cfg *config.Config,
	l *applogger.Logger,
) xhttp.Handler {
	hl := l.With("api")
	return xhttp.Handlers{
		api.NewRouletteEchoHandler(hl, orch, query, rl, cfg.Auth.SecretKey),
		api.NewAIEchoHandler(hl, orch, query),
		hub,
	}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSpinsHandler,
	q *queue.RedisQueue,
	rl *ratelimit.Limiter,
	hub *stream.Hub,
) *server.App {
	opts := []server.Option{
		server.WithSweeper(rl),
		server.WithHub(hub),
	}
	if consumer != nil {
		opts = append(opts, server.WithKafka(consumer, kh))
	}
	if q != nil {
		opts = append(opts, server.WithQueue(q))
	}
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Topic:     cfg.Kafka.Topics.Logs,
			Publisher: producer,
		})
	}
	return server.New(cfg, l, handler, opts...)
}
