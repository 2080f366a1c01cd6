package di

import (
	"context"
	"fmt"
	"time"

	"CryptoCast/internal/domain/models"
	"CryptoCast/internal/domain/repository"
	"CryptoCast/internal/domain/service"
	"CryptoCast/internal/handler/api"
	internalrepo "CryptoCast/internal/repository"
	"CryptoCast/internal/service/binance"
	"CryptoCast/internal/services/features"
	"CryptoCast/internal/services/forecast"
	"CryptoCast/internal/services/ingestion"
	"CryptoCast/internal/services/seasonal"
	"CryptoCast/internal/services/training"
	"CryptoCast/internal/services/validation"
	"CryptoCast/internal/usecase"
	"CryptoCast/pkg/cache"
	pkgch "CryptoCast/pkg/clickhouse"
	"CryptoCast/pkg/config"
	xhttp "CryptoCast/pkg/http"
	pkgkafka "CryptoCast/pkg/kafka"
	"CryptoCast/pkg/logger"
	"CryptoCast/pkg/metrics"
	"CryptoCast/pkg/queue"
	"CryptoCast/pkg/server"

	"github.com/google/uuid"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:   cfg.Logger.Level,
		Format:  cfg.Logger.Format,
		Output:  cfg.Logger.Output,
		Service: "cryptocast",
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.CandleSchema(internalrepo.DefaultCandleTable)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled. Error logs are aggregated onto the log topic.
func ProvideKafkaProducer(cfg *config.Config, lgr *logger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
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
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	lgr.AddCollector(&logger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.LogTopic,
		Publisher:      producer,
	})
	return producer, nil
}

// ProvideRedisCache connects to Redis, or returns nil when it is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
		cache.WithRedisLockToken(uuid.NewString()),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideResponseCache layers process memory in front of Redis when Redis is
// available.
func ProvideResponseCache(rc *cache.RedisCache, cfg *config.Config) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(512))
	}
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(512),
		cache.WithLayeredMemoryTTL(cfg.Forecast.CacheTTL),
	)
}

// ProvideArtifactStore opens the artifact directory.
func ProvideArtifactStore(cfg *config.Config, lgr *logger.Logger) (repository.ArtifactStore, error) {
	store, err := internalrepo.NewFileArtifactStore(cfg.Artifacts.Dir)
	if err != nil {
		return nil, fmt.Errorf("artifact store: %w", err)
	}
	store.SetLogger(lgr)
	return store, nil
}

// ProvideCandleArchive archives raw klines to ClickHouse when it is enabled.
func ProvideCandleArchive(ch *pkgch.Client, lgr *logger.Logger) repository.CandleArchive {
	if ch == nil {
		return internalrepo.NoopArchive{}
	}
	a := internalrepo.NewCHCandleArchive(ch, internalrepo.DefaultCandleTable)
	a.SetLogger(lgr)
	return a
}

// ProvideForecastPublisher emits forecast summaries to Kafka when it is enabled.
func ProvideForecastPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaForecastPublisher(producer, cfg.Kafka.ForecastTopic)
}

// ProvideRunRecorder opens the SQLite run history.
func ProvideRunRecorder(cfg *config.Config) (repository.RunRecorder, error) {
	r, err := internalrepo.NewSQLiteRunRecorder(cfg.History.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("run history: %w", err)
	}
	return r, nil
}

// ProvideBinanceClient creates the exchange REST client.
func ProvideBinanceClient(cfg *config.Config) (*binance.Client, error) {
	c, err := binance.New(binance.Config{
		BaseURL:          cfg.Binance.BaseURL,
		RequestTimeout:   cfg.Binance.RequestTimeout,
		RateCapacity:     cfg.Binance.RateCapacity,
		RateRefillPerSec: cfg.Binance.RateRefillPerSec,
	})
	if err != nil {
		return nil, fmt.Errorf("binance client: %w", err)
	}
	return c, nil
}

// ProvideForecaster selects the forecasting model.
func ProvideForecaster(lgr *logger.Logger) service.Forecaster {
	return seasonal.New(lgr)
}

// ModelConfig maps the model section of the configuration.
func ModelConfig(cfg *config.Config) models.ModelConfig {
	m := cfg.Model
	return models.ModelConfig{
		SeasonalityMode:       m.SeasonalityMode,
		YearlySeasonality:     m.YearlySeasonality,
		WeeklySeasonality:     m.WeeklySeasonality,
		DailySeasonality:      m.DailySeasonality,
		ChangepointPriorScale: m.ChangepointPriorScale,
		SeasonalityPriorScale: m.SeasonalityPriorScale,
		ChangepointRange:      m.ChangepointRange,
		NChangepoints:         m.NChangepoints,
		IntervalWidth:         m.IntervalWidth,
		AddVolumeRegressor:    m.AddVolumeRegressor,
	}
}

// ProvideSteps wires the pipeline nodes.
func ProvideSteps(
	cfg *config.Config,
	client *binance.Client,
	model service.Forecaster,
	store repository.ArtifactStore,
	archive repository.CandleArchive,
	pub repository.Publisher,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.Steps {
	fetcher := ingestion.NewFetcher(client, ingestion.Config{
		Symbol:       cfg.Binance.Symbol,
		Interval:     repository.NormalizeInterval(cfg.Binance.Interval),
		Lookback:     time.Duration(cfg.Binance.YearsOfData) * 365 * 24 * time.Hour,
		PageLimit:    cfg.Binance.PageLimit,
		MaxRetries:   cfg.Binance.MaxRetries,
		RetryBackoff: cfg.Binance.RetryBackoff,
		Timeout:      cfg.Binance.FetchTimeout,
	}, lgr)

	mc := ModelConfig(cfg)
	return &usecase.Steps{
		Fetcher:   fetcher,
		Validator: validation.New(lgr),
		Builder: features.NewBuilder(features.BuilderConfig{
			PriceField:   cfg.Model.PriceColumn,
			AddRegressor: mc.AddVolumeRegressor,
		}, lgr),
		Trainer:    training.NewTrainer(model, mc, lgr),
		Evaluator:  training.NewEvaluator(model, lgr),
		Engine:     forecast.NewEngine(model, lgr),
		Forecaster: model,
		Store:      store,
		Archive:    archive,
		Publisher:  pub,
		Metrics:    m,
		Log:        lgr,
		Config: usecase.StepsConfig{
			Symbol:       cfg.Binance.Symbol,
			TestDays:     cfg.Model.TestSizeDays,
			Horizon:      cfg.Forecast.DaysAhead,
			UseRegressor: mc.AddVolumeRegressor,
		},
	}
}

// ProvideJobQueue creates the Redis-backed pipeline queue, or nil when
// asynchronous runs are disabled.
func ProvideJobQueue(cfg *config.Config, rc *cache.RedisCache, lgr *logger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Redis.Prefix+":pipelines"))
}

// ProvideForecastService builds the use case. Redis, when present, also
// serializes retrains across processes.
func ProvideForecastService(
	cfg *config.Config,
	steps *usecase.Steps,
	client *binance.Client,
	recorder repository.RunRecorder,
	responses cache.Service,
	rc *cache.RedisCache,
	q *queue.RedisQueue,
	lgr *logger.Logger,
) (*usecase.ForecastService, error) {
	opts := []usecase.ServiceOption{usecase.WithResponseCache(responses)}
	if rc != nil {
		opts = append(opts, usecase.WithRetrainLocker(rc))
	}
	if q != nil {
		opts = append(opts, usecase.WithJobQueue(q))
	}
	return usecase.NewForecastService(steps, client, recorder, usecase.ForecastServiceConfig{
		Symbol:         cfg.Binance.Symbol,
		CacheTTL:       cfg.Forecast.CacheTTL,
		LockTTL:        cfg.Redis.LockTTL,
		TrainIfMissing: cfg.Forecast.TrainIfMissing,
		RunTimeout:     cfg.Forecast.RunTimeout,
	}, lgr, opts...)
}

// ProvideScheduler creates the retrain scheduler, or nil when it is disabled.
func ProvideScheduler(cfg *config.Config, svc *usecase.ForecastService, lgr *logger.Logger) (*usecase.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s := usecase.NewScheduler(context.Background(), svc, lgr)
	if err := s.RegisterRetrain(cfg.Scheduler.RetrainCron); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideHTTPHandler creates the API routes.
func ProvideHTTPHandler(svc *usecase.ForecastService, lgr *logger.Logger) xhttp.Handler {
	return api.NewForecastEchoHandler(lgr, svc)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	svc *usecase.ForecastService,
	handler xhttp.Handler,
	q *queue.RedisQueue,
	sched *usecase.Scheduler,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
	responses cache.Service,
	recorder repository.RunRecorder,
) *server.App {
	// responses owns the Redis connection when Redis is enabled
	opts := []server.Option{
		server.WithCloser("responses", responses),
		server.WithCloser("run history", recorder),
	}
	if q != nil {
		q.RegisterJob(usecase.NewPipelineRunJob(svc))
		opts = append(opts, server.WithQueue(q))
	}
	if sched != nil {
		opts = append(opts, server.WithScheduler(sched))
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch))
	}
	if producer != nil {
		opts = append(opts, server.WithCloser("kafka", producer))
	}
	return server.New(cfg, lgr, svc, handler, opts...)
}
