package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/riskibarqy/odds-grading/external/espn"
	"github.com/riskibarqy/odds-grading/external/theoddsapi"
	"github.com/riskibarqy/odds-grading/internal/config"
	"github.com/riskibarqy/odds-grading/internal/domain/capper"
	"github.com/riskibarqy/odds-grading/internal/domain/game"
	"github.com/riskibarqy/odds-grading/internal/domain/jobscheduler"
	"github.com/riskibarqy/odds-grading/internal/domain/oddssnapshot"
	"github.com/riskibarqy/odds-grading/internal/domain/pick"
	"github.com/riskibarqy/odds-grading/internal/domain/season"
	"github.com/riskibarqy/odds-grading/internal/domain/settlement"
	"github.com/riskibarqy/odds-grading/internal/infrastructure/events"
	"github.com/riskibarqy/odds-grading/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/odds-grading/internal/infrastructure/pubsub"
	cacherepo "github.com/riskibarqy/odds-grading/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/odds-grading/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/odds-grading/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/odds-grading/internal/interfaces/httpapi"
	"github.com/riskibarqy/odds-grading/internal/observability"
	"github.com/riskibarqy/odds-grading/internal/platform/cache"
	idgen "github.com/riskibarqy/odds-grading/internal/platform/id"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/riskibarqy/odds-grading/internal/platform/resilience"
	"github.com/riskibarqy/odds-grading/internal/usecase"
)

type repositories struct {
	snapshots  oddssnapshot.Repository
	picks      pick.Repository
	cappers    capper.Repository
	dispatches jobscheduler.Repository
}

// NewHTTPServer wires every dependency and returns the server plus a cleanup
// that releases connections after shutdown.
func NewHTTPServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*http.Server, func(context.Context) error, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return nil, nil, fmt.Errorf("http server addr cannot be empty")
	}

	var closers []func(context.Context) error
	cleanup := func(ctx context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i](ctx))
		}
		return errors.Join(errs...)
	}

	repos, closeRepos, err := newRepositories(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeRepos)

	var (
		metrics         usecase.Metrics = usecase.NoopMetrics{}
		metricsHandler  http.Handler
		requestObserver httpapi.RequestObserver
		promMetrics     *observability.Metrics
	)
	if cfg.MetricsEnabled {
		promMetrics = observability.NewMetrics()
		metrics = promMetrics
		metricsHandler = promMetrics.Handler()
		requestObserver = promMetrics
	}
	watchCircuit := func(dependency string, breaker resilience.CircuitBreakerConfig) resilience.CircuitBreakerConfig {
		breakerLogger := logger.Named("circuit")
		breaker.OnStateChange = func(from, to resilience.CircuitState) {
			breakerLogger.Warn("circuit breaker state changed", "dependency", dependency, "from", string(from), "to", string(to))
			if promMetrics != nil {
				promMetrics.CircuitStateChanged(dependency, string(to))
			}
		}
		return breaker
	}

	var snapshotPublisher usecase.SnapshotPublisher
	if cfg.RedisEnabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func(context.Context) error { return client.Close() })
		snapshotPublisher = pubsub.NewRedisBroadcaster(client, cfg.RedisChannelPrefix, logger.Named("redis"))
	}

	var settlementPublisher usecase.SettlementPublisher
	if cfg.KafkaEnabled {
		kafkaPublisher, err := events.NewKafkaPublisher(events.KafkaPublisherConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaSettledTopic,
			WriteTimeout: cfg.KafkaWriteTimeout,
		}, logger.Named("kafka"))
		if err != nil {
			_ = cleanup(ctx)
			return nil, nil, fmt.Errorf("build kafka publisher: %w", err)
		}
		closers = append(closers, func(context.Context) error { return kafkaPublisher.Close() })
		settlementPublisher = kafkaPublisher
	}

	oddsClient := theoddsapi.NewClient(theoddsapi.ClientConfig{
		HTTPClient:        &http.Client{Timeout: cfg.OddsAPITimeout},
		BaseURL:           cfg.OddsAPIBaseURL,
		APIKey:            cfg.OddsAPIKey,
		Regions:           cfg.OddsAPIRegions,
		Bookmakers:        cfg.OddsAPIBookmakers,
		Timeout:           cfg.OddsAPITimeout,
		MaxRetries:        cfg.OddsAPIMaxRetries,
		RequestsPerSecond: cfg.OddsAPIRequestsPerSecond,
		Logger:            logger.Named(theoddsapi.ProviderName),
		CircuitBreaker:    watchCircuit(theoddsapi.ProviderName, cfg.OddsAPICircuit),
	})
	espnClient := espn.NewClient(espn.ClientConfig{
		BaseURL:        cfg.ESPNBaseURL,
		Timeout:        cfg.ESPNTimeout,
		MaxRetries:     cfg.ESPNMaxRetries,
		Logger:         logger.Named(espn.ProviderName),
		CircuitBreaker: watchCircuit(espn.ProviderName, cfg.ESPNCircuit),
	})

	collector := usecase.NewSnapshotCollector(
		oddsClient,
		espnClient,
		repos.snapshots,
		season.NewCalendar(cfg.SeasonWindows),
		snapshotPublisher,
		metrics,
		usecase.CollectorConfig{
			Sports:          cfg.Sports,
			BatchSize:       cfg.CollectBatchSize,
			RunTimeout:      cfg.CollectRunTimeout,
			ProviderTimeout: cfg.CollectProviderTimeout,
		},
		logger.Named("collector"),
	)
	clv := usecase.NewCLVCalculator(repos.snapshots, repos.picks, usecase.CLVConfig{
		ConsensusProvider: cfg.CLVConsensusProvider,
		CentsPerPoint:     cfg.CLVCentsPerPoint,
	}, logger.Named("clv"))
	grading := usecase.NewGradingService(
		repos.picks,
		repos.cappers,
		[]usecase.ScoreProvider{espnClient, oddsClient},
		clv,
		settlement.NewEngine(settlement.NewTiePolicy(cfg.MoneylineTiePushSports)),
		cache.NewStore[game.FinalScore](4096, 12*time.Hour),
		settlementPublisher,
		idgen.NewUUIDGenerator(),
		metrics,
		usecase.GradingConfig{
			Workers:      cfg.GradeWorkers,
			BatchLimit:   cfg.GradeBatchLimit,
			RunTimeout:   cfg.GradeRunTimeout,
			NotFinalHold: cfg.GradeNotFinalHold,
		},
		logger.Named("grading"),
	)
	audit := usecase.NewCapperAuditService(repos.picks, repos.cappers, logger.Named("audit"))

	var jobQueue httpapi.JobQueue
	if cfg.QStashEnabled {
		qstash, err := jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
			BaseURL:          cfg.QStashBaseURL,
			Token:            cfg.QStashToken,
			TargetBaseURL:    cfg.QStashTargetBaseURL,
			Retries:          cfg.QStashRetries,
			InternalJobToken: cfg.InternalJobToken,
			CircuitBreaker:   watchCircuit("qstash", cfg.QStashCircuit),
		}, logger)
		if err != nil {
			_ = cleanup(ctx)
			return nil, nil, fmt.Errorf("build qstash publisher: %w", err)
		}
		jobQueue = qstash
	}

	handler := httpapi.NewHandler(httpapi.HandlerDeps{
		Collector:       collector,
		Grader:          grading,
		CLV:             clv,
		Auditor:         audit,
		JobDispatchRepo: repos.dispatches,
		JobQueue:        jobQueue,
		FollowUpDelay:   cfg.FollowUpDelay,
		JobLabeler:      observability.LabelJob,
		Logger:          logger,
	})
	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		InternalJobToken: cfg.InternalJobToken,
		MetricsHandler:   metricsHandler,
		RequestObserver:  requestObserver,
	}, logger.Named("http"))

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return server, cleanup, nil
}

func newRepositories(ctx context.Context, cfg config.Config, logger *logging.Logger) (repositories, func(context.Context) error, error) {
	var repos repositories
	closeFn := func(context.Context) error { return nil }

	if cfg.DBURL == "" {
		logger.Warn("DB_URL empty, using in-memory repositories")
		picks := memory.NewPickRepository()
		repos = repositories{
			snapshots:  memory.NewOddsSnapshotRepository(),
			picks:      picks,
			cappers:    memory.NewCapperRepository(picks),
			dispatches: memory.NewJobDispatchRepository(),
		}
	} else {
		db, err := openDatabase(ctx, cfg.DBURL, cfg.DBDisablePreparedBinary)
		if err != nil {
			return repositories{}, nil, err
		}
		closeFn = func(context.Context) error { return db.Close() }
		logger.Info("database connected", "db", redactDBURL(cfg.DBURL), "db_name", dbNameFromURL(cfg.DBURL))
		repos = repositories{
			snapshots:  postgres.NewOddsSnapshotRepository(db),
			picks:      postgres.NewPickRepository(db),
			cappers:    postgres.NewCapperStatsRepository(db),
			dispatches: postgres.NewJobDispatchRepository(db),
		}
	}

	if cfg.CacheEnabled {
		repos.snapshots = cacherepo.NewOddsSnapshotRepository(
			repos.snapshots,
			cache.NewStore[[]oddssnapshot.Snapshot](4096, cfg.CacheTTL),
			cfg.CLVConsensusProvider,
		)
	}
	return repos, closeFn, nil
}
