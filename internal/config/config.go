package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/odds-grading/internal/domain/season"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/riskibarqy/odds-grading/internal/platform/resilience"
	"github.com/shopspring/decimal"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                  string
	ServiceName             string
	ServiceVersion          string
	HTTPAddr                string
	DBURL                   string
	DBDisablePreparedBinary bool
	CacheEnabled            bool
	CacheTTL                time.Duration
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	LogLevel                logging.Level
	MetricsEnabled          bool
	InternalJobToken        string

	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration

	Sports        []string
	SeasonWindows []season.Window

	OddsAPIBaseURL           string
	OddsAPIKey               string
	OddsAPIRegions           string
	OddsAPIBookmakers        []string
	OddsAPITimeout           time.Duration
	OddsAPIMaxRetries        int
	OddsAPIRequestsPerSecond float64
	OddsAPICircuit           resilience.CircuitBreakerConfig

	ESPNBaseURL    string
	ESPNTimeout    time.Duration
	ESPNMaxRetries int
	ESPNCircuit    resilience.CircuitBreakerConfig

	CollectBatchSize       int
	CollectRunTimeout      time.Duration
	CollectProviderTimeout time.Duration
	GradeRunTimeout        time.Duration
	GradeWorkers           int
	GradeBatchLimit        int
	GradeNotFinalHold      time.Duration
	CLVConsensusProvider   string
	CLVCentsPerPoint       decimal.Decimal
	MoneylineTiePushSports []string

	RedisEnabled       bool
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	RedisChannelPrefix string

	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaSettledTopic string
	KafkaWriteTimeout time.Duration

	QStashEnabled       bool
	QStashBaseURL       string
	QStashToken         string
	QStashTargetBaseURL string
	QStashRetries       int
	QStashCircuit       resilience.CircuitBreakerConfig
	FollowUpDelay       time.Duration
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:           appEnv,
		ServiceName:      getEnv("APP_SERVICE_NAME", "odds-grading-api"),
		ServiceVersion:   getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:         getEnv("APP_HTTP_ADDR", ":8080"),
		DBURL:            strings.TrimSpace(getEnv("DB_URL", "")),
		InternalJobToken: strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		LogLevel:         logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
	}

	if cfg.DBDisablePreparedBinary, err = strconv.ParseBool(getEnv("DB_DISABLE_PREPARED_BINARY_RESULT", "true")); err != nil {
		return Config{}, fmt.Errorf("parse DB_DISABLE_PREPARED_BINARY_RESULT: %w", err)
	}
	if cfg.CacheEnabled, err = strconv.ParseBool(getEnv("CACHE_ENABLED", "true")); err != nil {
		return Config{}, fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	if cfg.CacheTTL, err = getEnvAsPositiveDuration("CACHE_TTL", "10m"); err != nil {
		return Config{}, err
	}
	if cfg.ReadTimeout, err = getEnvAsPositiveDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return Config{}, err
	}
	// job routes block until the run finishes
	if cfg.WriteTimeout, err = getEnvAsPositiveDuration("APP_WRITE_TIMEOUT", "3m"); err != nil {
		return Config{}, err
	}
	if cfg.MetricsEnabled, err = strconv.ParseBool(getEnv("METRICS_ENABLED", "true")); err != nil {
		return Config{}, fmt.Errorf("parse METRICS_ENABLED: %w", err)
	}

	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadDomain(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadProviders(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadMessaging(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadObservability(cfg *Config) error {
	var err error

	if cfg.UptraceEnabled, err = strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	cfg.UptraceDSN = strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if cfg.UptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	if cfg.UptraceLogsEnabled, err = strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	if cfg.PprofEnabled, err = strconv.ParseBool(getEnv("PPROF_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	cfg.PprofAddr = strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))

	if cfg.PyroscopeEnabled, err = strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	cfg.PyroscopeServerAddress = strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if cfg.PyroscopeEnabled && cfg.PyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	if cfg.PyroscopeUploadRate, err = getEnvAsPositiveDuration("PYROSCOPE_UPLOAD_RATE", "15s"); err != nil {
		return err
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeAuthToken = strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", ""))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	return nil
}

func loadDomain(cfg *Config) error {
	var err error

	cfg.Sports = lowerCSV(getEnv("SPORTS", "nfl,nba,mlb,nhl,ncaaf,ncaab,epl,mls"))
	if len(cfg.Sports) == 0 {
		return fmt.Errorf("SPORTS cannot be empty")
	}

	rawWindows := strings.TrimSpace(getEnv("SEASON_WINDOWS", ""))
	if rawWindows == "" {
		cfg.SeasonWindows = season.DefaultWindows()
	} else if cfg.SeasonWindows, err = season.ParseWindows(rawWindows); err != nil {
		return fmt.Errorf("parse SEASON_WINDOWS: %w", err)
	}

	if cfg.CollectBatchSize, err = getEnvAsInt("COLLECT_BATCH_SIZE", 100); err != nil {
		return fmt.Errorf("parse COLLECT_BATCH_SIZE: %w", err)
	}
	if cfg.CollectBatchSize < 1 || cfg.CollectBatchSize > 100 {
		return fmt.Errorf("COLLECT_BATCH_SIZE must be between 1 and 100")
	}
	if cfg.CollectRunTimeout, err = getEnvAsPositiveDuration("COLLECT_RUN_TIMEOUT", "2m"); err != nil {
		return err
	}
	if cfg.CollectProviderTimeout, err = getEnvAsPositiveDuration("COLLECT_PROVIDER_TIMEOUT", "20s"); err != nil {
		return err
	}
	if cfg.CollectProviderTimeout > cfg.CollectRunTimeout {
		return fmt.Errorf("COLLECT_PROVIDER_TIMEOUT must not exceed COLLECT_RUN_TIMEOUT")
	}
	if cfg.GradeRunTimeout, err = getEnvAsPositiveDuration("GRADE_RUN_TIMEOUT", "2m"); err != nil {
		return err
	}
	if cfg.GradeWorkers, err = getEnvAsInt("GRADE_WORKERS", 4); err != nil {
		return fmt.Errorf("parse GRADE_WORKERS: %w", err)
	}
	if cfg.GradeWorkers < 1 {
		return fmt.Errorf("GRADE_WORKERS must be >= 1")
	}
	if cfg.GradeBatchLimit, err = getEnvAsInt("GRADE_BATCH_LIMIT", 500); err != nil {
		return fmt.Errorf("parse GRADE_BATCH_LIMIT: %w", err)
	}
	if cfg.GradeBatchLimit < 1 {
		return fmt.Errorf("GRADE_BATCH_LIMIT must be >= 1")
	}
	if cfg.GradeNotFinalHold, err = getEnvAsPositiveDuration("GRADE_NOT_FINAL_HOLD", "72h"); err != nil {
		return err
	}

	cfg.CLVConsensusProvider = strings.TrimSpace(getEnv("CLV_CONSENSUS_PROVIDER", ""))
	if cfg.CLVCentsPerPoint, err = decimal.NewFromString(strings.TrimSpace(getEnv("CLV_CENTS_PER_POINT", "3"))); err != nil {
		return fmt.Errorf("parse CLV_CENTS_PER_POINT: %w", err)
	}
	if !cfg.CLVCentsPerPoint.IsPositive() {
		return fmt.Errorf("CLV_CENTS_PER_POINT must be > 0")
	}
	cfg.MoneylineTiePushSports = lowerCSV(getEnv("MONEYLINE_TIE_PUSH_SPORTS", "nfl,nhl,epl,mls"))
	return nil
}

func loadProviders(cfg *Config) error {
	var err error

	cfg.OddsAPIBaseURL = strings.TrimSpace(getEnv("ODDS_API_BASE_URL", "https://api.the-odds-api.com/v4"))
	cfg.OddsAPIKey = strings.TrimSpace(getEnv("ODDS_API_KEY", ""))
	cfg.OddsAPIRegions = strings.TrimSpace(getEnv("ODDS_API_REGIONS", "us"))
	cfg.OddsAPIBookmakers = lowerCSV(getEnv("ODDS_API_BOOKMAKERS", ""))
	if cfg.OddsAPITimeout, err = getEnvAsPositiveDuration("ODDS_API_TIMEOUT", "10s"); err != nil {
		return err
	}
	if cfg.OddsAPIMaxRetries, err = getEnvAsInt("ODDS_API_MAX_RETRIES", 2); err != nil {
		return fmt.Errorf("parse ODDS_API_MAX_RETRIES: %w", err)
	}
	if cfg.OddsAPIMaxRetries < 0 {
		return fmt.Errorf("ODDS_API_MAX_RETRIES must be >= 0")
	}
	if cfg.OddsAPIRequestsPerSecond, err = strconv.ParseFloat(getEnv("ODDS_API_REQUESTS_PER_SECOND", "2"), 64); err != nil {
		return fmt.Errorf("parse ODDS_API_REQUESTS_PER_SECOND: %w", err)
	}
	if cfg.OddsAPIRequestsPerSecond < 0 {
		return fmt.Errorf("ODDS_API_REQUESTS_PER_SECOND must be >= 0")
	}
	if cfg.OddsAPICircuit, err = loadCircuitBreaker("ODDS_API"); err != nil {
		return err
	}

	cfg.ESPNBaseURL = strings.TrimSpace(getEnv("ESPN_BASE_URL", "https://site.api.espn.com/apis/site/v2/sports"))
	if cfg.ESPNTimeout, err = getEnvAsPositiveDuration("ESPN_TIMEOUT", "10s"); err != nil {
		return err
	}
	if cfg.ESPNMaxRetries, err = getEnvAsInt("ESPN_MAX_RETRIES", 1); err != nil {
		return fmt.Errorf("parse ESPN_MAX_RETRIES: %w", err)
	}
	if cfg.ESPNMaxRetries < 0 {
		return fmt.Errorf("ESPN_MAX_RETRIES must be >= 0")
	}
	if cfg.ESPNCircuit, err = loadCircuitBreaker("ESPN"); err != nil {
		return err
	}

	if cfg.AppEnv == EnvProd && cfg.OddsAPIKey == "" {
		return fmt.Errorf("ODDS_API_KEY is required when APP_ENV=prod")
	}
	return nil
}

func loadMessaging(cfg *Config) error {
	var err error

	if cfg.RedisEnabled, err = strconv.ParseBool(getEnv("REDIS_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse REDIS_ENABLED: %w", err)
	}
	cfg.RedisAddr = strings.TrimSpace(getEnv("REDIS_ADDR", "localhost:6379"))
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0); err != nil {
		return fmt.Errorf("parse REDIS_DB: %w", err)
	}
	cfg.RedisChannelPrefix = strings.TrimSpace(getEnv("REDIS_CHANNEL_PREFIX", "odds:snapshots"))
	if cfg.RedisEnabled && cfg.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}

	if cfg.KafkaEnabled, err = strconv.ParseBool(getEnv("KAFKA_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse KAFKA_ENABLED: %w", err)
	}
	cfg.KafkaBrokers = splitCSV(getEnv("KAFKA_BROKERS", ""))
	cfg.KafkaSettledTopic = strings.TrimSpace(getEnv("KAFKA_SETTLED_TOPIC", "pick.settled"))
	if cfg.KafkaWriteTimeout, err = getEnvAsPositiveDuration("KAFKA_WRITE_TIMEOUT", "10s"); err != nil {
		return err
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}

	if cfg.QStashEnabled, err = strconv.ParseBool(getEnv("QSTASH_ENABLED", "false")); err != nil {
		return fmt.Errorf("parse QSTASH_ENABLED: %w", err)
	}
	if cfg.QStashRetries, err = getEnvAsInt("QSTASH_RETRIES", 3); err != nil {
		return fmt.Errorf("parse QSTASH_RETRIES: %w", err)
	}
	if cfg.QStashRetries < 0 {
		return fmt.Errorf("QSTASH_RETRIES must be >= 0")
	}
	if cfg.QStashCircuit, err = loadCircuitBreaker("QSTASH"); err != nil {
		return err
	}
	if cfg.FollowUpDelay, err = time.ParseDuration(getEnv("JOB_FOLLOW_UP_DELAY", "30s")); err != nil {
		return fmt.Errorf("parse JOB_FOLLOW_UP_DELAY: %w", err)
	}
	if cfg.FollowUpDelay < 0 {
		return fmt.Errorf("JOB_FOLLOW_UP_DELAY must be >= 0")
	}
	cfg.QStashBaseURL = strings.TrimSpace(getEnv("QSTASH_BASE_URL", "https://qstash.upstash.io"))
	cfg.QStashToken = strings.TrimSpace(getEnv("QSTASH_TOKEN", ""))
	cfg.QStashTargetBaseURL = strings.TrimSpace(getEnv("QSTASH_TARGET_BASE_URL", ""))
	if cfg.QStashEnabled {
		if cfg.QStashToken == "" {
			return fmt.Errorf("QSTASH_TOKEN is required when QSTASH_ENABLED=true")
		}
		if cfg.QStashTargetBaseURL == "" {
			return fmt.Errorf("QSTASH_TARGET_BASE_URL is required when QSTASH_ENABLED=true")
		}
		if cfg.InternalJobToken == "" {
			return fmt.Errorf("INTERNAL_JOB_TOKEN is required when QSTASH_ENABLED=true")
		}
	}
	return nil
}

func loadCircuitBreaker(prefix string) (resilience.CircuitBreakerConfig, error) {
	var (
		out resilience.CircuitBreakerConfig
		err error
	)

	if out.Enabled, err = strconv.ParseBool(getEnv(prefix+"_CIRCUIT_ENABLED", "true")); err != nil {
		return out, fmt.Errorf("parse %s_CIRCUIT_ENABLED: %w", prefix, err)
	}
	if out.FailureThreshold, err = getEnvAsInt(prefix+"_CIRCUIT_FAILURE_COUNT", 5); err != nil {
		return out, fmt.Errorf("parse %s_CIRCUIT_FAILURE_COUNT: %w", prefix, err)
	}
	if out.FailureThreshold < 1 {
		return out, fmt.Errorf("%s_CIRCUIT_FAILURE_COUNT must be >= 1", prefix)
	}
	if out.OpenTimeout, err = getEnvAsPositiveDuration(prefix+"_CIRCUIT_OPEN_TIMEOUT", "30s"); err != nil {
		return out, err
	}
	if out.HalfOpenMaxReq, err = getEnvAsInt(prefix+"_CIRCUIT_HALF_OPEN_MAX_REQ", 2); err != nil {
		return out, fmt.Errorf("parse %s_CIRCUIT_HALF_OPEN_MAX_REQ: %w", prefix, err)
	}
	if out.HalfOpenMaxReq < 1 {
		return out, fmt.Errorf("%s_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1", prefix)
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsPositiveDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func lowerCSV(v string) []string {
	out := splitCSV(v)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
