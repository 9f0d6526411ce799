package observability

import (
	"context"
	"errors"
	"strings"

	"github.com/riskibarqy/odds-grading/internal/config"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.opentelemetry.io/otel/attribute"
)

// InitUptrace configures the global OpenTelemetry providers. The returned
// func flushes pending spans before shutting the exporters down.
func InitUptrace(cfg config.Config, logger *logging.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = logging.Default()
	}
	noop := func(context.Context) error { return nil }

	if !cfg.UptraceEnabled {
		logger.Info("uptrace disabled", "reason", "UPTRACE_ENABLED=false")
		return noop, nil
	}
	if strings.TrimSpace(cfg.UptraceDSN) == "" {
		logger.Info("uptrace disabled", "reason", "UPTRACE_DSN empty")
		return noop, nil
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
		uptrace.WithLoggingEnabled(cfg.UptraceLogsEnabled),
		uptrace.WithResourceAttributes(resourceAttributes(cfg)...),
	)

	logger.Info("uptrace enabled",
		"service_name", cfg.ServiceName,
		"environment", cfg.AppEnv,
		"logs_enabled", cfg.UptraceLogsEnabled,
	)

	return func(ctx context.Context) error {
		flushErr := uptrace.ForceFlush(ctx)
		return errors.Join(flushErr, uptrace.Shutdown(ctx))
	}, nil
}

func resourceAttributes(cfg config.Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.StringSlice("odds.sports", cfg.Sports),
		attribute.Bool("odds.kafka_enabled", cfg.KafkaEnabled),
	}
	if cfg.CLVConsensusProvider != "" {
		attrs = append(attrs, attribute.String("odds.clv_consensus_provider", cfg.CLVConsensusProvider))
	}
	return attrs
}
