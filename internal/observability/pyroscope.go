package observability

import (
	"context"
	"strings"

	"github.com/grafana/pyroscope-go"
	"github.com/riskibarqy/odds-grading/internal/config"
	"github.com/riskibarqy/odds-grading/internal/platform/logging"
)

// InitPyroscope starts continuous profiling when enabled. Collection and
// grading runs are CPU and allocation bound, so only those profiles plus
// goroutines are uploaded.
func InitPyroscope(cfg config.Config, logger *logging.Logger) (func() error, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.PyroscopeEnabled {
		logger.Info("pyroscope disabled", "reason", "PYROSCOPE_ENABLED=false")
		return func() error { return nil }, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.PyroscopeAppName,
		ServerAddress:     cfg.PyroscopeServerAddress,
		AuthToken:         cfg.PyroscopeAuthToken,
		BasicAuthUser:     cfg.PyroscopeBasicAuthUser,
		BasicAuthPassword: cfg.PyroscopeBasicAuthPassword,
		UploadRate:        cfg.PyroscopeUploadRate,
		Tags: map[string]string{
			"env":     cfg.AppEnv,
			"service": cfg.ServiceName,
			"version": cfg.ServiceVersion,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("pyroscope enabled",
		"server_address", cfg.PyroscopeServerAddress,
		"application", cfg.PyroscopeAppName,
	)
	return profiler.Stop, nil
}

// LabelJob runs fn with job and sport profiling labels so flame graphs can be
// split per internal job. The labels are plain pprof labels and cost nothing
// when the profiler is off.
func LabelJob(ctx context.Context, job, sport string, fn func(context.Context)) {
	sport = strings.TrimSpace(sport)
	if sport == "" {
		sport = "all"
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels("job", job, "sport", sport), fn)
}
