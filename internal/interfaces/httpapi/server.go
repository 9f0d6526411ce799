package httpapi

import (
	"net/http"

	"github.com/riskibarqy/odds-grading/internal/platform/logging"
)

type RouterConfig struct {
	InternalJobToken string
	// MetricsHandler serves GET /metrics when set.
	MetricsHandler  http.Handler
	RequestObserver RequestObserver
}

func NewRouter(handler *Handler, cfg RouterConfig, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler, cfg.MetricsHandler)
	registerInternalJobRoutes(mux, handler, cfg.InternalJobToken)
	registerInternalCapperRoutes(mux, handler, cfg.InternalJobToken)

	return RequestTracing(RequestLogging(logger, recoverPanic(logger, RequestMetrics(cfg.RequestObserver, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.recoverPanic")
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec, "path", r.URL.Path)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
