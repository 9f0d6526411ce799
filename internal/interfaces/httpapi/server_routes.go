package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, metrics http.Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
}

func registerInternalJobRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/internal/jobs/collect-snapshots", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.CollectSnapshots)))
	mux.Handle("POST /v1/internal/jobs/grade-picks", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.GradePicks)))
	mux.Handle("POST /v1/internal/jobs/backfill-clv", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.BackfillCLV)))
	mux.Handle("POST /v1/internal/jobs/mark-closing", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.MarkClosing)))
	mux.Handle("GET /v1/internal/jobs/dispatches/{dispatchID}", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.GetJobDispatch)))
}

func registerInternalCapperRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("GET /v1/internal/cappers/{capperID}/stats/verify", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.VerifyCapperStats)))
	mux.Handle("POST /v1/internal/cappers/{capperID}/rebuild-stats", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RebuildCapperStats)))
}
