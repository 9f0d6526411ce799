package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/riskibarqy/odds-grading/internal/usecase"
)

func (h *Handler) VerifyCapperStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.VerifyCapperStats")
	defer span.End()

	if h.auditor == nil {
		writeError(ctx, w, fmt.Errorf("%w: capper audit is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	capperID := strings.TrimSpace(r.PathValue("capperID"))
	result, err := h.auditor.Verify(ctx, capperID)
	if err != nil {
		h.logger.WarnContext(ctx, "verify capper stats failed", "capper_id", capperID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RebuildCapperStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RebuildCapperStats")
	defer span.End()

	if h.auditor == nil {
		writeError(ctx, w, fmt.Errorf("%w: capper audit is not configured", usecase.ErrDependencyUnavailable))
		return
	}

	capperID := strings.TrimSpace(r.PathValue("capperID"))
	result, err := h.auditor.Rebuild(ctx, capperID)
	if err != nil {
		h.logger.WarnContext(ctx, "rebuild capper stats failed", "capper_id", capperID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}
