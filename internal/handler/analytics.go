package handler

import (
	"net/http"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/handler/dto"
	"github.com/heylo/heylo/internal/service"
)

// AnalyticsHandler serves the owner's hit counters.
type AnalyticsHandler struct {
	svc  *service.AnalyticsService
	errs *ErrorWriter
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(svc *service.AnalyticsService, errs *ErrorWriter) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, errs: errs}
}

// Get handles GET /api/v1/analytics. Without a page or any hits the body is {}.
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.GetForPrincipal(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAnalyticsResponse(record))
}
