package handler

import (
	"log/slog"
	"net/http"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/handler/dto"
	"github.com/heylo/heylo/internal/service"
)

// ShortlinkHandler handles shortlink creation.
type ShortlinkHandler struct {
	svc    *service.ShortlinkService
	errs   *ErrorWriter
	logger *slog.Logger
}

// NewShortlinkHandler creates a new ShortlinkHandler.
func NewShortlinkHandler(svc *service.ShortlinkService, errs *ErrorWriter, logger *slog.Logger) *ShortlinkHandler {
	return &ShortlinkHandler{
		svc:    svc,
		errs:   errs,
		logger: logger,
	}
}

// Create handles POST /shortlinks and POST /api/v1/shortlinks.
// An authenticated caller becomes the owner.
func (h *ShortlinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateShortlinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	link, err := h.svc.Create(r.Context(), service.CreateShortlinkInput{
		Name:     req.Name,
		URL:      req.URL,
		OwnerUID: auth.UIDFromContext(r.Context()),
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	h.logger.Info("shortlink_created",
		"name", link.Name,
		"has_custom_name", req.Name != "",
		"owned", link.OwnerUID != "",
	)

	writeJSON(w, http.StatusOK, dto.ToPageResponse(link))
}
