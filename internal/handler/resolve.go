package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/heylo/heylo/internal/handler/dto"
	"github.com/heylo/heylo/internal/service"
)

// ResolveHandler serves public name resolution.
type ResolveHandler struct {
	svc         *service.ShortlinkService
	errs        *ErrorWriter
	pageBaseURL string
}

// NewResolveHandler creates a new ResolveHandler. pageBaseURL may be empty,
// in which case pages cannot be redirected to.
func NewResolveHandler(svc *service.ShortlinkService, errs *ErrorWriter, pageBaseURL string) *ResolveHandler {
	return &ResolveHandler{
		svc:         svc,
		errs:        errs,
		pageBaseURL: strings.TrimRight(pageBaseURL, "/"),
	}
}

// Resolve handles GET /{slug}.
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPageResponse(page))
}

// Redirect handles GET /go/{slug}.
func (h *ResolveHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.Resolve(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	target := page.URL
	if !page.IsShortlink() {
		if h.pageBaseURL == "" {
			h.errs.Write(w, http.StatusNotFound, "NOT_FOUND", "Not found")
			return
		}
		target = h.pageBaseURL + "/" + url.PathEscape(page.Name)
	}

	w.Header().Set("Cache-Control", "private, max-age=0")
	http.Redirect(w, r, target, http.StatusFound)
}

// TrackClick handles POST /{slug}/clicks.
func (h *ResolveHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	var req dto.TrackClickRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	err := h.svc.TrackLinkClick(r.Context(), chi.URLParam(r, "slug"), service.TrackClickInput{
		URL:  req.URL,
		Name: req.Name,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
