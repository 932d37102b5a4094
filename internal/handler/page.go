package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/handler/dto"
	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/service"
)

// PageHandler handles the authenticated page editor endpoints.
type PageHandler struct {
	svc    *service.PageService
	errs   *ErrorWriter
	logger *slog.Logger
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(svc *service.PageService, errs *ErrorWriter, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		svc:    svc,
		errs:   errs,
		logger: logger,
	}
}

// Get handles GET /api/v1/page. Without a page the body is {}.
func (h *PageHandler) Get(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.GetOwnedPage(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	if page == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPageResponse(page))
}

// Init handles GET /api/v1/init.
func (h *PageHandler) Init(w http.ResponseWriter, r *http.Request) {
	account, page, err := h.svc.Init(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.InitResponse{
		User: dto.ToAccountResponse(account),
		Page: dto.ToPageResponse(page),
	})
}

// Create handles POST /api/v1/page.
func (h *PageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	initial := req.InitialLinks()
	links := make([]service.LinkInput, 0, len(initial))
	for _, l := range initial {
		links = append(links, service.LinkInput{URL: l.URL, Name: l.Name, Icon: l.Icon})
	}

	account, page, err := h.svc.CreatePage(r.Context(), auth.PrincipalFromContext(r.Context()), service.CreatePageInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Links:       links,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	h.logger.Info("page_created", "name", page.Name, "links", len(page.Links))

	writeJSON(w, http.StatusOK, dto.CreatePageResponse{
		User: dto.ToAccountResponse(account),
		Page: dto.ToPageResponse(page),
	})
}

// SetDisplayName handles PUT /api/v1/page/displaytext.
func (h *PageHandler) SetDisplayName(w http.ResponseWriter, r *http.Request) {
	var req dto.DisplayNameRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	page, err := h.svc.SetDisplayName(r.Context(), auth.PrincipalFromContext(r.Context()), req.DisplayName)
	h.respond(w, r, page, err)
}

// AddLink handles PUT /api/v1/page/link/add.
func (h *PageHandler) AddLink(w http.ResponseWriter, r *http.Request) {
	var req dto.LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	page, err := h.svc.AddLink(r.Context(), auth.PrincipalFromContext(r.Context()), service.LinkInput{
		URL:  req.URL,
		Name: req.Name,
		Icon: req.Icon,
	})
	h.respond(w, r, page, err)
}

// EditLink handles PUT /api/v1/page/link/edit.
func (h *PageHandler) EditLink(w http.ResponseWriter, r *http.Request) {
	var req dto.LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	page, err := h.svc.EditLink(r.Context(), auth.PrincipalFromContext(r.Context()), service.EditLinkInput{
		ID:        req.ID,
		LinkInput: service.LinkInput{URL: req.URL, Name: req.Name, Icon: req.Icon},
	})
	h.respond(w, r, page, err)
}

// DeleteLink handles DELETE /api/v1/page/link/delete/{id}.
func (h *PageHandler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.DeleteLink(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"))
	h.respond(w, r, page, err)
}

// ReorderLink handles PUT /api/v1/page/link/changeorder.
func (h *PageHandler) ReorderLink(w http.ResponseWriter, r *http.Request) {
	var req dto.ReorderLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	page, err := h.svc.ReorderLink(r.Context(), auth.PrincipalFromContext(r.Context()), service.ReorderLinkInput{
		ID:        req.ID,
		FromIndex: req.FromIndex,
		ToIndex:   req.ToIndex,
	})
	h.respond(w, r, page, err)
}

// SetTheme handles PUT /api/v1/page/link/customize/{field}. The body is
// {"value": ...}; older clients send the field name as the key instead,
// e.g. {"btncolor": "#fff"}.
func (h *PageHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	field := model.ThemeField(chi.URLParam(r, "field"))

	var body map[string]json.RawMessage
	if err := decodeJSON(r, &body); err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	raw, ok := body["value"]
	if !ok {
		raw = body[string(field)]
	}
	var value string
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &value); err != nil {
			h.errs.Write(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
			return
		}
	}

	page, err := h.svc.SetTheme(r.Context(), auth.PrincipalFromContext(r.Context()), service.SetThemeInput{
		Field: field,
		Value: value,
	})
	h.respond(w, r, page, err)
}

func (h *PageHandler) respond(w http.ResponseWriter, r *http.Request, page *model.Page, err error) {
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToPageResponse(page))
}
