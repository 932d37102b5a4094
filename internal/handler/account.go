package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/handler/dto"
	"github.com/heylo/heylo/internal/service"
)

// AccountHandler handles account bootstrap and profile updates.
type AccountHandler struct {
	svc  *service.AccountService
	errs *ErrorWriter
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc *service.AccountService, errs *ErrorWriter) *AccountHandler {
	return &AccountHandler{svc: svc, errs: errs}
}

// Ensure handles GET /api/v1/user and POST /api/v1/users. The account is
// created from the token claims on first call.
func (h *AccountHandler) Ensure(w http.ResponseWriter, r *http.Request) {
	account, err := h.svc.Ensure(r.Context(), auth.PrincipalFromContext(r.Context()))
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(account))
}

// Update handles PUT /api/v1/users/{id}.
func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.Handle(w, r, err)
		return
	}

	account, err := h.svc.UpdateProfile(r.Context(), auth.PrincipalFromContext(r.Context()), chi.URLParam(r, "id"), service.UpdateAccountInput{
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		h.errs.Handle(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToAccountResponse(account))
}
