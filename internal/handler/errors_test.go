package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/heylo/heylo/internal/handler/dto"
	"github.com/heylo/heylo/internal/service"
)

func TestErrorWriter_Status(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", &service.Error{Kind: service.ErrValidation, Code: "VALIDATION_FAILED", Message: "bad"}, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"conflict", &service.Error{Kind: service.ErrConflict, Code: "NAME_IN_USE", Message: "taken"}, http.StatusConflict, "NAME_IN_USE"},
		{"precondition", &service.Error{Kind: service.ErrPrecondition, Code: "PAGE_REQUIRED", Message: "page"}, http.StatusConflict, "PAGE_REQUIRED"},
		{"not found", &service.Error{Kind: service.ErrNotFound, Code: "NOT_FOUND", Message: "nope"}, http.StatusNotFound, "NOT_FOUND"},
		{"forbidden", &service.Error{Kind: service.ErrForbidden, Code: "FORBIDDEN", Message: "no"}, http.StatusForbidden, "FORBIDDEN"},
		{"wrapped", fmt.Errorf("outer: %w", &service.Error{Kind: service.ErrNotFound, Code: "NOT_FOUND", Message: "nope"}), http.StatusNotFound, "NOT_FOUND"},
		{"unclassified", errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	ew := NewErrorWriter(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ew.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			body := decodeBody[dto.ErrorResponse](t, rec)
			if body.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
			}
			if body.Stack != "" {
				t.Errorf("expected no stack in production, got %q", body.Stack)
			}
		})
	}
}

func TestErrorWriter_InternalMessageHidden(t *testing.T) {
	ew := NewErrorWriter(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
	rec := httptest.NewRecorder()
	ew.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dial tcp 10.0.0.1:5432: refused"))

	body := decodeBody[dto.ErrorResponse](t, rec)
	if body.Message != "Internal server error" {
		t.Errorf("expected generic message, got %q", body.Message)
	}
}

func TestErrorWriter_Unauthenticated(t *testing.T) {
	ew := NewErrorWriter(slog.New(slog.NewTextHandler(io.Discard, nil)), true)
	rec := httptest.NewRecorder()
	ew.Handle(rec, httptest.NewRequest(http.MethodGet, "/", nil), &service.Error{Kind: service.ErrUnauthenticated, Code: "UNAUTHENTICATED"})

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["errorStatus"] != "Unauthorized" || body["message"] != "User not logged in or not a valid user" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestFieldErrors(t *testing.T) {
	if got := fieldErrors(errors.New("plain")); got != nil {
		t.Errorf("expected nil for a non-validation error, got %v", got)
	}

	got := fieldErrors(validation.Errors{"url": errors.New("must be a valid URL"), "name": nil})
	if len(got) != 1 || got["url"] != "must be a valid URL" {
		t.Errorf("unexpected fields: %v", got)
	}
}
