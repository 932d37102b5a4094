package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/middleware"
	"github.com/heylo/heylo/internal/model"
	"github.com/heylo/heylo/internal/service"
	"github.com/heylo/heylo/internal/testutil/memstore"
)

const testUIDHeader = "X-Test-UID"

type testAPI struct {
	store  *memstore.Store
	router http.Handler
}

// newTestAPI wires the real services over an in-memory store. Requests
// carrying testUIDHeader are treated as authenticated by that uid.
func newTestAPI(t *testing.T, pageBaseURL string) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()

	accounts := service.NewAccountService(store, logger)
	analytics := service.NewAnalyticsService(store, accounts)
	pages := service.NewPageService(store, accounts, nil, nil, logger)
	links := service.NewShortlinkService(store, nil, analytics, nil, logger)

	errs := NewErrorWriter(logger, true)
	base := New("test")
	shortlinkHandler := NewShortlinkHandler(links, errs, logger)
	resolveHandler := NewResolveHandler(links, errs, pageBaseURL)
	pageHandler := NewPageHandler(pages, errs, logger)
	accountHandler := NewAccountHandler(accounts, errs)
	analyticsHandler := NewAnalyticsHandler(analytics, errs)

	r := chi.NewRouter()
	r.NotFound(base.NotFound)
	r.MethodNotAllowed(base.MethodNotAllowed)
	r.Get("/", base.Index)
	r.Post("/shortlinks", shortlinkHandler.Create)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(testAuth)
		r.Post("/shortlinks", shortlinkHandler.Create)
		r.Get("/page", pageHandler.Get)
		r.Get("/init", pageHandler.Init)
		r.Post("/page", pageHandler.Create)
		r.Put("/page/displaytext", pageHandler.SetDisplayName)
		r.Put("/page/link/add", pageHandler.AddLink)
		r.Put("/page/link/edit", pageHandler.EditLink)
		r.Put("/page/link/changeorder", pageHandler.ReorderLink)
		r.Delete("/page/link/delete/{id}", pageHandler.DeleteLink)
		r.Put("/page/link/customize/{field}", pageHandler.SetTheme)
		r.Get("/user", accountHandler.Ensure)
		r.Post("/users", accountHandler.Ensure)
		r.Put("/users/{id}", accountHandler.Update)
		r.Get("/analytics", analyticsHandler.Get)
	})

	r.Get("/go/{slug}", resolveHandler.Redirect)
	r.Get("/{slug}", resolveHandler.Resolve)
	r.Post("/{slug}/clicks", resolveHandler.TrackClick)

	return &testAPI{store: store, router: r}
}

func testAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get(testUIDHeader)
		if uid == "" {
			middleware.WriteAuthError(w)
			return
		}
		p := &model.Principal{UID: uid, Email: uid + "@example.com", DisplayName: uid}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), p)))
	})
}

func (a *testAPI) do(t *testing.T, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(testUIDHeader, uid)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHandler_Index(t *testing.T) {
	api := newTestAPI(t, "")

	rec := api.do(t, http.MethodGet, "/", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	body := decodeBody[map[string]string](t, rec)
	if body["message"] != "Heylo-link API" {
		t.Errorf("unexpected message: %s", body["message"])
	}
}

func TestHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	h := New("test")

	rec := httptest.NewRecorder()
	h.NotFound(rec, httptest.NewRequest(http.MethodGet, "/a/b/c", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
	if body := decodeBody[map[string]string](t, rec); body["code"] != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected code: %s", body["code"])
	}
}
