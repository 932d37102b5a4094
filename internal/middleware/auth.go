package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/model"
)

// PrincipalCache remembers verified tokens by fingerprint.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, fingerprint string) (*model.Principal, error)
	SetPrincipal(ctx context.Context, fingerprint string, p *model.Principal, expiresAt time.Time) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier auth.Verifier
	// Cache is optional. Without it every request is verified.
	Cache PrincipalCache
	// TokenHashKey keys the token fingerprint used as cache key.
	TokenHashKey []byte
}

// Auth returns a middleware that authenticates API requests.
// It extracts the bearer token from the Authorization header,
// verifies it, and injects the principal into the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			token := extractBearerToken(r)
			if token == "" {
				logAuthFailure(cfg.Logger, r, "missing_token")
				WriteAuthError(w)
				return
			}

			fingerprint := auth.TokenFingerprint(cfg.TokenHashKey, token)

			if cfg.Cache != nil {
				if principal, _ := cfg.Cache.GetPrincipal(ctx, fingerprint); principal != nil {
					cfg.Logger.Debug("authentication successful",
						slog.String("uid", principal.UID),
						slog.Bool("cache_hit", true),
						slog.String("request_id", GetRequestID(ctx)),
					)
					next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(ctx, principal)))
					return
				}
			}

			identity, err := cfg.Verifier.Verify(ctx, token)
			if err != nil {
				logAuthFailure(cfg.Logger, r, "invalid_token", slog.String("error", err.Error()))
				WriteAuthError(w)
				return
			}

			if cfg.Cache != nil {
				if err := cfg.Cache.SetPrincipal(ctx, fingerprint, identity.Principal, identity.ExpiresAt); err != nil {
					cfg.Logger.Warn("failed to cache principal",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(ctx)),
					)
				}
			}

			cfg.Logger.Info("authentication successful",
				slog.String("uid", identity.Principal.UID),
				slog.String("ip", getClientIP(r)),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", false),
				slog.String("request_id", GetRequestID(ctx)),
			)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(ctx, identity.Principal)))
		})
	}
}

func logAuthFailure(logger *slog.Logger, r *http.Request, reason string, attrs ...any) {
	args := []any{
		slog.String("reason", reason),
		slog.String("ip", getClientIP(r)),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	}
	logger.Warn("authentication failed", append(args, attrs...)...)
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// WriteAuthError writes the 403 returned for every authentication failure.
// The same body is used for all causes.
func WriteAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"errorStatus":"Unauthorized","message":"User not logged in or not a valid user"}`))
}
