package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/heylo/heylo/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestContext_PrincipalRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if PrincipalFromContext(ctx) != nil || UIDFromContext(ctx) != "" {
		t.Fatal("empty context should carry no principal")
	}

	ctx = ContextWithPrincipal(ctx, &model.Principal{UID: "u1"})
	if got := UIDFromContext(ctx); got != "u1" {
		t.Errorf("UIDFromContext = %q, want u1", got)
	}
}

func TestHMACVerifier(t *testing.T) {
	t.Parallel()

	v, err := NewHMACVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}

	principal := &model.Principal{UID: "user-1", Email: "u@example.com", DisplayName: "U", EmailVerified: true}
	valid, err := IssueHMACToken(testSecret, "", principal, time.Hour)
	if err != nil {
		t.Fatalf("IssueHMACToken: %v", err)
	}
	expired, _ := IssueHMACToken(testSecret, "", principal, -time.Minute)
	otherSecret, _ := IssueHMACToken([]byte("ffffffffffffffffffffffffffffffff"), "", principal, time.Hour)
	otherIssuer, _ := IssueHMACToken(testSecret, "someone-else", principal, time.Hour)
	noSubject, _ := IssueHMACToken(testSecret, "", &model.Principal{}, time.Hour)
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"valid", valid, nil},
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"no subject", noSubject, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Verify() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if id.Principal.UID != "user-1" || id.Principal.Email != "u@example.com" || !id.Principal.EmailVerified {
				t.Errorf("unexpected principal: %+v", id.Principal)
			}
			if time.Until(id.ExpiresAt) <= 0 {
				t.Error("ExpiresAt should be in the future")
			}
		})
	}
}

func TestNewHMACVerifier_ShortSecret(t *testing.T) {
	t.Parallel()

	if _, err := NewHMACVerifier([]byte("short"), ""); err == nil {
		t.Fatal("expected error for short secret")
	}
}

type certServer struct {
	*httptest.Server
	key  *rsa.PrivateKey
	kid  string
	hits atomic.Int32
}

func newCertServer(t *testing.T) *certServer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "securetoken"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	cs := &certServer{key: key, kid: "kid-1"}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.hits.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=600")
		_ = json.NewEncoder(w).Encode(map[string]string{cs.kid: string(certPEM)})
	}))
	t.Cleanup(cs.Close)
	return cs
}

func (cs *certServer) sign(t *testing.T, kid string, claims Claims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(cs.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func firebaseClaims(project, sub string, exp time.Duration) Claims {
	now := time.Now()
	return Claims{
		Email: "fb@example.com",
		Name:  "Fire Base",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://securetoken.google.com/" + project,
			Audience:  jwt.ClaimStrings{project},
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(exp)),
		},
	}
}

func TestFirebaseVerifier(t *testing.T) {
	cs := newCertServer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := NewFirebaseVerifier("heylo-test", logger, WithCertsURL(cs.URL))
	ctx := context.Background()

	valid := cs.sign(t, cs.kid, firebaseClaims("heylo-test", "fb-uid", time.Hour))
	id, err := v.Verify(ctx, valid)
	if err != nil {
		t.Fatalf("Verify(valid) error = %v", err)
	}
	if id.Principal.UID != "fb-uid" || id.Principal.DisplayName != "Fire Base" {
		t.Errorf("unexpected principal: %+v", id.Principal)
	}

	// Second verification is served from the cached key set.
	if _, err := v.Verify(ctx, valid); err != nil {
		t.Fatalf("Verify(valid) again error = %v", err)
	}
	if got := cs.hits.Load(); got != 1 {
		t.Errorf("cert fetches = %d, want 1", got)
	}

	rejects := map[string]string{
		"wrong audience": cs.sign(t, cs.kid, firebaseClaims("other-project", "fb-uid", time.Hour)),
		"expired":        cs.sign(t, cs.kid, firebaseClaims("heylo-test", "fb-uid", -time.Minute)),
		"unknown kid":    cs.sign(t, "kid-2", firebaseClaims("heylo-test", "fb-uid", time.Hour)),
		"no kid":         cs.sign(t, "", firebaseClaims("heylo-test", "fb-uid", time.Hour)),
		"hmac token":     mustHMAC(t),
	}
	for name, token := range rejects {
		if _, err := v.Verify(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: error = %v, want ErrInvalidToken", name, err)
		}
	}
}

func mustHMAC(t *testing.T) string {
	t.Helper()
	token, err := IssueHMACToken(testSecret, "", &model.Principal{UID: "fb-uid"}, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func TestMaxAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=19302, must-revalidate, no-transform", 19302 * time.Second},
		{"max-age=60", time.Minute},
		{"no-cache", defaultCertsMaxAge},
		{"max-age=abc", defaultCertsMaxAge},
		{"", defaultCertsMaxAge},
	}
	for _, tt := range tests {
		if got := maxAge(tt.header); got != tt.want {
			t.Errorf("maxAge(%q) = %v, want %v", tt.header, got, tt.want)
		}
	}
}

func TestTokenFingerprint(t *testing.T) {
	t.Parallel()

	a := TokenFingerprint([]byte("key"), "token-a")
	if a != TokenFingerprint([]byte("key"), "token-a") {
		t.Error("fingerprint should be deterministic")
	}
	if a == TokenFingerprint([]byte("key"), "token-b") {
		t.Error("different tokens should differ")
	}
	if a == TokenFingerprint([]byte("other"), "token-a") {
		t.Error("different keys should differ")
	}
	if len(a) != 32 {
		t.Errorf("fingerprint length = %d, want 32", len(a))
	}

	long := make([]byte, 100)
	if got := TokenFingerprint(long, "token-a"); len(got) != 32 {
		t.Errorf("long-key fingerprint length = %d", len(got))
	}
	if got := TokenFingerprint(nil, "token-a"); len(got) != 32 {
		t.Errorf("unkeyed fingerprint length = %d", len(got))
	}
}
