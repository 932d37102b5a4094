package auth

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GoogleCertsURL publishes the x509 certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const (
	defaultCertsMaxAge = time.Hour
	certsFetchTimeout  = 10 * time.Second
)

// FirebaseVerifier validates Firebase ID tokens (RS256) for one project.
type FirebaseVerifier struct {
	projectID  string
	certsURL   string
	httpClient *http.Client
	logger     *slog.Logger
	parser     *jwt.Parser

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

// FirebaseOption configures a FirebaseVerifier.
type FirebaseOption func(*FirebaseVerifier)

// WithCertsURL overrides where signing certificates are fetched from.
func WithCertsURL(url string) FirebaseOption {
	return func(v *FirebaseVerifier) { v.certsURL = url }
}

// WithHTTPClient overrides the client used to fetch certificates.
func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(v *FirebaseVerifier) { v.httpClient = c }
}

// NewFirebaseVerifier creates a verifier for tokens minted for projectID.
func NewFirebaseVerifier(projectID string, logger *slog.Logger, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{
		projectID:  projectID,
		certsURL:   GoogleCertsURL,
		httpClient: &http.Client{Timeout: certsFetchTimeout},
		logger:     logger.With("component", "firebase_verifier"),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer("https://securetoken.google.com/"+projectID),
			jwt.WithAudience(projectID),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
		),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify implements Verifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	return parseClaims(v.parser, token, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		return v.publicKey(ctx, kid)
	})
}

// publicKey returns the key for kid, refreshing the certificate set when it
// is stale or does not know kid.
func (v *FirebaseVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Now().Before(v.expiresAt)
	v.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}

	if err := v.refresh(ctx); err != nil {
		if ok {
			v.logger.Warn("using stale signing keys", "error", err)
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	key, ok = v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return key, nil
}

func (v *FirebaseVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return fmt.Errorf("build certs request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch certs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch certs: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read certs: %w", err)
	}

	keys, err := parseCertificates(body)
	if err != nil {
		return err
	}

	v.mu.Lock()
	v.keys = keys
	v.expiresAt = time.Now().Add(maxAge(resp.Header.Get("Cache-Control")))
	v.mu.Unlock()

	v.logger.Debug("refreshed signing keys", "count", len(keys))
	return nil
}

// parseCertificates decodes the {kid: PEM certificate} document.
func parseCertificates(body []byte) (map[string]*rsa.PublicKey, error) {
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(raw))
	for kid, certPEM := range raw {
		block, _ := pem.Decode([]byte(certPEM))
		if block == nil {
			return nil, fmt.Errorf("cert %q: no PEM block", kid)
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("cert %q: %w", kid, err)
		}
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("cert %q: not an RSA key", kid)
		}
		keys[kid] = pub
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("certs document is empty")
	}
	return keys, nil
}

// maxAge extracts max-age from a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		directive = strings.TrimSpace(directive)
		if !strings.HasPrefix(directive, "max-age=") {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age="))
		if err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultCertsMaxAge
}
