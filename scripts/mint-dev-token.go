// mint-dev-token prints a bearer token accepted by the API when it runs
// with AUTH_MODE=hmac.
//
//	go run scripts/mint-dev-token.go -uid alice -email alice@example.com
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/heylo/heylo/internal/auth"
	"github.com/heylo/heylo/internal/model"
)

type output struct {
	UID       string    `json:"uid"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func main() {
	var (
		secret      = flag.String("secret", os.Getenv("AUTH_HMAC_SECRET"), "HMAC secret (at least 32 bytes)")
		issuer      = flag.String("issuer", envOr("AUTH_HMAC_ISSUER", auth.DefaultDevIssuer), "Token issuer")
		uid         = flag.String("uid", "dev-user", "Subject uid")
		email       = flag.String("email", "dev@heylo.local", "Email claim")
		displayName = flag.String("name", "Dev User", "Display name claim")
		ttl         = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if len(*secret) < 32 {
		fmt.Fprintln(os.Stderr, "AUTH_HMAC_SECRET (or -secret) must be at least 32 bytes")
		os.Exit(1)
	}

	principal := &model.Principal{
		UID:           *uid,
		Email:         *email,
		DisplayName:   *displayName,
		EmailVerified: true,
	}
	token, err := auth.IssueHMACToken([]byte(*secret), *issuer, principal, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		os.Exit(1)
	}

	if *format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(output{UID: *uid, Token: token, ExpiresAt: time.Now().Add(*ttl).UTC()})
		return
	}
	fmt.Println(token)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
