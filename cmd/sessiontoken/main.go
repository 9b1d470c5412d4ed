// Command sessiontoken mints a self-hosted-mode session token for a tenant,
// signed with SESSION_JWT_SECRET. Operators who front the gateway with their
// own login (spec.md §4.8 step 5's self-hosted fallback, internal/middleware
// APIKeyAuth's sessionKey path) use this instead of provisioning a per-tenant
// API key row.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nordicledger/accounting-gateway/internal/appwiring"
	"github.com/nordicledger/accounting-gateway/internal/middleware"
)

func main() {
	tenantID := flag.String("tenant", "", "tenant id to embed in the session token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token validity duration")
	flag.Parse()

	if *tenantID == "" {
		fmt.Fprintln(os.Stderr, "usage: sessiontoken -tenant <id> [-ttl 24h]")
		os.Exit(2)
	}

	secret := os.Getenv("SESSION_JWT_SECRET")
	signingKey, err := appwiring.DecodeSessionJWTSecret(secret)
	if err != nil {
		log.Fatalf("decode session jwt secret: %v", err)
	}
	if signingKey == nil {
		log.Fatal("SESSION_JWT_SECRET not set")
	}

	token, err := middleware.IssueSessionToken(signingKey, *tenantID, *ttl)
	if err != nil {
		log.Fatalf("issue session token: %v", err)
	}
	fmt.Println(token)
}
