// Command gen-token mints a Bearer token for the issuance endpoints, for
// local development and scripting.
//
//	go run ./cmd/gen-token -user <user-id> -email <email> [-expiry 24h]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"inviteservice/config"
	"inviteservice/internal/adapters/auth"
)

func main() {
	userID := flag.String("user", "", "user ID to embed as the token subject")
	email := flag.String("email", "", "email claim")
	expiry := flag.Duration("expiry", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "missing -user")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}

	token, err := auth.NewJWTIssuer(cfg.JWTSecret).Issue(*userID, *email, *expiry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
