// cmd/gentoken/main.go: mints a bearer token for local testing.
// Uso: go run ./cmd/gentoken -role gerente -name "Ana" -id op-1
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"imperio/internal/config"
	"imperio/internal/middleware"
)

func main() {
	role := flag.String("role", middleware.RoleCashier, "caixa | gerente | agente")
	name := flag.String("name", "Operador Demo", "operator display name")
	id := flag.String("id", "demo", "operator id")
	ttl := flag.Duration("ttl", 0, "token lifetime (default JWT_EXPIRATION_HOURS)")
	flag.Parse()

	switch *role {
	case middleware.RoleCashier, middleware.RoleManager, middleware.RoleAgent:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is not set")
		os.Exit(1)
	}
	if *ttl == 0 {
		*ttl = time.Duration(cfg.JWTExpirationHours) * time.Hour
	}

	token, err := middleware.IssueToken(cfg.JWTSecret, *id, *name, *role, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign:", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
