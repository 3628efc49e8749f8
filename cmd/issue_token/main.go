package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"noticeboard/internal/auth"
	"noticeboard/internal/config"
)

// issue_token prints an operator token signed with AUTH_SECRET.
func main() {
	subject := flag.String("subject", "operator", "who the token is issued to")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.AuthSecret == "" {
		slog.Error("AUTH_SECRET is not set; the API accepts unauthenticated requests")
		os.Exit(1)
	}

	token, err := auth.IssueToken([]byte(cfg.AuthSecret), *subject, *ttl)
	if err != nil {
		slog.Error("failed to sign token", slog.String("error", err.Error()))
		os.Exit(1)
	}
	fmt.Println(token)
}
