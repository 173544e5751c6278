// Package main mints bearer tokens for local development against a server
// sharing the same JWT_SECRET and JWT_ISSUER.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	httpapi "github.com/groupbuy-hub/groupbuy-hub/internal/api/http"
	"github.com/groupbuy-hub/groupbuy-hub/internal/config"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/user"
)

func main() {
	var (
		role     string
		subject  string
		ttl      time.Duration
		complete bool
	)
	flag.StringVar(&role, "role", string(user.RoleBuyer), "actor role (BUYER, SELLER, ADMIN)")
	flag.StringVar(&subject, "user", "", "user id (default: random)")
	flag.DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	flag.BoolVar(&complete, "profile-complete", true, "mark the profile as complete")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail(err)
	}
	r, err := user.ParseRole(role)
	if err != nil {
		fail(err)
	}
	id := uuid.New()
	if subject != "" {
		if id, err = uuid.Parse(subject); err != nil {
			fail(fmt.Errorf("invalid user id: %w", err))
		}
	}

	auth := httpapi.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer)
	tok, err := auth.Issue(user.Actor{UserID: id, Role: r, ProfileComplete: complete}, ttl)
	if err != nil {
		fail(err)
	}
	fmt.Fprintf(os.Stderr, "user %s role %s\n", id, r)
	fmt.Println(tok)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
