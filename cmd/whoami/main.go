// Command whoami resolves the cached session against the identity provider
// and reports who the credentials belong to and where the route gates would
// send them. Useful for debugging a stuck or stale credential cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tradeboard.org/internal/config"
	"tradeboard.org/internal/credstore"
	"tradeboard.org/internal/gate"
	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/session"
	"tradeboard.org/internal/store/pg"
)

func main() {
	cachePath := flag.String("cache", defaultCachePath(), "encrypted credential cache file")
	passphrase := flag.String("passphrase", os.Getenv("TRADEBOARD_CACHE_PASSPHRASE"), "cache passphrase")
	timeout := flag.Duration("timeout", 15*time.Second, "resolution deadline")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Identity.BaseURL == "" {
		log.Fatal("config: TRADEBOARD_IDP_URL is required")
	}
	if cfg.Database.DSN == "" {
		log.Fatal("config: TRADEBOARD_PG_DSN is required")
	}
	if *passphrase == "" {
		log.Fatal("a cache passphrase is required (flag or TRADEBOARD_CACHE_PASSPHRASE)")
	}

	provider, err := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.ServiceKey,
		identity.WithRequestTimeout(cfg.Identity.RequestTimeout))
	if err != nil {
		log.Fatalf("identity client: %v", err)
	}
	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	cache, err := credstore.New(*cachePath, *passphrase)
	if err != nil {
		log.Fatalf("credential cache: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	boot := session.New(provider, store, cache, identity.NewBus())
	go boot.Run(ctx)

	select {
	case <-boot.Resolved():
	case <-ctx.Done():
		log.Fatal("timed out waiting for session resolution")
	}
	cancel()

	snap := boot.Current()
	if !snap.Authenticated() {
		fmt.Println("signed out")
		fmt.Println("admin gate:", describe(gate.Admin(snap)))
		fmt.Println("user gate: ", describe(gate.User(snap)))
		return
	}

	fmt.Println("user:", snap.Identity.Email)
	if snap.Profile != nil {
		fmt.Println("role:", snap.Profile.Role)
	} else {
		fmt.Println("role: (no profile yet)")
	}
	fmt.Println("admin gate:", describe(gate.Admin(snap)))
	fmt.Println("user gate: ", describe(gate.User(snap)))
}

func describe(d gate.Decision) string {
	switch d.Kind {
	case gate.Allow:
		return "allow"
	case gate.Redirect:
		return "redirect to " + d.Target
	default:
		return "defer"
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tradeboard-auth"
	}
	return filepath.Join(home, ".tradeboard", "auth-cache")
}
