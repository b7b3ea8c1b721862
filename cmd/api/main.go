package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tradeboard.org/internal/audit"
	"tradeboard.org/internal/config"
	"tradeboard.org/internal/httpapi"
	"tradeboard.org/internal/identity"
	"tradeboard.org/internal/obs"
	"tradeboard.org/internal/store/pg"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Identity.BaseURL == "" {
		log.Fatal("config: TRADEBOARD_IDP_URL is required for the API server")
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)

	if cfg.Database.DSN == "" {
		log.Fatal("config: TRADEBOARD_PG_DSN is required")
	}
	store, err := pg.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	clientOpts := []identity.ClientOption{
		identity.WithRequestTimeout(cfg.Identity.RequestTimeout),
	}
	if cfg.Identity.JWTSecret != "" {
		verifier, err := identity.NewTokenVerifier(cfg.Identity.JWTSecret)
		if err != nil {
			log.Fatalf("token verifier: %v", err)
		}
		clientOpts = append(clientOpts, identity.WithTokenVerifier(verifier))
	}
	provider, err := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.ServiceKey, clientOpts...)
	if err != nil {
		log.Fatalf("identity client: %v", err)
	}

	emitter := audit.NewEmitter(store)

	api := httpapi.New(provider, store, emitter, httpapi.ReadyProbe{Pinger: store}, version,
		httpapi.WithSiteURL(cfg.SiteURL),
		httpapi.WithWebhookSecret(cfg.Webhook.SigningSecret),
		httpapi.WithRateLimit(cfg.HTTP.RateBurst, cfg.HTTP.RatePerSecond),
	)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	log.Printf("starting tradeboard-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)

	// Let in-flight audit appends settle before the pool closes.
	emitter.Wait()
	log.Println("stopped")
}
