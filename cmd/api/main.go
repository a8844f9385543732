package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relaycrm.org/internal/auth"
	"relaycrm.org/internal/crm"
	"relaycrm.org/internal/httpapi"
	"relaycrm.org/internal/obs"
	"relaycrm.org/internal/scope"
	"relaycrm.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	dsn := os.Getenv("RELAY_PG_DSN")
	if dsn == "" {
		log.Fatal("missing DSN: set RELAY_PG_DSN")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	users := store.Users()
	resolver, err := scope.NewResolver(users, scope.WithReporter(
		func(identityID string, res scope.Resource, act scope.Action, problem string) {
			obs.CountScopeConfigError()
			log.Printf("scope config problem for %s on %s/%s: %s", identityID, res, act, problem)
		}))
	if err != nil {
		log.Fatalf("build resolver: %v", err)
	}
	quota, err := scope.NewQuotaEnforcer(users, users)
	if err != nil {
		log.Fatalf("build quota enforcer: %v", err)
	}

	svc, err := crm.NewService(crm.Config{
		Leads:          store.Leads(),
		Customers:      store.Customers(),
		Communications: store.Communications(),
		Renewals:       store.Renewals(),
		Users:          users,
		Resolver:       resolver,
		Quota:          quota,
		HashPassword:   auth.HashPassword,
		VerifyPassword: auth.VerifyPassword,
	})
	if err != nil {
		log.Fatalf("build service: %v", err)
	}

	api := httpapi.New(svc, httpapi.ReadyProbe{DB: store.DB()}, version)

	addr := os.Getenv("RELAY_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting relaycrm-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
