// Command profilehub serves the profile API.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profilehub/internal"
	"profilehub/internal/config"
)

const shutdownGrace = 30 * time.Second

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply schema migrations and exit")
	flag.Parse()

	cfg := config.GetConfig()
	app, err := internal.NewAppWithConfig(cfg)
	if err != nil {
		log.Fatalf("profilehub: %v", err)
	}

	if err := app.DBManager.MigrateDatabase(); err != nil {
		log.Fatalf("profilehub: migrate: %v", err)
	}
	if *migrateOnly {
		log.Println("Schema is up to date")
		closeComponents(app)
		return
	}

	if err := app.StartAsync(); err != nil {
		log.Fatalf("profilehub: start: %v", err)
	}
	log.Printf("profilehub listening on :%s (%s, avatars in %s)", cfg.AppPort, cfg.Environment, cfg.AvatarDirectory())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	log.Println("Shutting down, draining requests and background jobs")
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
		closeComponents(app)
		os.Exit(1)
	}
	closeComponents(app)
	log.Println("Stopped")
}

// closeComponents flushes the audit log and releases the GeoLite reader.
func closeComponents(app *internal.Application) {
	if err := app.Components.Close(); err != nil {
		log.Printf("Error releasing resources: %v", err)
	}
}
