// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"profilehub/internal/config"
	"profilehub/internal/database"
	"profilehub/internal/jobs"
)

// Application wraps cartridge.Application with the profile service components
type Application struct {
	*cartridge.Application
	DBManager  *database.DBManager
	Components *Components
	Jobs       *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	return NewAppWithConfig(config.GetConfig())
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	comps, err := BuildComponents(cfg, dbManager.GetConnection(), logger)
	if err != nil {
		return nil, err
	}

	scheduler := jobs.NewScheduler(cfg, jobs.Deps{
		DB:       dbManager.GetConnection(),
		Profiles: comps.Profiles,
		Avatars:  comps.Avatars,
		Geo:      comps.Geo,
	}, logger)

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:       cfg,
		Logger:       logger,
		DBManager:    dbManager,
		ServerConfig: ServerConfig(),
		RouteMountFunc: func(srv *cartridge.Server) {
			MountRoutes(srv, comps)
		},
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Components:  comps,
		Jobs:        scheduler,
	}, nil
}

// ServerConfig is cartridge's default server with the Sec-Fetch-Site guard off.
// Native clients never send the header, and the guard runs before any route config.
func ServerConfig() *cartridge.ServerConfig {
	cfg := cartridge.DefaultServerConfig()
	cfg.EnableSecFetchSite = false
	return cfg
}
