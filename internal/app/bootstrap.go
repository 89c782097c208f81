package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"supplydash/internal/config"
	"supplydash/pkg/logging"
)

// Application bootstraps and runs the supplydash server.
//
// Initialization happens in two phases:
//  1. Bootstrap: load configuration, initialize logging, build services
//  2. Execution: serve HTTP until the context is cancelled
//
// Example usage:
//
//	app, err := app.NewApplication(app.NewConfig(false, false, ""))
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer app.Close()
//	return app.Run(ctx)
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration, configures logging and initializes
// every service. When cfg.Settings is already populated the configuration
// file is not read.
func NewApplication(cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stdout
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(appLogLevel, logOutput)

	if cfg.Settings == nil {
		settings, err := config.LoadConfig(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration")
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Settings = &settings
		logging.Info("Bootstrap", "Loaded configuration")
	}

	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}

	// The file may ask for a different level or JSON output for the server.
	if !cfg.Debug {
		appLogLevel = logging.ParseLevel(cfg.Settings.Logging.Level)
	}
	logging.Init(appLogLevel, logging.Format(cfg.Settings.Logging.Format), logOutput)

	services, err := InitializeServices(context.Background(), cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services returns the initialized services.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves HTTP and watches the token store until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	return a.services.Run(ctx)
}

// Close releases resources held by the services.
func (a *Application) Close() {
	a.services.Close()
}
