// Package app assembles the supplydash server from its configuration.
//
// # Bootstrap
//
// NewApplication performs the startup sequence:
//
//  1. Configure logging from the debug and silent flags
//  2. Load the YAML configuration, .env file and environment overrides
//  3. Validate the result, reporting every problem at once
//  4. Build the services in dependency order (see Services)
//
// Run then serves HTTP until the context is cancelled. Services.Close stops
// the guest token cache janitor and closes the database pool.
//
// # Usage
//
//	application, err := app.NewApplication(app.NewConfig(debug, false, configPath))
//	if err != nil {
//	    return err
//	}
//	defer application.Close()
//	return application.Run(ctx)
//
// Tests and embedding callers can skip file loading by populating
// Config.Settings before calling NewApplication.
package app
