// Package app wires the covid19datasets binaries together. A Runtime holds
// the ambient stack (configuration, logger, OpenTelemetry providers and
// pipeline instruments); a Pipeline holds the source adapters, the combined
// dataset and the excess mortality providers built from it; an Application
// serves the pipeline over HTTP and manages its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, file and environment
//	2. Initialize logging and observability (NewRuntime)
//	3. Create the fetcher, source adapters and dataset (Runtime.NewPipeline)
//	4. Set up HTTP handlers and middleware (NewApplication)
//	5. Start the server, optionally building the table in the background
//	6. Shut down gracefully on SIGINT or SIGTERM
//
// # Usage
//
//	cfg, err := config.Load(path)
//	...
//	application, err := app.NewApplication(cfg)
//	...
//	if err := application.Run(); err != nil {
//	    ...
//	}
package app
