// Package app provides application initialization and dependency wiring.
//
// App is the container that orchestrates the core components: the
// Genkit runtime, the database pool, the artifact and style stores,
// and the streaming ingestion pipeline.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-dev/atelier/internal/artifact"
	"github.com/atelier-dev/atelier/internal/backend"
	"github.com/atelier-dev/atelier/internal/config"
	"github.com/atelier-dev/atelier/internal/ingest"
	"github.com/atelier-dev/atelier/internal/run"
	"github.com/atelier-dev/atelier/internal/style"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit  *genkit.Genkit
	DBPool  *pgxpool.Pool
	Backend backend.Client

	// Domain components
	Artifacts  *artifact.Store
	Rerunner   *artifact.Rerunner
	Runs       *run.Tracker
	Styles     *style.Resolver
	Controller *ingest.Controller
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	return nil
}
