// Package app contains the application setup for the checkout service.
package app

import (
	"log/slog"
	"net/http"

	"github.com/abgdnv/gopos/internal/config"
	"github.com/abgdnv/gopos/internal/service"
	"github.com/abgdnv/gopos/internal/session"
	"github.com/abgdnv/gopos/internal/store"
	"github.com/abgdnv/gopos/internal/transport/rest"
	"github.com/abgdnv/gopos/pkg/messaging"
	"github.com/abgdnv/gopos/pkg/server"
	"github.com/go-chi/chi/v5"
)

const serviceName = "checkout-service"

type Dependencies struct {
	CheckoutService service.CheckoutService
	Logger          *slog.Logger
}

func SetupDependencies(inventory store.InventoryStore, sessions session.Repository, publisher messaging.Publisher, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		CheckoutService: service.NewService(sessions, inventory, publisher, logger),
		Logger:          logger,
	}
}

// SetupHttpHandler builds the router with middleware and all routes.
// Used by end-to-end tests to exercise the service without a listener.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return mux
}

func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	rest.NewHandler(deps.CheckoutService, deps.Logger).RegisterRoutes(mux)
}

// SetupHttpServer creates and configures the HTTP server of the checkout service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}
	return server.NewHTTPServer(httpCfg, serviceName, SetupHttpHandler(deps))
}
