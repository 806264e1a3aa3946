package restapi

import (
	"github.com/andreyxaxa/catalog-ingest/config"
	v1 "github.com/andreyxaxa/catalog-ingest/internal/controller/restapi/v1"
	"github.com/andreyxaxa/catalog-ingest/internal/usecase"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// @title Catalog ingest
// @version 1.0.0
// @host localhost:8080
// @BasePath /v1
func NewRouter(
	app *fiber.App,
	cfg *config.Config,
	ing usecase.IngestionUseCase,
	pub usecase.PublishingUseCase,
	cat usecase.CatalogUseCase,
	l logger.Interface,
) {
	// Prometheus metrics
	if cfg.Metrics.Enabled {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// Swagger
	if cfg.Swagger.Enabled {
		app.Get("/swagger/*", swagger.HandlerDefault)
	}

	// Routers
	apiV1Group := app.Group("/v1")
	{
		v1.NewCatalogRoutes(apiV1Group, ing, pub, cat, l, v1.UploadLimits{
			MaxFileSize:   cfg.Ingestion.MaxFileSize,
			MaxBatchBytes: cfg.Ingestion.MaxBatchBytes,
		})
	}
}
