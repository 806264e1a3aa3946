package v1

import (
	"github.com/andreyxaxa/catalog-ingest/internal/usecase"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

func NewCatalogRoutes(
	apiV1Group fiber.Router,
	ing usecase.IngestionUseCase,
	pub usecase.PublishingUseCase,
	cat usecase.CatalogUseCase,
	l logger.Interface,
	limits UploadLimits,
) {
	r := &V1{ing: ing, pub: pub, cat: cat, logger: l, limits: limits}

	catalogGroup := apiV1Group.Group("/catalog")
	{
		catalogGroup.Post("/bulk", r.bulkIngest)
		catalogGroup.Get("/:externalId", r.getRecord)
		catalogGroup.Get("/:externalId/media", r.getMedia)
		catalogGroup.Delete("/:externalId", r.deleteRecord)

		catalogGroup.Post("/:externalId/schedule", r.schedule)
		catalogGroup.Post("/:externalId/publish", r.publish)
		catalogGroup.Post("/:externalId/cancel", r.cancel)
	}
}
