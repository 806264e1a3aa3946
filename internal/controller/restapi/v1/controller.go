package v1

import (
	"github.com/andreyxaxa/catalog-ingest/internal/usecase"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
)

// UploadLimits bound the multipart envelope of a bulk ingestion request.
type UploadLimits struct {
	MaxFileSize   int64
	MaxBatchBytes int64
}

type V1 struct {
	ing    usecase.IngestionUseCase
	pub    usecase.PublishingUseCase
	cat    usecase.CatalogUseCase
	logger logger.Interface
	limits UploadLimits
}
