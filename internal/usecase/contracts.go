package usecase

import (
	"context"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
)

type (
	IngestionUseCase interface {
		Ingest(ctx context.Context, items []dto.ManifestItem, files []dto.MediaFile) dto.IngestionReport
	}

	PublishingUseCase interface {
		Schedule(ctx context.Context, externalID string, req dto.ScheduleRequest) (*entity.CatalogRecord, error)
		Publish(ctx context.Context, externalID string) (*entity.CatalogRecord, error)
		Cancel(ctx context.Context, externalID string) (*entity.CatalogRecord, error)
		Execute(ctx context.Context, cmd dto.ScheduleCommand) error
		Sweep(ctx context.Context) (dto.SweepResult, error)
	}

	CatalogUseCase interface {
		Get(ctx context.Context, externalID string) (*entity.CatalogRecord, error)
		MediaURLs(ctx context.Context, externalID string) ([]entity.MediaAsset, error)
		Delete(ctx context.Context, externalID string) error
		GetPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error)
		MarkAsProcessingBatch(ctx context.Context, events []*entity.OutboxEvent) error
		MarkAsProcessedBatch(ctx context.Context, events []*entity.OutboxEvent) error
		IncrementRetryCountBatch(ctx context.Context, events []*entity.OutboxEvent) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		CleanupOutbox(ctx context.Context) error
	}
)
