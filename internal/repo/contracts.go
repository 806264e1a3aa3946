package repo

import (
	"context"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/google/uuid"
)

type (
	ObjectStorage interface {
		Put(ctx context.Context, file dto.MediaFile, folder, entityID string) dto.UploadOutcome
		BulkPut(ctx context.Context, files []dto.MediaFile, folder, entityID string) []dto.UploadOutcome
		SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
		Delete(ctx context.Context, key string) error
	}

	CatalogRepo interface {
		Create(ctx context.Context, record *entity.CatalogRecord) error
		ExistsByExternalID(ctx context.Context, externalID string) (bool, error)
		GetByExternalID(ctx context.Context, externalID string) (*entity.CatalogRecord, error)
		InsertMedia(ctx context.Context, media []entity.MediaAsset) error
		UpdateStatus(ctx context.Context, id uuid.UUID, change entity.StatusChange, now time.Time) (bool, error)
		ListDue(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]entity.DueRecord, error)
		Delete(ctx context.Context, id uuid.UUID) error
	}

	CategoryRepo interface {
		Resolve(ctx context.Context, categoryID uuid.UUID, subcategoryID *uuid.UUID) error
	}

	OutboxRepo interface {
		Create(ctx context.Context, event *entity.OutboxEvent) error
		GetPendingEvents(ctx context.Context, maxRetries, limit int) ([]*entity.OutboxEvent, error)
		MarkAsProcessingBatch(ctx context.Context, IDs uuid.UUIDs) error
		MarkAsProcessedBatch(ctx context.Context, IDs uuid.UUIDs) error
		MarkMaxRetriesAsFailed(ctx context.Context, maxRetries int) error
		IncrementRetryCountBatch(ctx context.Context, IDs uuid.UUIDs) error
		DeleteOldProcessedAndFailed(ctx context.Context, olderThan time.Time) (int64, error)
	}

	Transactor interface {
		WithinTransaction(ctx context.Context, f func(ctx context.Context) error) error
	}
)
