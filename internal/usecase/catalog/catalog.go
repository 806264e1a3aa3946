package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/internal/repo"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
)

const (
	_defaultURLTTL          = 24 * time.Hour
	_defaultCacheSize       = 4096
	_defaultOutboxRetention = 24 * time.Hour
)

type Option func(*UseCase)

func SignedURLTTL(ttl time.Duration) Option {
	return func(uc *UseCase) {
		if ttl > 0 {
			uc.urlTTL = ttl
		}
	}
}

func CacheSize(size int) Option {
	return func(uc *UseCase) {
		if size > 0 {
			uc.cacheSize = size
		}
	}
}

func OutboxRetention(d time.Duration) Option {
	return func(uc *UseCase) {
		if d > 0 {
			uc.outboxRetention = d
		}
	}
}

// UseCase serves catalog reads and deletes, and the outbox bookkeeping used
// by the relay.
type UseCase struct {
	catalog repo.CatalogRepo
	outbox  repo.OutboxRepo
	storage repo.ObjectStorage
	logger  logger.Interface

	urlTTL          time.Duration
	cacheSize       int
	outboxRetention time.Duration
	urls            *urlCache
}

func New(
	catalog repo.CatalogRepo,
	outbox repo.OutboxRepo,
	storage repo.ObjectStorage,
	l logger.Interface,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		catalog:         catalog,
		outbox:          outbox,
		storage:         storage,
		logger:          l,
		urlTTL:          _defaultURLTTL,
		cacheSize:       _defaultCacheSize,
		outboxRetention: _defaultOutboxRetention,
	}

	for _, opt := range opts {
		opt(uc)
	}

	uc.urls = newURLCache(uc.cacheSize, uc.urlTTL)

	return uc
}

// Get returns the record with every media URL freshly signed.
func (uc *UseCase) Get(ctx context.Context, externalID string) (*entity.CatalogRecord, error) {
	record, err := uc.catalog.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("CatalogUseCase - Get - uc.catalog.GetByExternalID: %w", err)
	}

	err = uc.sign(ctx, record.Media)
	if err != nil {
		return nil, fmt.Errorf("CatalogUseCase - Get - uc.sign: %w", err)
	}

	return record, nil
}

// MediaURLs regenerates access URLs from stored object keys, in priority
// order.
func (uc *UseCase) MediaURLs(ctx context.Context, externalID string) ([]entity.MediaAsset, error) {
	record, err := uc.Get(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("CatalogUseCase - MediaURLs - uc.Get: %w", err)
	}

	return record.Media, nil
}

// Delete removes the record and then, best effort, its objects.
func (uc *UseCase) Delete(ctx context.Context, externalID string) error {
	// 1. object keys are needed before the row is gone
	record, err := uc.catalog.GetByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("CatalogUseCase - Delete - uc.catalog.GetByExternalID: %w", err)
	}

	// 2. media rows go with the record
	err = uc.catalog.Delete(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("CatalogUseCase - Delete - uc.catalog.Delete: %w", err)
	}

	// 3. objects; a leftover object is unreachable but harmless
	for _, m := range record.Media {
		uc.urls.forget(m.ObjectKey)

		err = uc.storage.Delete(ctx, m.ObjectKey)
		if err != nil {
			uc.logger.Warn("CatalogUseCase - Delete - failed to delete key=%s, error=%v", m.ObjectKey, err)
		}
	}

	return nil
}

func (uc *UseCase) sign(ctx context.Context, media []entity.MediaAsset) error {
	for i := range media {
		key := media[i].ObjectKey
		if url, ok := uc.urls.get(key); ok {
			media[i].URL = url
			continue
		}

		url, err := uc.storage.SignedURL(ctx, key, uc.urlTTL)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("%w: sign %s: %w", errs.ErrStorageTransport, key, err)
		}

		uc.urls.set(key, url)
		media[i].URL = url
	}

	return nil
}
