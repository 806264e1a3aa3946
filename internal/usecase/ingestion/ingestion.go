package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/internal/repo"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

const (
	_defaultFolder      = "products"
	_defaultItemTimeout = 2 * time.Minute
	_rollbackTimeout    = 30 * time.Second
)

var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingestion_items_total",
		Help: "Processed manifest items by outcome and failure kind.",
	}, []string{"outcome", "kind"})

	itemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_ingestion_item_duration_seconds",
		Help:    "Wall time of one manifest item.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	rollbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ingestion_rollbacks_total",
		Help: "Items whose created record was rolled back.",
	})
)

type Option func(*UseCase)

func Workers(n int) Option {
	return func(uc *UseCase) {
		if n > 0 {
			uc.workers = n
		}
	}
}

func ItemTimeout(timeout time.Duration) Option {
	return func(uc *UseCase) {
		if timeout > 0 {
			uc.itemTimeout = timeout
		}
	}
}

func Folder(folder string) Option {
	return func(uc *UseCase) {
		if folder != "" {
			uc.folder = folder
		}
	}
}

func RequirePrimary(required bool) Option {
	return func(uc *UseCase) {
		uc.requirePrimary = required
	}
}

// Location is where scheduledDate/scheduledTime are interpreted.
func Location(loc *time.Location) Option {
	return func(uc *UseCase) {
		if loc != nil {
			uc.location = loc
		}
	}
}

func Clock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// UseCase ingests manifest batches. Items are independent: each one either
// ends with a record and all of its media, or leaves nothing behind.
type UseCase struct {
	catalog    repo.CatalogRepo
	categories repo.CategoryRepo
	outbox     repo.OutboxRepo
	storage    repo.ObjectStorage
	transactor repo.Transactor
	logger     logger.Interface

	workers        int
	itemTimeout    time.Duration
	folder         string
	requirePrimary bool
	location       *time.Location
	now            func() time.Time
}

func New(
	catalog repo.CatalogRepo,
	categories repo.CategoryRepo,
	outbox repo.OutboxRepo,
	storage repo.ObjectStorage,
	transactor repo.Transactor,
	l logger.Interface,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		catalog:        catalog,
		categories:     categories,
		outbox:         outbox,
		storage:        storage,
		transactor:     transactor,
		logger:         l,
		workers:        runtime.NumCPU(),
		itemTimeout:    _defaultItemTimeout,
		folder:         _defaultFolder,
		requirePrimary: true,
		location:       time.UTC,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

type itemResult struct {
	ok     *dto.IngestedItem
	failed *ItemError
}

// Ingest processes every item on a bounded pool and reports each one. It
// never fails as a whole.
func (uc *UseCase) Ingest(ctx context.Context, items []dto.ManifestItem, files []dto.MediaFile) dto.IngestionReport {
	pool := newFilePool(files)
	results := make([]itemResult, len(items))
	seen := make(map[string]struct{}, len(items))

	// no errgroup.WithContext: a failed item must not cancel its siblings
	g := new(errgroup.Group)
	g.SetLimit(uc.workers)

	for i, item := range items {
		externalID := strings.TrimSpace(item.ProductID)
		key := externalIDKey(externalID)

		if key != "" {
			if _, dup := seen[key]; dup {
				results[i] = itemResult{failed: newItemError(
					KindDuplicate,
					fmt.Sprintf("productId %s appears more than once in the batch", externalID),
					errs.ErrDuplicate,
				)}
				itemsTotal.WithLabelValues("failed", KindDuplicate).Inc()
				continue
			}
			seen[key] = struct{}{}
		}

		matched := pool.take(externalID)

		g.Go(func() error {
			results[i] = uc.runItem(ctx, item, matched)
			return nil
		})
	}

	_ = g.Wait()

	report := dto.IngestionReport{
		Successful:   make([]dto.IngestedItem, 0, len(items)),
		Failed:       make([]dto.FailedItem, 0),
		SkippedFiles: pool.leftovers(),
	}

	for i, res := range results {
		if res.failed != nil {
			report.Failed = append(report.Failed, dto.FailedItem{
				ExternalID: strings.TrimSpace(items[i].ProductID),
				Error:      res.failed.Msg,
				Kind:       res.failed.Kind,
			})
			continue
		}
		report.Successful = append(report.Successful, *res.ok)
	}

	uc.logger.Info("IngestionUseCase - Ingest - items=%d successful=%d failed=%d skipped_files=%d",
		len(items), len(report.Successful), len(report.Failed), len(report.SkippedFiles))

	return report
}

func (uc *UseCase) runItem(ctx context.Context, item dto.ManifestItem, files []pooledFile) (res itemResult) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, uc.itemTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			uc.logger.Error(err, "IngestionUseCase - runItem - productId=%s", item.ProductID)
			res = itemResult{failed: newItemError(KindInternal, "internal error", err)}
		}

		itemDuration.Observe(time.Since(start).Seconds())
		if res.failed != nil {
			itemsTotal.WithLabelValues("failed", res.failed.Kind).Inc()
		} else {
			itemsTotal.WithLabelValues("successful", "").Inc()
		}
	}()

	ingested, err := uc.processItem(ctx, item, files)
	if err != nil {
		itemErr := classify(err)
		switch itemErr.Kind {
		case KindValidation, KindDuplicate, KindReference, KindNoPrimary:
			uc.logger.Debug("IngestionUseCase - runItem - productId=%s rejected: %s", item.ProductID, itemErr.Msg)
		default:
			uc.logger.Error(err, "IngestionUseCase - runItem - productId=%s", item.ProductID)
		}

		return itemResult{failed: itemErr}
	}

	return itemResult{ok: ingested}
}

// processItem runs the per-item pipeline. Once the draft record exists any
// failure, panics included, goes through rollback.
func (uc *UseCase) processItem(ctx context.Context, item dto.ManifestItem, files []pooledFile) (*dto.IngestedItem, error) {
	// 1. validate and normalize
	spec, err := normalize(item, uc.location)
	if err != nil {
		return nil, err
	}
	if spec.schedule != nil && !spec.schedule.PublishAt.After(uc.now()) {
		return nil, validationf("publishAt %s is not in the future", spec.schedule.PublishAt.Format(time.RFC3339))
	}

	// 2. duplicates are failures, never overwrites
	exists, err := uc.catalog.ExistsByExternalID(ctx, spec.externalID)
	if err != nil {
		return nil, fmt.Errorf("IngestionUseCase - processItem - uc.catalog.ExistsByExternalID: %w", err)
	}
	if exists {
		return nil, newItemError(KindDuplicate, fmt.Sprintf("productId %s already exists", spec.externalID), errs.ErrDuplicate)
	}

	// 3. category references
	err = uc.categories.Resolve(ctx, spec.categoryID, spec.subcategoryID)
	if err != nil {
		if errors.Is(err, errs.ErrReference) {
			return nil, newItemError(KindReference, err.Error(), err)
		}
		return nil, fmt.Errorf("IngestionUseCase - processItem - uc.categories.Resolve: %w", err)
	}

	// 4. pick media; pure, so it runs before anything is written. A record
	// that is going to be published needs a primary regardless of policy.
	selected, err := selectMedia(spec.externalID, files, uc.requirePrimary || spec.schedule != nil)
	if err != nil {
		return nil, err
	}

	// 5. draft record
	now := uc.now()
	record := &entity.CatalogRecord{
		ID:            uuid.New(),
		ExternalID:    spec.externalID,
		Name:          spec.name,
		Description:   spec.description,
		CategoryID:    spec.categoryID,
		SubcategoryID: spec.subcategoryID,
		Attributes:    spec.attributes,
		Status:        entity.Draft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = uc.catalog.Create(ctx, record)
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrDuplicate):
			return nil, newItemError(KindDuplicate, fmt.Sprintf("productId %s already exists", spec.externalID), err)
		case errors.Is(err, errs.ErrReference):
			return nil, newItemError(KindReference, "category references changed while ingesting", err)
		}
		return nil, fmt.Errorf("IngestionUseCase - processItem - uc.catalog.Create: %w", err)
	}

	var uploaded []string
	committed := false
	defer func() {
		if !committed {
			uc.rollback(ctx, record, uploaded)
		}
	}()

	// 6. upload, all or nothing
	outcomes := uc.storage.BulkPut(ctx, mediaFiles(selected), uc.folder, record.ID.String())
	for _, o := range outcomes {
		if o.OK() {
			uploaded = append(uploaded, o.ObjectKey)
		}
	}
	if err := uploadFailure(spec.externalID, outcomes); err != nil {
		return nil, err
	}

	// 7. attach media, final status and the created event in one transaction
	record.Media = buildAssets(record.ID, selected, outcomes, now)
	var change *entity.StatusChange
	if spec.schedule != nil {
		c := spec.schedule.ToScheduled()
		change = &c
	}

	err = uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.catalog.InsertMedia(ctx, record.Media); err != nil {
			return fmt.Errorf("IngestionUseCase - processItem - uc.catalog.InsertMedia: %w", err)
		}

		if change != nil {
			ok, err := uc.catalog.UpdateStatus(ctx, record.ID, *change, now)
			if err != nil {
				return fmt.Errorf("IngestionUseCase - processItem - uc.catalog.UpdateStatus: %w", err)
			}
			if !ok {
				return fmt.Errorf("IngestionUseCase - processItem - uc.catalog.UpdateStatus: %w", errs.ErrRecordNotFound)
			}
		}

		event, err := uc.createdEvent(record, change, now)
		if err != nil {
			return fmt.Errorf("IngestionUseCase - processItem - uc.createdEvent: %w", err)
		}
		if err := uc.outbox.Create(ctx, event); err != nil {
			return fmt.Errorf("IngestionUseCase - processItem - uc.outbox.Create: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("IngestionUseCase - processItem - uc.transactor.WithinTransaction: %w", err)
	}
	committed = true

	if change != nil {
		change.Apply(record)
	}

	return ingestedItem(record), nil
}

// rollback undoes a created record: objects first, then the row. Errors are
// logged only, the item is already reported as failed.
func (uc *UseCase) rollback(ctx context.Context, record *entity.CatalogRecord, keys []string) {
	rollbacksTotal.Inc()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), _rollbackTimeout)
	defer cancel()

	for _, key := range keys {
		if err := uc.storage.Delete(ctx, key); err != nil {
			uc.logger.Error(err, "IngestionUseCase - rollback - uc.storage.Delete - key=%s", key)
		}
	}

	err := uc.catalog.Delete(ctx, record.ID)
	if err != nil && !errors.Is(err, errs.ErrRecordNotFound) {
		uc.logger.Error(err, "IngestionUseCase - rollback - uc.catalog.Delete - productId=%s", record.ExternalID)
	}
}

func (uc *UseCase) createdEvent(record *entity.CatalogRecord, change *entity.StatusChange, now time.Time) (*entity.OutboxEvent, error) {
	status := record.Status
	var publishAt *time.Time
	if change != nil {
		status = change.To
		publishAt = change.PublishAt
	}

	payload := map[string]interface{}{
		"id":          record.ID,
		"external_id": record.ExternalID,
		"name":        record.Name,
		"category_id": record.CategoryID,
		"status":      status,
		"publish_at":  publishAt,
		"media_count": len(record.Media),
	}
	if primary, ok := record.PrimaryMedia(); ok {
		payload["primary_object_key"] = primary.ObjectKey
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("IngestionUseCase - createdEvent - json.Marshal: %w", err)
	}

	return &entity.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: record.ID,
		EventType:   entity.EventRecordCreated,
		Payload:     b,
		Status:      entity.Pending,
		CreatedAt:   now,
	}, nil
}

func ingestedItem(record *entity.CatalogRecord) *dto.IngestedItem {
	item := &dto.IngestedItem{
		ExternalID: record.ExternalID,
		ID:         record.ID.String(),
		Status:     string(record.Status),
		PublishAt:  record.PublishAt,
		Media:      make([]dto.IngestedMedia, len(record.Media)),
	}

	for i, m := range record.Media {
		item.Media[i] = dto.IngestedMedia{
			ObjectKey:  m.ObjectKey,
			URL:        m.URL,
			Priority:   m.Priority,
			Primary:    m.Primary,
			ColorGroup: m.ColorGroup,
			Kind:       string(m.Kind),
		}
	}

	return item
}
