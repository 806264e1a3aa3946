package publishing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/dto"
	"github.com/andreyxaxa/catalog-ingest/internal/entity"
	"github.com/andreyxaxa/catalog-ingest/internal/repo"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const _defaultBatchSize = 500

var (
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_publish_sweeps_total",
		Help: "Publish sweeps by result.",
	}, []string{"result"})

	sweepRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_publish_sweep_records_total",
		Help: "Due records seen by sweeps, by outcome.",
	}, []string{"outcome"})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_publish_sweep_duration_seconds",
		Help:    "Wall time of one publish sweep.",
		Buckets: prometheus.DefBuckets,
	})
)

type Option func(*UseCase)

func BatchSize(n int) Option {
	return func(uc *UseCase) {
		if n > 0 {
			uc.batchSize = n
		}
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

// UseCase drives the record status machine:
//
//	draft --schedule--> scheduled --sweep--> published
//	draft --publish--> published
//	scheduled --publish--> published
//	scheduled --cancel--> draft
//
// Every transition is a single guarded update, so a sweep racing an explicit
// action (or another replica's sweep) can never apply twice.
type UseCase struct {
	catalog    repo.CatalogRepo
	outbox     repo.OutboxRepo
	transactor repo.Transactor
	logger     logger.Interface

	batchSize int
	location  *time.Location
	now       func() time.Time

	sweepMu sync.Mutex
}

func New(
	catalog repo.CatalogRepo,
	outbox repo.OutboxRepo,
	transactor repo.Transactor,
	l logger.Interface,
	opts ...Option,
) *UseCase {
	uc := &UseCase{
		catalog:    catalog,
		outbox:     outbox,
		transactor: transactor,
		logger:     l,
		batchSize:  _defaultBatchSize,
		location:   time.UTC,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// Schedule moves a draft to scheduled. publishAt must lie in the future.
func (uc *UseCase) Schedule(ctx context.Context, externalID string, req dto.ScheduleRequest) (*entity.CatalogRecord, error) {
	schedule, err := entity.ParseSchedule(req.ScheduledDate, req.ScheduledTime, uc.location)
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - Schedule - entity.ParseSchedule: %w", err)
	}
	if schedule == nil {
		return nil, fmt.Errorf("%w: scheduledDate is required", errs.ErrValidation)
	}

	now := uc.now()
	if !schedule.PublishAt.After(now) {
		return nil, fmt.Errorf("%w: publishAt %s is not in the future", errs.ErrValidation, schedule.PublishAt.Format(time.RFC3339))
	}

	record, err := uc.load(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - Schedule - uc.load: %w", err)
	}
	if _, ok := record.PrimaryMedia(); !ok {
		return nil, fmt.Errorf("%w: productId %s has no primary image", errs.ErrNoPrimaryMedia, record.ExternalID)
	}

	change := schedule.ToScheduled()

	err = uc.apply(ctx, record, change, now, nil)
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - Schedule - uc.apply: %w", err)
	}

	return record, nil
}

// Publish moves a draft or scheduled record to published right away.
func (uc *UseCase) Publish(ctx context.Context, externalID string) (*entity.CatalogRecord, error) {
	record, err := uc.load(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - Publish - uc.load: %w", err)
	}
	if _, ok := record.PrimaryMedia(); !ok {
		return nil, fmt.Errorf("%w: productId %s has no primary image", errs.ErrNoPrimaryMedia, record.ExternalID)
	}

	now := uc.now()
	change := toPublished([]entity.Status{entity.Draft, entity.Scheduled}, nil, now)

	err = uc.apply(ctx, record, change, now, func(ctx context.Context) error {
		return uc.publishedEvent(ctx, record.ID, record.ExternalID, record.PublishAt, now)
	})
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - Publish - uc.apply: %w", err)
	}

	return record, nil
}

// Cancel returns a scheduled record to draft.
func (uc *UseCase) Cancel(ctx context.Context, externalID string) (*entity.CatalogRecord, error) {
	record, err := uc.load(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - Cancel - uc.load: %w", err)
	}

	change := entity.StatusChange{
		From: []entity.Status{entity.Scheduled},
		To:   entity.Draft,
	}

	err = uc.apply(ctx, record, change, uc.now(), nil)
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - Cancel - uc.apply: %w", err)
	}

	return record, nil
}

// Sweep promotes every scheduled record whose publishAt has passed. A
// failing record is counted and skipped; the sweep always runs to the end of
// the due set unless ctx ends. Concurrent calls get ErrSweepInProgress.
func (uc *UseCase) Sweep(ctx context.Context) (dto.SweepResult, error) {
	if !uc.sweepMu.TryLock() {
		sweepsTotal.WithLabelValues("skipped").Inc()
		return dto.SweepResult{}, errs.ErrSweepInProgress
	}
	defer uc.sweepMu.Unlock()

	start := time.Now()
	now := uc.now()

	var (
		res   dto.SweepResult
		after uuid.UUID
	)

	defer func() {
		res.Duration = time.Since(start)
		sweepDuration.Observe(res.Duration.Seconds())
		sweepRecordsTotal.WithLabelValues("published").Add(float64(res.Published))
		sweepRecordsTotal.WithLabelValues("skipped").Add(float64(res.Skipped))
		sweepRecordsTotal.WithLabelValues("failed").Add(float64(res.Failed))
	}()

	for {
		due, err := uc.catalog.ListDue(ctx, now, after, uc.batchSize)
		if err != nil {
			sweepsTotal.WithLabelValues("error").Inc()
			return res, fmt.Errorf("PublishingUseCase - Sweep - uc.catalog.ListDue: %w", err)
		}

		for _, d := range due {
			if ctx.Err() != nil {
				sweepsTotal.WithLabelValues("interrupted").Inc()
				return res, fmt.Errorf("PublishingUseCase - Sweep: %w", ctx.Err())
			}

			res.Attempted++

			published, err := uc.promote(ctx, d, now)
			switch {
			case err != nil:
				res.Failed++
				uc.logger.Error(err, "PublishingUseCase - Sweep - uc.promote - productId=%s", d.ExternalID)
			case !published:
				res.Skipped++
			default:
				res.Published++
			}
		}

		if len(due) < uc.batchSize {
			break
		}
		after = due[len(due)-1].ID
	}

	sweepsTotal.WithLabelValues("completed").Inc()

	return res, nil
}

// promote publishes one due record. false means another writer got there
// first (published, cancelled or rescheduled in the meantime).
func (uc *UseCase) promote(ctx context.Context, d entity.DueRecord, now time.Time) (bool, error) {
	change := toPublished([]entity.Status{entity.Scheduled}, &now, now)
	publishAt := d.PublishAt

	var published bool
	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := uc.catalog.UpdateStatus(ctx, d.ID, change, now)
		if err != nil {
			return fmt.Errorf("PublishingUseCase - promote - uc.catalog.UpdateStatus: %w", err)
		}
		if !ok {
			return nil
		}

		err = uc.publishedEvent(ctx, d.ID, d.ExternalID, &publishAt, now)
		if err != nil {
			return fmt.Errorf("PublishingUseCase - promote - uc.publishedEvent: %w", err)
		}
		published = true

		return nil
	})
	if err != nil {
		return false, err
	}

	return published, nil
}

func (uc *UseCase) load(ctx context.Context, externalID string) (*entity.CatalogRecord, error) {
	record, err := uc.catalog.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("PublishingUseCase - load - uc.catalog.GetByExternalID: %w", err)
	}

	return record, nil
}

// apply runs change against record inside a transaction, together with
// extra. On success record reflects the new state.
func (uc *UseCase) apply(
	ctx context.Context,
	record *entity.CatalogRecord,
	change entity.StatusChange,
	now time.Time,
	extra func(ctx context.Context) error,
) error {
	if !change.Allows(record.Status) {
		return invalidTransition(record.Status, change.To)
	}

	err := uc.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := uc.catalog.UpdateStatus(ctx, record.ID, change, now)
		if err != nil {
			return fmt.Errorf("PublishingUseCase - apply - uc.catalog.UpdateStatus: %w", err)
		}
		if !ok {
			// status moved between read and update
			return fmt.Errorf("%w: %s changed concurrently", errs.ErrInvalidTransition, record.ExternalID)
		}

		if extra != nil {
			return extra(ctx)
		}

		return nil
	})
	if err != nil {
		return err
	}

	change.Apply(record)
	record.UpdatedAt = now

	return nil
}

func (uc *UseCase) publishedEvent(ctx context.Context, id uuid.UUID, externalID string, publishAt *time.Time, now time.Time) error {
	b, err := json.Marshal(map[string]interface{}{
		"id":           id,
		"external_id":  externalID,
		"status":       entity.Published,
		"scheduled_at": publishAt,
		"published_at": now,
	})
	if err != nil {
		return fmt.Errorf("PublishingUseCase - publishedEvent - json.Marshal: %w", err)
	}

	err = uc.outbox.Create(ctx, &entity.OutboxEvent{
		ID:          uuid.New(),
		AggregateID: id,
		EventType:   entity.EventRecordPublished,
		Payload:     b,
		Status:      entity.Pending,
		CreatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("PublishingUseCase - publishedEvent - uc.outbox.Create: %w", err)
	}

	return nil
}

// toPublished clears every scheduling field and stamps publishedAt.
func toPublished(from []entity.Status, dueBy *time.Time, now time.Time) entity.StatusChange {
	publishedAt := now

	return entity.StatusChange{
		From:        from,
		DueBy:       dueBy,
		To:          entity.Published,
		PublishedAt: &publishedAt,
	}
}

func invalidTransition(from, to entity.Status) error {
	return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidTransition, from, to)
}

// IsPermanent reports whether err will fail the same way on retry.
func IsPermanent(err error) bool {
	return errors.Is(err, errs.ErrValidation) ||
		errors.Is(err, errs.ErrInvalidTransition) ||
		errors.Is(err, errs.ErrRecordNotFound) ||
		errors.Is(err, errs.ErrNoPrimaryMedia) ||
		errors.Is(err, errs.ErrUnknownCommand)
}
