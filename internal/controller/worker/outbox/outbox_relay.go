package outbox

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/infrastructure"
	"github.com/andreyxaxa/catalog-ingest/internal/usecase"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_outbox_events_sent_total",
		Help: "Outbox events delivered to the broker, by event type.",
	}, []string{"event_type"})

	sendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_outbox_send_failures_total",
		Help: "Outbox batches that failed to send and were put back to pending.",
	})
)

// Config holds the relay's intervals and limits.
type Config struct {
	PollInterval        time.Duration
	CleanupInterval     time.Duration
	MarkFailedInterval  time.Duration
	ProcessBatchTimeout time.Duration
	BatchSize           int
	MaxRetries          int
}

// OutboxRelay ships catalog events written in the same transaction as the
// state change to the events topic.
type OutboxRelay struct {
	cat    usecase.CatalogUseCase
	es     infrastructure.EventsSender
	logger logger.Interface
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started atomic.Bool
}

func New(cat usecase.CatalogUseCase, es infrastructure.EventsSender, l logger.Interface, cfg Config) *OutboxRelay {
	return &OutboxRelay{
		cat:    cat,
		es:     es,
		logger: l,
		cfg:    cfg,
	}
}

func (r *OutboxRelay) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return fmt.Errorf("OutboxRelay - Start - worker already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	// 1. ship pending events; a full batch means there is more, go again
	r.worker(r.cfg.PollInterval, func() {
		for r.ctx.Err() == nil {
			batchCtx, batchCancel := context.WithTimeout(r.ctx, r.cfg.ProcessBatchTimeout)
			sent, err := r.ProcessBatch(batchCtx)
			batchCancel()
			if err != nil {
				r.logger.Error(err, "OutboxRelay - Start - worker - r.ProcessBatch")
				return
			}
			if sent < r.cfg.BatchSize {
				return
			}
		}
	})

	// 2. give up on events past max retries
	r.worker(r.cfg.MarkFailedInterval, func() {
		err := r.cat.MarkMaxRetriesAsFailed(r.ctx, r.cfg.MaxRetries)
		if err != nil {
			r.logger.Error(err, "OutboxRelay - Start - worker - r.cat.MarkMaxRetriesAsFailed")
		}
	})

	// 3. drop old processed/failed rows
	r.worker(r.cfg.CleanupInterval, func() {
		err := r.cat.CleanupOutbox(r.ctx)
		if err != nil {
			r.logger.Error(err, "OutboxRelay - Start - worker - r.cat.CleanupOutbox")
		}
	})

	return nil
}

// ProcessBatch sends one batch of pending events and returns how many were
// delivered.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	// 1. pending events with retry_count < MaxRetries
	events, err := r.cat.GetPendingEvents(ctx, r.cfg.MaxRetries, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("OutboxRelay - ProcessBatch - r.cat.GetPendingEvents: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	// 2. claim them
	err = r.cat.MarkAsProcessingBatch(ctx, events)
	if err != nil {
		return 0, fmt.Errorf("OutboxRelay - ProcessBatch - r.cat.MarkAsProcessingBatch: %w", err)
	}

	// 3. send
	err = r.es.SendEvents(ctx, events)
	if err != nil {
		sendFailuresTotal.Inc()

		// 3.1 back to pending with one more retry; ctx may be the reason we failed
		incErr := r.cat.IncrementRetryCountBatch(context.WithoutCancel(ctx), events)
		if incErr != nil {
			r.logger.Error(incErr, "OutboxRelay - ProcessBatch - r.cat.IncrementRetryCountBatch")
		}

		return 0, fmt.Errorf("OutboxRelay - ProcessBatch - r.es.SendEvents: %w", err)
	}

	// 4. done
	err = r.cat.MarkAsProcessedBatch(context.WithoutCancel(ctx), events)
	if err != nil {
		return 0, fmt.Errorf("OutboxRelay - ProcessBatch - r.cat.MarkAsProcessedBatch: %w", err)
	}

	for _, e := range events {
		eventsSentTotal.WithLabelValues(e.EventType).Inc()
	}

	return len(events), nil
}

func (r *OutboxRelay) worker(interval time.Duration, task func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (r *OutboxRelay) Shutdown(ctx context.Context) error {
	if !r.started.Load() {
		return nil
	}

	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})

	go func() {
		r.wg.Wait()
		r.es.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("OutboxRelay - Shutdown: %w", ctx.Err())
	}
}
