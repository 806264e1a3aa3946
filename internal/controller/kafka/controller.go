package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/infrastructure"
	"github.com/andreyxaxa/catalog-ingest/internal/usecase"
	"github.com/andreyxaxa/catalog-ingest/internal/usecase/publishing"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const _maxRetryBackoff = 10 * time.Second

// KafkaController consumes schedule commands and applies them through the
// publishing use case.
type KafkaController struct {
	pub    usecase.PublishingUseCase
	cr     infrastructure.CommandsReader
	logger logger.Interface

	commitTimeout  time.Duration
	processTimeout time.Duration
	retries        int
	retryBackoff   time.Duration

	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	started atomic.Bool
}

func New(
	pub usecase.PublishingUseCase,
	cr infrastructure.CommandsReader,
	l logger.Interface,
	commitTimeout time.Duration,
	processTimeout time.Duration,
	workers int,
	retries int,
	retryBackoff time.Duration,
) *KafkaController {
	if workers < 1 {
		workers = 1
	}
	if retries < 0 {
		retries = 0
	}

	return &KafkaController{
		pub:            pub,
		cr:             cr,
		logger:         l,
		commitTimeout:  commitTimeout,
		processTimeout: processTimeout,
		retries:        retries,
		retryBackoff:   retryBackoff,
		workers:        workers,
	}
}

func (c *KafkaController) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("KafkaController - Start - controller already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)

	tasks := make(chan kafka.Message, c.workers*2)

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(tasks)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(tasks)

		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				msg, err := c.cr.ReadCommand(c.ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						c.logger.Error(err, "KafkaController - Start - c.cr.ReadCommand")
					}
					continue
				}

				select {
				case tasks <- msg:
				case <-c.ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

func (c *KafkaController) handleCommand(ctx context.Context, msg kafka.Message) error {
	cmd, err := decodeCommand(msg.Value)
	if err != nil {
		return fmt.Errorf("KafkaController - handleCommand - decodeCommand: %w", err)
	}

	err = c.pub.Execute(ctx, cmd)
	if err != nil {
		return fmt.Errorf("KafkaController - handleCommand - c.pub.Execute: %w", err)
	}

	return nil
}

func (c *KafkaController) worker(tasks <-chan kafka.Message) {
	defer c.wg.Done()

	for msg := range tasks {
		c.process(msg)
	}
}

// process handles one message. Transient failures are retried in place with
// backoff; the group reader never redelivers an offset a later commit passed.
// The message is committed after success, after a permanent failure and after
// the last retry. Only shutdown leaves it uncommitted.
func (c *KafkaController) process(msg kafka.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(fmt.Errorf("panic %v", r), "KafkaController - process - panic")
		}
	}()

	err := c.handleWithRetry(msg)
	if err != nil {
		switch {
		case c.ctx.Err() != nil:
			c.logger.Warn("KafkaController - process - shutting down, offset=%d left uncommitted", msg.Offset)
			return
		case publishing.IsPermanent(err):
			c.logger.Warn("KafkaController - process - dropping command at offset=%d: %v", msg.Offset, err)
		default:
			c.logger.Error(err, "KafkaController - process - giving up on offset=%d after %d attempts", msg.Offset, c.retries+1)
		}
	}

	commitCtx, commitCancel := context.WithTimeout(context.WithoutCancel(c.ctx), c.commitTimeout)
	err = c.cr.CommitCommand(commitCtx, msg)
	commitCancel()
	if err != nil {
		c.logger.Error(err, "KafkaController - process - c.cr.CommitCommand")
	}
}

func (c *KafkaController) handleWithRetry(msg kafka.Message) error {
	backoff := c.retryBackoff

	for attempt := 1; ; attempt++ {
		processCtx, processCancel := context.WithTimeout(c.ctx, c.processTimeout)
		err := c.handleCommand(processCtx, msg)
		processCancel()
		if err == nil || publishing.IsPermanent(err) || attempt > c.retries {
			return err
		}

		c.logger.Warn("KafkaController - handleWithRetry - offset=%d attempt %d/%d: %v", msg.Offset, attempt, c.retries+1, err)

		select {
		case <-c.ctx.Done():
			return c.ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, _maxRetryBackoff)
	}
}

func (c *KafkaController) Shutdown(ctx context.Context) error {
	if !c.started.Load() {
		return nil
	}

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})

	go func() {
		c.wg.Wait()
		c.cr.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("KafkaController - Shutdown: %w", ctx.Err())
	}
}
