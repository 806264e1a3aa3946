package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andreyxaxa/catalog-ingest/internal/usecase"
	"github.com/andreyxaxa/catalog-ingest/pkg/logger"
	"github.com/andreyxaxa/catalog-ingest/pkg/types/errs"
	"github.com/robfig/cron/v3"
)

// PublishScheduler runs the publish sweep on a cron schedule. A tick that
// fires while the previous sweep is still running is skipped.
type PublishScheduler struct {
	pub    usecase.PublishingUseCase
	logger logger.Interface

	cron         *cron.Cron
	spec         string
	sweepTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	started  atomic.Bool
	stopOnce sync.Once
}

func New(pub usecase.PublishingUseCase, l logger.Interface, spec string, sweepTimeout time.Duration, loc *time.Location) *PublishScheduler {
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{l}

	return &PublishScheduler{
		pub:          pub,
		logger:       l,
		spec:         spec,
		sweepTimeout: sweepTimeout,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

func (s *PublishScheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("PublishScheduler - Start - scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	_, err := s.cron.AddFunc(s.spec, s.sweep)
	if err != nil {
		return fmt.Errorf("PublishScheduler - Start - s.cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("PublishScheduler - Start - schedule %q", s.spec)

	return nil
}

func (s *PublishScheduler) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, s.sweepTimeout)
	defer cancel()

	res, err := s.pub.Sweep(ctx)
	if err != nil {
		// another replica or a manual run holds the sweep
		if errors.Is(err, errs.ErrSweepInProgress) {
			s.logger.Debug("PublishScheduler - sweep - skipped, sweep in progress")
			return
		}
		s.logger.Error(err, "PublishScheduler - sweep - s.pub.Sweep")
		return
	}

	if res.Attempted > 0 {
		s.logger.Info("PublishScheduler - sweep - attempted=%d published=%d skipped=%d failed=%d took=%s",
			res.Attempted, res.Published, res.Skipped, res.Failed, res.Duration)
	}
}

// Shutdown stops scheduling new sweeps and waits for the running one.
func (s *PublishScheduler) Shutdown(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	var done context.Context
	s.stopOnce.Do(func() {
		done = s.cron.Stop()
	})
	if done == nil {
		return nil
	}

	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		// abandon the in-flight sweep; promotions already made are committed
		s.cancel()
		return fmt.Errorf("PublishScheduler - Shutdown: %w", ctx.Err())
	}
}

// cronLogger adapts logger.Interface to cron.Logger.
type cronLogger struct {
	l logger.Interface
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(fmt.Sprintf("cron - %s %v", msg, keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(err, fmt.Sprintf("cron - %s %v", msg, keysAndValues))
}
