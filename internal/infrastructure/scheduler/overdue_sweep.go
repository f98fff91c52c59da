package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// OverdueSweepExecutor marks OPEN invoices past their due date as OVERDUE.
// Events raised by the transition are published so notification handlers
// can alert the practice.
type OverdueSweepExecutor struct {
	invoices  billing.InvoiceRepository
	publisher shared.EventPublisher
	batchSize int
	logger    *zap.Logger
}

// NewOverdueSweepExecutor creates the sweep executor
func NewOverdueSweepExecutor(invoices billing.InvoiceRepository, publisher shared.EventPublisher, batchSize int, logger *zap.Logger) *OverdueSweepExecutor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OverdueSweepExecutor{
		invoices:  invoices,
		publisher: publisher,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Execute runs the sweep for a job
func (e *OverdueSweepExecutor) Execute(ctx context.Context, job *Job) error {
	if job.Kind != JobKindOverdueSweep {
		return fmt.Errorf("%w: %s", ErrUnknownJobKind, job.Kind)
	}

	asOf := job.AsOf
	if asOf.IsZero() {
		asOf = time.Now()
	}

	var marked, skipped int
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := e.invoices.FindOpenPastDue(ctx, asOf, e.batchSize)
		if err != nil {
			return fmt.Errorf("failed to load past-due invoices: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		updatedInBatch := 0
		for i := range batch {
			invoice := &batch[i]
			if !invoice.MarkOverdue(asOf) {
				continue
			}

			if err := e.invoices.SaveWithLock(ctx, invoice); err != nil {
				// Another instance beat us to this invoice; the next
				// sweep will catch it if it is still open.
				skipped++
				e.logger.Warn("skipping invoice after save conflict",
					zap.String("invoice_id", invoice.ID.String()),
					zap.String("invoice_number", invoice.InvoiceNumber),
					zap.Error(err),
				)
				continue
			}

			if err := e.publisher.Publish(ctx, invoice.GetDomainEvents()...); err != nil {
				e.logger.Warn("failed to publish overdue events",
					zap.String("invoice_id", invoice.ID.String()),
					zap.Error(err),
				)
			}
			invoice.ClearDomainEvents()

			marked++
			updatedInBatch++
		}

		// Nothing progressed; stop instead of re-reading the same rows
		if updatedInBatch == 0 {
			break
		}
	}

	e.logger.Info("overdue sweep completed",
		zap.Int("marked_overdue", marked),
		zap.Int("skipped", skipped),
		zap.Time("as_of", asOf),
	)

	return nil
}

// Ensure OverdueSweepExecutor implements JobExecutor
var _ JobExecutor = (*OverdueSweepExecutor)(nil)

// OverdueSweepTrigger submits a sweep job on a fixed interval
type OverdueSweepTrigger struct {
	config    config.SchedulerConfig
	scheduler *Scheduler
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewOverdueSweepTrigger creates the interval trigger
func NewOverdueSweepTrigger(cfg config.SchedulerConfig, scheduler *Scheduler, logger *zap.Logger) *OverdueSweepTrigger {
	return &OverdueSweepTrigger{
		config:    cfg,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Start begins the interval loop. A sweep is submitted immediately on
// start so a restarted instance does not wait a full interval.
func (t *OverdueSweepTrigger) Start(ctx context.Context) error {
	if !t.config.OverdueSweepEnabled {
		t.logger.Info("overdue sweep disabled")
		return nil
	}

	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("overdue sweep trigger started",
		zap.Duration("interval", t.config.OverdueSweepEvery),
	)

	return nil
}

// Stop stops the interval loop
func (t *OverdueSweepTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("overdue sweep trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *OverdueSweepTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	t.submitSweep()

	interval := t.config.OverdueSweepEvery
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.submitSweep()
		}
	}
}

func (t *OverdueSweepTrigger) submitSweep() {
	job := NewJob(JobKindOverdueSweep, nil, time.Now(), t.config.RetryAttempts)
	if err := t.scheduler.SubmitJob(job); err != nil {
		t.logger.Error("failed to submit overdue sweep", zap.Error(err))
	}
}
