package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"finanzas/internal/log"
	"finanzas/internal/worker"
)

// PendingSyncer exports whatever is still waiting for sync.
type PendingSyncer interface {
	ProcessPending(ctx context.Context) (worker.SyncResult, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to look for pending transactions (default: 5m)
	PollInterval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 5 * time.Minute,
	}
}

var ErrAlreadyRunning = errors.New("sync processor is already running")

// SyncProcessor periodically exports pending transactions. It backs up the
// AMQP path: rows whose message was lost, or never published because the
// broker was down, are still exported.
type SyncProcessor struct {
	syncer PendingSyncer
	config SyncProcessorConfig
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(syncer PendingSyncer, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &SyncProcessor{
		syncer: syncer,
		config: config,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrAlreadyRunning
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	go p.runLoop(ctx, p.stopCh, p.doneCh)

	p.logger.InfoContext(ctx, "Sync processor started", "poll_interval", p.config.PollInterval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Process immediately on startup
	p.processBatch(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.processBatch(ctx)
		}
	}
}

func (p *SyncProcessor) processBatch(ctx context.Context) {
	if _, err := p.syncer.ProcessPending(ctx); err != nil && ctx.Err() == nil {
		p.logger.ErrorContext(ctx, "Pending sync pass failed", log.FieldError, err)
	}
}
