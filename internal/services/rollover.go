package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"moneyboard/internal/log"
	"moneyboard/internal/storage"

	"golang.org/x/sync/errgroup"
)

// RolloverConfig holds configuration for the rollover processor
type RolloverConfig struct {
	// Interval is how often every owner is synchronized (default: 1h)
	Interval time.Duration

	// Concurrency bounds how many owners are synchronized at once (default: 4)
	Concurrency int
}

// DefaultRolloverConfig returns sensible defaults
func DefaultRolloverConfig() RolloverConfig {
	return RolloverConfig{
		Interval:    time.Hour,
		Concurrency: 4,
	}
}

// RolloverStats summarizes one pass over every owner.
type RolloverStats struct {
	Owners  int
	Changed int
	Failed  int
}

// RolloverProcessor periodically runs the bill-task synchronizer for every
// owner that has recurring templates, so tasks roll over into a new month
// even when nobody opens the board.
type RolloverProcessor struct {
	store  storage.Store
	tasks  *TaskService
	config RolloverConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRolloverProcessor(store storage.Store, tasks *TaskService, config RolloverConfig) *RolloverProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultRolloverConfig().Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &RolloverProcessor{store: store, tasks: tasks, config: config}
}

// RunOnce synchronizes every owner. A failing owner is logged and counted
// and does not stop the others; only failing to list owners is an error.
func (p *RolloverProcessor) RunOnce(ctx context.Context) (RolloverStats, error) {
	started := time.Now()
	owners, err := p.store.ListRecurringOwners(ctx)
	if err != nil {
		return RolloverStats{}, fmt.Errorf("list recurring owners: %w", err)
	}

	var changed, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)
	for _, owner := range owners {
		g.Go(func() error {
			res, err := p.tasks.SyncOwner(gctx, owner)
			if err != nil {
				failed.Add(1)
				slog.ErrorContext(gctx, "Rollover failed for owner",
					log.FieldComponent, log.ComponentRollover,
					log.FieldOwner, owner,
					log.FieldError, err)
				return nil
			}
			if res.Changed() {
				changed.Add(1)
				slog.InfoContext(gctx, "Rolled over bill tasks",
					log.FieldComponent, log.ComponentRollover,
					log.FieldOwner, owner,
					"created", res.Created,
					"updated", res.Updated,
					"removed", res.Removed)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats := RolloverStats{Owners: len(owners), Changed: int(changed.Load()), Failed: int(failed.Load())}
	elapsed := time.Since(started)
	slog.InfoContext(ctx, "Rollover pass completed",
		log.FieldComponent, log.ComponentRollover,
		log.FieldOperation, log.OpSync,
		log.FieldDuration, elapsed.Milliseconds(),
		log.FieldDurationHuman, elapsed.String(),
		"owners", stats.Owners,
		"changed", stats.Changed,
		"failed", stats.Failed)
	return stats, nil
}

// Start begins the processing loop. Returns an error if already running.
func (p *RolloverProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("rollover processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Rollover processor started",
		log.FieldComponent, log.ComponentRollover,
		log.FieldOperation, log.OpStartup,
		"interval", p.config.Interval,
		"concurrency", p.config.Concurrency)
	return nil
}

// Stop gracefully stops the processor and waits for the current pass.
func (p *RolloverProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Rollover processor stopped gracefully",
			log.FieldComponent, log.ComponentRollover,
			log.FieldOperation, log.OpShutdown)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Rollover processor stop timed out",
			log.FieldComponent, log.ComponentRollover,
			log.FieldOperation, log.OpShutdown)
		return ctx.Err()
	}
}

func (p *RolloverProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RolloverProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	p.pass(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pass(ctx)
		}
	}
}

func (p *RolloverProcessor) pass(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Rollover pass failed",
			log.FieldComponent, log.ComponentRollover,
			log.FieldError, err)
	}
}
