package storage

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/jobfront/internal/config"
	"github.com/dgellow/jobfront/internal/log"
)

// sweepTimeout bounds one CleanupExpired call so a slow backend cannot stall shutdown
const sweepTimeout = 30 * time.Second

// Sweeper purges expired records. Storage implements it.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// CleanupManager sweeps expired sessions and pending handshake states on an interval.
// It sweeps once on Start and once more on Stop.
type CleanupManager struct {
	sweeper  Sweeper
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu      sync.Mutex
	removed int
}

// NewCleanupManager creates a manager; a non-positive interval uses config.DefaultCleanupInterval
func NewCleanupManager(sweeper Sweeper, interval time.Duration) *CleanupManager {
	if interval <= 0 {
		interval = config.DefaultCleanupInterval
	}
	return &CleanupManager{
		sweeper:  sweeper,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled
func (cm *CleanupManager) Start(ctx context.Context) {
	log.LogInfoWithFields("cleanup", "Starting expired session sweeper", map[string]any{
		"interval": cm.interval.String(),
	})
	go cm.loop(ctx)
}

// Stop ends the loop and waits for the final sweep. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stop) })
	<-cm.done
	log.LogInfoWithFields("cleanup", "Expired session sweeper stopped", map[string]any{
		"removed": cm.Removed(),
	})
}

// Removed returns how many records the sweeper has purged so far
func (cm *CleanupManager) Removed() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.removed
}

func (cm *CleanupManager) loop(ctx context.Context) {
	defer close(cm.done)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.sweep(ctx)
	for {
		select {
		case <-ticker.C:
			cm.sweep(ctx)
		case <-cm.stop:
			// ctx may already be cancelled by the shutdown signal
			cm.sweep(context.WithoutCancel(ctx))
			return
		case <-ctx.Done():
			return
		}
	}
}

func (cm *CleanupManager) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	count, err := cm.sweeper.CleanupExpired(ctx)
	if err != nil {
		log.LogErrorWithFields("cleanup", "Sweep failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	cm.mu.Lock()
	cm.removed += count
	cm.mu.Unlock()

	if count > 0 {
		log.LogInfoWithFields("cleanup", "Purged expired sessions and pending states", map[string]any{
			"count":    count,
			"duration": time.Since(start).String(),
		})
	}
}
