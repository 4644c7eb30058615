package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/fieldops/sitesync/internal/logging"
	"github.com/fieldops/sitesync/internal/remote"
)

// Mode is the connectivity state as last observed by the watcher.
type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Watcher probes remote reachability on a fixed interval and triggers a
// queue drain on every offline-to-online transition. It also fires one
// drain a fixed delay after startup when already online.
type Watcher struct {
	remote    remote.Store
	processor *Processor
	log       logging.Logger

	// mu guards mode, which the UI reads while Run's goroutine updates it.
	mu   sync.RWMutex
	mode Mode
}

func NewWatcher(store remote.Store, processor *Processor, log logging.Logger) *Watcher {
	return &Watcher{remote: store, processor: processor, log: log, mode: ModeOffline}
}

// Mode returns the last observed connectivity state. Safe to call from any
// goroutine.
func (w *Watcher) Mode() Mode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mode
}

func (w *Watcher) setMode(ctx context.Context, mode Mode) {
	w.mu.Lock()
	if w.mode == mode {
		w.mu.Unlock()
		return
	}
	w.mode = mode
	w.mu.Unlock()
	w.log.Info(ctx, "connectivity changed", "mode", mode)

	if mode == ModeOnline {
		if _, err := w.processor.Drain(ctx); err != nil {
			w.log.Warn(ctx, "drain after reconnect failed", "error", err)
		}
	}
}

// Run blocks, probing the remote every interval, until ctx is cancelled.
// The first drain is scheduled startupDelay after Run begins if the remote
// is reachable at that point.
func (w *Watcher) Run(ctx context.Context, interval, startupDelay time.Duration) {
	startup := time.NewTimer(startupDelay)
	defer startup.Stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := w.remote.Ping(pctx)
		cancel()
		if err != nil {
			w.setMode(ctx, ModeOffline)
		} else {
			w.setMode(ctx, ModeOnline)
		}
	}

	for {
		select {
		case <-startup.C:
			probe()
		case <-ticker.C:
			probe()
		case <-ctx.Done():
			return
		}
	}
}
