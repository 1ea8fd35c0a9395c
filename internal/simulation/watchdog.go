package simulation

import (
	"context"
	"log"
	"time"
)

// Watchdog periodically sweeps for idle Active sessions and expires them.
type Watchdog struct {
	manager  *Manager
	store    SessionStore
	ttl      time.Duration
	interval time.Duration
	stopChan chan struct{}
}

func NewWatchdog(manager *Manager, store SessionStore, ttl time.Duration) *Watchdog {
	interval := ttl / 10
	if interval < time.Second {
		interval = time.Second
	}
	return &Watchdog{
		manager:  manager,
		store:    store,
		ttl:      ttl,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop to shut it down.
func (w *Watchdog) Start() {
	log.Printf("⏰ Session watchdog started (ttl=%s, sweep every %s)", w.ttl, w.interval)
	go w.run()
}

func (w *Watchdog) Stop() {
	close(w.stopChan)
}

func (w *Watchdog) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			log.Println("⏰ Session watchdog stopped")
			return
		case <-ticker.C:
			w.Sweep(context.Background())
		}
	}
}

// Sweep expires every Active session idle past the TTL. Exported so tests
// and shutdown paths can run a sweep synchronously.
func (w *Watchdog) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.ttl)
	ids, err := w.store.ListExpired(ctx, cutoff)
	if err != nil {
		log.Printf("❌ Watchdog sweep failed: %v", err)
		return
	}

	for _, id := range ids {
		if err := w.manager.Expire(ctx, id); err != nil {
			// A session that completed between the scan and the expire call
			// fails the state check; that is expected, not an error.
			continue
		}
		log.Printf("⏰ Session %s expired after %s of inactivity", id, w.ttl)
	}
}
