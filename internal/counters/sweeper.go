package counters

import (
	"context"
	"log/slog"
	"time"
)

// Sweepable is implemented by stores whose expiry relies on a periodic pass.
type Sweepable interface {
	Sweep() int
}

// Sweeper runs the expiry pass on a fixed interval until its context is
// cancelled, with one final pass on shutdown.
type Sweeper struct {
	store    Sweepable
	interval time.Duration
}

func NewSweeper(store Sweepable, interval time.Duration) *Sweeper {
	return &Sweeper{store: store, interval: interval}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Sweeper] Starting counter sweep task", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			if dropped := s.store.Sweep(); dropped > 0 {
				slog.Debug("[Sweeper] Swept expired counters", "dropped", dropped)
			}
		case <-ctx.Done():
			slog.Info("[Sweeper] Stopping (context cancelled)")
			s.store.Sweep()
			return nil
		}
	}
}
