package worker

import (
	"context"
	"log"
	"time"
)

// Sweepable is anything that can evict its own stale entries.
type Sweepable interface {
	Sweep() int
}

// Sweeper periodically evicts idle rate-limit buckets and expired
// sessions so both maps stay bounded over long uptimes.
type Sweeper struct {
	interval time.Duration
	targets  []Sweepable
}

func NewSweeper(interval time.Duration, targets ...Sweepable) *Sweeper {
	return &Sweeper{interval: interval, targets: targets}
}

func (s *Sweeper) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := 0
			for _, target := range s.targets {
				total += target.Sweep()
			}
			if total > 0 {
				log.Printf("Idle sweep removed %d entries", total)
			}

		case <-shutdownCtx.Done():
			return
		}
	}
}
