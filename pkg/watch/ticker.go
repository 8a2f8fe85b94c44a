package watch

import (
	"context"
	"time"
)

// TickerAdapter wakes on a fixed interval.
type TickerAdapter struct {
	name     string
	interval time.Duration
}

// NewTickerAdapter returns an adapter waking every interval.
func NewTickerAdapter(name string, interval time.Duration) *TickerAdapter {
	return &TickerAdapter{name: name, interval: interval}
}

func (a *TickerAdapter) Name() string { return a.name }

func (a *TickerAdapter) Run(ctx context.Context, wake chan<- Wakeup, ready func()) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	ready()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			if !send(ctx, wake, Wakeup{Source: a.name, Detail: t.Format(time.TimeOnly)}) {
				return nil
			}
		}
	}
}
