package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pinger checks connectivity to an upstream system.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker pings ServiceNow in the background and publishes the outcome as
// the servicenow_up gauge.
type Checker struct {
	pinger   Pinger
	metrics  *Metrics
	interval time.Duration
}

// NewChecker creates a background connectivity checker.
func NewChecker(pinger Pinger, metrics *Metrics, interval time.Duration) *Checker {
	return &Checker{
		pinger:   pinger,
		metrics:  metrics,
		interval: interval,
	}
}

// Run checks once immediately and then on every tick. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := c.interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting connectivity checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.check(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("connectivity checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := c.pinger.Ping(checkCtx)
	if c.metrics != nil {
		c.metrics.SetServiceNowUp(err == nil)
	}
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("monitoring: servicenow unreachable", zap.Error(err))
		}
		return
	}
	log.Debug("monitoring: servicenow reachable")
}
