package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"mesgd/pkg/config"
	"mesgd/pkg/logger"
	"mesgd/pkg/telemetry"
)

// Purger is the work a sweep run performs; the facade implements it.
type Purger interface {
	PurgeExpiredStatuses(ctx context.Context, batchSize int) (int, error)
}

const defaultInterval = 10 * time.Minute

// Start launches the status expiry sweeper if enabled and returns a
// cancel func. The sweeper only reclaims storage; visibility of expired
// posts is enforced on every read regardless of sweep timing.
func Start(ctx context.Context, cfg config.SweepConfig, p Purger) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("sweep_disabled")
		return func() {}, nil
	}

	if cfg.Cron != "" && !gronx.IsValid(cfg.Cron) {
		logger.Error("sweep_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid sweep cron expression: %s", cfg.Cron)
	}

	interval := cfg.Interval.Duration()
	if interval <= 0 {
		interval = defaultInterval
	}

	ctx2, cancel := context.WithCancel(ctx)
	if cfg.Cron != "" {
		logger.Info("sweep_enabled", "cron", cfg.Cron, "batch_size", cfg.BatchSize)
		go runCron(ctx2, cfg.Cron, cfg.BatchSize, p)
	} else {
		logger.Info("sweep_enabled", "interval", interval.String(), "batch_size", cfg.BatchSize)
		go runTicker(ctx2, interval, cfg.BatchSize, p)
	}
	return cancel, nil
}

func runTicker(ctx context.Context, interval time.Duration, batchSize int, p Purger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_stopping")
			return
		case <-t.C:
			runOnce(ctx, batchSize, p)
		}
	}
}

// runCron computes the next future tick of the expression and sleeps
// until exactly then, supporting full cron syntax.
func runCron(ctx context.Context, expr string, batchSize int, p Purger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep_stopping")
			return
		default:
		}

		next, err := gronx.NextTickAfter(expr, time.Now().UTC(), false)
		if err != nil {
			logger.Error("sweep_nexttick_failed", "cron", expr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			runOnce(ctx, batchSize, p)
		case <-ctx.Done():
			logger.Info("sweep_stopping")
			return
		}
	}
}

func runOnce(ctx context.Context, batchSize int, p Purger) {
	telemetry.SweepRunsTotal.Inc()
	start := time.Now()
	n, err := p.PurgeExpiredStatuses(ctx, batchSize)
	if err != nil {
		logger.Error("sweep_run_error", "error", err)
		return
	}
	logger.Info("sweep_run_complete", "purged", n, "took", time.Since(start).String())
}
