package sweep

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"mesgd/pkg/config"
)

type countingPurger struct {
	runs atomic.Int32
}

func (c *countingPurger) PurgeExpiredStatuses(ctx context.Context, batchSize int) (int, error) {
	c.runs.Add(1)
	return 0, nil
}

func TestStartDisabled(t *testing.T) {
	p := &countingPurger{}
	cancel, err := Start(context.Background(), config.SweepConfig{Enabled: false}, p)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	if p.runs.Load() != 0 {
		t.Fatalf("disabled sweeper ran")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	p := &countingPurger{}
	if _, err := Start(context.Background(), config.SweepConfig{Enabled: true, Cron: "not a cron"}, p); err == nil {
		t.Fatal("expected invalid cron error")
	}
}

func TestTickerRuns(t *testing.T) {
	p := &countingPurger{}
	cfg := config.SweepConfig{Enabled: true, Interval: config.Duration(20 * time.Millisecond)}
	cancel, err := Start(context.Background(), cfg, p)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer cancel()

	deadline := time.After(2 * time.Second)
	for p.runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 runs, got %d", p.runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
