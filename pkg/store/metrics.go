package store

import (
	"context"
	"time"

	"mesgd/pkg/telemetry"
)

// StartMetricsPoller exports pebble's internal metrics (WAL size,
// memtable usage, compactions, disk footprint) as gauges on the given
// interval. Returns a cancel func.
func (s *Store) StartMetricsPoller(ctx context.Context, interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if s.db == nil {
					return
				}
				m := s.db.Metrics()
				telemetry.PebbleWALBytes.Set(float64(m.WAL.Size))
				telemetry.PebbleMemtableBytes.Set(float64(m.MemTable.Size))
				telemetry.PebbleCompactions.Set(float64(m.Compact.Count))
				telemetry.PebbleDiskUsageBytes.Set(float64(m.DiskSpaceUsage()))
			}
		}
	}()
	return cancel
}
