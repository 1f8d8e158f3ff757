package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/bilal/switchify-netai/internal/telemetry"
)

// CounterReader returns cumulative bytes sent and received on all interfaces.
type CounterReader interface {
	ByteCounters(ctx context.Context) (sent, recv uint64, err error)
}

// HostCounters reads the host's interface counters through gopsutil.
type HostCounters struct{}

func (HostCounters) ByteCounters(ctx context.Context) (uint64, uint64, error) {
	stats, err := psnet.IOCountersWithContext(ctx, false) // false = all interfaces combined
	if err != nil {
		return 0, 0, fmt.Errorf("read io counters: %w", err)
	}
	if len(stats) == 0 {
		return 0, 0, errors.New("no network interfaces found")
	}
	return stats[0].BytesSent, stats[0].BytesRecv, nil
}

// measureBandwidth samples the counters interval apart and converts the
// delta to Mbps. Any failure reports 0.
func measureBandwidth(ctx context.Context, c CounterReader, interval time.Duration) float64 {
	sent1, recv1, err := c.ByteCounters(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("bandwidth sample failed")
		return 0
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return 0
	}

	sent2, recv2, err := c.ByteCounters(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("bandwidth sample failed")
		return 0
	}

	delta := counterDelta(sent1, sent2) + counterDelta(recv1, recv2)
	mbps := float64(delta) * 8 / (interval.Seconds() * 1_000_000)
	if mbps < 0 {
		mbps = 0
	}
	return telemetry.Round3(mbps)
}

// counterDelta treats a counter that went backwards (reset, wrap) as idle.
func counterDelta(before, after uint64) uint64 {
	if after < before {
		return 0
	}
	return after - before
}
