package monitor

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-ping/ping"
	"github.com/rs/zerolog/log"

	"github.com/bilal/switchify-netai/internal/telemetry"
)

type PingMetrics struct {
	AvgLatencyMs float64
	JitterMs     float64
	PacketLoss   float64
	Reachable    bool
}

// Pinger sends count echo requests and returns the round-trip times of the
// ones that were answered.
type Pinger interface {
	Ping(ctx context.Context, host string, count int, timeout time.Duration) ([]time.Duration, error)
}

// ICMPPinger is the go-ping backed Pinger.
type ICMPPinger struct {
	Interval   time.Duration
	Privileged bool
}

func (p ICMPPinger) Ping(ctx context.Context, host string, count int, timeout time.Duration) ([]time.Duration, error) {
	pinger, err := ping.NewPinger(host)
	if err != nil {
		return nil, fmt.Errorf("create pinger: %w", err)
	}

	interval := p.Interval
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	pinger.Count = count
	pinger.Interval = interval
	// every probe gets its own timeout window
	pinger.Timeout = time.Duration(count)*(timeout+interval) + timeout
	pinger.SetPrivileged(p.Privileged)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			pinger.Stop()
		case <-done:
		}
	}()

	if err := pinger.Run(); err != nil {
		return nil, fmt.Errorf("run pinger: %w", err)
	}

	var rtts []time.Duration
	for _, rtt := range pinger.Statistics().Rtts {
		if rtt <= timeout {
			rtts = append(rtts, rtt)
		}
	}
	return rtts, nil
}

// summarize computes mean latency, population std-dev jitter and loss over
// the answered probes. No answers yields the unmeasured sentinels.
func summarize(rtts []time.Duration, total int) PingMetrics {
	if total <= 0 {
		total = 1
	}
	lost := total - len(rtts)
	if lost < 0 {
		lost = 0
	}
	loss := float64(lost) / float64(total) * 100.0

	if len(rtts) == 0 {
		return PingMetrics{
			AvgLatencyMs: telemetry.UnmeasuredLatency,
			JitterMs:     telemetry.UnmeasuredLatency,
			PacketLoss:   loss,
		}
	}

	ms := make([]float64, len(rtts))
	sum := 0.0
	for i, rtt := range rtts {
		ms[i] = float64(rtt) / float64(time.Millisecond)
		sum += ms[i]
	}
	avg := sum / float64(len(ms))

	sq := 0.0
	for _, x := range ms {
		sq += (x - avg) * (x - avg)
	}

	return PingMetrics{
		AvgLatencyMs: avg,
		JitterMs:     math.Sqrt(sq / float64(len(ms))),
		PacketLoss:   loss,
		Reachable:    true,
	}
}

// measurePing never fails: pinger errors count as total loss.
func measurePing(ctx context.Context, p Pinger, host string, count int, timeout time.Duration) PingMetrics {
	rtts, err := p.Ping(ctx, host, count, timeout)
	if err != nil {
		log.Warn().Err(err).Str("target", host).Msg("ping failed")
		return summarize(nil, count)
	}
	return summarize(rtts, count)
}
