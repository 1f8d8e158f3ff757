package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bilal/switchify-netai/internal/config"
	"github.com/bilal/switchify-netai/internal/metrics"
	"github.com/bilal/switchify-netai/internal/telemetry"
)

// ProbeReporter receives the reachability of each live ping.
type ProbeReporter interface {
	SetProbeHealthy(ok bool)
}

// LiveProbe measures the host's own link: ping, byte counters and Wi-Fi
// signal. Measurements are serialised; each takes at least the ping run
// plus the bandwidth window.
type LiveProbe struct {
	mu sync.Mutex

	pinger   Pinger
	counters CounterReader
	signal   SignalReader
	reporter ProbeReporter

	target            string
	count             int
	timeout           time.Duration
	bandwidthInterval time.Duration
}

type ProbeOption func(*LiveProbe)

func WithPinger(p Pinger) ProbeOption { return func(lp *LiveProbe) { lp.pinger = p } }

func WithCounters(c CounterReader) ProbeOption { return func(lp *LiveProbe) { lp.counters = c } }

func WithSignal(s SignalReader) ProbeOption { return func(lp *LiveProbe) { lp.signal = s } }

func WithReporter(r ProbeReporter) ProbeOption { return func(lp *LiveProbe) { lp.reporter = r } }

func NewLiveProbe(cfg config.ProbeConfig, opts ...ProbeOption) *LiveProbe {
	lp := &LiveProbe{
		pinger:            ICMPPinger{Interval: cfg.Interval, Privileged: cfg.Privileged},
		counters:          HostCounters{},
		signal:            OSSignal{Timeout: cfg.SignalTimeout},
		target:            cfg.Target,
		count:             cfg.Count,
		timeout:           cfg.Timeout,
		bandwidthInterval: cfg.BandwidthInterval,
	}
	for _, opt := range opts {
		opt(lp)
	}
	return lp
}

// Measure performs one live measurement. It never fails: unmeasurable
// quantities come back as sentinels.
func (lp *LiveProbe) Measure(ctx context.Context) telemetry.Record {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	start := time.Now()
	pm := measurePing(ctx, lp.pinger, lp.target, lp.count, lp.timeout)
	bw := measureBandwidth(ctx, lp.counters, lp.bandwidthInterval)
	sig := lp.signal.SignalStrength(ctx)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if lp.reporter != nil {
		lp.reporter.SetProbeHealthy(pm.Reachable)
	}

	log.Debug().
		Str("target", lp.target).
		Float64("latency_ms", pm.AvgLatencyMs).
		Float64("jitter_ms", pm.JitterMs).
		Float64("packet_loss", pm.PacketLoss).
		Float64("bandwidth_mbps", bw).
		Float64("signal", sig).
		Msg("live telemetry measured")

	return telemetry.Record{
		Latency:        pm.AvgLatencyMs,
		Jitter:         pm.JitterMs,
		PacketLoss:     pm.PacketLoss,
		Bandwidth:      bw,
		SignalStrength: sig,
		Timestamp:      telemetry.NowMillis(),
	}
}

const (
	OriginQueue = "queue"
	OriginLive  = "live"
)

// Reading is a record ready to serve plus where it came from.
type Reading struct {
	Record telemetry.Record
	Origin string
}

// Measurer is implemented by LiveProbe.
type Measurer interface {
	Measure(ctx context.Context) telemetry.Record
}

// Source hands out the next record to decide on: queued records first, a
// live measurement when the queue is empty.
type Source struct {
	queue *telemetry.Queue
	live  Measurer
	now   func() time.Time
}

func NewSource(q *telemetry.Queue, live Measurer) *Source {
	return &Source{queue: q, live: live, now: time.Now}
}

func (s *Source) Next(ctx context.Context) Reading {
	if r, ok := s.queue.Pop(); ok {
		metrics.QueueLength.Set(float64(s.queue.Len()))
		return Reading{Record: r.Rounded(s.now()), Origin: OriginQueue}
	}
	r := s.live.Measure(ctx)
	return Reading{Record: r.Rounded(s.now()), Origin: OriginLive}
}
