// Package demo produces synthetic telemetry sequences for demonstrations.
package demo

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/bilal/switchify-netai/internal/metrics"
	"github.com/bilal/switchify-netai/internal/telemetry"
)

const (
	BurstPoints = 10
	RampPoints  = 12
)

const (
	KindBurst = "ddos_burst"
	KindRamp  = "ramp_attack"
)

// Task is the handle of one running simulator. Simulators cannot be
// cancelled; they always produce their full sequence.
type Task struct {
	ID       string
	Kind     string
	Total    int
	produced atomic.Int32
	done     chan struct{}
}

func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) Produced() int { return int(t.produced.Load()) }

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner starts simulators that append to a shared queue.
type Runner struct {
	queue    *telemetry.Queue
	interval time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	wg      sync.WaitGroup
	running atomic.Int32
}

func NewRunner(q *telemetry.Queue, interval time.Duration, seed int64) *Runner {
	return &Runner{
		queue:    q,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// StartBurst enqueues an instant attack: every point is Critical and
// DDoS-like.
func (r *Runner) StartBurst() *Task {
	return r.start(KindBurst, BurstPoints, r.burstPoint)
}

func (r *Runner) burstPoint(int) telemetry.Record {
	return telemetry.Record{
		Latency:        r.uniform(600, 1200),
		Jitter:         r.uniform(200, 600),
		PacketLoss:     r.uniform(10, 30),
		Bandwidth:      r.uniform(0.05, 1.0),
		SignalStrength: float64(r.intn(30, 80)),
		Timestamp:      telemetry.NowMillis(),
	}
}

// StartRamp enqueues a gradually worsening link, walking the status from
// Degraded through Network Congestion to Critical.
func (r *Runner) StartRamp() *Task {
	return r.start(KindRamp, RampPoints, r.rampPoint)
}

func (r *Runner) rampPoint(i int) telemetry.Record {
	step := float64(i)
	return telemetry.Record{
		Latency:        100 + 50*step,
		Jitter:         20 + 15*step,
		PacketLoss:     math.Min(2*step, 30),
		Bandwidth:      math.Max(10-0.8*step, 0.1),
		SignalStrength: float64(r.intn(30, 80)),
		Timestamp:      telemetry.NowMillis(),
	}
}

func (r *Runner) start(kind string, total int, point func(i int) telemetry.Record) *Task {
	t := &Task{
		ID:    uuid.NewString(),
		Kind:  kind,
		Total: total,
		done:  make(chan struct{}),
	}

	r.wg.Add(1)
	r.running.Add(1)
	metrics.DemoTasksRunning.Inc()

	go func() {
		defer func() {
			r.running.Add(-1)
			metrics.DemoTasksRunning.Dec()
			close(t.done)
			r.wg.Done()
		}()

		logger := log.With().Str("task", t.ID).Str("kind", kind).Logger()
		logger.Info().Int("points", total).Msg("demo simulation started")

		for i := 0; i < total; i++ {
			qlen := r.queue.Push(point(i))
			t.produced.Add(1)
			metrics.TelemetryReceived.WithLabelValues(kind).Inc()
			metrics.QueueLength.Set(float64(qlen))
			logger.Debug().Int("step", i).Int("queue_len", qlen).Msg("demo point appended")

			if i < total-1 {
				time.Sleep(r.interval)
			}
		}
		logger.Info().Msg("demo simulation finished")
	}()

	return t
}

// Running reports how many simulators are still producing.
func (r *Runner) Running() int { return int(r.running.Load()) }

// Wait blocks until every started simulator finishes or ctx ends.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) uniform(lo, hi float64) float64 {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return lo + r.rng.Float64()*(hi-lo)
}

// intn returns an int in [lo, hi].
func (r *Runner) intn(lo, hi int) int {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return lo + r.rng.Intn(hi-lo+1)
}
