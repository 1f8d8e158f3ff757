// Package communicator ships decision events to Kafka with buffering and
// retries.
package communicator

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"github.com/bilal/switchify-netai/internal/config"
	"github.com/bilal/switchify-netai/internal/metrics"
	"github.com/bilal/switchify-netai/internal/models"
)

const (
	maxAttempts = 6
	baseDelay   = 500 * time.Millisecond
)

// Publisher sends decision events to the broker in batches.
type Publisher struct {
	writer       MessageWriter
	queue        chan models.DecisionEvent
	wg           sync.WaitGroup
	sendInterval time.Duration
	batchSize    int
	maxQueue     int
	baseDelay    time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	once         sync.Once
}

// New creates a publisher; it does NOT start the send loop.
func New(cfg config.PublisherConfig, w MessageWriter) *Publisher {
	maxQ := cfg.MaxQueueSize
	if maxQ <= 0 {
		maxQ = 1000
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	interval := cfg.SendInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Publisher{
		writer:       w,
		queue:        make(chan models.DecisionEvent, maxQ),
		sendInterval: interval,
		batchSize:    batch,
		maxQueue:     maxQ,
		baseDelay:    baseDelay,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start background sender loop. Call once.
func (p *Publisher) Start() {
	p.wg.Add(1)
	go p.loop()
	log.Info().Int("queue_capacity", p.maxQueue).Int("batch_size", p.batchSize).Msg("publisher started")
}

// Shutdown stops the loop, bounded by ctx. The loop closes the writer itself
// after its final flush, so a timed-out shutdown never closes it mid-write.
func (p *Publisher) Shutdown(ctx context.Context) {
	log.Info().Msg("publisher shutdown initiated")
	done := make(chan struct{})
	go func() {
		p.once.Do(p.cancel)
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("publisher shutdown complete")
	case <-ctx.Done():
		log.Warn().Msg("publisher shutdown timeout")
	}
}

// Publish enqueues an event. Non-blocking: if the queue is full, the oldest
// event is dropped.
func (p *Publisher) Publish(ev models.DecisionEvent) {
	if ev.CorrelationID == "" {
		ev.CorrelationID = uuid.New().String()
	}

	select {
	case p.queue <- ev:
		return
	default:
	}

	select {
	case <-p.queue:
		metrics.EventsPublished.WithLabelValues("dropped").Inc()
	default:
	}
	select {
	case p.queue <- ev:
	default:
		metrics.EventsPublished.WithLabelValues("dropped").Inc()
		log.Warn().Str("decision_id", ev.ID).Msg("decision event dropped: queue full")
	}
}

func (p *Publisher) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sendInterval)
	defer ticker.Stop()

	buffer := make([]models.DecisionEvent, 0, p.batchSize)

	for {
		select {
		case <-p.ctx.Done():
			for {
				select {
				case ev := <-p.queue:
					buffer = append(buffer, ev)
				default:
					if len(buffer) > 0 {
						p.flushWithRetry(context.Background(), buffer)
					}
					if err := p.writer.Close(); err != nil {
						log.Error().Err(err).Msg("closing kafka writer failed")
					}
					return
				}
			}

		case ev := <-p.queue:
			buffer = append(buffer, ev)
			if len(buffer) >= p.batchSize {
				p.flushWithRetry(p.ctx, buffer)
				buffer = buffer[:0]
			}

		case <-ticker.C:
			if len(buffer) > 0 {
				p.flushWithRetry(p.ctx, buffer)
				buffer = buffer[:0]
			}
		}
	}
}

// flushWithRetry writes the batch and retries with exponential backoff plus
// jitter. The final flush on shutdown runs with a single attempt.
func (p *Publisher) flushWithRetry(ctx context.Context, items []models.DecisionEvent) {
	msgs := make([]kafka.Message, 0, len(items))
	for _, ev := range items {
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Str("decision_id", ev.ID).Msg("marshal decision event failed")
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.CorrelationID),
			Value: data,
			Headers: []kafka.Header{
				{Key: "X-Correlation-ID", Value: []byte(ev.CorrelationID)},
			},
		})
	}
	if len(msgs) == 0 {
		return
	}

	attempts := maxAttempts
	if ctx.Err() == nil && p.ctx.Err() != nil {
		attempts = 1
	}

	var attempt int
	for {
		attempt++
		err := p.writer.WriteMessages(ctx, msgs...)
		if err == nil {
			metrics.EventsPublished.WithLabelValues("ok").Add(float64(len(msgs)))
			log.Info().Int("count", len(msgs)).Msg("decision events published")
			return
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("count", len(msgs)).Msg("decision publish failed, will retry")

		if attempt >= attempts {
			metrics.EventsPublished.WithLabelValues("failed").Add(float64(len(msgs)))
			log.Error().Int("attempts", attempt).Msg("max attempts reached, dropping decision batch")
			return
		}

		backoff := time.Duration(math.Pow(2, float64(attempt-1))) * p.baseDelay
		jitter := time.Duration(rand.Int63n(int64(p.baseDelay) + 1))

		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			metrics.EventsPublished.WithLabelValues("failed").Add(float64(len(msgs)))
			log.Warn().Msg("publisher context cancelled during backoff")
			return
		}
	}
}
