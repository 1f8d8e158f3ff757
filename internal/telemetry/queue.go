package telemetry

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Queue is the FIFO buffer shared by telemetry producers (external pushes,
// demo simulators) and the single consumer serving /telemetry_local.
type Queue struct {
	mu      sync.Mutex
	items   []Record
	maxSize int
	dropped uint64
}

// NewQueue creates a queue. maxSize <= 0 means unbounded; otherwise the
// oldest record is dropped to make room.
func NewQueue(maxSize int) *Queue {
	if maxSize < 0 {
		maxSize = 0
	}
	return &Queue{maxSize: maxSize}
}

// Push appends r and returns the new length.
func (q *Queue) Push(r Record) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		q.items[0] = Record{}
		q.items = q.items[1:]
		q.dropped++
		log.Warn().Int("max_size", q.maxSize).Uint64("dropped_total", q.dropped).
			Msg("telemetry queue full, dropped oldest record")
	}
	q.items = append(q.items, r)
	return len(q.items)
}

// Pop removes and returns the oldest record.
func (q *Queue) Pop() (Record, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return Record{}, false
	}
	r := q.items[0]
	q.items[0] = Record{}
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// release the backing array once drained
		q.items = nil
	}
	return r, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped reports how many records were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
