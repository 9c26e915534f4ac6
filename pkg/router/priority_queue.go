package router

import (
	"context"
	"sync"
	"time"

	"github.com/myriadmesh/myriadmesh/pkg/constants"
	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// QueuedMessage is an outbound message waiting for the drain loop to invoke
// the selection engine on its behalf.
type QueuedMessage struct {
	Frame      *wire.Frame
	Message    *wire.Message
	NextHop    wire.NodeId
	EnqueuedAt time.Time
}

// PriorityQueue holds outbound messages in per-band FIFOs so the router
// never blocks on an adapter send: Ingress/Egress enqueue, a single drain
// goroutine dequeues highest-priority-first (§4.4).
type PriorityQueue struct {
	mu       [wire.NumPriorityBands]sync.Mutex
	bands    [wire.NumPriorityBands][]*QueuedMessage
	capacity int
	signal   chan struct{}
}

// NewPriorityQueue creates a queue with capacityPerBand slots in each of the
// five priority bands. A non-positive capacityPerBand falls back to the
// configured default.
func NewPriorityQueue(capacityPerBand int) *PriorityQueue {
	if capacityPerBand <= 0 {
		capacityPerBand = constants.PriorityQueueCapacityPerBand
	}
	return &PriorityQueue{
		capacity: capacityPerBand,
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue places item into the band matching its message priority. When the
// band is full, Background/Low/Normal/High insertions fail with CacheFull;
// an Emergency insertion instead evicts the oldest same-band message to make
// room, per §4.4.
func (q *PriorityQueue) Enqueue(item *QueuedMessage) error {
	band := item.Message.Priority.BandIndex()
	q.mu[band].Lock()
	defer q.mu[band].Unlock()

	if len(q.bands[band]) >= q.capacity {
		if item.Message.Priority.Band() != wire.PriorityBandEmergency {
			return wire.NewRoutingError(wire.CodeCacheFull, "priority queue band full")
		}
		q.bands[band] = q.bands[band][1:]
	}

	q.bands[band] = append(q.bands[band], item)
	q.wake()
	return nil
}

func (q *PriorityQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// tryDequeue returns the oldest message from the highest non-empty band
// without blocking.
func (q *PriorityQueue) tryDequeue() (*QueuedMessage, bool) {
	for band := wire.NumPriorityBands - 1; band >= 0; band-- {
		q.mu[band].Lock()
		if len(q.bands[band]) > 0 {
			item := q.bands[band][0]
			q.bands[band] = q.bands[band][1:]
			q.mu[band].Unlock()
			return item, true
		}
		q.mu[band].Unlock()
	}
	return nil, false
}

// Dequeue blocks until a message is available or ctx is canceled.
func (q *PriorityQueue) Dequeue(ctx context.Context) (*QueuedMessage, bool) {
	for {
		if item, ok := q.tryDequeue(); ok {
			return item, true
		}
		select {
		case <-q.signal:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Len returns the total number of messages queued across all bands.
func (q *PriorityQueue) Len() int {
	total := 0
	for band := range q.bands {
		q.mu[band].Lock()
		total += len(q.bands[band])
		q.mu[band].Unlock()
	}
	return total
}
