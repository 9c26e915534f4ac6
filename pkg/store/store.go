// Package store defines the table-oriented persistent-store interface the
// node consumes for message, adapter, and metrics durability (§6), plus an
// in-memory reference implementation suitable for tests and single-session
// operation. A concrete on-disk store is outside this package's scope: any
// implementation satisfying Store can be substituted by the node's wiring.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a lookup by primary key finds no row.
var ErrNotFound = errors.New("store: not found")

// MessageStatus tracks a stored message's lifecycle for the messages table.
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusDropped   MessageStatus = "dropped"
	MessageStatusExpired   MessageStatus = "expired"
)

// MessageRecord is one row of the messages table.
type MessageRecord struct {
	ID          string
	Destination string
	Payload     []byte
	Priority    int
	Status      MessageStatus
	CreatedAt   int64
	UpdatedAt   int64
}

// AdapterRecord is one row of the adapters table: the persisted
// configuration state of a registered transport adapter.
type AdapterRecord struct {
	Name        string
	AdapterType string
	Enabled     bool
	LastSeen    int64
}

// MetricSample is one row of the metrics table: a single point-in-time
// observation of an adapter's performance toward a destination.
type MetricSample struct {
	ID           int64
	AdapterName  string
	Destination  string
	LatencyMs    float64
	BandwidthBps float64
	Reliability  float64
	Timestamp    int64
}

// MessageStore persists the messages table.
type MessageStore interface {
	PutMessage(ctx context.Context, m MessageRecord) error
	GetMessage(ctx context.Context, id string) (MessageRecord, error)
	UpdateMessageStatus(ctx context.Context, id string, status MessageStatus, updatedAt int64) error
	ListMessagesByStatus(ctx context.Context, status MessageStatus) ([]MessageRecord, error)
	DeleteMessage(ctx context.Context, id string) error
}

// AdapterStore persists the adapters table.
type AdapterStore interface {
	PutAdapter(ctx context.Context, a AdapterRecord) error
	GetAdapter(ctx context.Context, name string) (AdapterRecord, error)
	ListAdapters(ctx context.Context) ([]AdapterRecord, error)
	DeleteAdapter(ctx context.Context, name string) error
}

// MetricsStore persists the metrics table.
type MetricsStore interface {
	AppendMetric(ctx context.Context, sample MetricSample) error
	ListMetrics(ctx context.Context, adapterName string, since int64) ([]MetricSample, error)
}

// Store is the full table-oriented persistence surface the node depends on.
type Store interface {
	MessageStore
	AdapterStore
	MetricsStore

	// Close releases any resources held by the store.
	Close() error
}
