package store

import (
	"context"
	"testing"
)

func TestMemoryStore_PutAndGetMessage(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	msg := MessageRecord{ID: "m1", Destination: "dest", Priority: 128, Status: MessageStatusQueued, CreatedAt: 1}

	if err := s.PutMessage(ctx, msg); err != nil {
		t.Fatalf("PutMessage: %v", err)
	}
	got, err := s.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Destination != "dest" {
		t.Fatalf("Destination = %q, want %q", got.Destination, "dest")
	}
}

func TestMemoryStore_GetMessageNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetMessage(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateMessageStatus(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.PutMessage(ctx, MessageRecord{ID: "m1", Status: MessageStatusQueued, CreatedAt: 1})

	if err := s.UpdateMessageStatus(ctx, "m1", MessageStatusDelivered, 42); err != nil {
		t.Fatalf("UpdateMessageStatus: %v", err)
	}
	got, _ := s.GetMessage(ctx, "m1")
	if got.Status != MessageStatusDelivered || got.UpdatedAt != 42 {
		t.Fatalf("unexpected record after update: %+v", got)
	}
}

func TestMemoryStore_ListMessagesByStatusOrdersByCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.PutMessage(ctx, MessageRecord{ID: "m2", Status: MessageStatusQueued, CreatedAt: 20})
	_ = s.PutMessage(ctx, MessageRecord{ID: "m1", Status: MessageStatusQueued, CreatedAt: 10})
	_ = s.PutMessage(ctx, MessageRecord{ID: "m3", Status: MessageStatusDelivered, CreatedAt: 5})

	queued, err := s.ListMessagesByStatus(ctx, MessageStatusQueued)
	if err != nil {
		t.Fatalf("ListMessagesByStatus: %v", err)
	}
	if len(queued) != 2 || queued[0].ID != "m1" || queued[1].ID != "m2" {
		t.Fatalf("unexpected order: %+v", queued)
	}
}

func TestMemoryStore_AdapterLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := AdapterRecord{Name: "eth0", AdapterType: "ethernet", Enabled: true, LastSeen: 1}

	if err := s.PutAdapter(ctx, rec); err != nil {
		t.Fatalf("PutAdapter: %v", err)
	}
	got, err := s.GetAdapter(ctx, "eth0")
	if err != nil || got.AdapterType != "ethernet" {
		t.Fatalf("GetAdapter: %+v, %v", got, err)
	}
	if err := s.DeleteAdapter(ctx, "eth0"); err != nil {
		t.Fatalf("DeleteAdapter: %v", err)
	}
	if _, err := s.GetAdapter(ctx, "eth0"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_AppendAndListMetrics(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_ = s.AppendMetric(ctx, MetricSample{AdapterName: "eth0", Destination: "peer", LatencyMs: 10, Timestamp: 100})
	_ = s.AppendMetric(ctx, MetricSample{AdapterName: "eth0", Destination: "peer", LatencyMs: 20, Timestamp: 200})
	_ = s.AppendMetric(ctx, MetricSample{AdapterName: "bt0", Destination: "peer", LatencyMs: 5, Timestamp: 150})

	samples, err := s.ListMetrics(ctx, "eth0", 150)
	if err != nil {
		t.Fatalf("ListMetrics: %v", err)
	}
	if len(samples) != 1 || samples[0].LatencyMs != 20 {
		t.Fatalf("unexpected samples: %+v", samples)
	}
}
