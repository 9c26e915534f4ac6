package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/myriadmesh/myriadmesh/pkg/wire"
)

// Manager registers and supervises the node's transport adapters (§4.5).
// It mirrors the teacher's transport Registry but owns each adapter's
// lifecycle rather than just naming it.
type Manager struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	metrics  map[string]*Metrics
	names    []string // registration order, for deterministic tie-breaking (§4.6)
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{
		adapters: make(map[string]Adapter),
		metrics:  make(map[string]*Metrics),
	}
}

// RegisterAdapter initializes and starts adapter, adding it under name on
// success. If either step fails the adapter is discarded and the error is
// returned; the manager never holds a half-started adapter.
func (m *Manager) RegisterAdapter(ctx context.Context, name string, adapter Adapter) error {
	if err := adapter.Initialize(ctx); err != nil {
		return wire.NewNetworkError(wire.CodeInitializationFailed, fmt.Sprintf("adapter %q: initialize: %v", name, err))
	}
	if err := adapter.Start(ctx); err != nil {
		return wire.NewNetworkError(wire.CodeInitializationFailed, fmt.Sprintf("adapter %q: start: %v", name, err))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.adapters[name]; !exists {
		m.names = append(m.names, name)
	}
	m.adapters[name] = adapter
	m.metrics[name] = NewMetrics(adapter.GetCapabilities())
	return nil
}

// Unregister stops and removes the named adapter.
func (m *Manager) Unregister(ctx context.Context, name string) error {
	m.mu.Lock()
	adapter, ok := m.adapters[name]
	delete(m.adapters, name)
	delete(m.metrics, name)
	for i, n := range m.names {
		if n == name {
			m.names = append(m.names[:i], m.names[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if !ok {
		return wire.NewNetworkError(wire.CodeAdapterNotFound, fmt.Sprintf("adapter %q not registered", name))
	}
	return adapter.Stop(ctx)
}

// Get returns the named adapter.
func (m *Manager) Get(name string) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[name]
	return a, ok
}

// Metrics returns the named adapter's metrics tracker.
func (m *Manager) Metrics(name string) (*Metrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mt, ok := m.metrics[name]
	return mt, ok
}

// All returns a snapshot of every registered adapter keyed by name.
func (m *Manager) All() map[string]Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Adapter, len(m.adapters))
	for name, a := range m.adapters {
		out[name] = a
	}
	return out
}

// order returns every registered (name, adapter) pair in registration order,
// the tie-breaking order the selection engine relies on (§4.6).
func (m *Manager) order() []candidate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]candidate, 0, len(m.names))
	for _, name := range m.names {
		if a, ok := m.adapters[name]; ok {
			out = append(out, candidate{name: name, adapter: a})
		}
	}
	return out
}

// FindByType returns every registered adapter of the given transport type.
func (m *Manager) FindByType(t AdapterType) []Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Adapter
	for _, a := range m.adapters {
		if a.Type() == t {
			out = append(out, a)
		}
	}
	return out
}

// HealthCheckAll queries GetStatus on every registered adapter concurrently
// and returns the results keyed by name.
func (m *Manager) HealthCheckAll() map[string]Status {
	adapters := m.All()
	results := make(map[string]Status, len(adapters))

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, adapter := range adapters {
		wg.Add(1)
		go func(name string, adapter Adapter) {
			defer wg.Done()
			status := adapter.GetStatus()
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, adapter)
	}
	wg.Wait()
	return results
}

// StopAll stops every registered adapter sequentially, continuing past
// individual failures and returning the last error encountered, if any.
func (m *Manager) StopAll(ctx context.Context) error {
	adapters := m.All()
	var lastErr error
	for name, adapter := range adapters {
		if err := adapter.Stop(ctx); err != nil {
			lastErr = fmt.Errorf("adapter %q: %w", name, err)
		}
	}

	m.mu.Lock()
	m.adapters = make(map[string]Adapter)
	m.metrics = make(map[string]*Metrics)
	m.names = nil
	m.mu.Unlock()

	return lastErr
}
