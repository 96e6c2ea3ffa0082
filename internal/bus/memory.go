package bus

import (
	"context"
	"sync"

	"contactdesk/internal/domain/event"
)

// MemoryLastStore keeps the last event per type in memory. It does not
// survive a restart; used in tests and when no shared storage is available.
type MemoryLastStore struct {
	mu     sync.Mutex
	events map[string]event.Envelope
}

func NewMemoryLastStore() *MemoryLastStore {
	return &MemoryLastStore{events: make(map[string]event.Envelope)}
}

func (s *MemoryLastStore) Save(_ context.Context, evt event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[evt.Type] = evt
	return nil
}

func (s *MemoryLastStore) LoadLastFor(_ context.Context, evtType string) (event.Envelope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evt, ok := s.events[evtType]
	return evt, ok, nil
}

// NopTransport delivers nothing. It keeps a bus usable when every transport
// failed to initialize: local dispatch and replay still work.
type NopTransport struct{}

func (NopTransport) Publish(context.Context, []byte) error { return nil }

func (NopTransport) Subscribe(context.Context, func([]byte)) error { return nil }

func (NopTransport) Close() error { return nil }
