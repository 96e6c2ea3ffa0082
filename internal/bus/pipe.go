package bus

import (
	"context"
	"sync"
)

// PipeGroup connects buses inside one process. Like the Redis transport it
// fans every published frame out to all members, publisher included, so the
// origin filter is exercised the same way. Used in tests and demos.
type PipeGroup struct {
	mu      sync.Mutex
	members []*PipeTransport
}

func NewPipeGroup() *PipeGroup {
	return &PipeGroup{}
}

// Transport adds a member to the group.
func (g *PipeGroup) Transport() *PipeTransport {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := &PipeTransport{group: g}
	g.members = append(g.members, t)
	return t
}

func (g *PipeGroup) broadcast(data []byte) {
	g.mu.Lock()
	members := append([]*PipeTransport(nil), g.members...)
	g.mu.Unlock()

	for _, m := range members {
		m.mu.Lock()
		fn := m.fn
		m.mu.Unlock()
		if fn != nil {
			fn(data)
		}
	}
}

type PipeTransport struct {
	group *PipeGroup
	mu    sync.Mutex
	fn    func([]byte)
}

func (t *PipeTransport) Publish(_ context.Context, data []byte) error {
	t.group.broadcast(data)
	return nil
}

func (t *PipeTransport) Subscribe(_ context.Context, fn func(data []byte)) error {
	t.mu.Lock()
	t.fn = fn
	t.mu.Unlock()
	return nil
}

func (t *PipeTransport) Close() error { return nil }
