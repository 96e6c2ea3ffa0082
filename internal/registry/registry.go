// Package registry wires bus events to local cached-view maintenance. It
// drives an external query cache; it does not implement caching itself.
package registry

import (
	"log/slog"
	"sync"

	"contactdesk/internal/bus"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/domain/event"
)

// QueryCache is the collaborator holding cached views. Invalidate marks a
// view stale so the next access refetches; Remove drops it entirely; Patch
// applies an in-place update to the cached value, if present.
type QueryCache interface {
	Invalidate(key string)
	Remove(key string)
	Patch(key string, apply func(value any) any)
}

// ListKey is the cached view of the contact list.
const ListKey = "contacts:list"

// DetailKey is the cached view of one contact.
func DetailKey(id string) string {
	return "contacts:detail:" + id
}

var registerOnceMu sync.Mutex
var registered = make(map[string]bool)

// RegisterOnce runs fn at most once per process lifetime for the given name,
// however many entry points bootstrap the same feature.
func RegisterOnce(name string, fn func()) {
	registerOnceMu.Lock()
	defer registerOnceMu.Unlock()
	if registered[name] {
		return
	}
	registered[name] = true
	fn()
}

// RegisterContactSubscriptions subscribes the cache to contact events, with
// replay so a session that starts after a change still catches up. The
// returned teardown unregisters both handlers; skipping it leaks handlers
// that keep firing for the life of the bus.
func RegisterContactSubscriptions(b *bus.Bus, cache QueryCache) func() {
	offChanged := b.On(event.TypeContactChanged, func(evt event.Envelope) {
		p, err := event.DecodePayload(evt)
		if err != nil {
			slog.Warn("registry: bad contact:changed payload", "error", err)
			return
		}
		changed := p.(event.ContactChanged)
		if changed.ID == "" {
			return
		}

		// Optimistic patch first so the list reflects the change before
		// any refetch completes.
		if changed.Summary != nil {
			cache.Patch(ListKey, patchList(changed.ID, changed.Summary))
		}
		cache.Invalidate(ListKey)
		cache.Invalidate(DetailKey(changed.ID))
	}, bus.WithReplayLast())

	offDeleted := b.On(event.TypeContactDeleted, func(evt event.Envelope) {
		p, err := event.DecodePayload(evt)
		if err != nil {
			slog.Warn("registry: bad contact:deleted payload", "error", err)
			return
		}
		deleted := p.(event.ContactDeleted)
		if deleted.ID == "" {
			return
		}

		cache.Invalidate(ListKey)
		// Remove, not invalidate: refetching a deleted contact would 404.
		cache.Remove(DetailKey(deleted.ID))
	}, bus.WithReplayLast())

	return func() {
		offChanged()
		offDeleted()
	}
}

// patchList folds a summary into a cached []*contact.Contact list view.
// Values of any other shape are left untouched.
func patchList(id string, summary *event.ContactSummary) func(value any) any {
	return func(value any) any {
		list, ok := value.([]*contact.Contact)
		if !ok {
			return value
		}
		for _, c := range list {
			if c.ID == id {
				c.Name = summary.Name
				c.Kind = summary.Kind
			}
		}
		return list
	}
}
