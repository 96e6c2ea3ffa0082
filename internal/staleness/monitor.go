// Package staleness surfaces "this record changed elsewhere" notices for a
// contact that is open for editing. It only exposes signals and callbacks;
// rendering belongs to whatever UI layer consumes them.
package staleness

import (
	"context"
	"log/slog"
	"sync"

	"contactdesk/internal/bus"
	"contactdesk/internal/client"
	"contactdesk/internal/domain/contact"
	"contactdesk/internal/domain/event"
)

type NoticeKind int

const (
	// NoticeChanged: the contact was edited in another session. Dismissible;
	// a submit after dismissal is still guarded by the server's version check.
	NoticeChanged NoticeKind = iota
	// NoticeDeleted: the contact is gone. Not dismissible; submission is
	// blocked.
	NoticeDeleted
)

type Notice struct {
	Kind        NoticeKind
	ContactID   string
	Summary     *event.ContactSummary
	Dismissible bool
}

// Monitor builds watchers over the session bus.
type Monitor struct {
	bus    *bus.Bus
	client *client.Client
}

func NewMonitor(b *bus.Bus, c *client.Client) *Monitor {
	return &Monitor{bus: b, client: c}
}

// Watch raises notices for events touching exactly the given contact id.
// Events for other ids never fire, and neither do this session's own
// events: the session that performed the write already holds the fresh
// state from the HTTP response.
func (m *Monitor) Watch(id string, onNotice func(Notice)) *Watcher {
	w := &Watcher{monitor: m, id: id, onNotice: onNotice}

	offChanged := m.bus.On(event.TypeContactChanged, func(evt event.Envelope) {
		if evt.OriginID == m.bus.OriginID() {
			return
		}
		p, err := event.DecodePayload(evt)
		if err != nil {
			slog.Warn("staleness: bad payload", "error", err)
			return
		}
		changed := p.(event.ContactChanged)
		if changed.ID != id {
			return
		}
		w.raise(Notice{Kind: NoticeChanged, ContactID: id, Summary: changed.Summary, Dismissible: true})
	})

	offDeleted := m.bus.On(event.TypeContactDeleted, func(evt event.Envelope) {
		if evt.OriginID == m.bus.OriginID() {
			return
		}
		p, err := event.DecodePayload(evt)
		if err != nil {
			slog.Warn("staleness: bad payload", "error", err)
			return
		}
		deleted := p.(event.ContactDeleted)
		if deleted.ID != id {
			return
		}
		w.raise(Notice{Kind: NoticeDeleted, ContactID: id, Dismissible: false})
	})

	w.unsubscribe = func() {
		offChanged()
		offDeleted()
	}
	return w
}

// Watcher tracks staleness state for one contact under edit.
type Watcher struct {
	monitor  *Monitor
	id       string
	onNotice func(Notice)

	mu          sync.Mutex
	notice      *Notice
	deleted     bool
	unsubscribe func()
}

func (w *Watcher) raise(n Notice) {
	w.mu.Lock()
	w.notice = &n
	if n.Kind == NoticeDeleted {
		w.deleted = true
	}
	w.mu.Unlock()

	if w.onNotice != nil {
		w.onNotice(n)
	}
}

// Notice returns the current notice, if one is pending.
func (w *Watcher) Notice() (Notice, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notice == nil {
		return Notice{}, false
	}
	return *w.notice, true
}

// Dismiss clears a changed notice without refetching. Deleted notices stay:
// the record is gone and further submission stays blocked.
func (w *Watcher) Dismiss() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notice != nil && w.notice.Kind == NoticeChanged {
		w.notice = nil
	}
}

// SubmitAllowed reports whether the edit view may still submit writes.
func (w *Watcher) SubmitAllowed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.deleted
}

// Reload refetches the contact, clearing a pending changed notice. The
// caller decides whether to merge or replace its local edit state.
func (w *Watcher) Reload(ctx context.Context) (*contact.Contact, error) {
	fresh, err := w.monitor.client.Get(ctx, w.id)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	if w.notice != nil && w.notice.Kind == NoticeChanged {
		w.notice = nil
	}
	w.mu.Unlock()
	return fresh, nil
}

// Close detaches the watcher from the bus.
func (w *Watcher) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
}
