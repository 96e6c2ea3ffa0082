package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contactdesk/internal/domain/event"

	"github.com/google/uuid"
)

// Handler receives a bus event. Handlers must be idempotent: the bus does no
// message-id deduplication, so replay and a live broadcast can both deliver
// logically-the-same change.
type Handler func(evt event.Envelope)

type subscription struct {
	evtType string // empty for wildcard
	handler Handler
}

// Bus fans events out to every other session on the same device. Local
// subscribers are dispatched synchronously at emit time; the cross-session
// leg is fire-and-forget. A session never receives its own event back
// through the transport.
type Bus struct {
	originID  string
	transport Transport
	store     LastEventStore

	mu   sync.Mutex
	subs []*subscription

	sendq  chan event.Envelope
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// New builds a bus and starts its transport receive loop and publish pump.
// Close must be called to release them.
func New(transport Transport, store LastEventStore) (*Bus, error) {
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		originID:  newOriginID(),
		transport: transport,
		store:     store,
		sendq:     make(chan event.Envelope, 64),
		ctx:       ctx,
		cancel:    cancel,
	}

	if err := transport.Subscribe(ctx, b.receive); err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe transport: %w", err)
	}

	b.wg.Add(1)
	go b.pump()

	return b, nil
}

// OriginID identifies this session for the lifetime of the bus.
func (b *Bus) OriginID() string {
	return b.originID
}

// Emit stamps the envelope with this session's origin, dispatches it
// synchronously to local subscribers, persists it as the last event of its
// type, then broadcasts it to other sessions. Emit never fails from the
// caller's point of view: a lost cross-session notification degrades UX,
// it must not break the session that performed the write.
func (b *Bus) Emit(evtType string, payload any) {
	evt, err := event.NewEnvelope(evtType, payload)
	if err != nil {
		slog.Warn("bus: dropping unencodable event", "type", evtType, "error", err)
		return
	}
	evt.OriginID = b.originID

	eventsEmitted.WithLabelValues(evtType).Inc()

	// Local subscribers first, so the emitting session's own state is
	// current before any other session can react.
	b.dispatch(evt)

	if err := b.store.Save(b.ctx, evt); err != nil {
		slog.Debug("bus: last-event save failed", "type", evtType, "error", err)
	}

	select {
	case b.sendq <- evt:
	default:
		eventsDropped.Inc()
		slog.Warn("bus: publish queue full, dropping event", "type", evtType)
	}
}

// On registers handler for events of evtType. With WithReplayLast, the most
// recent stored event of that type is delivered once, synchronously, before
// On returns, unless this session emitted it. The returned function removes
// the handler; calling it twice is a no-op.
func (b *Bus) On(evtType string, handler Handler, opts ...Option) func() {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sub := &subscription{evtType: evtType, handler: handler}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	if o.replayLast {
		if evt, ok, err := b.store.LoadLastFor(b.ctx, evtType); err != nil {
			slog.Debug("bus: replay load failed", "type", evtType, "error", err)
		} else if ok && evt.OriginID != b.originID {
			b.invoke(sub, evt)
		}
	}

	return func() { b.remove(sub) }
}

// OnAny registers a wildcard handler invoked for every event. Diagnostics
// only, not domain logic.
func (b *Bus) OnAny(handler Handler) func() {
	sub := &subscription{handler: handler}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return func() { b.remove(sub) }
}

// Close stops the transport and the publish pump. Queued events that have
// not been broadcast yet are discarded.
func (b *Bus) Close() error {
	var err error
	b.once.Do(func() {
		b.cancel()
		b.wg.Wait()
		err = b.transport.Close()
	})
	return err
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s == sub {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// receive is the transport delivery path. Events this session emitted are
// discarded here: the only way a session observes its own event is the
// synchronous local dispatch inside Emit.
func (b *Bus) receive(data []byte) {
	var evt event.Envelope
	if err := json.Unmarshal(data, &evt); err != nil {
		slog.Warn("bus: discarding malformed event", "error", err)
		return
	}
	if evt.OriginID == b.originID {
		return
	}
	eventsReceived.WithLabelValues(evt.Type).Inc()
	b.dispatch(evt)
}

func (b *Bus) dispatch(evt event.Envelope) {
	b.mu.Lock()
	matched := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.evtType == "" || s.evtType == evt.Type {
			matched = append(matched, s)
		}
	}
	b.mu.Unlock()

	for _, s := range matched {
		b.invoke(s, evt)
	}
}

// invoke isolates handler panics so one failing handler cannot starve the
// rest of the dispatch.
func (b *Bus) invoke(sub *subscription, evt event.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			handlerPanics.Inc()
			slog.Error("bus: handler panicked", "type", evt.Type, "panic", r)
		}
	}()
	sub.handler(evt)
}

func (b *Bus) pump() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case evt := <-b.sendq:
			data, err := json.Marshal(evt)
			if err != nil {
				slog.Warn("bus: marshal for broadcast failed", "type", evt.Type, "error", err)
				continue
			}
			ctx, cancel := context.WithTimeout(b.ctx, 5*time.Second)
			if err := b.transport.Publish(ctx, data); err != nil {
				slog.Warn("bus: broadcast failed", "type", evt.Type, "error", err)
			}
			cancel()
		}
	}
}

// newOriginID derives a session identifier from the current time plus a
// random suffix. Collision between two live sessions is negligible.
func newOriginID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

type options struct {
	replayLast bool
}

// Option configures a subscription.
type Option func(*options)

// WithReplayLast delivers the stored last event of the subscribed type, if
// another session emitted one, immediately on registration.
func WithReplayLast() Option {
	return func(o *options) { o.replayLast = true }
}
