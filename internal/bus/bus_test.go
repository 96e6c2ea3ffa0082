package bus

import (
	"sync"
	"testing"
	"time"

	"contactdesk/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct {
	mu     sync.Mutex
	events []event.Envelope
}

func (c *counter) handler(evt event.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *counter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *counter) last() event.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[len(c.events)-1]
}

func TestEmit_LocalDispatchIsSynchronous(t *testing.T) {
	b, err := New(NopTransport{}, NewMemoryLastStore())
	require.NoError(t, err)
	defer b.Close()

	var got *event.Envelope
	b.On("contact:changed", func(evt event.Envelope) {
		got = &evt
	})

	b.Emit("contact:changed", event.ContactChanged{ID: "c1"})

	// No waiting: local dispatch happens inside Emit.
	require.NotNil(t, got)
	assert.Equal(t, "contact:changed", got.Type)
	assert.Equal(t, b.OriginID(), got.OriginID)
}

func TestSelfOriginSuppression(t *testing.T) {
	group := NewPipeGroup()
	store := NewMemoryLastStore()

	busA, err := New(group.Transport(), store)
	require.NoError(t, err)
	defer busA.Close()
	busB, err := New(group.Transport(), store)
	require.NoError(t, err)
	defer busB.Close()

	var a, b counter
	busA.On("contact:changed", a.handler)
	busB.On("contact:changed", b.handler)

	busA.Emit("contact:changed", event.ContactChanged{ID: "c1"})

	require.Eventually(t, func() bool { return b.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, busA.OriginID(), b.last().OriginID)

	// The pipe delivered the frame back to busA too; the origin filter must
	// have discarded it, leaving only the synchronous local dispatch.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, a.count())
}

func TestReplayLast(t *testing.T) {
	store := NewMemoryLastStore()

	busA, err := New(NopTransport{}, store)
	require.NoError(t, err)
	defer busA.Close()

	busA.Emit("contact:changed", event.ContactChanged{ID: "c1"})

	// A bus that starts after the event still sees it.
	busB, err := New(NopTransport{}, store)
	require.NoError(t, err)
	defer busB.Close()

	var c counter
	busB.On("contact:changed", c.handler, WithReplayLast())

	// Replay is synchronous with registration.
	require.Equal(t, 1, c.count())
	assert.Equal(t, busA.OriginID(), c.last().OriginID)
}

func TestReplayLast_NeverReplaysOwnEvents(t *testing.T) {
	store := NewMemoryLastStore()

	b, err := New(NopTransport{}, store)
	require.NoError(t, err)
	defer b.Close()

	b.Emit("contact:changed", event.ContactChanged{ID: "c1"})

	var c counter
	b.On("contact:changed", c.handler, WithReplayLast())

	assert.Equal(t, 0, c.count())
}

func TestReplayLast_NoPriorEvent(t *testing.T) {
	b, err := New(NopTransport{}, NewMemoryLastStore())
	require.NoError(t, err)
	defer b.Close()

	var c counter
	b.On("contact:changed", c.handler, WithReplayLast())

	assert.Equal(t, 0, c.count())
}

func TestReplayLast_KeyedPerType(t *testing.T) {
	store := NewMemoryLastStore()

	busA, err := New(NopTransport{}, store)
	require.NoError(t, err)
	defer busA.Close()

	busA.Emit("contact:changed", event.ContactChanged{ID: "c1"})
	busA.Emit("contact:deleted", event.ContactDeleted{ID: "c2"})

	busB, err := New(NopTransport{}, store)
	require.NoError(t, err)
	defer busB.Close()

	// A later event of another type must not starve replay for this one.
	var c counter
	busB.On("contact:changed", c.handler, WithReplayLast())

	require.Equal(t, 1, c.count())
	assert.Equal(t, "contact:changed", c.last().Type)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b, err := New(NopTransport{}, NewMemoryLastStore())
	require.NoError(t, err)
	defer b.Close()

	var c counter
	off := b.On("contact:changed", c.handler)

	off()
	assert.NotPanics(t, func() { off() })

	b.Emit("contact:changed", event.ContactChanged{ID: "c1"})
	assert.Equal(t, 0, c.count())
}

func TestHandlerPanicIsolation(t *testing.T) {
	b, err := New(NopTransport{}, NewMemoryLastStore())
	require.NoError(t, err)
	defer b.Close()

	b.On("contact:changed", func(event.Envelope) {
		panic("broken handler")
	})
	var c counter
	b.On("contact:changed", c.handler)

	assert.NotPanics(t, func() {
		b.Emit("contact:changed", event.ContactChanged{ID: "c1"})
	})
	assert.Equal(t, 1, c.count())
}

func TestOnAny(t *testing.T) {
	b, err := New(NopTransport{}, NewMemoryLastStore())
	require.NoError(t, err)
	defer b.Close()

	var c counter
	off := b.OnAny(c.handler)
	defer off()

	b.Emit("contact:changed", event.ContactChanged{ID: "c1"})
	b.Emit("contact:deleted", event.ContactDeleted{ID: "c2"})

	assert.Equal(t, 2, c.count())
}

func TestOriginIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newOriginID()
		require.False(t, seen[id], "duplicate origin id %s", id)
		seen[id] = true
	}
}
