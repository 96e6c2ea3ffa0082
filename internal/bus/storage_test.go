package bus

import (
	"context"
	"testing"
	"time"

	"contactdesk/internal/domain/event"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageTransport_DeliversAcrossSessions(t *testing.T) {
	dir := t.TempDir()

	ta, err := NewStorageTransport(dir, 10*time.Millisecond)
	require.NoError(t, err)
	tb, err := NewStorageTransport(dir, 10*time.Millisecond)
	require.NoError(t, err)

	storeA, err := NewFileLastStore(dir)
	require.NoError(t, err)
	storeB, err := NewFileLastStore(dir)
	require.NoError(t, err)

	busA, err := New(ta, storeA)
	require.NoError(t, err)
	defer busA.Close()
	busB, err := New(tb, storeB)
	require.NoError(t, err)
	defer busB.Close()

	var a, b counter
	busA.On("contact:changed", a.handler)
	busB.On("contact:changed", b.handler)

	busA.Emit("contact:changed", event.ContactChanged{ID: "c1"})

	require.Eventually(t, func() bool { return b.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, busA.OriginID(), b.last().OriginID)

	// The writer must not re-read its own frame.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, a.count())
}

func TestStorageTransport_IgnoresPreexistingFrame(t *testing.T) {
	dir := t.TempDir()

	writer, err := NewStorageTransport(dir, 10*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, writer.Publish(context.Background(), []byte(`{"type":"contact:changed"}`)))

	// A transport subscribing later must not treat the old frame as live
	// traffic; catching up is the replay store's job.
	late, err := NewStorageTransport(dir, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got int
	ch := make(chan struct{}, 1)
	require.NoError(t, late.Subscribe(ctx, func([]byte) {
		got++
		ch <- struct{}{}
	}))

	select {
	case <-ch:
		t.Fatalf("pre-existing frame was delivered")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, 0, got)
}

func TestFileLastStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileLastStore(dir)
	require.NoError(t, err)

	evt, err := event.NewEnvelope("contact:changed", event.ContactChanged{ID: "c1"})
	require.NoError(t, err)
	evt.OriginID = "session-1"
	require.NoError(t, store.Save(ctx, evt))

	// A fresh store over the same directory models a reopened session.
	reopened, err := NewFileLastStore(dir)
	require.NoError(t, err)

	got, ok, err := reopened.LoadLastFor(ctx, "contact:changed")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "session-1", got.OriginID)

	_, ok, err = reopened.LoadLastFor(ctx, "contact:deleted")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileLastStore_LastWriteWinsPerType(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileLastStore(dir)
	require.NoError(t, err)

	first, err := event.NewEnvelope("contact:changed", event.ContactChanged{ID: "c1"})
	require.NoError(t, err)
	second, err := event.NewEnvelope("contact:changed", event.ContactChanged{ID: "c2"})
	require.NoError(t, err)
	other, err := event.NewEnvelope("contact:deleted", event.ContactDeleted{ID: "c3"})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, first))
	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Save(ctx, other))

	got, ok, err := store.LoadLastFor(ctx, "contact:changed")
	require.NoError(t, err)
	require.True(t, ok)

	p, err := event.DecodePayload(got)
	require.NoError(t, err)
	assert.Equal(t, "c2", p.(event.ContactChanged).ID)
}
