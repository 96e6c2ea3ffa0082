package bus

import (
	"context"

	"contactdesk/internal/domain/event"
)

// Transport carries serialized envelopes between sessions on one device.
// Delivery is best effort: the server's version-token check, not the
// transport, decides which write wins.
type Transport interface {
	// Publish broadcasts data to every other session. Implementations may
	// also deliver to the publishing session; the bus filters self-origin
	// events on the receive path.
	Publish(ctx context.Context, data []byte) error
	// Subscribe starts delivering incoming frames to fn until ctx is done.
	Subscribe(ctx context.Context, fn func(data []byte)) error
	Close() error
}

// LastEventStore keeps the most recent event per type so a session that
// starts later can replay it. Keyed by event type: a burst of unrelated
// events must not starve replay for another type.
type LastEventStore interface {
	Save(ctx context.Context, evt event.Envelope) error
	LoadLastFor(ctx context.Context, evtType string) (event.Envelope, bool, error)
}
