package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"contactdesk/internal/domain/event"

	"github.com/google/uuid"
)

// StorageTransport is the fallback when Redis is unavailable: sessions share
// a single on-device file and poll it for changes. Each write carries a
// fresh nonce so readers can tell a new frame from the one they already saw.
// Self-suppression is not left to the storage layer; the bus filters by
// origin on the receive path.
type StorageTransport struct {
	path     string
	interval time.Duration

	mu       sync.Mutex
	lastSeen string
}

type storageFrame struct {
	Nonce string          `json:"nonce"`
	Event json.RawMessage `json:"event"`
}

func NewStorageTransport(dir string, interval time.Duration) (*StorageTransport, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bus storage dir: %w", err)
	}
	return &StorageTransport{
		path:     filepath.Join(dir, "event.json"),
		interval: interval,
	}, nil
}

func (t *StorageTransport) Publish(ctx context.Context, data []byte) error {
	frame := storageFrame{Nonce: uuid.NewString(), Event: data}
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal storage frame: %w", err)
	}
	if err := writeFileAtomic(t.path, raw); err != nil {
		return fmt.Errorf("write bus storage: %w", err)
	}
	// Remember our own nonce so the next poll does not re-read it. The
	// origin filter would discard it anyway; this just saves the parse.
	t.mu.Lock()
	t.lastSeen = frame.Nonce
	t.mu.Unlock()
	return nil
}

func (t *StorageTransport) Subscribe(ctx context.Context, fn func(data []byte)) error {
	// Prime with whatever is already on disk: pre-existing events belong to
	// the replay path, not the live transport.
	if frame, ok := t.readFrame(); ok {
		t.mu.Lock()
		t.lastSeen = frame.Nonce
		t.mu.Unlock()
	}

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.scan(fn)
			}
		}
	}()
	return nil
}

func (t *StorageTransport) scan(fn func(data []byte)) {
	frame, ok := t.readFrame()
	if !ok {
		return
	}
	t.mu.Lock()
	seen := t.lastSeen == frame.Nonce
	if !seen {
		t.lastSeen = frame.Nonce
	}
	t.mu.Unlock()
	if !seen {
		fn(frame.Event)
	}
}

func (t *StorageTransport) readFrame() (storageFrame, bool) {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Debug("bus: storage read failed", "error", err)
		}
		return storageFrame{}, false
	}
	var frame storageFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		// Torn read during a concurrent rename; the next poll gets it.
		return storageFrame{}, false
	}
	return frame, true
}

func (t *StorageTransport) Close() error { return nil }

// FileLastStore persists the last event per type in a shared JSON file,
// overwritten on every save. Last write wins; the store is advisory.
type FileLastStore struct {
	path string
	mu   sync.Mutex
}

func NewFileLastStore(dir string) (*FileLastStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create bus storage dir: %w", err)
	}
	return &FileLastStore{path: filepath.Join(dir, "last-events.json")}, nil
}

func (s *FileLastStore) Save(_ context.Context, evt event.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := s.load()
	events[evt.Type] = evt

	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal last events: %w", err)
	}
	if err := writeFileAtomic(s.path, raw); err != nil {
		return fmt.Errorf("write last events: %w", err)
	}
	return nil
}

func (s *FileLastStore) LoadLastFor(_ context.Context, evtType string) (event.Envelope, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt, ok := s.load()[evtType]
	return evt, ok, nil
}

func (s *FileLastStore) load() map[string]event.Envelope {
	events := make(map[string]event.Envelope)
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return events
	}
	if err := json.Unmarshal(raw, &events); err != nil {
		return make(map[string]event.Envelope)
	}
	return events
}

func writeFileAtomic(path string, data []byte) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.NewString()[:8])
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
