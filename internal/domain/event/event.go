package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried over the session bus.
const (
	TypeContactChanged = "contact:changed"
	TypeContactDeleted = "contact:deleted"
)

// Envelope is the unit of cross-session communication. It is immutable once
// built; the bus stamps Timestamp and OriginID at emit time.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp int64           `json:"timestamp"` // ms since epoch, display/ordering only
	OriginID  string          `json:"origin_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ContactSummary is the minimal field set another session needs to patch its
// list view without a refetch.
type ContactSummary struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ContactChanged is the payload of TypeContactChanged.
type ContactChanged struct {
	ID      string          `json:"id"`
	Summary *ContactSummary `json:"summary,omitempty"`
}

// ContactDeleted is the payload of TypeContactDeleted.
type ContactDeleted struct {
	ID      string          `json:"id"`
	Summary *ContactSummary `json:"summary,omitempty"`
}

// DecodePayload unmarshals the envelope payload into the closed type for its
// event type, so consumers switch on concrete structs instead of trusting a
// free-form map.
func DecodePayload(e Envelope) (any, error) {
	switch e.Type {
	case TypeContactChanged:
		var p ContactChanged
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return p, nil
	case TypeContactDeleted:
		var p ContactDeleted
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}

// NewEnvelope builds an envelope for the given payload. Timestamp is stamped
// here; the bus fills OriginID.
func NewEnvelope(evtType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", evtType, err)
	}
	return Envelope{
		Type:      evtType,
		Timestamp: time.Now().UnixMilli(),
		Payload:   raw,
	}, nil
}
