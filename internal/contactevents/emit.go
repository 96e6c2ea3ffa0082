// Package contactevents holds the typed emit helpers for contact events.
// They are pure translation into the bus's generic emit; no I/O happens here.
package contactevents

import (
	"contactdesk/internal/bus"
	"contactdesk/internal/domain/event"
)

// EmitContactChanged announces a successful write of the contact. Call it
// once per confirmed write, after the HTTP response, never before.
func EmitContactChanged(b *bus.Bus, id string, summary *event.ContactSummary) {
	b.Emit(event.TypeContactChanged, event.ContactChanged{ID: id, Summary: summary})
}

// EmitContactDeleted announces a confirmed delete of the contact.
func EmitContactDeleted(b *bus.Bus, id string, summary *event.ContactSummary) {
	b.Emit(event.TypeContactDeleted, event.ContactDeleted{ID: id, Summary: summary})
}
