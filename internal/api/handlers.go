package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/usecase"

	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	createContactUC *usecase.CreateContact
	getContactUC    *usecase.GetContact
	listContactsUC  *usecase.ListContacts
	updateContactUC *usecase.UpdateContact
	deleteContactUC *usecase.DeleteContact
}

func NewHandlers(
	createContactUC *usecase.CreateContact,
	getContactUC *usecase.GetContact,
	listContactsUC *usecase.ListContacts,
	updateContactUC *usecase.UpdateContact,
	deleteContactUC *usecase.DeleteContact,
) *Handlers {
	return &Handlers{
		createContactUC: createContactUC,
		getContactUC:    getContactUC,
		listContactsUC:  listContactsUC,
		updateContactUC: updateContactUC,
		deleteContactUC: deleteContactUC,
	}
}

func (h *Handlers) CreateContact(w http.ResponseWriter, r *http.Request) {
	var params usecase.CreateContactParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	created, err := h.createContactUC.Execute(r.Context(), params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etagFor(created.Revision))
	w.Header().Set("Location", "/contacts/"+created.ID)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *Handlers) GetContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing contact id", http.StatusBadRequest)
		return
	}

	c, err := h.getContactUC.Execute(r.Context(), id)
	if err != nil {
		if errors.Is(err, contact.ErrNotFound) {
			http.Error(w, "contact not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etagFor(c.Revision))
	json.NewEncoder(w).Encode(c)
}

func (h *Handlers) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.listContactsUC.Execute(r.Context(), r.URL.Query().Get("parent"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if contacts == nil {
		contacts = []*contact.Contact{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(contacts)
}

// UpdateContact enforces the conditional-write protocol: no If-Match at all
// is 428 (fetch first), a stale one is 412 with the current ETag attached so
// the caller can retry without another GET.
func (h *Handlers) UpdateContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing contact id", http.StatusBadRequest)
		return
	}

	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		http.Error(w, "If-Match header required", http.StatusPreconditionRequired)
		return
	}
	expected, ok := parseIfMatch(ifMatch)
	if !ok {
		expected = -1 // never matches; the 412 carries the current ETag
	}

	var p contact.Patch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.updateContactUC.Execute(r.Context(), id, expected, p)
	if err != nil {
		h.writeRevisionError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etagFor(updated.Revision))
	json.NewEncoder(w).Encode(updated)
}

func (h *Handlers) DeleteContact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing contact id", http.StatusBadRequest)
		return
	}

	ifMatch := r.Header.Get("If-Match")
	if ifMatch == "" {
		http.Error(w, "If-Match header required", http.StatusPreconditionRequired)
		return
	}
	expected, ok := parseIfMatch(ifMatch)
	if !ok {
		expected = -1
	}

	if err := h.deleteContactUC.Execute(r.Context(), id, expected); err != nil {
		var blocked *contact.DependentsError
		if errors.As(err, &blocked) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{
				"message":     blocked.Message,
				"details":     blocked.Details,
				"suggestions": blocked.Suggestions,
			})
			return
		}
		h.writeRevisionError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeRevisionError(w http.ResponseWriter, err error) {
	var mismatch *contact.RevisionMismatchError
	switch {
	case errors.Is(err, contact.ErrNotFound):
		http.Error(w, "contact not found", http.StatusNotFound)
	case errors.As(err, &mismatch):
		w.Header().Set("ETag", etagFor(mismatch.CurrentRevision))
		http.Error(w, "contact was changed by another request", http.StatusPreconditionFailed)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
