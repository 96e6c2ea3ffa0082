package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"contactdesk/internal/domain/contact"
	"contactdesk/internal/domain/outbox"
	"contactdesk/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTx struct{}

func (fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memContactRepo struct {
	mu       sync.Mutex
	contacts map[string]*contact.Contact
}

func newMemContactRepo() *memContactRepo {
	return &memContactRepo{contacts: make(map[string]*contact.Contact)}
}

func (r *memContactRepo) Create(_ context.Context, c *contact.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *memContactRepo) GetByID(_ context.Context, id string) (*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memContactRepo) List(_ context.Context, parentID string) ([]*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*contact.Contact
	for _, c := range r.contacts {
		if parentID == "" || c.ParentID == parentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memContactRepo) UpdateRevision(_ context.Context, id string, expected int64, p contact.Patch) (*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return nil, contact.ErrNotFound
	}
	if c.Revision != expected {
		return nil, &contact.RevisionMismatchError{ID: id, CurrentRevision: c.Revision}
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	c.Revision++
	cp := *c
	return &cp, nil
}

func (r *memContactRepo) DeleteRevision(_ context.Context, id string, expected int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok {
		return contact.ErrNotFound
	}
	if c.Revision != expected {
		return &contact.RevisionMismatchError{ID: id, CurrentRevision: c.Revision}
	}
	delete(r.contacts, id)
	return nil
}

func (r *memContactRepo) CountChildren(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.contacts {
		if c.ParentID == id {
			n++
		}
	}
	return n, nil
}

type memOutboxRepo struct {
	mu     sync.Mutex
	events []*outbox.Event
}

func (r *memOutboxRepo) Create(_ context.Context, e *outbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *memOutboxRepo) FetchBatch(_ context.Context, limit int) ([]*outbox.Event, error) {
	return nil, nil
}

func (r *memOutboxRepo) MarkProcessed(context.Context, []string) error { return nil }

func (r *memOutboxRepo) MarkFailed(context.Context, []string) error { return nil }

func (r *memOutboxRepo) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestServer(t *testing.T) (*httptest.Server, *memContactRepo, *memOutboxRepo) {
	t.Helper()
	contactRepo := newMemContactRepo()
	outboxRepo := &memOutboxRepo{}

	h := NewHandlers(
		usecase.NewCreateContact(fakeTx{}, contactRepo, outboxRepo),
		usecase.NewGetContact(nil, contactRepo),
		usecase.NewListContacts(contactRepo),
		usecase.NewUpdateContact(fakeTx{}, contactRepo, outboxRepo),
		usecase.NewDeleteContact(fakeTx{}, contactRepo, outboxRepo),
	)
	srv := httptest.NewServer(NewRouter(h, nil))
	t.Cleanup(srv.Close)
	return srv, contactRepo, outboxRepo
}

func createContact(t *testing.T, srv *httptest.Server, params usecase.CreateContactParams) (contact.Contact, string) {
	t.Helper()
	body, err := json.Marshal(params)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/contacts/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created contact.Contact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	return created, resp.Header.Get("ETag")
}

func doRequest(t *testing.T, method, url, ifMatch string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestCreateAndGetWithETag(t *testing.T) {
	srv, _, outboxRepo := newTestServer(t)

	created, etag := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Acme"})
	assert.Equal(t, `"1"`, etag)
	assert.NotEmpty(t, created.ID)

	resp, err := http.Get(srv.URL + "/contacts/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"1"`, resp.Header.Get("ETag"))

	assert.Equal(t, []string{"ContactCreated"}, outboxRepo.types())
}

func TestGetMissingContact(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/contacts/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateRequiresIfMatch(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created, _ := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Acme"})

	resp := doRequest(t, http.MethodPut, srv.URL+"/contacts/"+created.ID, "", map[string]string{"name": "X"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)
}

func TestUpdateBumpsRevision(t *testing.T) {
	srv, _, outboxRepo := newTestServer(t)
	created, etag := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Acme"})

	resp := doRequest(t, http.MethodPut, srv.URL+"/contacts/"+created.ID, etag, map[string]string{"name": "Acme Inc"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `"2"`, resp.Header.Get("ETag"))

	var updated contact.Contact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&updated))
	assert.Equal(t, "Acme Inc", updated.Name)
	assert.Equal(t, int64(2), updated.Revision)

	assert.Contains(t, outboxRepo.types(), "ContactUpdated")
}

func TestStaleUpdateCarriesCurrentETag(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created, etag := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Acme"})

	// First writer wins.
	resp := doRequest(t, http.MethodPut, srv.URL+"/contacts/"+created.ID, etag, map[string]string{"name": "A"})
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Second writer still holds the old token.
	resp = doRequest(t, http.MethodPut, srv.URL+"/contacts/"+created.ID, etag, map[string]string{"name": "B"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, `"2"`, resp.Header.Get("ETag"), "412 must carry the current ETag")
}

func TestMalformedIfMatchFailsWithCurrentETag(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created, _ := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Acme"})

	resp := doRequest(t, http.MethodPut, srv.URL+"/contacts/"+created.ID, "garbage", map[string]string{"name": "X"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionFailed, resp.StatusCode)
	assert.Equal(t, `"1"`, resp.Header.Get("ETag"))
}

func TestDeleteBlockedByDependents(t *testing.T) {
	srv, _, _ := newTestServer(t)
	company, etag := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Acme"})
	createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindDivision, Name: "Sales", ParentID: company.ID})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/contacts/"+company.ID, etag, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var body struct {
		Message     string         `json:"message"`
		Details     map[string]any `json:"details"`
		Suggestions []string       `json:"suggestions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Message, "dependent")
	assert.Equal(t, company.ID, body.Details["contact_id"])
	assert.Equal(t, contact.KindDivision, body.Details["dependent_kind"])
	assert.NotEmpty(t, body.Suggestions)
}

func TestDeleteHappyPath(t *testing.T) {
	srv, _, outboxRepo := newTestServer(t)
	created, etag := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindPerson, Name: "Ann"})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/contacts/"+created.ID, etag, nil)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	get, err := http.Get(srv.URL + "/contacts/" + created.ID)
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)

	assert.Contains(t, outboxRepo.types(), "ContactDeleted")
}

func TestDeleteRequiresIfMatch(t *testing.T) {
	srv, _, _ := newTestServer(t)
	created, _ := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindPerson, Name: "Ann"})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/contacts/"+created.ID, "", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)
}

func TestListFiltersByParent(t *testing.T) {
	srv, _, _ := newTestServer(t)
	company, _ := createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Acme"})
	createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindDivision, Name: "Sales", ParentID: company.ID})
	createContact(t, srv, usecase.CreateContactParams{Kind: contact.KindCompany, Name: "Globex"})

	resp, err := http.Get(fmt.Sprintf("%s/contacts/?parent=%s", srv.URL, company.ID))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []contact.Contact
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "Sales", list[0].Name)
}

func TestCreateRejectsInvalidKind(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body, _ := json.Marshal(usecase.CreateContactParams{Kind: "team", Name: "X"})
	resp, err := http.Post(srv.URL+"/contacts/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
