/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gosignprep/internal/domain"
)

// memStore is an in-memory Store for handler tests.
type memStore struct {
	mu   sync.Mutex
	recs map[string]Record
	down bool
}

func newMemStore() *memStore { return &memStore{recs: map[string]Record{}} }

func (m *memStore) Ping(context.Context) error {
	if m.down {
		return errors.New("down")
	}
	return nil
}

func (m *memStore) CreateEnvelope(_ context.Context, env domain.Envelope, sender string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[env.ID]; ok {
		return Record{}, ErrConflict
	}
	rec := Record{Summary: summarize(env, sender), Envelope: env}
	m.recs[env.ID] = rec
	return rec, nil
}

func (m *memStore) ListEnvelopes(_ context.Context, email string, _ int) ([]Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Summary
	for _, r := range m.recs {
		if email != "" && !addressedTo(r.Envelope, email) {
			continue
		}
		out = append(out, r.Summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func addressedTo(env domain.Envelope, email string) bool {
	for _, r := range env.Recipients {
		if strings.EqualFold(r.Email, email) {
			return true
		}
	}
	return false
}

func (m *memStore) GetEnvelope(_ context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func readyEnvelope(id string) domain.Envelope {
	return domain.Envelope{
		ID:       id,
		Title:    "NDA",
		Status:   domain.StatusDraft,
		Document: domain.Document{Name: "nda.pdf", PageCount: 1, PageWidth: 612, PageHeight: 792},
		Recipients: []domain.Recipient{
			{ID: "r1", Name: "Ada", Email: "ada@example.org", Role: domain.RoleSigner},
		},
		Fields: []domain.Field{
			{ID: "f1", Kind: domain.KindSignature, Page: 1, RecipientID: "r1", Required: true, Rect: domain.Rect{X: 10, Y: 80, Width: 20, Height: 5}},
		},
	}
}

func newTestAPI(t *testing.T) (*memStore, *Client, time.Time) {
	t.Helper()
	store := newMemStore()
	srv := NewServer(store, "test-secret")
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return now }
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return store, NewClient(ts.URL+"/", "", time.Second), now
}

func TestSendRequiresToken(t *testing.T) {
	_, c, _ := newTestAPI(t)
	_, err := c.Send(context.Background(), readyEnvelope("e1"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestSendListGet(t *testing.T) {
	store, c, now := newTestAPI(t)
	ctx := context.Background()

	tr, err := c.Authenticate(ctx, "sender@example.org", time.Hour)
	require.NoError(t, err)
	assert.True(t, now.Add(time.Hour).Equal(tr.ExpiresAt))

	rec, err := c.Send(ctx, readyEnvelope("e1"))
	require.NoError(t, err)
	assert.Equal(t, "sent", rec.Status)
	assert.Equal(t, "sender@example.org", rec.Sender)
	require.NotNil(t, rec.Envelope.SentAt)
	assert.True(t, rec.Envelope.SentAt.Equal(now))
	assert.Len(t, store.recs, 1)

	_, err = c.Send(ctx, readyEnvelope("e1"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)

	_, err = c.Send(ctx, readyEnvelope("e2"))
	require.NoError(t, err)

	list, err := c.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].Fields)

	none, err := c.List(ctx, "nobody@example.org")
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := c.Get(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, "NDA", got.Envelope.Title)
	assert.Equal(t, domain.StatusSent, got.Envelope.Status)

	_, err = c.Get(ctx, "missing")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestSendRejectsUnreadyEnvelopes(t *testing.T) {
	_, c, _ := newTestAPI(t)
	ctx := context.Background()
	_, err := c.Authenticate(ctx, "s", time.Minute)
	require.NoError(t, err)

	// schema: rect outside the page
	bad := readyEnvelope("e3")
	bad.Fields[0].Rect.X = 140
	_, err = c.Send(ctx, bad)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)

	// review: duplicate recipient email
	dup := readyEnvelope("e4")
	dup.Recipients = append(dup.Recipients, domain.Recipient{ID: "r2", Name: "Ada 2", Email: "ADA@example.org", Role: domain.RoleSigner})
	_, err = c.Send(ctx, dup)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	require.NotEmpty(t, apiErr.Issues)
	assert.Equal(t, "email_duplicate", apiErr.Issues[0].Code)
}

func TestHealthReadyVersion(t *testing.T) {
	store := newMemStore()
	ts := httptest.NewServer(NewServer(store, "").Handler())
	defer ts.Close()

	for path, want := range map[string]int{"/healthz": 200, "/readyz": 200, "/version": 200} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
	store.down = true
	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, Config{Addr: "127.0.0.1:0", Secret: "x"}, newMemStore()) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
