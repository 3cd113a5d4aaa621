/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type sink struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (s *sink) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /events", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.events = append(s.events, b)
		s.mu.Unlock()
	})
	mux.HandleFunc("POST /crash", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.crashes = append(s.crashes, b)
		s.mu.Unlock()
	})
	return httptest.NewServer(mux)
}

func (s *sink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events), len(s.crashes)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestClient_TrackAndUploadCrash(t *testing.T) {
	s := &sink{}
	srv := s.server()
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()
	if !c.Enabled() {
		t.Fatalf("expected client to be enabled")
	}

	c.Track("field.placed", map[string]any{"kind": "signature", "page": 2, "email": "ada@example.org"})
	c.Flush(context.Background())
	waitFor(t, func() bool { e, _ := s.counts(); return e == 1 })

	var ev Event
	s.mu.Lock()
	err := json.Unmarshal(s.events[0], &ev)
	s.mu.Unlock()
	if err != nil {
		t.Fatalf("bad event json: %v", err)
	}
	if ev.Name != "field.placed" || ev.TS.IsZero() || ev.Version == "" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if _, leaked := ev.Props["email"]; leaked {
		t.Fatalf("non-allowed property was sent: %+v", ev.Props)
	}
	if ev.Props["kind"] != "signature" {
		t.Fatalf("allowed property missing: %+v", ev.Props)
	}

	c.UploadCrash([]byte("STACKTRACE"))
	waitFor(t, func() bool { _, cr := s.counts(); return cr == 1 })
}

func TestClient_DisabledAndEmptyName(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL, Timeout: time.Second})
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.EnvelopeSent(2, 5)
	c.UploadCrash([]byte("ignored"))
	c.Close()

	c2 := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	c2.Track("", nil)
	c2.Flush(nil)
	c2.Close()
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestClient_SendErrorsAreDropped(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	c.FieldPlaced("date", 1)
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	c.Close()
	// calls after Close are no-ops
	c.Track("late", nil)
	c.UploadCrash([]byte("late"))
}

func TestFromEnvAndDefault(t *testing.T) {
	t.Setenv("GSP_TELEMETRY_OPT_IN", "yes")
	t.Setenv("GSP_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("GSP_CRASH_UPLOAD_URL", "")
	t.Setenv("GSP_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	SetDefault(New(cfg))
	if !Default().Enabled() {
		t.Fatalf("default client should be enabled")
	}
	SetDefault(nil)
}

func TestClose_NoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	c := New(Config{OptIn: true, EventsURL: "http://127.0.0.1:1/events", Timeout: 50 * time.Millisecond})
	c.Track("x", nil)
	c.Close()
}
