/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry is an opt-in, anonymous usage event sender with optional
// crash report uploads. Events never carry recipient names or addresses.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "gosignprep/internal/log"
	"gosignprep/internal/version"
)

// Config holds runtime configuration for telemetry and crash uploads.
// Everything is off unless OptIn is set and an endpoint is configured.
//
// Environment variables (read by FromEnv):
//   - GSP_TELEMETRY_OPT_IN: "1", "true", "yes", "on"
//   - GSP_TELEMETRY_URL: endpoint receiving JSON events
//   - GSP_CRASH_UPLOAD_URL: endpoint receiving plain-text crash reports
//   - GSP_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - GSP_TELEMETRY_DEBUG: log send attempts when non-empty
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("GSP_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("GSP_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("GSP_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("GSP_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("GSP_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Event is the JSON body posted for one usage event.
type Event struct {
	Name    string         `json:"name"`
	TS      time.Time      `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// allowedProps lists the property keys that may leave the machine.
var allowedProps = map[string]bool{
	"kind":        true,
	"page":        true,
	"pages":       true,
	"fields":      true,
	"recipients":  true,
	"role":        true,
	"zoom":        true,
	"duration_ms": true,
	"format":      true,
}

// Client queues events on a bounded channel and sends them from a single
// goroutine. Send failures are dropped.
type Client struct {
	cfg  Config
	log  *slog.Logger
	cli  *http.Client
	q    chan Event
	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide client, creating it from the environment
// on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault replaces the process-wide client and closes the previous one.
func SetDefault(c *Client) {
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if old != nil && old != c {
		old.Close()
	}
}

// New constructs a client and starts its sender.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:  cfg,
		log:  applog.WithComponent("telemetry"),
		cli:  &http.Client{Timeout: cfg.Timeout},
		q:    make(chan Event, 64),
		done: make(chan struct{}),
	}
	c.wg.Add(1)
	go c.loop()
	return c
}

// Enabled reports whether events would be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Track queues an event. Property keys outside the allow-list are dropped.
func (c *Client) Track(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		TS:      time.Now().UTC(),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	for k, v := range props {
		if !allowedProps[k] {
			continue
		}
		if ev.Props == nil {
			ev.Props = make(map[string]any, len(props))
		}
		ev.Props[k] = v
	}
	select {
	case <-c.done:
	case c.q <- ev:
	default:
		// queue full
	}
}

// FieldPlaced records a field drop.
func (c *Client) FieldPlaced(kind string, page int) {
	c.Track("field.placed", map[string]any{"kind": kind, "page": page})
}

// EnvelopeSent records a successful send.
func (c *Client) EnvelopeSent(recipients, fields int) {
	c.Track("envelope.sent", map[string]any{"recipients": recipients, "fields": fields})
}

// Flush waits up to 500ms, or until ctx is done, for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(c.q) > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(25 * time.Millisecond):
		}
	}
}

// Close stops the sender and waits for in-flight requests. Queued events
// that were not sent yet are dropped.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Client) loop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.q:
			buf, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.post(c.cfg.EventsURL, "application/json", buf, "telemetry event")
		}
	}
}

func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug(what+" failed", slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug(what+" sent", slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a serialized crash report in the background. Close waits
// for it to finish.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	select {
	case <-c.done:
		return
	default:
	}
	b := append([]byte(nil), report...)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b, "crash upload")
	}()
}
