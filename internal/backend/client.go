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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gosignprep/internal/domain"
	"gosignprep/internal/review"
)

// APIError is a non-2xx response from the hand-off service.
type APIError struct {
	Status  int
	Message string
	Issues  []review.Issue
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to the hand-off service.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a client. A trailing slash on baseURL is ignored and a
// non-positive timeout means 10s.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var rej rejection
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if json.Unmarshal(b, &rej) != nil || rej.Error == "" {
			rej.Error = strings.TrimSpace(string(b))
		}
		return &APIError{Status: resp.StatusCode, Message: rej.Error, Issues: rej.Issues}
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// Authenticate requests a token for subject, stores it on the client and
// returns it with its expiry.
func (c *Client) Authenticate(ctx context.Context, subject string, ttl time.Duration) (TokenResponse, error) {
	var tr TokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/token", TokenRequest{Subject: subject, TTLSeconds: int64(ttl / time.Second)}, &tr); err != nil {
		return TokenResponse{}, err
	}
	c.Token = tr.Token
	return tr, nil
}

// Send hands a prepared envelope off. The server re-validates it.
func (c *Client) Send(ctx context.Context, env domain.Envelope) (Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodPost, "/api/envelopes", env, &rec)
	return rec, err
}

// List returns sent envelopes, optionally only those addressed to recipient.
func (c *Client) List(ctx context.Context, recipient string) ([]Summary, error) {
	path := "/api/envelopes"
	if recipient != "" {
		path += "?recipient=" + url.QueryEscape(recipient)
	}
	var list []Summary
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get fetches one sent envelope.
func (c *Client) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := c.do(ctx, http.MethodGet, "/api/envelopes/"+url.PathEscape(id), nil, &rec)
	return rec, err
}
