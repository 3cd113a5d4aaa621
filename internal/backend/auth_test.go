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
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok, err := signToken("k", "ada", now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("signToken: %v", err)
	}
	sub, err := verifyToken("k", tok, now.Add(30*time.Minute))
	if err != nil || sub != "ada" {
		t.Fatalf("verifyToken = %q, %v", sub, err)
	}
}

func TestTokenRejections(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tok, _ := signToken("k", "ada", now, now.Add(time.Minute))

	cases := []struct {
		name   string
		secret string
		token  string
		at     time.Time
		want   error
	}{
		{"wrong secret", "other", tok, now, ErrTokenSig},
		{"expired", "k", tok, now.Add(2 * time.Minute), ErrTokenExpired},
		{"no dot", "k", strings.ReplaceAll(tok, ".", ""), now, ErrTokenFormat},
		{"extra part", "k", tok + ".x", now, ErrTokenFormat},
		{"bad base64", "k", "!!!." + strings.SplitN(tok, ".", 2)[1], now, ErrTokenFormat},
	}
	for _, c := range cases {
		if _, err := verifyToken(c.secret, c.token, c.at); !errors.Is(err, c.want) {
			t.Fatalf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_envelope_recipients.sql"); err != nil || v != 2 {
		t.Fatalf("parseVersion = %d, %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error for filename without version")
	}
}
