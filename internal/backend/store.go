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
	"time"

	"gosignprep/internal/domain"
)

var (
	ErrNotFound = errors.New("envelope not found")
	ErrConflict = errors.New("envelope already sent")
)

// Summary is the list projection of a sent envelope.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Sender     string    `json:"sender"`
	Pages      int       `json:"pages"`
	Fields     int       `json:"fields"`
	Recipients int       `json:"recipients"`
	SentAt     time.Time `json:"sent_at"`
}

// Record is a stored envelope with its hand-off metadata.
type Record struct {
	Summary
	Envelope domain.Envelope `json:"envelope"`
}

// Store persists sent envelopes. The Postgres implementation lives in pg.go;
// handlers only see this interface.
type Store interface {
	Ping(ctx context.Context) error
	CreateEnvelope(ctx context.Context, env domain.Envelope, sender string) (Record, error)
	ListEnvelopes(ctx context.Context, recipientEmail string, limit int) ([]Summary, error)
	GetEnvelope(ctx context.Context, id string) (Record, error)
}

func summarize(env domain.Envelope, sender string) Summary {
	s := Summary{
		ID:         env.ID,
		Title:      env.Title,
		Status:     string(env.Status),
		Sender:     sender,
		Pages:      env.Document.PageCount,
		Fields:     len(env.Fields),
		Recipients: len(env.Recipients),
	}
	if env.SentAt != nil {
		s.SentAt = *env.SentAt
	}
	return s
}
