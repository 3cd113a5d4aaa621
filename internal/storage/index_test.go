/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"testing"
	"time"
)

func TestInitOrOpenIndexSetsWALAndVersion(t *testing.T) {
	root := t.TempDir()
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("InitOrOpenIndex: %v", err)
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected wal, got %q", mode)
	}
	var schema int
	if err := db.QueryRowContext(ctx, "SELECT schema FROM version WHERE id=1").Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
	if _, err := InitOrOpenIndex(""); err == nil {
		t.Fatalf("expected error for empty root")
	}
}

func TestRecipientSummariesFromIndex(t *testing.T) {
	root := t.TempDir()
	env := sampleEnvelope()
	ctx := context.Background()
	if err := BuildIndexIfEmpty(ctx, root, env); err != nil {
		t.Fatalf("BuildIndexIfEmpty: %v", err)
	}
	got, err := RecipientSummaries(ctx, root)
	if err != nil {
		t.Fatalf("RecipientSummaries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(got))
	}
	if got[0].RecipientID != "r1" || got[0].Fields != 2 || got[0].Required != 1 {
		t.Fatalf("unexpected first summary: %+v", got[0])
	}
	if got[1].RecipientID != "r2" || got[1].Fields != 0 || got[1].Required != 0 {
		t.Fatalf("unexpected second summary: %+v", got[1])
	}

	// a second build is a no-op; UpdateIndex replaces content
	env.Fields = env.Fields[:1]
	if err := BuildIndexIfEmpty(ctx, root, env); err != nil {
		t.Fatalf("BuildIndexIfEmpty again: %v", err)
	}
	got, _ = RecipientSummaries(ctx, root)
	if got[0].Fields != 2 {
		t.Fatalf("BuildIndexIfEmpty must not touch a populated index")
	}
	if err := UpdateIndex(ctx, root, env); err != nil {
		t.Fatalf("UpdateIndex: %v", err)
	}
	got, _ = RecipientSummaries(ctx, root)
	if got[0].Fields != 1 {
		t.Fatalf("expected 1 field after update, got %+v", got[0])
	}
}

func TestActivityLog(t *testing.T) {
	eh, err := InitEnvelope(t.TempDir(), sampleEnvelope())
	if err != nil {
		t.Fatalf("InitEnvelope error: %v", err)
	}
	ctx := context.Background()
	for _, a := range []string{"field.add", "field.move", "envelope.send"} {
		if err := LogActivity(ctx, eh, a, "f1", ""); err != nil {
			t.Fatalf("LogActivity: %v", err)
		}
	}
	list, err := ListActivity(ctx, eh, 2)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if len(list) != 2 || list[0].Action != "envelope.send" || list[1].Action != "field.move" {
		t.Fatalf("unexpected activity: %+v", list)
	}
	if list[0].Subject != "f1" || list[0].TS.IsZero() {
		t.Fatalf("activity fields not read back: %+v", list[0])
	}
}
