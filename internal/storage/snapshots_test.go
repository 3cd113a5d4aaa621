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

	"gosignprep/internal/undo"
)

func TestSnapshotsSaveLatestListPrune(t *testing.T) {
	eh, err := InitEnvelope(t.TempDir(), sampleEnvelope())
	if err != nil {
		t.Fatalf("InitEnvelope error: %v", err)
	}
	ctx := context.Background()

	if _, ok, err := GetLatestSnapshot(ctx, eh, 1); err != nil || ok {
		t.Fatalf("expected no snapshot yet: ok=%v err=%v", ok, err)
	}
	t0 := time.Now()
	for i, blob := range []string{"[1]", "[2]", "[3]"} {
		s := undo.Snapshot{Page: 1, Label: "move", Blob: []byte(blob), TS: t0.Add(time.Duration(i) * time.Second)}
		if err := SaveSnapshot(ctx, eh, s); err != nil {
			t.Fatalf("SaveSnapshot: %v", err)
		}
	}
	if err := SaveSnapshot(ctx, eh, undo.Snapshot{Page: 2, Blob: []byte("[9]"), TS: t0}); err != nil {
		t.Fatalf("SaveSnapshot page 2: %v", err)
	}

	latest, ok, err := GetLatestSnapshot(ctx, eh, 1)
	if err != nil || !ok {
		t.Fatalf("GetLatestSnapshot: ok=%v err=%v", ok, err)
	}
	if string(latest.Blob) != "[3]" || latest.Label != "move" || latest.Page != 1 {
		t.Fatalf("unexpected latest: %+v", latest)
	}

	list, err := ListSnapshots(ctx, eh, 1, 2)
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(list) != 2 || string(list[0].Blob) != "[3]" || string(list[1].Blob) != "[2]" {
		t.Fatalf("unexpected list: %+v", list)
	}

	n, err := PruneOldSnapshots(ctx, eh, 1, 1)
	if err != nil {
		t.Fatalf("PruneOldSnapshots: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pruned, got %d", n)
	}
	list, _ = ListSnapshots(ctx, eh, 2, 0)
	if len(list) != 1 {
		t.Fatalf("other pages must be untouched, got %d", len(list))
	}
}
