/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gosignprep/internal/domain"
	"gosignprep/internal/storage"
)

func TestReportOmitsRecipientDetails(t *testing.T) {
	eh := &storage.EnvelopeHandle{Root: "/tmp/x", Envelope: domain.Envelope{
		ID:         "env-9",
		Status:     domain.StatusDraft,
		Document:   domain.Document{PageCount: 3},
		Recipients: []domain.Recipient{{ID: "r1", Name: "Ada", Email: "ada@example.org"}},
	}}
	s := string(report(eh, "boom", []byte("stack"), time.Unix(0, 0)))
	if !strings.HasPrefix(s, "Go Sign Prep Crash Report\n") {
		t.Fatalf("report header missing: %q", s)
	}
	for _, want := range []string{"Envelope: env-9 (draft)", "Pages: 3 Recipients: 1 Fields: 0", "Panic: boom"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "ada@example.org") || strings.Contains(s, "Ada") {
		t.Fatalf("report leaks recipient details:\n%s", s)
	}
}

func TestWriteReportWithoutEnvelopeUsesTemp(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatalf("writeReport error: %v", err)
	}
	defer os.Remove(path)
	if filepath.Dir(path) != filepath.Clean(os.TempDir()) {
		t.Fatalf("expected report in temp dir, got %s", path)
	}
}

func TestRecover_WritesReportAndSnapshot(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	defer func() { exitFn = oldExit }()

	eh, err := storage.InitEnvelope(t.TempDir(), domain.Envelope{ID: "env-1", Title: "Lease"})
	if err != nil {
		t.Fatalf("InitEnvelope error: %v", err)
	}
	eh.Envelope.Title = "unsaved"

	func() {
		defer Recover(eh)
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
	bdir := filepath.Join(eh.Root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	var reportPath, snapPath string
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			reportPath = filepath.Join(bdir, f.Name())
		case strings.Contains(f.Name(), ".crash-"):
			snapPath = filepath.Join(bdir, f.Name())
		}
	}
	if reportPath == "" || snapPath == "" {
		t.Fatalf("expected report and snapshot under backups, got %v", files)
	}
	b, _ := os.ReadFile(reportPath)
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", b)
	}
	var env domain.Envelope
	sb, _ := os.ReadFile(snapPath)
	if err := json.Unmarshal(sb, &env); err != nil || env.Title != "unsaved" {
		t.Fatalf("snapshot mismatch: %+v err=%v", env, err)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	oldExit := exitFn
	exitFn = func(int) { t.Fatalf("exit must not be called") }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(nil)
	}()
}
