/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package bundle

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gosignprep/internal/domain"
	"gosignprep/internal/storage"
)

func newEnvelope(t *testing.T) *storage.EnvelopeHandle {
	t.Helper()
	root := filepath.Join(t.TempDir(), "nda")
	eh, err := storage.InitEnvelope(root, domain.Envelope{
		ID:         "env-1",
		Title:      "NDA",
		Document:   domain.Document{PageCount: 1, PageWidth: 612, PageHeight: 792},
		Recipients: []domain.Recipient{{ID: "r1", Name: "Ada", Email: "ada@example.org", Role: domain.RoleSigner}},
		Fields: []domain.Field{
			{ID: "f1", Kind: domain.KindSignature, Page: 1, RecipientID: "r1", Rect: domain.Rect{X: 10, Y: 80, Width: 20, Height: 5}},
		},
	})
	if err != nil {
		t.Fatalf("init envelope: %v", err)
	}
	src := filepath.Join(t.TempDir(), "nda.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	if _, err := storage.ImportDocument(eh, src); err != nil {
		t.Fatalf("import document: %v", err)
	}
	if err := storage.Save(eh); err != nil {
		t.Fatalf("save: %v", err)
	}
	return eh
}

func TestPackAndUnpack(t *testing.T) {
	eh := newEnvelope(t)
	zipPath := filepath.Join(t.TempDir(), "nda.zip")
	n, err := Pack(eh, zipPath)
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected manifest and document, got %d files", n)
	}

	dest := filepath.Join(t.TempDir(), "copy")
	got, err := Unpack(zipPath, dest)
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if diff := cmp.Diff(eh.Envelope, got.Envelope); diff != "" {
		t.Fatalf("envelope changed in transit (-want +got):\n%s", diff)
	}
	b, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(got.Envelope.Document.Path)))
	if err != nil || string(b) != "%PDF-1.4 test" {
		t.Fatalf("document not restored: %v %q", err, b)
	}
	for _, d := range []string{storage.BackupsDirName, storage.ExportsDirName} {
		if fi, err := os.Stat(filepath.Join(dest, d)); err != nil || !fi.IsDir() {
			t.Fatalf("expected %s dir: %v", d, err)
		}
	}

	if _, err := Unpack(zipPath, dest); err == nil {
		t.Fatalf("unpacking over an existing envelope must fail")
	}
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "bad.zip")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Modified: time.Now()})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	return p
}

func TestUnpackRejectsUnsafeEntries(t *testing.T) {
	for _, name := range []string{"../evil.txt", "/etc/passwd", "documents/../../evil.txt", ".gsp/index.sqlite"} {
		p := writeZip(t, map[string]string{name: "x"})
		dest := filepath.Join(t.TempDir(), "env")
		if _, err := Unpack(p, dest); !errors.Is(err, ErrUnsafePath) {
			t.Fatalf("%s: expected ErrUnsafePath, got %v", name, err)
		}
	}
}

func TestUnpackNeedsManifest(t *testing.T) {
	p := writeZip(t, map[string]string{"documents/a.pdf": "x"})
	if _, err := Unpack(p, filepath.Join(t.TempDir(), "env")); err == nil {
		t.Fatalf("expected error for a bundle without envelope.json")
	}
}
