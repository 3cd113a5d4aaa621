/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package bundle moves an envelope between machines as a single .zip file.
package bundle

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	applog "gosignprep/internal/log"
	"gosignprep/internal/storage"
)

// ManifestName is a human-readable note at the archive root. It is skipped
// on unpack.
const ManifestName = "bundle.manifest.txt"

// ErrUnsafePath is returned for archive entries that would land outside the
// target directory.
var ErrUnsafePath = errors.New("bundle entry escapes the envelope directory")

// Pack zips the envelope manifest and its documents into destZip. Backups,
// exports and the local index stay behind; Unpack rebuilds the index.
// It returns the number of files written, the manifest note excluded.
func Pack(eh *storage.EnvelopeHandle, destZip string) (int, error) {
	if eh == nil {
		return 0, errors.New("envelope handle is nil")
	}
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination is required")
	}
	l := applog.WithOperation(applog.WithComponent("bundle"), "pack").With(slog.String("envelope", eh.Envelope.ID))
	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	// On Windows, remove destination if present before create
	_ = os.Remove(destZip)

	zf, err := os.Create(destZip)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = zf.Close() }()
	zw := zip.NewWriter(zf)

	note := fmt.Sprintf("Go Sign Prep envelope bundle\nCreated: %s\nEnvelope: %s (%s)\nStatus: %s\n",
		time.Now().Format(time.RFC3339), eh.Envelope.Title, eh.Envelope.ID, eh.Envelope.Status)
	w, err := zw.Create(ManifestName)
	if err != nil {
		return 0, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, note); err != nil {
		return 0, fmt.Errorf("write manifest: %w", err)
	}

	added := 0
	addFile := func(p string) error {
		rel, err := filepath.Rel(eh.Root, p)
		if err != nil {
			return err
		}
		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		if _, err := io.Copy(fw, f); err != nil {
			return err
		}
		added++
		return nil
	}
	if err := addFile(eh.ManifestPath); err != nil {
		return 0, fmt.Errorf("add %s: %w", storage.ManifestFileName, err)
	}
	docs := filepath.Join(eh.Root, storage.DocumentsDirName)
	err = filepath.WalkDir(docs, func(p string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) && p == docs {
			return filepath.SkipDir
		}
		if err != nil || d.IsDir() {
			return err
		}
		return addFile(p)
	})
	if err != nil {
		l.Error("zip build failed", slog.Any("err", err))
		return 0, fmt.Errorf("build zip: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish zip: %w", err)
	}
	l.Info("bundle packed", slog.Int("files", added), slog.String("zip", destZip))
	return added, nil
}

// Unpack extracts a bundle into destRoot, which must not already hold an
// envelope, and opens the result. Only the manifest and files under
// documents/ are accepted.
func Unpack(srcZip, destRoot string) (*storage.EnvelopeHandle, error) {
	if strings.TrimSpace(destRoot) == "" {
		return nil, errors.New("destination is required")
	}
	l := applog.WithOperation(applog.WithComponent("bundle"), "unpack").With(slog.String("root", destRoot))
	if _, err := os.Stat(filepath.Join(destRoot, storage.ManifestFileName)); err == nil {
		return nil, fmt.Errorf("%s already holds an envelope", destRoot)
	}
	r, err := zip.OpenReader(srcZip)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer func() { _ = r.Close() }()

	for _, d := range []string{storage.BackupsDirName, storage.DocumentsDirName, storage.ExportsDirName} {
		if err := os.MkdirAll(filepath.Join(destRoot, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	var sawManifest bool
	for _, f := range r.File {
		name := f.Name
		if name == ManifestName || f.FileInfo().IsDir() {
			continue
		}
		target, err := entryPath(destRoot, name)
		if err != nil {
			return nil, err
		}
		if name == storage.ManifestFileName {
			sawManifest = true
		}
		if err := extract(f, target); err != nil {
			return nil, fmt.Errorf("extract %s: %w", name, err)
		}
	}
	if !sawManifest {
		return nil, fmt.Errorf("bundle has no %s", storage.ManifestFileName)
	}
	eh, err := storage.Open(destRoot)
	if err != nil {
		return nil, err
	}
	l.Info("bundle unpacked", slog.String("envelope", eh.Envelope.ID), slog.Int("files", len(r.File)-1))
	return eh, nil
}

// entryPath maps an archive name to a path below root.
func entryPath(root, name string) (string, error) {
	clean := path.Clean(name)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") || strings.Contains(clean, ":") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	if clean != storage.ManifestFileName && !strings.HasPrefix(clean, storage.DocumentsDirName+"/") {
		return "", fmt.Errorf("%w: %q is not part of an envelope", ErrUnsafePath, name)
	}
	return filepath.Join(root, filepath.FromSlash(clean)), nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
