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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gosignprep/internal/domain"
)

const (
	ManifestFileName = "envelope.json"
	BackupsDirName   = "backups"
	DocumentsDirName = "documents"
	ExportsDirName   = "exports"
)

var standardSubDirs = []string{
	DocumentsDirName,
	ExportsDirName,
	BackupsDirName,
}

// ErrNoManifest is returned by Open when neither the manifest nor a backup
// can be read.
var ErrNoManifest = errors.New("no readable envelope manifest")

// EnvelopeHandle keeps track of an envelope loaded from or saved to disk.
// Root is the envelope directory containing envelope.json and subfolders.
type EnvelopeHandle struct {
	Root         string
	ManifestPath string
	Envelope     domain.Envelope
}

// InitEnvelope creates a new envelope directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the manifest transactionally.
func InitEnvelope(root string, env domain.Envelope) (*EnvelopeHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if env.CreatedAt.IsZero() {
		env.CreatedAt = now
	}
	if env.Status == "" {
		env.Status = domain.StatusDraft
	}
	eh := &EnvelopeHandle{
		Root:         root,
		ManifestPath: filepath.Join(root, ManifestFileName),
		Envelope:     env,
	}
	if err := Save(eh); err != nil {
		return nil, err
	}
	return eh, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create envelope root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing envelope from root. If the manifest cannot be read
// or parsed, the latest backup is used instead.
func Open(root string) (*EnvelopeHandle, error) {
	mpath := filepath.Join(root, ManifestFileName)
	b, err := os.ReadFile(mpath)
	if err != nil {
		env, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("%w: open manifest: %v; backup attempt: %v", ErrNoManifest, err, berr)
		}
		return &EnvelopeHandle{Root: root, ManifestPath: mpath, Envelope: *env}, nil
	}
	var env domain.Envelope
	if uerr := json.Unmarshal(b, &env); uerr != nil {
		backup, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("%w: parse manifest: %v; backup attempt: %v", ErrNoManifest, uerr, berr)
		}
		return &EnvelopeHandle{Root: root, ManifestPath: mpath, Envelope: *backup}, nil
	}
	return &EnvelopeHandle{Root: root, ManifestPath: mpath, Envelope: env}, nil
}

// Save writes the envelope to disk with transactional semantics and a
// timestamped backup of the previous manifest (if present).
func Save(eh *EnvelopeHandle) error {
	if eh == nil {
		return errors.New("nil EnvelopeHandle")
	}
	if eh.Root == "" || eh.ManifestPath == "" {
		return errors.New("invalid EnvelopeHandle: missing paths")
	}
	eh.Envelope.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(eh.Envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(eh.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}

	if _, statErr := os.Stat(eh.ManifestPath); statErr == nil {
		stamp := time.Now().Format("20060102-150405.000")
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", ManifestFileName, stamp))
		if cerr := copyFile(eh.ManifestPath, bpath); cerr != nil {
			return fmt.Errorf("backup current manifest: %w", cerr)
		}
	}

	// Transactional write: to temp file in same directory, then rename over target
	dir := filepath.Dir(eh.ManifestPath)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", ManifestFileName, os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp manifest: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(eh.ManifestPath); err == nil {
		_ = os.Remove(eh.ManifestPath)
	}
	if rerr := os.Rename(temp, eh.ManifestPath); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace manifest: %w", rerr)
	}
	return nil
}

// SaveAs writes the manifest to a new root folder and updates the handle.
func SaveAs(eh *EnvelopeHandle, newRoot string) error {
	if eh == nil {
		return errors.New("nil EnvelopeHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	eh.Root = newRoot
	eh.ManifestPath = filepath.Join(newRoot, ManifestFileName)
	return Save(eh)
}

// ImportDocument copies src into the envelope's documents folder and points
// the manifest's document at it. The manifest is not saved.
func ImportDocument(eh *EnvelopeHandle, src string) (string, error) {
	if eh == nil {
		return "", errors.New("nil EnvelopeHandle")
	}
	name := filepath.Base(src)
	dst := filepath.Join(eh.Root, DocumentsDirName, name)
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("import document: %w", err)
	}
	eh.Envelope.Document.Name = name
	eh.Envelope.Document.Path = filepath.ToSlash(filepath.Join(DocumentsDirName, name))
	return dst, nil
}

// AutosaveCrashSnapshot writes the in-memory envelope next to the manifest
// under backups/ without touching envelope.json. It returns the file path.
func AutosaveCrashSnapshot(eh *EnvelopeHandle) (string, error) {
	if eh == nil || eh.Root == "" {
		return "", errors.New("invalid EnvelopeHandle")
	}
	bdir := filepath.Join(eh.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	data, err := json.MarshalIndent(eh.Envelope, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash snapshot: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", ManifestFileName, time.Now().Format("20060102-150405")))
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup tries to open the latest timestamped backup.
func openFromLatestBackup(root string) (*domain.Envelope, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var candidates []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ManifestFileName+".") && strings.HasSuffix(name, ".bak") {
			candidates = append(candidates, filepath.Join(bdir, name))
		}
	}
	if len(candidates) == 0 {
		return nil, errors.New("no backups found")
	}
	sort.Strings(candidates) // timestamp in name yields lexicographic order
	latest := candidates[len(candidates)-1]
	b, err := os.ReadFile(latest)
	if err != nil {
		return nil, fmt.Errorf("read latest backup: %w", err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("parse latest backup: %w", err)
	}
	return &env, nil
}
