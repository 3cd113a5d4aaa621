/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package watch reacts to changes of an envelope manifest on disk, for
// example edits made by another gosignprep process.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	applog "gosignprep/internal/log"
	"gosignprep/internal/storage"
)

// DefaultDebounce lets a burst of writes (manifest, then backup) settle.
const DefaultDebounce = 300 * time.Millisecond

// Watcher calls OnChange once the envelope manifest under Root has been
// quiet for Debounce after a change.
type Watcher struct {
	Root     string
	Debounce time.Duration
	OnChange func(ctx context.Context) error

	tick time.Duration
}

// New returns a watcher with the default debounce.
func New(root string, onChange func(ctx context.Context) error) *Watcher {
	return &Watcher{Root: root, Debounce: DefaultDebounce, OnChange: onChange}
}

// Run blocks until ctx is done. Saves replace the manifest with a rename, so
// the directory is watched rather than the file. Errors from OnChange are
// logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	if w.OnChange == nil {
		return errors.New("watch: OnChange is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.Root); err != nil {
		return err
	}
	l := applog.WithComponent("watch").With(slog.String("root", w.Root))
	l.Info("watching envelope")

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	tick := w.tick
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	manifest := filepath.Join(w.Root, storage.ManifestFileName)
	var pending time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != manifest || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			pending = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			l.Warn("watch error", slog.Any("err", err))
		case now := <-ticker.C:
			if pending.IsZero() || now.Sub(pending) < debounce {
				continue
			}
			pending = time.Time{}
			l.Debug("manifest changed")
			if err := w.OnChange(ctx); err != nil {
				l.Warn("change handler failed", slog.Any("err", err))
			}
		}
	}
}
