/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"
)

// Snapshot is the state of one page before a change. Blob content is opaque
// to the manager; size is estimated as len(Blob). Label names the change
// ("drop", "move", "edit:<id>") and scopes coalescing.
type Snapshot struct {
	Page  int
	Label string
	Blob  []byte
	TS    time.Time
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap; older entries are pruned when exceeded.
	MaxBytes int
	// MaxPerPage limits number of snapshots per page kept in memory (0 means unlimited).
	MaxPerPage int
	// MinInterval coalesces consecutive changes with the same label captured
	// within the interval into one undo step. Negative disables coalescing.
	MinInterval time.Duration
}

// Manager keeps an undo and a redo stack per page.
// It is safe for concurrent use.
type Manager struct {
	cfg Config
	mu  sync.Mutex
	// per-page stacks
	undo map[int][]Snapshot
	redo map[int][]Snapshot
	// accounting
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024 // 16 MiB
	}
	if cfg.MinInterval == 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg, undo: make(map[int][]Snapshot), redo: make(map[int][]Snapshot)}
}

// Record pushes the pre-change state of a page. When the previous entry has
// the same non-empty label and is younger than MinInterval the two changes
// merge: the older blob is kept, so one undo reverts the whole burst.
// Any new record clears the page's redo stack.
func (m *Manager) Record(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.TS.IsZero() {
		s.TS = time.Now()
	}
	stack := m.undo[s.Page]
	if n := len(stack); n > 0 && s.Label != "" && m.cfg.MinInterval > 0 {
		last := stack[n-1]
		if last.Label == s.Label && s.TS.Sub(last.TS) < m.cfg.MinInterval {
			last.TS = s.TS
			stack[n-1] = last
			m.redo[s.Page] = nil
			return
		}
	}
	m.undo[s.Page] = append(stack, s)
	m.totalBytes += len(s.Blob)
	m.redo[s.Page] = nil
	m.enforceCapsLocked(s.Page)
}

// Undo pops the most recent snapshot of a page. current is the page state
// being replaced; it goes onto the redo stack.
func (m *Manager) Undo(page int, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[page]
	if len(stack) == 0 {
		return Snapshot{}, false
	}
	s := stack[len(stack)-1]
	m.undo[page] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[page] = append(m.redo[page], Snapshot{Page: page, Label: s.Label, Blob: current, TS: time.Now()})
	return s, true
}

// Redo re-applies the last undone change. current is pushed back onto the
// undo stack.
func (m *Manager) Redo(page int, current []byte) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[page]
	if len(r) == 0 {
		return Snapshot{}, false
	}
	s := r[len(r)-1]
	m.redo[page] = r[:len(r)-1]
	m.undo[page] = append(m.undo[page], Snapshot{Page: page, Label: s.Label, Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	m.enforceCapsLocked(page)
	return s, true
}

// CanUndo reports whether the page has history.
func (m *Manager) CanUndo(page int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[page]) > 0
}

// CanRedo reports whether the page has undone changes.
func (m *Manager) CanRedo(page int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[page]) > 0
}

// ClearPage clears undo/redo stacks for a page to free memory.
func (m *Manager) ClearPage(page int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[page] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.undo, page)
	delete(m.redo, page)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Reset drops all history, e.g. after loading another envelope.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = make(map[int][]Snapshot)
	m.redo = make(map[int][]Snapshot)
	m.totalBytes = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, pages int, totalSnapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			pages++
		}
		totalSnapshots += len(v)
	}
	return m.totalBytes, pages, totalSnapshots
}

func (m *Manager) enforceCapsLocked(page int) {
	if m.cfg.MaxPerPage > 0 {
		stack := m.undo[page]
		if len(stack) > m.cfg.MaxPerPage {
			// drop the oldest extras
			toDrop := len(stack) - m.cfg.MaxPerPage
			for i := 0; i < toDrop; i++ {
				m.totalBytes -= len(stack[i].Blob)
			}
			m.undo[page] = append([]Snapshot{}, stack[toDrop:]...)
		}
	}
	// Global memory cap: prune oldest across all pages
	for m.cfg.MaxBytes > 0 && m.totalBytes > m.cfg.MaxBytes {
		oldestPage := 0
		found := false
		var oldestTS time.Time
		for pg, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestPage, oldestTS, found = pg, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestPage]
		m.totalBytes -= len(stack[0].Blob)
		m.undo[oldestPage] = stack[1:]
		if len(m.undo[oldestPage]) == 0 {
			delete(m.undo, oldestPage)
		}
	}
}
