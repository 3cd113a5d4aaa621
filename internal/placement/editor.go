/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package placement

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gosignprep/internal/domain"
	applog "gosignprep/internal/log"
	"gosignprep/internal/review"
	"gosignprep/internal/undo"
	"gosignprep/internal/vector"
)

// ErrRecipientsIncomplete is returned by Enter when the recipient step has
// blocking issues.
var ErrRecipientsIncomplete = errors.New("recipients incomplete")

// Options configures an Editor.
type Options struct {
	// BaseWidth is the page width in pixels at 100% zoom.
	BaseWidth float64
	Zoom      ZoomRange
	// ClampEdits clamps every field edit, not only drag and drop.
	ClampEdits bool
	Snap       vector.SnapOptions
	History    undo.Config
	NewID      func() string
	Now        func() time.Time
}

// DefaultOptions returns the editor defaults.
func DefaultOptions() Options {
	return Options{
		BaseWidth:  612,
		Zoom:       DefaultZoomRange,
		ClampEdits: true,
		History:    undo.Config{MaxPerPage: 200, MinInterval: 500 * time.Millisecond},
	}
}

// Editor is the preparation step of one envelope: it owns the page surface,
// the field registry, the selection, the drag controller and the recipients.
// It is driven from a single goroutine.
type Editor struct {
	meta       domain.Envelope
	recipients []domain.Recipient
	page       int

	surface *Page
	sel     *Selection
	reg     *Registry
	drag    *DragController
	host    *Host
	history *undo.Manager

	active      bool
	releaseKeys func()
	dragBefore  []byte

	// OnChange is called after every state change the view must reflect.
	OnChange func()

	opts Options
	log  *slog.Logger
}

// NewEditor loads env into a new editor. A nil host gets a private one.
func NewEditor(env domain.Envelope, host *Host, opts Options) *Editor {
	if opts.BaseWidth <= 0 {
		opts.BaseWidth = DefaultOptions().BaseWidth
	}
	if opts.Zoom == (ZoomRange{}) {
		opts.Zoom = DefaultZoomRange
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if host == nil {
		host = NewHost()
	}
	e := &Editor{
		meta:       env,
		recipients: append([]domain.Recipient(nil), env.Recipients...),
		page:       1,
		surface:    NewPage(opts.BaseWidth, env.Document.Aspect(), opts.Zoom),
		sel:        &Selection{},
		host:       host,
		history:    undo.NewManager(opts.History),
		opts:       opts,
		log:        applog.WithComponent("editor").With(slog.String("envelope", env.ID)),
	}
	e.meta.Recipients, e.meta.Fields = nil, nil
	e.reg = NewRegistry(e.sel, RegistryOptions{ClampEdits: opts.ClampEdits, NewID: opts.NewID})
	e.reg.Replace(env.Fields)
	e.drag = NewDragController(e.reg, e.surface, host)
	e.drag.Snap = opts.Snap
	e.drag.OnMove = func(domain.Field) { e.changed() }
	e.drag.OnEnd = e.dragEnded
	return e
}

func (e *Editor) Host() *Host                 { return e.host }
func (e *Editor) Surface() *Page              { return e.surface }
func (e *Editor) Registry() *Registry         { return e.reg }
func (e *Editor) Selection() *Selection       { return e.sel }
func (e *Editor) Drag() *DragController       { return e.drag }
func (e *Editor) Active() bool                { return e.active }
func (e *Editor) CurrentPage() int            { return e.page }
func (e *Editor) Fields() []domain.Field      { return e.reg.Fields() }
func (e *Editor) RenderOrder() []domain.Field { return e.reg.RenderOrder(e.page) }
func (e *Editor) Guides() []vector.GuideLine  { return e.drag.Guides() }

// FieldCount returns how many fields recipientID owns across all pages.
func (e *Editor) FieldCount(recipientID string) int { return e.reg.CountByRecipient(recipientID) }

// PageCount returns the number of document pages, at least 1.
func (e *Editor) PageCount() int {
	if n := e.meta.Document.PageCount; n > 0 {
		return n
	}
	return 1
}

// Enter activates the preparation step. It fails while the recipient step is
// incomplete. The keyboard listener lives until Leave.
func (e *Editor) Enter() error {
	if e.active {
		return nil
	}
	var blocking []string
	for _, is := range review.ValidateRecipients(e.recipients) {
		if is.Severity == review.SevError {
			blocking = append(blocking, is.Message)
		}
	}
	if len(blocking) > 0 {
		return fmt.Errorf("%w: %s", ErrRecipientsIncomplete, strings.Join(blocking, "; "))
	}
	e.releaseKeys = e.host.KeyDown.Connect(e.handleKey)
	e.active = true
	e.log.Debug("preparation step entered", slog.Int("fields", e.reg.Len()))
	return nil
}

// Leave deactivates the preparation step. An active drag is committed and
// its listeners are released.
func (e *Editor) Leave() {
	if !e.active {
		return
	}
	e.drag.EndDrag()
	if e.releaseKeys != nil {
		e.releaseKeys()
		e.releaseKeys = nil
	}
	e.active = false
	e.log.Debug("preparation step left")
}

func (e *Editor) handleKey(k Key) {
	switch k {
	case KeyDelete, KeyBackspace:
		e.DeleteSelected()
	case KeyEscape:
		if _, selected := e.sel.ID(); selected && e.drag.State() == Idle {
			e.sel.Clear()
			e.changed()
		}
	}
}

// PointerDown routes a pointer press on the page: a press on a field starts
// dragging it, a press on the background clears the selection.
func (e *Editor) PointerDown(p Pointer) bool {
	pt := PointToPercent(p.Pt(), e.surface.Rect())
	if f, ok := e.reg.HitTest(e.page, pt); ok {
		return e.PointerDownOnField(f.ID, p)
	}
	e.PointerDownOnBackground()
	return false
}

// PointerDownOnField starts a drag of id. It reports whether a drag began.
func (e *Editor) PointerDownOnField(id string, p Pointer) bool {
	if !e.active {
		return false
	}
	before := e.pageBlob(e.page)
	if !e.drag.BeginDrag(id, p) {
		return false
	}
	e.dragBefore = before
	e.changed()
	return true
}

// PointerDownOnBackground clears the selection.
func (e *Editor) PointerDownOnBackground() {
	if _, ok := e.sel.ID(); !ok {
		return
	}
	e.sel.Clear()
	e.changed()
}

func (e *Editor) dragEnded(id string, from, to domain.Rect) {
	before := e.dragBefore
	e.dragBefore = nil
	if from == to || before == nil {
		return
	}
	e.history.Record(undo.Snapshot{Page: e.page, Blob: before, TS: e.opts.Now()})
	e.log.Debug("field moved", slog.String("field", id), slog.Float64("x", to.X), slog.Float64("y", to.Y))
	e.changed()
}

// DropTool creates a field of kind for recipientID centered under p on the
// current page. Releases outside the page and unknown recipients are ignored.
func (e *Editor) DropTool(kind domain.FieldKind, recipientID string, p Pointer) (domain.Field, bool) {
	if !e.active || !kind.Valid() {
		return domain.Field{}, false
	}
	if _, ok := e.recipient(recipientID); !ok {
		return domain.Field{}, false
	}
	rect := e.surface.Rect()
	if rect.Empty() || !rect.Contains(p.Pt()) {
		return domain.Field{}, false
	}
	center := PointToPercent(p.Pt(), rect)
	e.record(e.page, "")
	f := e.reg.AddFieldOnPage(e.page, kind, recipientID, center.X, center.Y)
	e.log.Debug("field dropped", slog.String("field", f.ID), slog.String("kind", string(kind)), slog.Int("page", f.Page))
	e.changed()
	return f, true
}

// UpdateField applies a property-panel edit. Consecutive edits of the same
// field coalesce into one undo step. Reassigning to an unknown recipient is
// ignored.
func (e *Editor) UpdateField(id string, patch FieldPatch) (domain.Field, bool) {
	f, ok := e.reg.Field(id)
	if !ok {
		return domain.Field{}, false
	}
	if patch.RecipientID != nil {
		if _, known := e.recipient(*patch.RecipientID); !known {
			patch.RecipientID = nil
		}
	}
	if patch.Empty() {
		return f, true
	}
	e.record(f.Page, "edit:"+id)
	f, ok = e.reg.UpdateField(id, patch)
	e.changed()
	return f, ok
}

// Trash deletes a field, as the trash icon does.
func (e *Editor) Trash(id string) bool {
	f, ok := e.reg.Field(id)
	if !ok {
		return false
	}
	if active, dragging := e.drag.Active(); dragging && active == id {
		e.drag.EndDrag()
	}
	e.record(f.Page, "")
	e.reg.DeleteField(id)
	e.log.Debug("field deleted", slog.String("field", id))
	e.changed()
	return true
}

// DeleteSelected deletes the selected field, if any.
func (e *Editor) DeleteSelected() bool {
	id, ok := e.sel.ID()
	if !ok {
		return false
	}
	return e.Trash(id)
}

// SetPage switches the current page, clamped to the document. Any drag ends
// and the selection is cleared.
func (e *Editor) SetPage(n int) int {
	n = int(vector.ClampRange(float64(n), 1, float64(e.PageCount())))
	if n == e.page {
		return n
	}
	e.drag.EndDrag()
	e.sel.Clear()
	e.page = n
	e.changed()
	return n
}

// SetZoom changes the presentation zoom and returns the clamped value.
func (e *Editor) SetZoom(z float64) float64 {
	z = e.surface.SetZoom(z)
	e.changed()
	return z
}

// Undo reverts the last change on the current page.
func (e *Editor) Undo() bool {
	e.drag.EndDrag()
	s, ok := e.history.Undo(e.page, e.pageBlob(e.page))
	if !ok {
		return false
	}
	return e.restore(s)
}

// Redo re-applies the last undone change on the current page.
func (e *Editor) Redo() bool {
	e.drag.EndDrag()
	s, ok := e.history.Redo(e.page, e.pageBlob(e.page))
	if !ok {
		return false
	}
	return e.restore(s)
}

// CanUndo reports whether the current page has history.
func (e *Editor) CanUndo() bool { return e.history.CanUndo(e.page) }

// CanRedo reports whether the current page has undone changes.
func (e *Editor) CanRedo() bool { return e.history.CanRedo(e.page) }

func (e *Editor) restore(s undo.Snapshot) bool {
	var fields []domain.Field
	if err := json.Unmarshal(s.Blob, &fields); err != nil {
		e.log.Error("restore snapshot", slog.Int("page", s.Page), slog.Any("err", err))
		return false
	}
	e.reg.ReplacePage(s.Page, fields)
	e.changed()
	return true
}

func (e *Editor) record(page int, label string) {
	e.history.Record(undo.Snapshot{Page: page, Label: label, Blob: e.pageBlob(page), TS: e.opts.Now()})
}

func (e *Editor) pageBlob(page int) []byte {
	b, err := json.Marshal(e.reg.FieldsOnPage(page))
	if err != nil {
		// []Field always marshals
		panic(err)
	}
	return b
}

func (e *Editor) changed() {
	if e.OnChange != nil {
		e.OnChange()
	}
}

// Envelope returns the {fields, recipients} payload for the send step.
func (e *Editor) Envelope() domain.Envelope {
	env := e.meta
	env.Recipients = e.Recipients()
	env.Fields = e.reg.Fields()
	if env.Status == "" {
		env.Status = domain.StatusDraft
	}
	return env
}

// History exposes the undo manager, e.g. to persist it.
func (e *Editor) History() *undo.Manager { return e.history }
