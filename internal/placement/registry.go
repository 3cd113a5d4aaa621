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
	"html"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"gosignprep/internal/domain"
	"gosignprep/internal/vector"
)

// RegistryOptions tunes the registry's edit semantics.
type RegistryOptions struct {
	// ClampEdits applies bounds clamping to every UpdateField call. When false
	// only drag and drop paths clamp, and typed sizes may overflow the page.
	ClampEdits bool
	// NewID overrides id generation (tests).
	NewID func() string
}

// FieldPatch carries a partial update. Nil members are left untouched.
type FieldPatch struct {
	X, Y          *float64
	Width, Height *float64
	RecipientID   *string
	Required      *bool
	Label         *string
}

// Position builds a patch moving a field to (x, y).
func Position(x, y float64) FieldPatch { return FieldPatch{X: &x, Y: &y} }

// Resize builds a patch changing a field's size.
func Resize(w, h float64) FieldPatch { return FieldPatch{Width: &w, Height: &h} }

// Owner builds a patch reassigning a field to another recipient.
func Owner(recipientID string) FieldPatch { return FieldPatch{RecipientID: &recipientID} }

// Labeled builds a patch setting a field's label.
func Labeled(label string) FieldPatch { return FieldPatch{Label: &label} }

// MarkRequired builds a patch toggling the required flag.
func MarkRequired(v bool) FieldPatch { return FieldPatch{Required: &v} }

// Empty reports whether the patch changes nothing.
func (p FieldPatch) Empty() bool {
	return p.X == nil && p.Y == nil && p.Width == nil && p.Height == nil &&
		p.RecipientID == nil && p.Required == nil && p.Label == nil
}

var labelPolicy = bluemonday.StrictPolicy()

// SanitizeLabel strips markup from user-entered label text.
func SanitizeLabel(s string) string {
	return strings.TrimSpace(html.UnescapeString(labelPolicy.Sanitize(s)))
}

// Registry is the ordered field collection of one document. Unknown ids are
// silently ignored by every operation.
type Registry struct {
	fields []domain.Field
	sel    *Selection
	opts   RegistryOptions
}

// NewRegistry creates an empty registry bound to sel.
func NewRegistry(sel *Selection, opts RegistryOptions) *Registry {
	if sel == nil {
		sel = &Selection{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Registry{sel: sel, opts: opts}
}

// Selection returns the selection the registry clears on delete.
func (r *Registry) Selection() *Selection { return r.sel }

// AddField creates a field of kind on page 1 centered on (centerX, centerY)
// in percent. See AddFieldOnPage.
func (r *Registry) AddField(kind domain.FieldKind, recipientID string, centerX, centerY float64) domain.Field {
	return r.AddFieldOnPage(1, kind, recipientID, centerX, centerY)
}

// AddFieldOnPage creates a field with the kind's default size centered on the
// given percent point, clamps it into the page, appends it and selects it.
func (r *Registry) AddFieldOnPage(page int, kind domain.FieldKind, recipientID string, centerX, centerY float64) domain.Field {
	w, h := DefaultSize(kind)
	rect := clampRect(domain.Rect{X: centerX - w/2, Y: centerY - h/2, Width: w, Height: h})
	if page < 1 {
		page = 1
	}
	f := domain.Field{
		ID:          r.opts.NewID(),
		Kind:        kind,
		Page:        page,
		Rect:        rect,
		RecipientID: recipientID,
		Required:    kind != domain.KindCheckbox,
	}
	r.fields = append(r.fields, f)
	r.sel.Select(f.ID)
	return f
}

// UpdateField merges patch into the field with the given id and returns the
// result. The boolean is false when no such field exists.
func (r *Registry) UpdateField(id string, patch FieldPatch) (domain.Field, bool) {
	i := r.index(id)
	if i < 0 {
		return domain.Field{}, false
	}
	f := r.fields[i]
	if patch.Width != nil {
		f.Rect.Width = *patch.Width
	}
	if patch.Height != nil {
		f.Rect.Height = *patch.Height
	}
	if patch.X != nil {
		f.Rect.X = *patch.X
	}
	if patch.Y != nil {
		f.Rect.Y = *patch.Y
	}
	if patch.RecipientID != nil {
		f.RecipientID = *patch.RecipientID
	}
	if patch.Required != nil {
		f.Required = *patch.Required
	}
	if patch.Label != nil {
		f.Label = SanitizeLabel(*patch.Label)
	}
	if r.opts.ClampEdits {
		f.Rect = clampRect(f.Rect)
	}
	r.fields[i] = f
	return f, true
}

// DeleteField removes the field and clears the selection if it was selected.
func (r *Registry) DeleteField(id string) bool {
	i := r.index(id)
	if i < 0 {
		return false
	}
	r.fields = append(r.fields[:i], r.fields[i+1:]...)
	if r.sel.Is(id) {
		r.sel.Clear()
	}
	return true
}

// Field looks up a field by id.
func (r *Registry) Field(id string) (domain.Field, bool) {
	if i := r.index(id); i >= 0 {
		return r.fields[i], true
	}
	return domain.Field{}, false
}

// Fields returns a copy of all fields in insertion order.
func (r *Registry) Fields() []domain.Field {
	return append([]domain.Field(nil), r.fields...)
}

// Len returns the number of fields.
func (r *Registry) Len() int { return len(r.fields) }

// FieldsOnPage returns the fields of one page in insertion order.
func (r *Registry) FieldsOnPage(page int) []domain.Field {
	var out []domain.Field
	for _, f := range r.fields {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// RenderOrder returns the fields of a page in drawing order: insertion order
// with the selected field moved to the end so it paints on top.
func (r *Registry) RenderOrder(page int) []domain.Field {
	out := r.FieldsOnPage(page)
	for i, f := range out {
		if r.sel.Is(f.ID) {
			out = append(append(out[:i:i], out[i+1:]...), f)
			break
		}
	}
	return out
}

// HitTest returns the top-most field on page containing pt (percent units).
func (r *Registry) HitTest(page int, pt vector.Pt) (domain.Field, bool) {
	order := r.RenderOrder(page)
	for i := len(order) - 1; i >= 0; i-- {
		f := order[i]
		if percentRect(f.Rect).Contains(pt) {
			return f, true
		}
	}
	return domain.Field{}, false
}

// CountByRecipient returns how many fields recipientID owns.
func (r *Registry) CountByRecipient(recipientID string) int {
	n := 0
	for _, f := range r.fields {
		if f.RecipientID == recipientID {
			n++
		}
	}
	return n
}

// Replace swaps the whole collection, e.g. after loading an envelope.
func (r *Registry) Replace(fields []domain.Field) {
	r.fields = append([]domain.Field(nil), fields...)
	r.dropStaleSelection()
}

// ReplacePage swaps the fields of one page, keeping other pages untouched.
// Restored fields are appended after the remaining ones.
func (r *Registry) ReplacePage(page int, fields []domain.Field) {
	kept := r.fields[:0:0]
	for _, f := range r.fields {
		if f.Page != page {
			kept = append(kept, f)
		}
	}
	for _, f := range fields {
		f.Page = page
		kept = append(kept, f)
	}
	r.fields = kept
	r.dropStaleSelection()
}

func (r *Registry) dropStaleSelection() {
	if id, ok := r.sel.ID(); ok && r.index(id) < 0 {
		r.sel.Clear()
	}
}

func (r *Registry) index(id string) int {
	if id == "" {
		return -1
	}
	for i := range r.fields {
		if r.fields[i].ID == id {
			return i
		}
	}
	return -1
}

func percentRect(r domain.Rect) vector.Rect {
	return vector.Rect{X: r.X, Y: r.Y, W: r.Width, H: r.Height}
}

// clampRect bounds size to [MinFieldSize, 100] and position to [0, 100-size].
func clampRect(r domain.Rect) domain.Rect {
	r.Width = vector.ClampRange(r.Width, MinFieldSize, 100)
	r.Height = vector.ClampRange(r.Height, MinFieldSize, 100)
	r.X = vector.ClampRange(r.X, 0, 100-r.Width)
	r.Y = vector.ClampRange(r.Y, 0, 100-r.Height)
	return r
}
