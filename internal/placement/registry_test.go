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
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosignprep/internal/domain"
	"gosignprep/internal/vector"
)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("f%d", n)
	}
}

func newTestRegistry(clamp bool) *Registry {
	return NewRegistry(&Selection{}, RegistryOptions{ClampEdits: clamp, NewID: seqIDs()})
}

func TestAddFieldStaysInBoundsForEveryKind(t *testing.T) {
	centers := []vector.Pt{{X: 0, Y: 0}, {X: 100, Y: 100}, {X: 50, Y: 50}, {X: -20, Y: 130}, {X: 99, Y: 1}}
	for _, kind := range domain.Kinds {
		for _, c := range centers {
			r := newTestRegistry(false)
			f := r.AddField(kind, "r1", c.X, c.Y)
			w, h := DefaultSize(kind)
			assert.True(t, f.Rect.InBounds(), "%s at %+v: %+v", kind, c, f.Rect)
			assert.Equal(t, w, f.Rect.Width)
			assert.Equal(t, h, f.Rect.Height)
		}
	}
}

func TestAddFieldCentersSelectsAndAppends(t *testing.T) {
	r := newTestRegistry(true)
	a := r.AddField(domain.KindSignature, "r1", 50, 50)
	assert.Equal(t, domain.Rect{X: 40, Y: 47.5, Width: 20, Height: 5}, a.Rect)
	assert.True(t, r.Selection().Is(a.ID))

	b := r.AddFieldOnPage(2, domain.KindCheckbox, "r2", 10, 10)
	assert.True(t, r.Selection().Is(b.ID))
	assert.Equal(t, 2, b.Page)
	assert.False(t, b.Required, "checkboxes default to optional")
	assert.Equal(t, []string{"f1", "f2"}, ids(r.Fields()))

	cw, ch := DefaultSize(domain.KindCheckbox)
	sw, sh := DefaultSize(domain.KindSignature)
	assert.Less(t, cw*ch, sw*sh, "checkbox smaller than signature")
}

func ids(fs []domain.Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.ID
	}
	return out
}

func TestUpdateFieldMergesAndIgnoresUnknownIDs(t *testing.T) {
	r := newTestRegistry(true)
	f := r.AddField(domain.KindText, "r1", 50, 50)

	_, ok := r.UpdateField("nope", Position(1, 1))
	assert.False(t, ok)

	got, ok := r.UpdateField(f.ID, Labeled("  <b>Company</b> &amp; name "))
	require.True(t, ok)
	assert.Equal(t, "Company & name", got.Label)
	assert.Equal(t, f.Rect, got.Rect, "label edit leaves geometry")

	got, _ = r.UpdateField(f.ID, MarkRequired(false))
	assert.False(t, got.Required)
	got, _ = r.UpdateField(f.ID, Owner("r2"))
	assert.Equal(t, "r2", got.RecipientID)
	assert.Equal(t, "Company & name", got.Label)
}

func TestUpdateFieldClampPolicy(t *testing.T) {
	clamped := newTestRegistry(true)
	f := clamped.AddField(domain.KindSignature, "r1", 50, 50)
	got, _ := clamped.UpdateField(f.ID, Resize(150, 0))
	assert.Equal(t, domain.Rect{X: 0, Y: 47.5, Width: 100, Height: MinFieldSize}, got.Rect)
	got, _ = clamped.UpdateField(f.ID, Position(-5, 200))
	assert.True(t, got.Rect.InBounds())

	raw := newTestRegistry(false)
	f = raw.AddField(domain.KindSignature, "r1", 50, 50)
	got, _ = raw.UpdateField(f.ID, Resize(70, 5))
	assert.Equal(t, 70.0, got.Rect.Width)
	assert.False(t, got.Rect.InBounds(), "unclamped edits may overflow")
}

func TestDeleteClearsSelection(t *testing.T) {
	r := newTestRegistry(true)
	a := r.AddField(domain.KindDate, "r1", 20, 20)
	b := r.AddField(domain.KindDate, "r1", 60, 60)
	require.True(t, r.Selection().Is(b.ID))

	// deleting an unselected field keeps the selection
	assert.True(t, r.DeleteField(a.ID))
	assert.True(t, r.Selection().Is(b.ID))

	assert.True(t, r.DeleteField(b.ID))
	_, selected := r.Selection().ID()
	assert.False(t, selected)
	assert.False(t, r.DeleteField(b.ID))
	assert.Zero(t, r.Len())
}

func TestReselectIsIdempotent(t *testing.T) {
	r := newTestRegistry(true)
	f := r.AddField(domain.KindInitials, "r1", 50, 50)
	before := *r.Selection()
	r.Selection().Select(f.ID)
	assert.Equal(t, before, *r.Selection())
	id, ok := r.Selection().ID()
	assert.True(t, ok)
	assert.Equal(t, f.ID, id)
}

func TestRenderOrderAndHitTest(t *testing.T) {
	r := newTestRegistry(true)
	a := r.AddField(domain.KindSignature, "r1", 50, 50) // 40..60 x 47.5..52.5
	b := r.AddField(domain.KindText, "r1", 55, 50)      // 45..65 x 48..52
	c := r.AddField(domain.KindText, "r1", 50, 90)

	r.Selection().Select(a.ID)
	assert.Equal(t, []string{b.ID, c.ID, a.ID}, ids(r.RenderOrder(1)))

	hit, ok := r.HitTest(1, vector.Pt{X: 50, Y: 50})
	require.True(t, ok)
	assert.Equal(t, a.ID, hit.ID, "selected field is on top")

	r.Selection().Clear()
	hit, _ = r.HitTest(1, vector.Pt{X: 50, Y: 50})
	assert.Equal(t, b.ID, hit.ID, "later insertion is on top")

	_, ok = r.HitTest(1, vector.Pt{X: 5, Y: 5})
	assert.False(t, ok)
	_, ok = r.HitTest(2, vector.Pt{X: 50, Y: 50})
	assert.False(t, ok)
}

func TestCountByRecipientAndReplacePage(t *testing.T) {
	r := newTestRegistry(true)
	r.AddField(domain.KindSignature, "r1", 20, 20)
	r.AddFieldOnPage(2, domain.KindSignature, "r1", 20, 20)
	keep := r.AddFieldOnPage(2, domain.KindDate, "r2", 50, 50)
	assert.Equal(t, 2, r.CountByRecipient("r1"))
	assert.Equal(t, 1, r.CountByRecipient("r2"))

	r.ReplacePage(2, []domain.Field{keep})
	assert.Equal(t, 1, r.CountByRecipient("r1"))
	assert.Len(t, r.FieldsOnPage(2), 1)
	assert.True(t, r.Selection().Is(keep.ID))

	r.Replace(nil)
	_, selected := r.Selection().ID()
	assert.False(t, selected, "stale selection dropped")

	want := []domain.Field{{ID: "x", Kind: domain.KindText, Page: 1, RecipientID: "r1"}}
	r.Replace(want)
	if diff := cmp.Diff(want, r.Fields()); diff != "" {
		t.Fatalf("Replace mismatch (-want +got):\n%s", diff)
	}
}
