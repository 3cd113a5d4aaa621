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
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gosignprep/internal/domain"
	"gosignprep/internal/undo"
)

func newTestEditor(t *testing.T, signers ...string) *Editor {
	t.Helper()
	opts := DefaultOptions()
	opts.BaseWidth = 600
	opts.NewID = seqIDs()
	opts.History = undo.Config{MinInterval: time.Hour}
	env := domain.Envelope{
		ID:       "env-1",
		Title:    "Lease",
		Document: domain.Document{Name: "lease.pdf", PageCount: 3, PageWidth: 600, PageHeight: 800},
	}
	e := NewEditor(env, nil, opts)
	for _, name := range signers {
		e.AddRecipient(name, name+"@example.org", domain.RoleSigner)
	}
	return e
}

func TestEnterRequiresCompleteRecipients(t *testing.T) {
	e := newTestEditor(t)
	err := e.Enter()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecipientsIncomplete))
	assert.False(t, e.Active())

	r := e.AddRecipient("Ada", "", domain.RoleSigner)
	require.Error(t, e.Enter())
	e.UpdateRecipient(r.ID, "", "ada@example.org", "")
	require.NoError(t, e.Enter())
	assert.True(t, e.Active())
	require.NoError(t, e.Enter(), "entering twice is harmless")
	assert.Equal(t, 1, e.Host().KeyDown.Len())
}

func TestDropCreatesCenteredFieldOnCurrentPage(t *testing.T) {
	e := newTestEditor(t, "ada")
	r1 := e.Recipients()[0]
	_, ok := e.DropTool(domain.KindSignature, r1.ID, Pointer{X: 300, Y: 400})
	assert.False(t, ok, "inactive editor ignores drops")

	require.NoError(t, e.Enter())
	e.SetPage(2)
	f, ok := e.DropTool(domain.KindSignature, r1.ID, Pointer{X: 300, Y: 400})
	require.True(t, ok)
	assert.Equal(t, 2, f.Page)
	assert.InDelta(t, 40, f.Rect.X, 1e-9)
	assert.InDelta(t, 47.5, f.Rect.Y, 1e-9)
	assert.True(t, e.Selection().Is(f.ID))

	_, ok = e.DropTool(domain.KindSignature, r1.ID, Pointer{X: 700, Y: 10})
	assert.False(t, ok, "release outside the page")
	_, ok = e.DropTool(domain.KindSignature, "ghost", Pointer{X: 300, Y: 400})
	assert.False(t, ok, "unknown recipient")
	_, ok = e.DropTool("stamp", r1.ID, Pointer{X: 300, Y: 400})
	assert.False(t, ok, "unknown kind")
	assert.Equal(t, 1, e.Registry().Len())
}

func TestPointerDownDragAndBackground(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	rid := e.Recipients()[0].ID
	f, _ := e.DropTool(domain.KindSignature, rid, Pointer{X: 300, Y: 400})

	e.PointerDownOnBackground()
	_, selected := e.Selection().ID()
	assert.False(t, selected)

	assert.True(t, e.PointerDown(Pointer{X: 250, Y: 390}))
	assert.True(t, e.Selection().Is(f.ID))
	assert.Equal(t, Dragging, e.Drag().State())
	e.Host().PointerMove.Emit(Pointer{X: 1300, Y: 1390})
	e.Host().PointerUp.Emit(Pointer{X: 1300, Y: 1390})
	got, _ := e.Registry().Field(f.ID)
	assert.InDelta(t, 80, got.Rect.X, 1e-9)
	assert.InDelta(t, 95, got.Rect.Y, 1e-9)

	assert.False(t, e.PointerDown(Pointer{X: 10, Y: 10}))
	_, selected = e.Selection().ID()
	assert.False(t, selected)
}

func TestDeleteKeyIsScopedToPreparationStep(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	rid := e.Recipients()[0].ID
	a, _ := e.DropTool(domain.KindText, rid, Pointer{X: 100, Y: 100})
	b, _ := e.DropTool(domain.KindText, rid, Pointer{X: 300, Y: 300})

	e.Host().KeyDown.Emit(KeyDelete)
	_, ok := e.Registry().Field(b.ID)
	assert.False(t, ok)
	_, selected := e.Selection().ID()
	assert.False(t, selected)

	e.Host().KeyDown.Emit(KeyBackspace) // nothing selected
	assert.Equal(t, 1, e.Registry().Len())

	e.Selection().Select(a.ID)
	e.Leave()
	assert.Zero(t, e.Host().KeyDown.Len())
	e.Host().KeyDown.Emit(KeyBackspace)
	_, ok = e.Registry().Field(a.ID)
	assert.True(t, ok, "keys after Leave must not delete")
}

func TestEscapeClearsSelectionButNotDrag(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	f, _ := e.DropTool(domain.KindDate, e.Recipients()[0].ID, Pointer{X: 300, Y: 400})

	require.True(t, e.PointerDownOnField(f.ID, Pointer{X: 300, Y: 400}))
	e.Host().KeyDown.Emit(KeyEscape)
	assert.True(t, e.Selection().Is(f.ID))
	assert.Equal(t, Dragging, e.Drag().State(), "escape does not cancel a drag")

	e.Host().PointerUp.Emit(Pointer{})
	e.Host().KeyDown.Emit(KeyEscape)
	_, selected := e.Selection().ID()
	assert.False(t, selected)
}

func TestLeaveMidDragCommitsAndReleases(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	f, _ := e.DropTool(domain.KindSignature, e.Recipients()[0].ID, Pointer{X: 300, Y: 400})
	require.True(t, e.PointerDownOnField(f.ID, Pointer{X: 300, Y: 400}))
	e.Host().PointerMove.Emit(Pointer{X: 330, Y: 400})

	e.Leave()
	assert.Equal(t, Idle, e.Drag().State())
	assert.Zero(t, e.Host().PointerMove.Len())
	assert.Zero(t, e.Host().PointerUp.Len())
	got, _ := e.Registry().Field(f.ID)
	assert.InDelta(t, 45, got.Rect.X, 1e-9, "position at exit is kept")
}

func TestReassignOwnerUpdatesCountsAndColor(t *testing.T) {
	e := newTestEditor(t, "ada", "grace")
	require.NoError(t, e.Enter())
	rs := e.Recipients()
	f, _ := e.DropTool(domain.KindText, rs[0].ID, Pointer{X: 300, Y: 400})
	before := e.FieldCount(rs[0].ID)

	got, ok := e.UpdateField(f.ID, Owner(rs[1].ID))
	require.True(t, ok)
	assert.Equal(t, rs[1].ID, got.RecipientID)
	assert.Equal(t, before-1, e.FieldCount(rs[0].ID))
	assert.Equal(t, 1, e.FieldCount(rs[1].ID))

	env := e.Envelope()
	assert.Equal(t, rs[1].Swatch(), env.SwatchFor(got))
	assert.NotEqual(t, rs[0].Swatch(), env.SwatchFor(got))

	got, _ = e.UpdateField(f.ID, Owner("ghost"))
	assert.Equal(t, rs[1].ID, got.RecipientID, "unknown owner ignored")
}

func TestRecipientColorsFollowOrdinal(t *testing.T) {
	e := newTestEditor(t, "a", "b", "c")
	rs := e.Recipients()
	for i, r := range rs {
		assert.Equal(t, i, r.Color)
	}
	e.RemoveRecipient(rs[0].ID)
	rs = e.Recipients()
	assert.Equal(t, 0, rs[0].Color)
	assert.Equal(t, 1, rs[1].Color)

	r := e.AddRecipient("d", "d@example.org", "viewer")
	assert.Equal(t, domain.RoleSigner, r.Role)
	assert.Equal(t, 2, r.Color)
}

func TestRemoveRecipientReassignsOrCascades(t *testing.T) {
	e := newTestEditor(t, "ada", "grace")
	cc := e.AddRecipient("Carl", "carl@example.org", domain.RoleCC)
	require.NoError(t, e.Enter())
	rs := e.Recipients()
	e.DropTool(domain.KindSignature, rs[0].ID, Pointer{X: 300, Y: 100})
	e.DropTool(domain.KindDate, rs[0].ID, Pointer{X: 300, Y: 300})
	e.DropTool(domain.KindSignature, rs[1].ID, Pointer{X: 300, Y: 500})

	res, ok := e.RemoveRecipient(rs[0].ID)
	require.True(t, ok)
	assert.Equal(t, RemovalResult{Reassigned: 2, NewOwner: rs[1].ID}, res)
	assert.Equal(t, 3, e.FieldCount(rs[1].ID))
	assert.False(t, e.CanUndo(), "history is reset")

	res, _ = e.RemoveRecipient(rs[1].ID)
	assert.Equal(t, RemovalResult{Deleted: 3}, res, "only a cc remains")
	assert.Zero(t, e.Registry().Len())
	assert.Equal(t, []domain.Recipient{{ID: cc.ID, Name: "Carl", Email: "carl@example.org", Role: domain.RoleCC, Color: 0}}, e.Recipients())

	_, ok = e.RemoveRecipient("ghost")
	assert.False(t, ok)
}

func TestUndoRedoPerChange(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	rid := e.Recipients()[0].ID
	f, _ := e.DropTool(domain.KindSignature, rid, Pointer{X: 300, Y: 400})

	// a drag of many moves is one step
	require.True(t, e.PointerDownOnField(f.ID, Pointer{X: 300, Y: 400}))
	for x := 310.0; x <= 400; x += 10 {
		e.Host().PointerMove.Emit(Pointer{X: x, Y: 400})
	}
	e.Host().PointerUp.Emit(Pointer{})
	moved, _ := e.Registry().Field(f.ID)
	assert.InDelta(t, 56.666, moved.Rect.X, 1e-2)

	// label edits coalesce
	e.UpdateField(f.ID, Labeled("a"))
	e.UpdateField(f.ID, Labeled("ab"))

	require.True(t, e.Undo())
	got, _ := e.Registry().Field(f.ID)
	assert.Empty(t, got.Label)
	assert.Equal(t, moved.Rect, got.Rect)

	require.True(t, e.Undo())
	got, _ = e.Registry().Field(f.ID)
	assert.InDelta(t, 40, got.Rect.X, 1e-9)

	require.True(t, e.Undo())
	assert.Zero(t, e.Registry().Len())
	assert.False(t, e.Undo())

	require.True(t, e.Redo())
	require.True(t, e.Redo())
	got, _ = e.Registry().Field(f.ID)
	assert.Equal(t, moved.Rect, got.Rect)
	assert.True(t, e.CanRedo())
}

func TestClickWithoutMoveLeavesNoHistory(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	f, _ := e.DropTool(domain.KindSignature, e.Recipients()[0].ID, Pointer{X: 300, Y: 400})
	e.PointerDownOnField(f.ID, Pointer{X: 300, Y: 400})
	e.Host().PointerUp.Emit(Pointer{})
	require.True(t, e.Undo())
	assert.Zero(t, e.Registry().Len(), "first undo reverts the drop")
}

func TestSetPageClampsAndClearsSelection(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	e.DropTool(domain.KindSignature, e.Recipients()[0].ID, Pointer{X: 300, Y: 400})
	assert.Equal(t, 3, e.SetPage(99))
	_, selected := e.Selection().ID()
	assert.False(t, selected)
	assert.Equal(t, 1, e.SetPage(-4))
	assert.Len(t, e.RenderOrder(), 1)
	e.SetPage(2)
	assert.Empty(t, e.RenderOrder())
}

func TestEnvelopePayload(t *testing.T) {
	e := newTestEditor(t, "ada")
	require.NoError(t, e.Enter())
	rid := e.Recipients()[0].ID
	f, _ := e.DropTool(domain.KindCheckbox, rid, Pointer{X: 300, Y: 400})
	var changes int
	e.OnChange = func() { changes++ }
	e.UpdateField(f.ID, Labeled("I agree"))
	assert.Equal(t, 1, changes)

	want := domain.Envelope{
		ID:         "env-1",
		Title:      "Lease",
		Status:     domain.StatusDraft,
		Document:   domain.Document{Name: "lease.pdf", PageCount: 3, PageWidth: 600, PageHeight: 800},
		Recipients: e.Recipients(),
		Fields: []domain.Field{{
			ID: f.ID, Kind: domain.KindCheckbox, Page: 1, RecipientID: rid, Label: "I agree",
			Rect: domain.Rect{X: 48, Y: 48.5, Width: 4, Height: 3},
		}},
	}
	if diff := cmp.Diff(want, e.Envelope(), cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Fatalf("Envelope mismatch (-want +got):\n%s", diff)
	}
}
