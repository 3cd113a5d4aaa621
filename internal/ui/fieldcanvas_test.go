//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// These tests exercise the Fyne widgets headlessly through fyne's test app.
// They are gated behind the "fyne" build tag:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"math"
	"strconv"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"gosignprep/internal/domain"
	"gosignprep/internal/placement"
)

func almostEqual(a, b, eps float64) bool { return math.Abs(a-b) <= eps }

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return "f" + strconv.Itoa(n)
	}
}

// newCanvasRig lays out a letter page at 100% in a 1000x900 widget, which puts
// the page origin at (194, 54) and makes it 612x792 px.
func newCanvasRig(t *testing.T) (*FieldCanvas, *placement.Editor) {
	t.Helper()
	test.NewTempApp(t)
	env := domain.Envelope{
		ID:       "env-1",
		Document: domain.Document{PageCount: 2, PageWidth: 612, PageHeight: 792},
		Recipients: []domain.Recipient{
			{ID: "r1", Name: "Ada", Email: "ada@example.com", Role: domain.RoleSigner},
			{ID: "r2", Name: "Carl", Email: "carl@example.com", Role: domain.RoleCC, Color: 1},
		},
	}
	opts := placement.DefaultOptions()
	opts.NewID = seqIDs()
	ed := placement.NewEditor(env, nil, opts)
	if err := ed.Enter(); err != nil {
		t.Fatalf("enter: %v", err)
	}
	fc := NewFieldCanvas(ed)
	fc.Resize(fyne.NewSize(1000, 900))
	return fc, ed
}

func press(x, y float32) *desktop.MouseEvent {
	return &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: desktop.MouseButtonPrimary}
}

func dragTo(x, y float32) *fyne.DragEvent {
	return &fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}}
}

func TestFieldCanvas_LayoutCentersPage(t *testing.T) {
	fc, ed := newCanvasRig(t)
	r := ed.Surface().Rect()
	if r.X != 194 || r.Y != 54 || r.W != 612 || !almostEqual(r.H, 792, 1e-9) {
		t.Fatalf("unexpected page rect %+v", r)
	}
	if sz := fc.PreferredSize(); sz.Width != 800 || sz.Height != 600 {
		t.Fatalf("unexpected PreferredSize: %v", sz)
	}

	// A small widget pins the page to the padding instead of centering it.
	fc.Resize(fyne.NewSize(300, 300))
	if r := ed.Surface().Rect(); r.X != pagePadding || r.Y != pagePadding {
		t.Fatalf("page should stick to the padding, got %+v", r)
	}
}

func TestFieldCanvas_ArmedPressDropsField(t *testing.T) {
	fc, ed := newCanvasRig(t)
	var dropped []domain.Field
	fc.OnDropped = func(f domain.Field) { dropped = append(dropped, f) }

	fc.Arm(domain.KindSignature, "r1")
	if fc.Cursor() != desktop.CrosshairCursor {
		t.Fatalf("armed canvas should show the crosshair")
	}
	// outside the page: ignored, still armed
	fc.MouseDown(press(100, 100))
	if len(ed.Fields()) != 0 {
		t.Fatalf("drop outside the page must be ignored")
	}
	if _, ok := fc.Armed(); !ok {
		t.Fatalf("palette should stay armed after a miss")
	}

	fc.MouseDown(press(194+306, 54+396))
	if len(dropped) != 1 || len(ed.Fields()) != 1 {
		t.Fatalf("expected one dropped field, got %d/%d", len(dropped), len(ed.Fields()))
	}
	f := dropped[0]
	if f.RecipientID != "r1" || f.Page != 1 || !almostEqual(f.Rect.X, 40, 1e-9) || !almostEqual(f.Rect.Y, 47.5, 1e-9) {
		t.Fatalf("unexpected field %+v", f)
	}
	if _, ok := fc.Armed(); ok {
		t.Fatalf("a successful drop disarms the palette")
	}
}

func TestFieldCanvas_DragMovesFieldAsOneUndoStep(t *testing.T) {
	fc, ed := newCanvasRig(t)
	fc.Arm(domain.KindSignature, "r1")
	fc.MouseDown(press(500, 450))
	id := ed.Fields()[0].ID
	undoBefore := ed.CanUndo()

	fc.MouseDown(press(500, 450))
	if ed.Drag().State() != placement.Dragging {
		t.Fatalf("press on a field should start a drag, state %v", ed.Drag().State())
	}
	fc.Dragged(dragTo(530.6, 450))
	fc.Dragged(dragTo(561.2, 450))
	fc.DragEnd()

	if ed.Drag().State() != placement.Idle {
		t.Fatalf("drag should end on DragEnd")
	}
	f, _ := ed.Registry().Field(id)
	if !almostEqual(f.Rect.X, 50, 1e-6) || !almostEqual(f.Rect.Y, 47.5, 1e-6) {
		t.Fatalf("unexpected position after drag: %+v", f.Rect)
	}
	if !undoBefore || !ed.CanUndo() {
		t.Fatalf("expected history")
	}
	ed.Undo()
	f, _ = ed.Registry().Field(id)
	if !almostEqual(f.Rect.X, 40, 1e-6) {
		t.Fatalf("undo should restore the pre-drag position, got %+v", f.Rect)
	}
}

func TestFieldCanvas_KeysDeleteAndEscape(t *testing.T) {
	fc, ed := newCanvasRig(t)
	fc.Arm(domain.KindDate, "r1")
	fc.MouseDown(press(500, 450))
	fc.MouseDown(press(500, 450))
	fc.MouseUp(press(500, 450))
	if _, ok := ed.Selection().ID(); !ok {
		t.Fatalf("pressing a field selects it")
	}

	fc.Arm(domain.KindText, "r1")
	fc.TypedKey(&fyne.KeyEvent{Name: fyne.KeyEscape})
	if _, ok := fc.Armed(); ok {
		t.Fatalf("escape should disarm first")
	}
	if _, ok := ed.Selection().ID(); !ok {
		t.Fatalf("escape that disarms must not clear the selection")
	}

	fc.TypedKey(&fyne.KeyEvent{Name: fyne.KeyDelete})
	if len(ed.Fields()) != 0 {
		t.Fatalf("delete should remove the selected field")
	}
}

func TestFieldCanvas_TrashHandleDeletes(t *testing.T) {
	fc, ed := newCanvasRig(t)
	fc.Arm(domain.KindSignature, "r1")
	fc.MouseDown(press(500, 450))
	fc.MouseDown(press(500, 450))
	fc.MouseUp(press(500, 450))

	// top-right corner of the 20x5 % box at (40, 47.5) %
	fc.MouseDown(press(194+0.6*612, 54+0.475*792))
	if len(ed.Fields()) != 0 {
		t.Fatalf("trash handle should delete the field")
	}
}

func TestFieldCanvas_ScrollZooms(t *testing.T) {
	fc, ed := newCanvasRig(t)
	var got float64
	fc.OnZoom = func(z float64) { got = z }
	fc.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, -100)})
	if got != 0.5 || ed.Surface().Zoom() != 0.5 {
		t.Fatalf("zoom should clamp at 50%%, got %v", got)
	}
}

func TestCaption(t *testing.T) {
	env := &domain.Envelope{Recipients: []domain.Recipient{{ID: "r1", Name: "Ada"}}}
	cases := []struct {
		f    domain.Field
		want string
	}{
		{domain.Field{Kind: domain.KindSignature, RecipientID: "r1", Required: true}, "Signature (Ada) *"},
		{domain.Field{Kind: domain.KindText, Label: "Company", RecipientID: "gone"}, "Company"},
		{domain.Field{Kind: domain.KindDate, Label: "ignored"}, "Date"},
	}
	for _, c := range cases {
		if got := caption(env, c.f); got != c.want {
			t.Fatalf("caption(%+v) = %q, want %q", c.f, got, c.want)
		}
	}
}
