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

package ui

import (
	"fmt"
	"image/color"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"gosignprep/internal/domain"
	"gosignprep/internal/placement"
	"gosignprep/internal/vector"
)

// pagePadding keeps the page off the widget border.
const pagePadding = 16

// trashSize is the edge length of the delete handle on the selected field.
const trashSize = 14

// FieldCanvas draws the current page of an editor and forwards raw input to
// the editor's host. While a palette kind is armed, the next press on the page
// drops a field of that kind.
type FieldCanvas struct {
	widget.BaseWidget

	ed *placement.Editor

	armedKind domain.FieldKind
	armedFor  string
	last      placement.Pointer

	// OnDropped is called after a palette drop created a field.
	OnDropped func(domain.Field)
	// OnZoom is called after the wheel changed the zoom.
	OnZoom func(float64)
}

var (
	_ fyne.Draggable     = (*FieldCanvas)(nil)
	_ fyne.Focusable     = (*FieldCanvas)(nil)
	_ fyne.Scrollable    = (*FieldCanvas)(nil)
	_ desktop.Mouseable  = (*FieldCanvas)(nil)
	_ desktop.Hoverable  = (*FieldCanvas)(nil)
	_ desktop.Cursorable = (*FieldCanvas)(nil)
)

func NewFieldCanvas(ed *placement.Editor) *FieldCanvas {
	fc := &FieldCanvas{ed: ed}
	fc.ExtendBaseWidget(fc)
	return fc
}

// Arm makes the next press on the page drop a field of kind for recipientID.
func (c *FieldCanvas) Arm(kind domain.FieldKind, recipientID string) {
	c.armedKind, c.armedFor = kind, recipientID
}

func (c *FieldCanvas) Disarm() { c.armedKind, c.armedFor = "", "" }

// Armed returns the armed palette kind, if any.
func (c *FieldCanvas) Armed() (domain.FieldKind, bool) { return c.armedKind, c.armedKind != "" }

func (c *FieldCanvas) PreferredSize() fyne.Size { return fyne.NewSize(800, 600) }

func pointerAt(pos fyne.Position) placement.Pointer {
	return placement.Pointer{X: float64(pos.X), Y: float64(pos.Y)}
}

func (c *FieldCanvas) MouseDown(e *desktop.MouseEvent) {
	c.requestFocus()
	p := pointerAt(e.Position)
	c.last = p
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	if kind, ok := c.Armed(); ok {
		if f, dropped := c.ed.DropTool(kind, c.armedFor, p); dropped {
			c.Disarm()
			if c.OnDropped != nil {
				c.OnDropped(f)
			}
		}
		return
	}
	if id, ok := c.trashHit(p); ok {
		c.ed.Trash(id)
		return
	}
	c.ed.PointerDown(p)
}

func (c *FieldCanvas) MouseUp(e *desktop.MouseEvent) {
	p := pointerAt(e.Position)
	c.last = p
	c.ed.Host().PointerUp.Emit(p)
}

func (c *FieldCanvas) MouseIn(*desktop.MouseEvent) {}

func (c *FieldCanvas) MouseMoved(e *desktop.MouseEvent) {
	p := pointerAt(e.Position)
	c.last = p
	c.ed.Host().PointerMove.Emit(p)
}

func (c *FieldCanvas) MouseOut() {}

func (c *FieldCanvas) Dragged(e *fyne.DragEvent) {
	p := pointerAt(e.Position)
	c.last = p
	c.ed.Host().PointerMove.Emit(p)
}

func (c *FieldCanvas) DragEnd() { c.ed.Host().PointerUp.Emit(c.last) }

func (c *FieldCanvas) Scrolled(e *fyne.ScrollEvent) {
	z := c.ed.SetZoom(c.ed.Surface().Zoom() + float64(e.Scrolled.DY)*0.01)
	if c.OnZoom != nil {
		c.OnZoom(z)
	}
}

func (c *FieldCanvas) Cursor() desktop.Cursor {
	if _, ok := c.Armed(); ok {
		return desktop.CrosshairCursor
	}
	return desktop.DefaultCursor
}

func (c *FieldCanvas) FocusGained()   {}
func (c *FieldCanvas) FocusLost()     {}
func (c *FieldCanvas) TypedRune(rune) {}

// TypedKey forwards keys to the editor. Escape first disarms the palette.
func (c *FieldCanvas) TypedKey(e *fyne.KeyEvent) {
	if e.Name == fyne.KeyEscape {
		if _, ok := c.Armed(); ok {
			c.Disarm()
			return
		}
	}
	c.ed.Host().KeyDown.Emit(placement.Key(e.Name))
}

func (c *FieldCanvas) requestFocus() {
	app := fyne.CurrentApp()
	if app == nil {
		return
	}
	if cv := app.Driver().CanvasForObject(c); cv != nil {
		cv.Focus(c)
	}
}

// trashRect is the delete handle of a field, at its top-right corner.
func trashRect(box vector.Rect) vector.Rect {
	return vector.R(box.X+box.W-trashSize/2, box.Y-trashSize/2, trashSize, trashSize)
}

func (c *FieldCanvas) trashHit(p placement.Pointer) (string, bool) {
	id, ok := c.ed.Selection().ID()
	if !ok {
		return "", false
	}
	f, ok := c.ed.Registry().Field(id)
	if !ok || f.Page != c.ed.CurrentPage() {
		return "", false
	}
	if trashRect(placement.RectToPixels(f.Rect, c.ed.Surface().Rect())).Contains(p.Pt()) {
		return id, true
	}
	return "", false
}

// layoutPage centers the page in size and stores the origin on the surface.
func (c *FieldCanvas) layoutPage(size fyne.Size) vector.Rect {
	s := c.ed.Surface()
	r := s.Rect()
	s.Origin = vector.Pt{
		X: math.Max(pagePadding, (float64(size.Width)-r.W)/2),
		Y: math.Max(pagePadding, (float64(size.Height)-r.H)/2),
	}
	return s.Rect()
}

func (c *FieldCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 229, G: 231, B: 235, A: 255})
	page := canvas.NewRectangle(color.White)
	page.StrokeColor = color.NRGBA{R: 156, G: 163, B: 175, A: 255}
	page.StrokeWidth = 1
	r := &fieldCanvasRenderer{fc: c, bg: bg, page: page}
	r.build()
	return r
}

type fieldVisual struct {
	id    string
	box   *canvas.Rectangle
	label *canvas.Text
}

type fieldCanvasRenderer struct {
	fc       *FieldCanvas
	bg, page *canvas.Rectangle
	fields   []fieldVisual
	trash    *canvas.Rectangle
	trashX   *canvas.Text
	guides   []*canvas.Line
	objects  []fyne.CanvasObject
}

func (r *fieldCanvasRenderer) Destroy()                     {}
func (r *fieldCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *fieldCanvasRenderer) MinSize() fyne.Size           { return fyne.NewSize(320, 240) }

func (r *fieldCanvasRenderer) Refresh() {
	r.build()
	r.Layout(r.fc.Size())
	canvas.Refresh(r.fc)
}

// build recreates the per-field objects for the current page in draw order.
func (r *fieldCanvasRenderer) build() {
	ed := r.fc.ed
	env := domain.Envelope{Recipients: ed.Recipients()}
	r.fields = r.fields[:0]
	for _, f := range ed.RenderOrder() {
		sw := env.SwatchFor(f)
		box := canvas.NewRectangle(nrgba(sw.Background))
		box.StrokeColor = nrgba(sw.Border)
		box.StrokeWidth = 1
		if ed.Selection().Is(f.ID) {
			box.StrokeWidth = 2
		}
		txt := canvas.NewText(caption(&env, f), nrgba(sw.Text))
		txt.TextSize = 11
		r.fields = append(r.fields, fieldVisual{id: f.ID, box: box, label: txt})
	}

	r.guides = r.guides[:0]
	for range ed.Guides() {
		ln := canvas.NewLine(color.NRGBA{R: 236, G: 72, B: 153, A: 255})
		ln.StrokeWidth = 1
		r.guides = append(r.guides, ln)
	}

	r.trash = canvas.NewRectangle(color.NRGBA{R: 220, G: 38, B: 38, A: 255})
	r.trash.CornerRadius = trashSize / 2
	r.trashX = canvas.NewText("x", color.White)
	r.trashX.TextSize = 10
	r.trashX.Alignment = fyne.TextAlignCenter
	r.trash.Hide()
	r.trashX.Hide()

	objs := []fyne.CanvasObject{r.bg, r.page}
	for _, v := range r.fields {
		objs = append(objs, v.box, v.label)
	}
	for _, g := range r.guides {
		objs = append(objs, g)
	}
	r.objects = append(objs, r.trash, r.trashX)
}

func (r *fieldCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	ed := r.fc.ed
	pr := r.fc.layoutPage(size)
	r.page.Move(pos(pr.X, pr.Y))
	r.page.Resize(fyne.NewSize(float32(pr.W), float32(pr.H)))

	for _, v := range r.fields {
		f, ok := ed.Registry().Field(v.id)
		if !ok {
			continue
		}
		box := placement.RectToPixels(f.Rect, pr)
		v.box.Move(pos(box.X, box.Y))
		v.box.Resize(fyne.NewSize(float32(box.W), float32(box.H)))
		v.label.Move(pos(box.X+3, box.Y+1))
		if ed.Selection().Is(v.id) {
			t := trashRect(box)
			r.trash.Move(pos(t.X, t.Y))
			r.trash.Resize(fyne.NewSize(trashSize, trashSize))
			r.trashX.Move(pos(t.X, t.Y-1))
			r.trashX.Resize(fyne.NewSize(trashSize, trashSize))
			r.trash.Show()
			r.trashX.Show()
		}
	}

	for i, g := range ed.Guides() {
		if i >= len(r.guides) {
			break
		}
		r.guides[i].Position1 = pos(pr.X+placement.ToPixels(g.From.X, pr.W), pr.Y+placement.ToPixels(g.From.Y, pr.H))
		r.guides[i].Position2 = pos(pr.X+placement.ToPixels(g.To.X, pr.W), pr.Y+placement.ToPixels(g.To.Y, pr.H))
	}
}

func pos(x, y float64) fyne.Position { return fyne.NewPos(float32(x), float32(y)) }

func nrgba(c domain.Color) color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

var kindTitles = map[domain.FieldKind]string{
	domain.KindSignature: "Signature",
	domain.KindInitials:  "Initials",
	domain.KindDate:      "Date",
	domain.KindText:      "Text",
	domain.KindCheckbox:  "Checkbox",
}

// caption is the text drawn inside a field box.
func caption(env *domain.Envelope, f domain.Field) string {
	s := kindTitles[f.Kind]
	if f.Kind.Labeled() && f.Label != "" {
		s = f.Label
	}
	if r, ok := env.RecipientByID(f.RecipientID); ok && r.Name != "" {
		s = fmt.Sprintf("%s (%s)", s, r.Name)
	}
	if f.Required {
		s += " *"
	}
	return s
}
