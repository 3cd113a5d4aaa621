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
	"gosignprep/internal/domain"
	"gosignprep/internal/vector"
)

// DragState is the drag controller's state.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// dragSession is the state held while Dragging. grab is the pointer offset
// from the field's top-left corner in pixels at drag start.
type dragSession struct {
	fieldID   string
	page      int
	grab      vector.Pt
	widthPct  float64
	heightPct float64
	start     domain.Rect
	release   []func()
}

// DragController moves one field at a time in response to pointer movement.
// Pointer listeners are connected to the host on BeginDrag and disconnected
// on EndDrag, so moves outside the page and a release anywhere are seen.
type DragController struct {
	registry *Registry
	surface  Surface
	host     *Host

	// Snap enables smart-guide snapping against the page and sibling fields.
	Snap vector.SnapOptions
	// OnMove is called after every position write.
	OnMove func(domain.Field)
	// OnEnd is called once per session with the rect before and after.
	OnEnd func(fieldID string, from, to domain.Rect)

	session *dragSession
	guides  []vector.GuideLine
}

// NewDragController wires a controller to its collaborators.
func NewDragController(reg *Registry, surface Surface, host *Host) *DragController {
	return &DragController{registry: reg, surface: surface, host: host}
}

// State returns Idle or Dragging.
func (d *DragController) State() DragState {
	if d.session != nil {
		return Dragging
	}
	return Idle
}

// Active returns the id of the field being dragged.
func (d *DragController) Active() (string, bool) {
	if d.session == nil {
		return "", false
	}
	return d.session.fieldID, true
}

// Guides returns the snap guides of the last move, if any.
func (d *DragController) Guides() []vector.GuideLine { return d.guides }

// BeginDrag starts dragging fieldID from pointer p. It is refused while a
// drag is already active or when the field does not exist.
func (d *DragController) BeginDrag(fieldID string, p Pointer) bool {
	if d.session != nil {
		return false
	}
	f, ok := d.registry.Field(fieldID)
	if !ok {
		return false
	}
	px := RectToPixels(f.Rect, d.surface.Rect())
	s := &dragSession{
		fieldID:   fieldID,
		page:      f.Page,
		grab:      p.Pt().Sub(px.Min()),
		widthPct:  f.Rect.Width,
		heightPct: f.Rect.Height,
		start:     f.Rect,
	}
	d.session = s
	d.registry.Selection().Select(fieldID)
	if d.host != nil {
		s.release = append(s.release,
			d.host.PointerMove.Connect(d.Move),
			d.host.PointerUp.Connect(func(Pointer) { d.EndDrag() }),
		)
	}
	return true
}

// Move repositions the dragged field so that the grab offset is preserved,
// clamped to keep the whole field on the page.
func (d *DragController) Move(p Pointer) {
	s := d.session
	if s == nil {
		return
	}
	page := d.surface.Rect()
	if page.Empty() {
		return
	}
	wPx := ToPixels(s.widthPct, page.W)
	hPx := ToPixels(s.heightPct, page.H)
	cand := p.Pt().Sub(s.grab)
	left := vector.ClampRange(cand.X, page.X, page.X+page.W-wPx)
	top := vector.ClampRange(cand.Y, page.Y, page.Y+page.H-hPx)

	x := ToPercent(left-page.X, page.W)
	y := ToPercent(top-page.Y, page.H)

	d.guides = nil
	if d.Snap.Enabled() {
		moving := vector.R(x, y, s.widthPct, s.heightPct)
		snapped, guides := vector.ComputeSmartGuides(moving, d.anchors(s), d.Snap)
		x = vector.ClampRange(snapped.X, 0, 100-s.widthPct)
		y = vector.ClampRange(snapped.Y, 0, 100-s.heightPct)
		d.guides = guides
	}

	f, ok := d.registry.UpdateField(s.fieldID, Position(x, y))
	if !ok {
		// field went away mid-drag
		d.EndDrag()
		return
	}
	if d.OnMove != nil {
		d.OnMove(f)
	}
}

// EndDrag commits the current position and returns to Idle. It is safe to
// call when no drag is active.
func (d *DragController) EndDrag() {
	s := d.session
	if s == nil {
		return
	}
	d.session = nil
	d.guides = nil
	for _, release := range s.release {
		release()
	}
	if d.OnEnd == nil {
		return
	}
	to := s.start
	if f, ok := d.registry.Field(s.fieldID); ok {
		to = f.Rect
	}
	d.OnEnd(s.fieldID, s.start, to)
}

func (d *DragController) anchors(s *dragSession) []vector.Anchor {
	out := []vector.Anchor{{Rect: vector.R(0, 0, 100, 100), Weight: 2}}
	for _, f := range d.registry.FieldsOnPage(s.page) {
		if f.ID == s.fieldID {
			continue
		}
		out = append(out, vector.Anchor{Rect: percentRect(f.Rect), Weight: 1})
	}
	return out
}
