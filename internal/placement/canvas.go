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

// Coordinates:
//   - Pointer events and surface rectangles are in viewport pixels.
//   - Stored field geometry is in percent of the page width/height, so it
//     stays valid across zoom changes and window resizes.

// ToPercent converts a pixel offset along an axis of the given length.
func ToPercent(pixelOffset, axisLengthPx float64) float64 {
	if axisLengthPx <= 0 {
		return 0
	}
	return 100 * pixelOffset / axisLengthPx
}

// ToPixels is the inverse of ToPercent.
func ToPixels(percent, axisLengthPx float64) float64 {
	return percent * axisLengthPx / 100
}

// Surface yields the current pixel rectangle of the rendered page. It is read
// on every pointer event and never cached across a drag, since the host may
// reflow the page at any time.
type Surface interface {
	Rect() vector.Rect
}

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc func() vector.Rect

func (f SurfaceFunc) Rect() vector.Rect { return f() }

// PointToPercent maps a viewport point into the surface's percent space.
func PointToPercent(p vector.Pt, surface vector.Rect) vector.Pt {
	return vector.Pt{
		X: ToPercent(p.X-surface.X, surface.W),
		Y: ToPercent(p.Y-surface.Y, surface.H),
	}
}

// RectToPixels maps a percent rect to absolute viewport pixels on surface.
func RectToPixels(r domain.Rect, surface vector.Rect) vector.Rect {
	return vector.Rect{
		X: surface.X + ToPixels(r.X, surface.W),
		Y: surface.Y + ToPixels(r.Y, surface.H),
		W: ToPixels(r.Width, surface.W),
		H: ToPixels(r.Height, surface.H),
	}
}

// ZoomRange bounds the presentation zoom factor.
type ZoomRange struct {
	Min float64
	Max float64
}

// DefaultZoomRange is 50%–150%.
var DefaultZoomRange = ZoomRange{Min: 0.5, Max: 1.5}

func (z ZoomRange) clamp(v float64) float64 {
	if z.Min <= 0 || z.Max <= 0 || z.Max < z.Min {
		z = DefaultZoomRange
	}
	return vector.ClampRange(v, z.Min, z.Max)
}

// Page is the zoomable page surface. Its aspect ratio is fixed by the
// document; zoom scales both axes uniformly. Origin is where the host
// currently lays the page out in the viewport.
type Page struct {
	Origin    vector.Pt
	BaseWidth float64
	Aspect    float64

	zoom  float64
	zoomR ZoomRange
}

// NewPage creates a page surface at 100% zoom (or the nearest allowed value).
func NewPage(baseWidth, aspect float64, zr ZoomRange) *Page {
	p := &Page{BaseWidth: baseWidth, Aspect: aspect, zoomR: zr}
	p.SetZoom(1)
	return p
}

// Zoom returns the current zoom factor.
func (p *Page) Zoom() float64 { return p.zoom }

// SetZoom applies a clamped zoom and returns the value in effect. Stored field
// percentages are never touched.
func (p *Page) SetZoom(z float64) float64 {
	p.zoom = p.zoomR.clamp(z)
	return p.zoom
}

// Rect returns the page rectangle in viewport pixels.
func (p *Page) Rect() vector.Rect {
	w := p.BaseWidth * p.zoom
	return vector.Rect{X: p.Origin.X, Y: p.Origin.Y, W: w, H: w * p.Aspect}
}
