/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Smart guides and snapping helpers for interactive placement. They are
// UI-agnostic and deterministic so the drag controller can use them in tests.

import "math"

// SnapOptions controls which guide candidates are considered and the threshold.
type SnapOptions struct {
	// Threshold is the maximum distance (in the same units as Rect) at which
	// snapping occurs. Zero disables snapping.
	Threshold float64
	// Snap to edges (left, right, top, bottom)
	SnapToEdges bool
	// Snap to centers (cx, cy)
	SnapToCenters bool
}

// Enabled reports whether any snapping would happen.
func (o SnapOptions) Enabled() bool {
	return o.Threshold > 0 && (o.SnapToEdges || o.SnapToCenters)
}

// Anchor is a static reference rect (the page, or another field).
// Weight biases selection when distances tie (higher = preferred).
type Anchor struct {
	Rect   Rect
	Weight float64
}

// Orientation of a guide line.
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// GuideLine describes a visual guide produced by a snap.
// Kind is "edge" or "center"; Position is the x (vertical) or y (horizontal)
// coordinate, rounded to 3 decimals.
type GuideLine struct {
	Orientation Orientation
	Kind        string
	Position    float64
	From        Pt
	To          Pt
}

type axisBest struct {
	delta float64
	dist  float64
	guide GuideLine
}

func (b *axisBest) consider(delta, threshold, weight float64, g GuideLine) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	if dist/math.Max(1, weight) < b.dist {
		b.dist = dist
		b.delta = delta
		b.guide = g
	}
}

// ComputeSmartGuides snaps a moving rectangle against anchors, independently
// per axis, and returns the adjusted rect with the guides to render.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if !opts.Enabled() {
		return moving, nil
	}
	bx := axisBest{dist: math.Inf(1)}
	by := axisBest{dist: math.Inf(1)}

	mL, mR, mT, mB := moving.X, moving.X+moving.W, moving.Y, moving.Y+moving.H
	mCX, mCY := moving.X+moving.W/2, moving.Y+moving.H/2

	for _, a := range anchors {
		aL, aR, aT, aB := a.Rect.X, a.Rect.X+a.Rect.W, a.Rect.Y, a.Rect.Y+a.Rect.H
		aCX, aCY := a.Rect.X+a.Rect.W/2, a.Rect.Y+a.Rect.H/2

		if opts.SnapToEdges {
			bx.consider(mL-aL, opts.Threshold, a.Weight, vertical(aL, moving, a.Rect, "edge"))
			bx.consider(mR-aR, opts.Threshold, a.Weight, vertical(aR, moving, a.Rect, "edge"))
			bx.consider(mL-aR, opts.Threshold, a.Weight, vertical(aR, moving, a.Rect, "edge"))
			bx.consider(mR-aL, opts.Threshold, a.Weight, vertical(aL, moving, a.Rect, "edge"))

			by.consider(mT-aT, opts.Threshold, a.Weight, horizontal(aT, moving, a.Rect, "edge"))
			by.consider(mB-aB, opts.Threshold, a.Weight, horizontal(aB, moving, a.Rect, "edge"))
			by.consider(mT-aB, opts.Threshold, a.Weight, horizontal(aB, moving, a.Rect, "edge"))
			by.consider(mB-aT, opts.Threshold, a.Weight, horizontal(aT, moving, a.Rect, "edge"))
		}
		if opts.SnapToCenters {
			bx.consider(mCX-aCX, opts.Threshold, a.Weight, vertical(aCX, moving, a.Rect, "center"))
			by.consider(mCY-aCY, opts.Threshold, a.Weight, horizontal(aCY, moving, a.Rect, "center"))
		}
	}

	var guides []GuideLine
	snapped := moving
	if bx.dist <= opts.Threshold {
		snapped.X = FloatRound(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.dist <= opts.Threshold {
		snapped.Y = FloatRound(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return snapped, guides
}

func vertical(x float64, a, b Rect, kind string) GuideLine {
	minY := math.Min(a.Y, b.Y)
	maxY := math.Max(a.Y+a.H, b.Y+b.H)
	x = FloatRound(x, 3)
	return GuideLine{Orientation: Vertical, Kind: kind, Position: x, From: Pt{x, minY}, To: Pt{x, maxY}}
}

func horizontal(y float64, a, b Rect, kind string) GuideLine {
	minX := math.Min(a.X, b.X)
	maxX := math.Max(a.X+a.W, b.X+b.W)
	y = FloatRound(y, 3)
	return GuideLine{Orientation: Horizontal, Kind: kind, Position: y, From: Pt{minX, y}, To: Pt{maxX, y}}
}
