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
	"testing"

	"github.com/stretchr/testify/assert"

	"gosignprep/internal/domain"
	"gosignprep/internal/vector"
)

func TestPercentPixelRoundTrip(t *testing.T) {
	for _, axis := range []float64{1, 300, 612, 799.5} {
		for _, px := range []float64{0, 0.5, 123.25, axis} {
			got := ToPixels(ToPercent(px, axis), axis)
			assert.InDelta(t, px, got, 1e-9, "axis=%v px=%v", axis, px)
		}
	}
	assert.Equal(t, 50.0, ToPercent(300, 600))
	assert.Equal(t, 0.0, ToPercent(10, 0), "zero-length axis")
}

func TestPageZoomIsClamped(t *testing.T) {
	p := NewPage(600, 800.0/600.0, DefaultZoomRange)
	assert.Equal(t, 1.0, p.Zoom())
	assert.Equal(t, vector.R(0, 0, 600, 800), p.Rect())

	assert.Equal(t, 1.5, p.SetZoom(4))
	assert.Equal(t, 0.5, p.SetZoom(0.1))
	r := p.Rect()
	assert.Equal(t, 300.0, r.W)
	assert.InDelta(t, 400.0, r.H, 1e-9)

	bogus := NewPage(100, 1, ZoomRange{Min: 2, Max: 1})
	assert.Equal(t, 1.0, bogus.Zoom(), "invalid range falls back to default")
}

func TestZoomDoesNotChangeStoredPercent(t *testing.T) {
	p := NewPage(600, 800.0/600.0, DefaultZoomRange)
	p.Origin = vector.Pt{X: 20, Y: 10}
	f := domain.Rect{X: 40, Y: 47.5, Width: 20, Height: 5}

	at100 := RectToPixels(f, p.Rect())
	assert.Equal(t, vector.R(260, 390, 120, 40), at100)

	p.SetZoom(0.5)
	at50 := RectToPixels(f, p.Rect())
	assert.Equal(t, vector.R(140, 200, 60, 20), at50)

	// mapping the pixel rect back yields the same percentages
	back := PointToPercent(at50.Min(), p.Rect())
	assert.InDelta(t, f.X, back.X, 1e-9)
	assert.InDelta(t, f.Y, back.Y, 1e-9)
}
