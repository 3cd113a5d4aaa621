/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout measures and breaks field captions for raster proofs.
// Faces come from a Provider so tests can use the fixed bitmap font while
// exports use the scalable Go font.
package textlayout

import (
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Metrics are font metrics in whole pixels for a resolved face.
type Metrics struct {
	Ascent, Descent, LineGap int
}

// LineHeight is the distance between two baselines.
func (m Metrics) LineHeight() int { return m.Ascent + m.Descent + m.LineGap }

// Provider maps a pixel size to a concrete face.
type Provider interface {
	Resolve(sizePx float64) (font.Face, Metrics)
}

func metricsOf(f font.Face) Metrics {
	m := f.Metrics()
	return Metrics{
		Ascent:  m.Ascent.Round(),
		Descent: m.Descent.Round(),
		LineGap: max(0, m.Height.Round()-m.Ascent.Round()-m.Descent.Round()),
	}
}

// BasicProvider always returns basicfont Face7x13. Deterministic for tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(float64) (font.Face, Metrics) {
	return basicfont.Face7x13, metricsOf(basicfont.Face7x13)
}

var (
	goFontOnce sync.Once
	goFont     *opentype.Font
	goFontErr  error
)

func parsedGoFont() (*opentype.Font, error) {
	goFontOnce.Do(func() { goFont, goFontErr = opentype.Parse(goregular.TTF) })
	return goFont, goFontErr
}

// GoFontProvider renders the Go Regular font at any size and caches faces per
// rounded pixel size. Faces are not safe for concurrent use, so each render
// goroutine needs its own provider.
type GoFontProvider struct {
	faces map[int]font.Face
}

// NewGoFontProvider returns a provider backed by the embedded Go font.
func NewGoFontProvider() *GoFontProvider { return &GoFontProvider{faces: map[int]font.Face{}} }

func (p *GoFontProvider) Resolve(sizePx float64) (font.Face, Metrics) {
	f, err := parsedGoFont()
	if err != nil {
		return BasicProvider{}.Resolve(sizePx)
	}
	size := max(6, int(sizePx+0.5))
	if p.faces == nil {
		p.faces = map[int]font.Face{}
	}
	if face, ok := p.faces[size]; ok {
		return face, metricsOf(face)
	}
	// DPI 72 makes Size a pixel size.
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: float64(size), DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return BasicProvider{}.Resolve(sizePx)
	}
	p.faces[size] = face
	return face, metricsOf(face)
}

// Width returns the advance of s in pixels, rounded up.
func Width(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// Ellipsize shortens s rune by rune until it fits width, appending "...".
// It returns "" when not even the ellipsis fits.
func Ellipsize(face font.Face, s string, width int) string {
	if Width(face, s) <= width {
		return s
	}
	rs := []rune(s)
	for len(rs) > 0 {
		rs = rs[:len(rs)-1]
		t := strings.TrimRight(string(rs), " ") + "..."
		if Width(face, t) <= width {
			return t
		}
	}
	return ""
}

// Wrap breaks s on spaces into lines no wider than maxWidth. A single word
// wider than maxWidth gets a line of its own. Explicit newlines are kept.
func Wrap(face font.Face, s string, maxWidth int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		cur := ""
		for _, word := range strings.Fields(para) {
			if cur == "" {
				cur = word
				continue
			}
			if Width(face, cur+" "+word) > maxWidth {
				lines = append(lines, cur)
				cur = word
				continue
			}
			cur += " " + word
		}
		lines = append(lines, cur)
	}
	return lines
}

// Box is a caption laid out into a rectangle.
type Box struct {
	Face    font.Face
	Metrics Metrics
	Lines   []string
}

// Fit lays s out into a w x h pixel box. The face size follows the box
// height: maxSizePx caps it and single-line boxes use about 60% of their
// height. Lines that do not fit vertically are dropped and the last kept line
// is ellipsized. An empty Lines means nothing legible fits.
func Fit(p Provider, s string, w, h int, maxSizePx float64) Box {
	if p == nil {
		p = BasicProvider{}
	}
	size := min(maxSizePx, float64(h)*0.6)
	face, m := p.Resolve(size)
	box := Box{Face: face, Metrics: m}
	if w <= 0 || h < m.Ascent+m.Descent || strings.TrimSpace(s) == "" {
		return box
	}
	lines := Wrap(face, s, w)
	fit := 1 + (h-m.Ascent-m.Descent)/max(1, m.LineHeight())
	if len(lines) > fit {
		rest := strings.Join(lines[fit-1:], " ")
		lines = append(lines[:fit-1], rest)
	}
	for i, ln := range lines {
		lines[i] = Ellipsize(face, ln, w)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	box.Lines = lines
	return box
}
