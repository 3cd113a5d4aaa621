/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"
	"gosignprep/internal/domain"
	"gosignprep/internal/storage"
	"gosignprep/internal/textlayout"
)

// PNGOptions controls raster proofs.
//   - DPI: output resolution, default 96
//   - Pages: 1-based; empty exports all
//   - ThumbWidth: when > 0 also writes a scaled thumbnail per page
type PNGOptions struct {
	DPI        int
	Pages      []int
	ThumbWidth int
}

// RenderPage rasterizes one page of the envelope: white paper, fields filled
// and stroked in their recipient's colors, captions in the Go font.
func RenderPage(env *domain.Envelope, page, dpi int) *image.RGBA {
	if dpi <= 0 {
		dpi = 96
	}
	w, h := pageSize(env.Document)
	scale := float64(dpi) / 72.0
	pixW := int(math.Round(w * scale))
	pixH := int(math.Round(h * scale))

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	strokeRect(img, img.Bounds(), color.RGBA{200, 200, 200, 255}, 1)

	stroke := max(1, dpi/96)
	faces := textlayout.NewGoFontProvider()
	for _, f := range fieldsOn(env, page) {
		sw := env.SwatchFor(f)
		r := image.Rect(
			int(math.Round(f.Rect.X*float64(pixW)/100)),
			int(math.Round(f.Rect.Y*float64(pixH)/100)),
			int(math.Round((f.Rect.X+f.Rect.Width)*float64(pixW)/100)),
			int(math.Round((f.Rect.Y+f.Rect.Height)*float64(pixH)/100)),
		).Intersect(img.Bounds())
		if r.Empty() {
			continue
		}
		draw.Draw(img, r, image.NewUniform(toRGBA(sw.Background)), image.Point{}, draw.Src)
		strokeRect(img, r, toRGBA(sw.Border), stroke)
		drawCaption(img, faces, r.Inset(stroke+2), fieldCaption(env, f), toRGBA(sw.Text), dpi)
	}
	return img
}

// drawCaption lays s out inside box. The font scales with the box height, up
// to 11pt at the render DPI.
func drawCaption(img *image.RGBA, faces textlayout.Provider, box image.Rectangle, s string, col color.RGBA, dpi int) {
	b := textlayout.Fit(faces, s, box.Dx(), box.Dy(), 11*float64(dpi)/72)
	d := &font.Drawer{Dst: img, Src: image.NewUniform(col), Face: b.Face}
	y := box.Min.Y + b.Metrics.Ascent
	for _, ln := range b.Lines {
		d.Dot = fixed.P(box.Min.X, y)
		d.DrawString(ln)
		y += b.Metrics.LineHeight()
	}
}

// Thumbnail scales src to the given width keeping its aspect ratio.
func Thumbnail(src image.Image, width int) *image.RGBA {
	b := src.Bounds()
	if width <= 0 || b.Dx() == 0 {
		width = b.Dx()
	}
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(max(1, b.Dx()))))
	dst := image.NewRGBA(image.Rect(0, 0, width, max(1, height)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// ExportProofPNGs renders the selected pages concurrently and writes
// page-<n>.png (and page-<n>-thumb.png) into outDir. It returns the written
// paths in page order.
func ExportProofPNGs(ctx context.Context, eh *storage.EnvelopeHandle, outDir string, opt PNGOptions) ([]string, error) {
	if eh == nil {
		return nil, errors.New("envelope handle is nil")
	}
	dir, err := resolveOut(eh, outDir, true)
	if err != nil {
		return nil, err
	}
	pages := pageNumbers(pageCount(eh.Envelope.Document), opt.Pages)
	perPage := 1
	if opt.ThumbWidth > 0 {
		perPage = 2
	}
	paths := make([]string, len(pages)*perPage)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	env := eh.Envelope
	for i, page := range pages {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img := RenderPage(&env, page, opt.DPI)
			p := filepath.Join(dir, fmt.Sprintf("page-%d.png", page))
			if err := writePNG(p, img); err != nil {
				return err
			}
			paths[i*perPage] = p
			if opt.ThumbWidth > 0 {
				tp := filepath.Join(dir, fmt.Sprintf("page-%d-thumb.png", page))
				if err := writePNG(tp, Thumbnail(img, opt.ThumbWidth)); err != nil {
					return err
				}
				paths[i*perPage+1] = tp
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode png: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close png: %w", err)
	}
	return nil
}

func toRGBA(c domain.Color) color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// strokeRect draws a border of the given width inside r.
func strokeRect(img *image.RGBA, r image.Rectangle, col color.RGBA, width int) {
	u := image.NewUniform(col)
	for i := 0; i < width && r.Dx() > 2*i && r.Dy() > 2*i; i++ {
		in := r.Inset(i)
		draw.Draw(img, image.Rect(in.Min.X, in.Min.Y, in.Max.X, in.Min.Y+1), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(in.Min.X, in.Max.Y-1, in.Max.X, in.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(in.Min.X, in.Min.Y, in.Min.X+1, in.Max.Y), u, image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(in.Max.X-1, in.Min.Y, in.Max.X, in.Max.Y), u, image.Point{}, draw.Src)
	}
}
