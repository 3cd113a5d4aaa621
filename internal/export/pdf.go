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
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"gosignprep/internal/domain"
	"gosignprep/internal/storage"
)

// PDFOptions controls the placement proof.
//
// Coordinates: the proof uses points with the origin top-left, one PDF page
// per document page at the document's size. Field rects are converted from
// percent of the page.
type PDFOptions struct {
	Pages  []int // 1-based; empty exports all pages
	Legend bool  // append a page listing recipients and their field counts
	Owners bool  // print the owner's name under each field caption
}

// ExportProofPDF writes a proof of the envelope's field placement to outPath
// and returns the resolved path. Relative paths land in exports/.
func ExportProofPDF(eh *storage.EnvelopeHandle, outPath string, opt PDFOptions) (string, error) {
	if eh == nil {
		return "", errors.New("envelope handle is nil")
	}
	env := &eh.Envelope
	w, h := pageSize(env.Document)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: w, Ht: h},
	})
	title := env.Title
	if title == "" {
		title = env.Document.Name
	}
	pdf.SetTitle(title+" (placement proof)", true)
	pdf.SetAuthor("Go Sign Prep", false)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range pageNumbers(pageCount(env.Document), opt.Pages) {
		pdf.AddPageFormat("", gofpdf.SizeType{Wd: w, Ht: h})

		// page frame and footer
		pdf.SetDrawColor(200, 200, 200)
		pdf.SetLineWidth(0.5)
		pdf.Rect(0.5, 0.5, w-1, h-1, "D")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.Text(12, h-10, tr(fmt.Sprintf("%s  page %d of %d", title, page, pageCount(env.Document))))

		for _, f := range fieldsOn(env, page) {
			drawPDFField(pdf, env, f, w, h, opt.Owners, tr)
		}
	}
	if opt.Legend {
		drawPDFLegend(pdf, env, tr)
	}

	out, err := resolveOut(eh, outPath, false)
	if err != nil {
		return "", err
	}
	if err := pdf.OutputFileAndClose(out); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return out, nil
}

func drawPDFField(pdf *gofpdf.Fpdf, env *domain.Envelope, f domain.Field, pw, ph float64, owners bool, tr func(string) string) {
	sw := env.SwatchFor(f)
	x := f.Rect.X * pw / 100
	y := f.Rect.Y * ph / 100
	fw := f.Rect.Width * pw / 100
	fh := f.Rect.Height * ph / 100

	setFillColor(pdf, sw.Background)
	setDrawColor(pdf, sw.Border)
	pdf.SetLineWidth(1)
	pdf.Rect(x, y, fw, fh, "FD")

	size := clampFont(fh * 0.45)
	pdf.SetFont("Helvetica", "B", size)
	setTextColor(pdf, sw.Text)
	pdf.ClipRect(x, y, fw, fh, false)
	pdf.Text(x+3, y+size+2, tr(fieldCaption(env, f)))
	if owners && fh > 2*size+4 {
		pdf.SetFont("Helvetica", "", size*0.85)
		pdf.Text(x+3, y+2*size+4, tr(ownerName(env, f)))
	}
	pdf.ClipEnd()
}

func drawPDFLegend(pdf *gofpdf.Fpdf, env *domain.Envelope, tr func(string) string) {
	pdf.AddPage()
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Text(48, 64, "Recipients")

	counts := make(map[string][2]int, len(env.Recipients))
	orphans := 0
	for _, f := range env.Fields {
		if _, ok := env.RecipientByID(f.RecipientID); !ok {
			orphans++
			continue
		}
		c := counts[f.RecipientID]
		c[0]++
		if f.Required {
			c[1]++
		}
		counts[f.RecipientID] = c
	}

	y := 96.0
	pdf.SetFont("Helvetica", "", 11)
	for _, r := range env.Recipients {
		sw := r.Swatch()
		setFillColor(pdf, sw.Background)
		setDrawColor(pdf, sw.Border)
		pdf.Rect(48, y-10, 14, 14, "FD")
		c := counts[r.ID]
		line := fmt.Sprintf("%s <%s>  %s  %d fields, %d required", r.Name, r.Email, r.Role, c[0], c[1])
		pdf.SetTextColor(0, 0, 0)
		pdf.Text(70, y+1, tr(line))
		y += 22
		if y > 760 {
			break
		}
	}
	if orphans > 0 {
		pdf.SetTextColor(180, 0, 0)
		pdf.Text(48, y+8, fmt.Sprintf("%d field(s) have no owner", orphans))
	}
}

func clampFont(v float64) float64 {
	if v < 5 {
		return 5
	}
	if v > 12 {
		return 12
	}
	return v
}

func setDrawColor(pdf *gofpdf.Fpdf, c domain.Color) { pdf.SetDrawColor(int(c.R), int(c.G), int(c.B)) }

func setFillColor(pdf *gofpdf.Fpdf, c domain.Color) { pdf.SetFillColor(int(c.R), int(c.G), int(c.B)) }

func setTextColor(pdf *gofpdf.Fpdf, c domain.Color) { pdf.SetTextColor(int(c.R), int(c.G), int(c.B)) }
