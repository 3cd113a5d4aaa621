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
	"path/filepath"
	"strings"

	"gosignprep/internal/storage"
)

// PresetName represents a named export preset.
type PresetName string

const (
	// PresetReview is meant for sharing with the sender: PDF with legend and
	// screen-resolution PNGs with thumbnails.
	PresetReview PresetName = "review"
	// PresetPrint is a single high-resolution PDF proof.
	PresetPrint PresetName = "print"
)

// BatchOptions controls a multi-format export.
//
// Path semantics: OutDir defaults to the preset name and relative paths land
// under <envelope>/exports/. PDFs are written as proof.pdf, PNGs into png/.
type BatchOptions struct {
	Preset      PresetName
	Formats     []string // pdf, png; empty means preset defaults
	Pages       []int    // 1-based; empty means all pages
	DPIOverride int
	OutDir      string
}

// BatchExport runs the exports selected by opt and returns every written path.
func BatchExport(ctx context.Context, eh *storage.EnvelopeHandle, opt BatchOptions) ([]string, error) {
	if eh == nil {
		return nil, errors.New("envelope handle is nil")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	base := opt.OutDir
	if base == "" {
		base = string(opt.Preset)
	}
	if base == "" {
		base = "proof"
	}
	if !filepath.IsAbs(base) {
		base = filepath.Join(eh.Root, storage.ExportsDirName, base)
	}

	var out []string
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case "pdf":
			p, err := ExportProofPDF(eh, filepath.Join(base, "proof.pdf"), PDFOptions{
				Pages:  opt.Pages,
				Legend: opt.Preset != PresetPrint,
				Owners: true,
			})
			if err != nil {
				return out, fmt.Errorf("pdf: %w", err)
			}
			out = append(out, p)
		case "png":
			po := PNGOptions{DPI: presetDPI(opt.Preset), Pages: opt.Pages}
			if opt.DPIOverride > 0 {
				po.DPI = opt.DPIOverride
			}
			if opt.Preset == PresetReview {
				po.ThumbWidth = 160
			}
			ps, err := ExportProofPNGs(ctx, eh, filepath.Join(base, "png"), po)
			if err != nil {
				return out, fmt.Errorf("png: %w", err)
			}
			out = append(out, ps...)
		default:
			return out, fmt.Errorf("unknown format: %s", f)
		}
	}
	return out, nil
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetReview:
		return []string{"pdf", "png"}
	default:
		return []string{"pdf"}
	}
}

func presetDPI(p PresetName) int {
	if p == PresetPrint {
		return 300
	}
	return 96
}
