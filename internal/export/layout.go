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
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gosignprep/internal/domain"
	"gosignprep/internal/storage"
)

// US Letter in points, used when the document carries no page size.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

func pageSize(d domain.Document) (w, h float64) {
	w, h = d.PageWidth, d.PageHeight
	if w <= 0 || h <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return w, h
}

func pageCount(d domain.Document) int {
	if d.PageCount < 1 {
		return 1
	}
	return d.PageCount
}

// pageNumbers resolves the 1-based pages to export. Unknown pages are dropped.
func pageNumbers(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}
	out := make([]int, 0, len(specific))
	for _, p := range specific {
		if p >= 1 && p <= total {
			out = append(out, p)
		}
	}
	return out
}

// fieldsOn returns the fields of a page, larger ones first so small fields
// stay visible on top.
func fieldsOn(env *domain.Envelope, page int) []domain.Field {
	var out []domain.Field
	for _, f := range env.Fields {
		if f.Page == page {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rect.Width*out[i].Rect.Height > out[j].Rect.Width*out[j].Rect.Height
	})
	return out
}

// fieldCaption is the text drawn inside a field on a proof.
func fieldCaption(env *domain.Envelope, f domain.Field) string {
	s := kindTitle(f.Kind)
	if f.Label != "" {
		s += ": " + f.Label
	}
	if f.Required {
		s += " *"
	}
	return s
}

func ownerName(env *domain.Envelope, f domain.Field) string {
	if r, ok := env.RecipientByID(f.RecipientID); ok {
		return r.Name
	}
	return "unassigned"
}

func kindTitle(k domain.FieldKind) string {
	switch k {
	case domain.KindSignature:
		return "Signature"
	case domain.KindInitials:
		return "Initials"
	case domain.KindDate:
		return "Date signed"
	case domain.KindText:
		return "Text"
	case domain.KindCheckbox:
		return "Checkbox"
	default:
		return string(k)
	}
}

// resolveOut places relative paths under the envelope's exports folder and
// makes sure the parent directory exists.
func resolveOut(eh *storage.EnvelopeHandle, p string, isDir bool) (string, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(eh.Root, storage.ExportsDirName, p)
	}
	dir := p
	if !isDir {
		dir = filepath.Dir(p)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	return p, nil
}
