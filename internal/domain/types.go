/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

import "time"

// This file defines the envelope data model: the document being prepared, the
// recipients who act on it and the fields placed on its pages. An Envelope is
// also the payload handed to the send step, so it serializes to a readable
// JSON manifest.

// FieldKind is the closed set of placeable annotations.
type FieldKind string

const (
	KindSignature FieldKind = "signature"
	KindInitials  FieldKind = "initials"
	KindDate      FieldKind = "date"
	KindText      FieldKind = "text"
	KindCheckbox  FieldKind = "checkbox"
)

// Kinds lists every field kind in palette order.
var Kinds = []FieldKind{KindSignature, KindInitials, KindDate, KindText, KindCheckbox}

// Valid reports whether k is one of the known kinds.
func (k FieldKind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Labeled reports whether the kind carries user-visible label text.
func (k FieldKind) Labeled() bool { return k == KindText || k == KindCheckbox }

// Role decides whether a recipient must act on fields or only receives a copy.
type Role string

const (
	RoleSigner Role = "signer"
	RoleCC     Role = "cc"
)

func (r Role) Valid() bool { return r == RoleSigner || r == RoleCC }

// EnvelopeStatus tracks the workflow position of an envelope.
type EnvelopeStatus string

const (
	StatusDraft EnvelopeStatus = "draft"
	StatusSent  EnvelopeStatus = "sent"
)

// Envelope is the {fields, recipients} graph for one document.
type Envelope struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Status     EnvelopeStatus `json:"status"`
	Document   Document       `json:"document"`
	Recipients []Recipient    `json:"recipients"`
	Fields     []Field        `json:"fields"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	SentAt     *time.Time     `json:"sentAt,omitempty"`
}

// Document describes the surface fields are placed on. Page size is in points
// and only its proportion matters to the editor.
type Document struct {
	Name       string  `json:"name"`
	Path       string  `json:"path,omitempty"`
	PageCount  int     `json:"pageCount"`
	PageWidth  float64 `json:"pageWidth"`
	PageHeight float64 `json:"pageHeight"`
}

// Aspect returns height/width of a page, defaulting to US Letter.
func (d Document) Aspect() float64 {
	if d.PageWidth <= 0 || d.PageHeight <= 0 {
		return 792.0 / 612.0
	}
	return d.PageHeight / d.PageWidth
}

// Recipient is a participant in the document workflow.
type Recipient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	// Color is an index into Palette assigned from the recipient's ordinal.
	Color int `json:"color"`
}

// Swatch returns the recipient's color token.
func (r Recipient) Swatch() Swatch { return PaletteSwatch(r.Color) }

// Field is a placeable annotation on a document page. Rect is in percent of
// the page width/height.
type Field struct {
	ID          string    `json:"id"`
	Kind        FieldKind `json:"kind"`
	Page        int       `json:"page"`
	Rect        Rect      `json:"rect"`
	RecipientID string    `json:"recipientId"`
	Required    bool      `json:"required"`
	Label       string    `json:"label,omitempty"`
}

// Rect is an axis-aligned rectangle in percent units.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// InBounds reports whether r lies entirely within the 0..100 square.
func (r Rect) InBounds() bool {
	const eps = 1e-9
	return r.X >= -eps && r.Y >= -eps && r.X+r.Width <= 100+eps && r.Y+r.Height <= 100+eps
}

type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
	A uint8 `json:"a"`
}

// Swatch is the background/border/text triplet used to draw a recipient's
// fields.
type Swatch struct {
	Name       string `json:"name"`
	Background Color  `json:"background"`
	Border     Color  `json:"border"`
	Text       Color  `json:"text"`
}

// Palette is the fixed recipient palette. Recipients beyond its length cycle.
var Palette = []Swatch{
	{Name: "blue", Background: Color{219, 234, 254, 255}, Border: Color{59, 130, 246, 255}, Text: Color{29, 78, 216, 255}},
	{Name: "emerald", Background: Color{209, 250, 229, 255}, Border: Color{16, 185, 129, 255}, Text: Color{4, 120, 87, 255}},
	{Name: "amber", Background: Color{254, 243, 199, 255}, Border: Color{245, 158, 11, 255}, Text: Color{180, 83, 9, 255}},
	{Name: "rose", Background: Color{255, 228, 230, 255}, Border: Color{244, 63, 94, 255}, Text: Color{190, 18, 60, 255}},
	{Name: "violet", Background: Color{237, 233, 254, 255}, Border: Color{139, 92, 246, 255}, Text: Color{109, 40, 217, 255}},
	{Name: "cyan", Background: Color{207, 250, 254, 255}, Border: Color{6, 182, 212, 255}, Text: Color{14, 116, 144, 255}},
}

// PaletteSwatch maps an ordinal to a swatch, cycling through Palette.
func PaletteSwatch(ordinal int) Swatch {
	n := len(Palette)
	i := ordinal % n
	if i < 0 {
		i += n
	}
	return Palette[i]
}

// Neutral is used for fields whose owner is unknown.
var Neutral = Swatch{Name: "neutral", Background: Color{243, 244, 246, 255}, Border: Color{107, 114, 128, 255}, Text: Color{55, 65, 81, 255}}

// RecipientByID returns the recipient with the given id.
func (e *Envelope) RecipientByID(id string) (Recipient, bool) {
	for _, r := range e.Recipients {
		if r.ID == id {
			return r, true
		}
	}
	return Recipient{}, false
}

// SwatchFor resolves the swatch a field is drawn with.
func (e *Envelope) SwatchFor(f Field) Swatch {
	if r, ok := e.RecipientByID(f.RecipientID); ok {
		return r.Swatch()
	}
	return Neutral
}
