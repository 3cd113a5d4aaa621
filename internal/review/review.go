/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package review checks an envelope before it is sent: recipient details,
// per-recipient field summaries, and the payload's shape.
package review

import (
	_ "embed"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"gosignprep/internal/domain"
)

// Severity of an issue. Errors block sending; warnings are informational.
type Severity string

const (
	SevError   Severity = "error"
	SevWarning Severity = "warning"
)

// Issue is one finding.
type Issue struct {
	Severity    Severity `json:"severity"`
	Code        string   `json:"code"`
	RecipientID string   `json:"recipientId,omitempty"`
	FieldID     string   `json:"fieldId,omitempty"`
	Message     string   `json:"message"`
}

func (i Issue) String() string { return fmt.Sprintf("%s: %s", i.Severity, i.Message) }

// Summary is the per-recipient line of the review step.
type Summary struct {
	Recipient domain.Recipient `json:"recipient"`
	Fields    int              `json:"fields"`
	Required  int              `json:"required"`
}

// Report collects the result of Check.
type Report struct {
	Summaries []Summary `json:"summaries"`
	Issues    []Issue   `json:"issues"`
}

// OK reports whether the envelope may be sent.
func (r Report) OK() bool { return len(r.Errors()) == 0 }

// Errors returns the blocking issues.
func (r Report) Errors() []Issue { return r.filter(SevError) }

// Warnings returns the non-blocking issues.
func (r Report) Warnings() []Issue { return r.filter(SevWarning) }

func (r Report) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Err folds blocking issues into one error, or nil.
func (r Report) Err() error {
	errs := r.Errors()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return fmt.Errorf("%w: %s", ErrNotReady, strings.Join(msgs, "; "))
}

// ErrNotReady is wrapped by Report.Err and ValidatePayload.
var ErrNotReady = errors.New("envelope not ready to send")

// ValidateRecipients checks the recipient step: at least one recipient, each
// with a name and a well-formed email, and no email used twice.
func ValidateRecipients(rs []domain.Recipient) []Issue {
	var out []Issue
	if len(rs) == 0 {
		return append(out, Issue{Severity: SevError, Code: "no_recipients", Message: "add at least one recipient"})
	}
	seen := make(map[string]string, len(rs))
	for i, r := range rs {
		label := r.Name
		if strings.TrimSpace(label) == "" {
			label = fmt.Sprintf("recipient %d", i+1)
			out = append(out, Issue{Severity: SevError, Code: "name_missing", RecipientID: r.ID, Message: label + " has no name"})
		}
		email := strings.TrimSpace(r.Email)
		switch {
		case email == "":
			out = append(out, Issue{Severity: SevError, Code: "email_missing", RecipientID: r.ID, Message: label + " has no email"})
		case !validEmail(email):
			out = append(out, Issue{Severity: SevError, Code: "email_invalid", RecipientID: r.ID, Message: fmt.Sprintf("%s: invalid email %q", label, email)})
		default:
			key := strings.ToLower(email)
			if prev, dup := seen[key]; dup {
				out = append(out, Issue{Severity: SevError, Code: "email_duplicate", RecipientID: r.ID, Message: fmt.Sprintf("%s uses the same email as %s", label, prev)})
			} else {
				seen[key] = label
			}
		}
		if !r.Role.Valid() {
			out = append(out, Issue{Severity: SevError, Code: "role_invalid", RecipientID: r.ID, Message: fmt.Sprintf("%s: unknown role %q", label, r.Role)})
		}
	}
	return out
}

func validEmail(s string) bool {
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s && strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
}

// Check runs the full review-step validation.
func Check(env domain.Envelope) Report {
	rep := Report{Issues: ValidateRecipients(env.Recipients)}
	known := make(map[string]int, len(env.Recipients))
	for i, r := range env.Recipients {
		known[r.ID] = i
		rep.Summaries = append(rep.Summaries, Summary{Recipient: r})
	}
	pages := env.Document.PageCount
	if len(env.Fields) == 0 {
		rep.Issues = append(rep.Issues, Issue{Severity: SevError, Code: "no_fields", Message: "place at least one field"})
	}
	for _, f := range env.Fields {
		i, ok := known[f.RecipientID]
		if !ok {
			rep.Issues = append(rep.Issues, Issue{Severity: SevWarning, Code: "owner_unknown", FieldID: f.ID, RecipientID: f.RecipientID, Message: fmt.Sprintf("%s field is not assigned to a recipient", f.Kind)})
		} else {
			rep.Summaries[i].Fields++
			if f.Required {
				rep.Summaries[i].Required++
			}
		}
		if pages > 0 && (f.Page < 1 || f.Page > pages) {
			rep.Issues = append(rep.Issues, Issue{Severity: SevError, Code: "page_out_of_range", FieldID: f.ID, Message: fmt.Sprintf("%s field is on page %d of %d", f.Kind, f.Page, pages)})
		}
		if !f.Rect.InBounds() {
			rep.Issues = append(rep.Issues, Issue{Severity: SevWarning, Code: "field_overflow", FieldID: f.ID, Message: fmt.Sprintf("%s field extends past the page edge", f.Kind)})
		}
	}
	for _, s := range rep.Summaries {
		r := s.Recipient
		switch {
		case r.Role == domain.RoleSigner && s.Fields == 0:
			rep.Issues = append(rep.Issues, Issue{Severity: SevWarning, Code: "signer_without_fields", RecipientID: r.ID, Message: fmt.Sprintf("%s has no fields to complete", displayName(r))})
		case r.Role == domain.RoleCC && s.Fields > 0:
			rep.Issues = append(rep.Issues, Issue{Severity: SevWarning, Code: "cc_with_fields", RecipientID: r.ID, Message: fmt.Sprintf("%s only receives a copy but owns %d fields", displayName(r), s.Fields)})
		}
	}
	return rep
}

func displayName(r domain.Recipient) string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return r.Email
}

//go:embed schema.json
var schemaJSON []byte

var envelopeSchema = mustSchema()

func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("review: invalid embedded schema: %v", err))
	}
	return s
}

// ValidatePayload checks a serialized envelope against the send schema.
func ValidatePayload(payload []byte) error {
	res, err := envelopeSchema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("validate payload: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrNotReady, strings.Join(msgs, "; "))
}
