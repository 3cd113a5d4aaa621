/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package plan

import (
	"bufio"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"gosignprep/internal/domain"
)

var (
	rePage      = regexp.MustCompile(`^(?i)#\s*page\s+(\d+)\s*$`)
	rePageAlt   = regexp.MustCompile(`^(?i)page:\s*(\d+)\s*$`)
	reRecipient = regexp.MustCompile(`^(?i)(signer|cc)\s*:\s*(.*?)\s*<([^<>\s]+)>\s*$`)
	reField     = regexp.MustCompile(`^(?i)(signature|initials|date|text|checkbox)\s+(\S+)\s+at\s+(-?[0-9.]+)\s*,\s*(-?[0-9.]+)\s*(.*)$`)
	reLabel     = regexp.MustCompile(`"([^"]*)"`)
	reTag       = regexp.MustCompile(`(?i)@([a-z0-9_\-]+)`)
)

// Parse reads a placement plan.
//
// Syntax:
//   - "signer: Name <email>" and "cc: Name <email>" declare recipients.
//   - "# Page N" or "Page: N" starts the fields of page N. Fields before any
//     heading go on page 1.
//   - "<kind> <owner> at X,Y [\"label\"] [@required]" drops a field centered
//     at X,Y percent. Owner is an email, a recipient id or "-" for the first
//     signer.
//   - Lines indented by 2+ spaces continue the label of the previous field.
//   - Lines starting with ';' are comments. Blank lines are ignored.
//
// Parsing continues past bad lines so all problems are reported at once.
func Parse(input string) (Plan, []Error) {
	var p Plan
	var errs []Error
	page := 1
	var last *Field

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		if strings.HasPrefix(line, "  ") && last != nil {
			if cont := strings.TrimSpace(line); cont != "" {
				if last.Label != "" {
					last.Label += " "
				}
				last.Label += strings.Trim(cont, `"`)
			}
			continue
		}

		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, ";") {
			last = nil
			continue
		}

		if m := firstMatch(trim, rePage, rePageAlt); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 {
				errs = append(errs, Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("invalid page %q", m[1])})
				continue
			}
			page = n
			last = nil
			continue
		}

		if m := reRecipient.FindStringSubmatch(trim); m != nil {
			p.Recipients = append(p.Recipients, Recipient{
				Name:   m[2],
				Email:  m[3],
				Role:   domain.Role(strings.ToLower(m[1])),
				LineNo: lineNo,
			})
			last = nil
			continue
		}

		if m := reField.FindStringSubmatch(trim); m != nil {
			f, err := parseField(m, page, lineNo)
			if err != nil {
				errs = append(errs, *err)
				last = nil
				continue
			}
			p.Fields = append(p.Fields, f)
			last = &p.Fields[len(p.Fields)-1]
			continue
		}

		errs = append(errs, Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("unrecognized line %q", trim)})
		last = nil
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Column: 1, Message: err.Error()})
	}
	return p, errs
}

func firstMatch(s string, res ...*regexp.Regexp) []string {
	for _, re := range res {
		if m := re.FindStringSubmatch(s); m != nil {
			return m
		}
	}
	return nil
}

func parseField(m []string, page, lineNo int) (Field, *Error) {
	x, errX := strconv.ParseFloat(m[3], 64)
	y, errY := strconv.ParseFloat(m[4], 64)
	if errX != nil || errY != nil || x < 0 || x > 100 || y < 0 || y > 100 {
		return Field{}, &Error{Line: lineNo, Column: 1, Message: fmt.Sprintf("position %s,%s is not within 0-100", m[3], m[4])}
	}
	f := Field{
		Kind:   domain.FieldKind(strings.ToLower(m[1])),
		Page:   page,
		X:      x,
		Y:      y,
		LineNo: lineNo,
	}
	if owner := m[2]; owner != "-" {
		f.Owner = owner
	}
	rest := m[5]
	if lm := reLabel.FindStringSubmatch(rest); lm != nil {
		f.Label = lm[1]
		rest = strings.Replace(rest, lm[0], "", 1)
	}
	f.Tags = extractTags(rest)
	f.Required = slices.Contains(f.Tags, "required")
	if leftover := strings.TrimSpace(reTag.ReplaceAllString(rest, "")); leftover != "" {
		col := strings.Index(m[0], leftover) + 1
		return Field{}, &Error{Line: lineNo, Column: col, Message: fmt.Sprintf("unexpected %q", leftover)}
	}
	return f, nil
}

// extractTags returns the lower-cased @tags in s, deduplicated, in order.
func extractTags(s string) []string {
	var out []string
	for _, m := range reTag.FindAllStringSubmatch(s, -1) {
		t := strings.ToLower(m[1])
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
