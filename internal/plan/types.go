/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package plan

import (
	"fmt"

	"gosignprep/internal/domain"
)

// Plan is a parsed placement plan: the recipients an envelope needs and the
// fields to drop for them. Plans let a recurring document be prepared the
// same way every time.
type Plan struct {
	Recipients []Recipient
	Fields     []Field
}

// Recipient is a "signer: Name <email>" or "cc: Name <email>" line.
type Recipient struct {
	Name   string
	Email  string
	Role   domain.Role
	LineNo int
}

// Field is one field line. X and Y are the field's center in percent, the
// same position a palette drop would use. Owner is an email or id; empty
// means the first signer.
type Field struct {
	Kind     domain.FieldKind
	Page     int
	X, Y     float64
	Owner    string
	Label    string
	Required bool
	Tags     []string
	LineNo   int // 1-based starting line number in the source
}

// Error represents a parse error with position context.
type Error struct {
	Line    int
	Column  int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("line %d:%d: %s", e.Line, e.Column, e.Message) }
