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
	"log/slog"
	"strings"

	"gosignprep/internal/domain"
)

// Recipients returns a copy of the recipient list in ordinal order.
func (e *Editor) Recipients() []domain.Recipient {
	return append([]domain.Recipient(nil), e.recipients...)
}

func (e *Editor) recipient(id string) (domain.Recipient, bool) {
	for _, r := range e.recipients {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Recipient{}, false
}

// AddRecipient appends a recipient. Its color follows its ordinal position.
// An unknown role defaults to signer.
func (e *Editor) AddRecipient(name, email string, role domain.Role) domain.Recipient {
	if !role.Valid() {
		role = domain.RoleSigner
	}
	r := domain.Recipient{
		ID:    e.opts.NewID(),
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Role:  role,
		Color: len(e.recipients),
	}
	e.recipients = append(e.recipients, r)
	e.changed()
	return r
}

// UpdateRecipient edits a recipient in place. Empty arguments keep the
// current value.
func (e *Editor) UpdateRecipient(id, name, email string, role domain.Role) (domain.Recipient, bool) {
	for i := range e.recipients {
		r := &e.recipients[i]
		if r.ID != id {
			continue
		}
		if s := strings.TrimSpace(name); s != "" {
			r.Name = s
		}
		if s := strings.TrimSpace(email); s != "" {
			r.Email = s
		}
		if role.Valid() {
			r.Role = role
		}
		e.changed()
		return *r, true
	}
	return domain.Recipient{}, false
}

// RemovalResult reports what happened to a removed recipient's fields.
type RemovalResult struct {
	Reassigned int
	Deleted    int
	NewOwner   string
}

// RemoveRecipient deletes a recipient. Its fields move to the first remaining
// signer; without one they are deleted. Colors are re-derived from the new
// ordinals and the undo history is reset, since the change spans pages.
func (e *Editor) RemoveRecipient(id string) (RemovalResult, bool) {
	idx := -1
	for i, r := range e.recipients {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return RemovalResult{}, false
	}
	e.drag.EndDrag()
	e.recipients = append(e.recipients[:idx], e.recipients[idx+1:]...)
	for i := range e.recipients {
		e.recipients[i].Color = i
	}

	var res RemovalResult
	for _, r := range e.recipients {
		if r.Role == domain.RoleSigner {
			res.NewOwner = r.ID
			break
		}
	}
	for _, f := range e.reg.Fields() {
		if f.RecipientID != id {
			continue
		}
		if res.NewOwner != "" {
			e.reg.UpdateField(f.ID, Owner(res.NewOwner))
			res.Reassigned++
		} else {
			e.reg.DeleteField(f.ID)
			res.Deleted++
		}
	}
	e.history.Reset()
	e.log.Info("recipient removed", slog.String("recipient", id),
		slog.Int("reassigned", res.Reassigned), slog.Int("deleted", res.Deleted))
	e.changed()
	return res, true
}
