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

// Selection is the single-selection model. The zero value has nothing selected.
type Selection struct {
	id string
}

// Select makes id the current selection. Selecting the current id again is a
// no-op; an empty id clears.
func (s *Selection) Select(id string) { s.id = id }

// Clear drops the current selection.
func (s *Selection) Clear() { s.id = "" }

// ID returns the selected field id, if any.
func (s *Selection) ID() (string, bool) { return s.id, s.id != "" }

// Is reports whether id is currently selected.
func (s *Selection) Is(id string) bool { return id != "" && s.id == id }
