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

import "gosignprep/internal/domain"

// DefaultSize returns the initial width and height (in percent of the page)
// for a newly dropped field of the given kind.
func DefaultSize(kind domain.FieldKind) (w, h float64) {
	switch kind {
	case domain.KindSignature:
		return 20, 5
	case domain.KindInitials:
		return 10, 5
	case domain.KindDate:
		return 15, 4
	case domain.KindText:
		return 20, 4
	case domain.KindCheckbox:
		return 4, 3
	default:
		return 15, 5
	}
}

// MinFieldSize is the smallest width or height a clamped edit may produce.
const MinFieldSize = 1.0
