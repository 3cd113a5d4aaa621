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

import "gosignprep/internal/vector"

// Pointer is a pointer position in viewport pixels.
type Pointer struct{ X, Y float64 }

func (p Pointer) Pt() vector.Pt { return vector.Pt{X: p.X, Y: p.Y} }

// Key names the keys the editor reacts to.
type Key string

const (
	KeyDelete    Key = "Delete"
	KeyBackspace Key = "BackSpace"
	KeyEscape    Key = "Escape"
)

// Signal is a list of subscribers for one event type. Connect returns the
// function that removes the subscriber again; calling it twice is harmless.
type Signal[T any] struct {
	next  int
	slots []slot[T]
}

type slot[T any] struct {
	id int
	fn func(T)
}

func (s *Signal[T]) Connect(fn func(T)) (disconnect func()) {
	s.next++
	id := s.next
	s.slots = append(s.slots, slot[T]{id: id, fn: fn})
	return func() {
		for i, sl := range s.slots {
			if sl.id == id {
				s.slots = append(s.slots[:i:i], s.slots[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers v to every subscriber connected at the time of the call.
// Subscribers may disconnect themselves from inside the callback.
func (s *Signal[T]) Emit(v T) {
	snapshot := append([]slot[T](nil), s.slots...)
	for _, sl := range snapshot {
		sl.fn(v)
	}
}

// Len returns the number of connected subscribers.
func (s *Signal[T]) Len() int { return len(s.slots) }

// Host is the window-level event source. The UI forwards raw input into it;
// the drag controller and the editor subscribe only for as long as they need.
type Host struct {
	PointerMove Signal[Pointer]
	PointerUp   Signal[Pointer]
	KeyDown     Signal[Key]
}

// NewHost returns an empty host.
func NewHost() *Host { return &Host{} }
