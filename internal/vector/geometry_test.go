/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestRectUnionAndIntersects(t *testing.T) {
	a := R(0, 0, 10, 10)
	b := R(5, 5, 10, 10)
	u := a.Union(b)
	if u != R(0, 0, 15, 15) {
		t.Fatalf("unexpected union: %+v", u)
	}
	if !a.Intersects(b) {
		t.Fatalf("expected overlap")
	}
	if a.Intersects(R(10, 0, 5, 5)) {
		t.Fatalf("touching edges must not count as overlap")
	}
}

func TestClampInto(t *testing.T) {
	bounds := R(0, 0, 100, 100)
	cases := []struct {
		in   Rect
		want Rect
	}{
		{R(-5, -5, 20, 5), R(0, 0, 20, 5)},
		{R(90, 99, 20, 5), R(80, 95, 20, 5)},
		{R(40, 40, 20, 5), R(40, 40, 20, 5)},
		{R(10, 10, 120, 5), R(0, 10, 120, 5)},
	}
	for _, c := range cases {
		if got := c.in.ClampInto(bounds); got != c.want {
			t.Fatalf("ClampInto(%+v) = %+v, want %+v", c.in, got, c.want)
		}
	}
}

func TestFloatRound(t *testing.T) {
	if got := FloatRound(48.74999999, 3); got != 48.75 {
		t.Fatalf("FloatRound = %v", got)
	}
	if got := FloatRound(1.5, -1); got != 1.5 {
		t.Fatalf("negative places must pass through, got %v", got)
	}
}
