/*
Copyright © 2024 the WaterModel authors.
This file is part of WaterModel.

WaterModel is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WaterModel is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WaterModel.  If not, see <http://www.gnu.org/licenses/>.
*/

package watermodel

import (
	"math"
	"math/bits"
	"testing"
)

// coneGrid is a 5×5 surface sloping down from all sides toward the center
// cell (2,2).
func coneGrid() *Grid {
	g := NewGrid(5, 5, 100)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			dx, dy := float64(x-2), float64(y-2)
			g.SetValue(x, y, float32(10+math.Sqrt(dx*dx+dy*dy)))
		}
	}
	return g
}

func TestRouteD8Cone(t *testing.T) {
	e := coneGrid()
	d, s := routeD8(e)

	// Every cell has at most one direction bit; the center is the only
	// pit.
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			code := d.Value(x, y)
			if bits.OnesCount8(code) > 1 {
				t.Errorf("cell (%d,%d) has multiple direction bits: %08b", x, y, code)
			}
			if x == 2 && y == 2 {
				if code != 0 {
					t.Errorf("center should be a pit, got %08b", code)
				}
				if s.Value(x, y) != 0 {
					t.Errorf("pit slope = %g, want 0", s.Value(x, y))
				}
			} else if code == 0 {
				t.Errorf("cell (%d,%d) on the cone should drain, got no direction", x, y)
			}
		}
	}

	// Cells adjacent to the center drain straight into it.
	for _, c := range [][2]int{{1, 2}, {3, 2}, {2, 1}, {2, 3}, {1, 1}, {3, 3}, {1, 3}, {3, 1}} {
		tx, ty, ok := d8Target(d, c[0], c[1])
		if !ok || tx != 2 || ty != 2 {
			t.Errorf("cell (%d,%d) should drain into the center, got (%d,%d)", c[0], c[1], tx, ty)
		}
	}
}

func TestRouteD8TieBreak(t *testing.T) {
	// The east and south neighbors tie for steepest descent; the first in
	// canonical order (east) must win.
	e := gridFrom(t, 3, 3, 100, []float32{
		10, 10, 10,
		10, 10, 9,
		10, 9, 10,
	})
	d, _ := routeD8(e)
	if code := d.Value(1, 1); code != East {
		t.Errorf("tie should resolve to east, got %08b", code)
	}
}

func TestRouteD8PrefersSteepestNotLowest(t *testing.T) {
	// A diagonal neighbor two meters down loses to a cardinal neighbor
	// 1.9 meters down, because slope is drop over distance.
	e := gridFrom(t, 3, 3, 100, []float32{
		10, 10, 10,
		10, 10, 8.1,
		10, 10, 8,
	})
	d, s := routeD8(e)
	if code := d.Value(1, 1); code != East {
		t.Errorf("steepest neighbor is east, got %08b", code)
	}
	want := float32(1.9 / 100)
	if got := s.Value(1, 1); math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("slope = %g, want %g", got, want)
	}
}

func TestRouteD8InvalidCells(t *testing.T) {
	nan := float32(math.NaN())
	e := gridFrom(t, 3, 3, 100, []float32{
		10, 9, 8,
		10, 9, nan,
		10, 9, 8,
	})
	d, s := routeD8(e)
	if d.Value(2, 1) != 0 || s.Value(2, 1) != 0 {
		t.Error("invalid cells must have no direction and zero slope")
	}
	// The valid neighbor of the nodata cell must not route into it.
	if tx, ty, ok := d8Target(d, 1, 1); ok && tx == 2 && ty == 1 {
		t.Error("cell (1,1) routed into a nodata cell")
	}
}
