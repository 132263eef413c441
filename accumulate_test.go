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
	"testing"
)

// checkMassBalance verifies that the outlet accumulations sum to the number
// of valid cells and that every valid cell holds one plus the sum of its
// upstream contributors.
func checkMassBalance(t *testing.T, e *Grid, d *ByteGrid, a *IntGrid, outlets []Outlet) {
	t.Helper()
	nValid := 0
	for _, z := range e.Data {
		if validElevation(z) {
			nValid++
		}
	}
	var total uint32
	for _, o := range outlets {
		total += o.Accumulation
	}
	if total != uint32(nValid) {
		t.Errorf("outlet accumulations sum to %d, want %d valid cells", total, nValid)
	}
	for y := 0; y < e.Height; y++ {
		for x := 0; x < e.Width; x++ {
			if !validElevation(e.Value(x, y)) {
				continue
			}
			want := uint32(1)
			for n := 0; n < 8; n++ {
				ux, uy := x+neighborDX[n], y+neighborDY[n]
				if !e.InBounds(ux, uy) || !validElevation(e.Value(ux, uy)) {
					continue
				}
				if tx, ty, ok := d8Target(d, ux, uy); ok && tx == x && ty == y {
					want += a.Value(ux, uy)
				}
			}
			if got := a.Value(x, y); got != want {
				t.Errorf("accumulation at (%d,%d) = %d, want %d", x, y, got, want)
			}
		}
	}
}

func TestAccumulateCone(t *testing.T) {
	e := coneGrid()
	d, _ := routeD8(e)
	a, outlets, err := accumulate(e, d)
	if err != nil {
		t.Fatal(err)
	}
	if got := a.Value(2, 2); got != 25 {
		t.Errorf("center accumulation = %d, want 25", got)
	}
	if len(outlets) != 1 || outlets[0].X != 2 || outlets[0].Y != 2 {
		t.Errorf("outlets = %v, want the center cell only", outlets)
	}
	checkMassBalance(t, e, d, a, outlets)
}

func TestAccumulateLinearChannel(t *testing.T) {
	// A 1×100 row sloping east: accumulation grows linearly along the
	// channel and everything drains the eastmost cell.
	e := NewGrid(100, 1, 100)
	for x := 0; x < 100; x++ {
		e.SetValue(x, 0, float32(100-x))
	}
	d, _ := routeD8(e)
	a, outlets, err := accumulate(e, d)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 100; x++ {
		if got := a.Value(x, 0); got != uint32(x+1) {
			t.Errorf("accumulation at x=%d is %d, want %d", x, got, x+1)
		}
	}
	if len(outlets) != 1 || outlets[0].X != 99 || outlets[0].Accumulation != 100 {
		t.Errorf("outlets = %v, want [(99,0) with 100]", outlets)
	}
	checkMassBalance(t, e, d, a, outlets)
}

// downstreamOutlet follows the flow directions from (x, y) to its terminal
// cell.
func downstreamOutlet(d *ByteGrid, x, y int) (int, int) {
	for {
		tx, ty, ok := d8Target(d, x, y)
		if !ok {
			return x, y
		}
		x, y = tx, ty
	}
}

func TestAccumulateTwoCatchments(t *testing.T) {
	// A 20×10 surface with a ridge down the middle: the west half drains
	// to the west edge, the east half to the east edge, and the two
	// drainage trees never mix.
	e := NewGrid(20, 10, 100)
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			e.SetValue(x, y, float32(min(x, 19-x)))
		}
	}
	d, _ := routeD8(e)
	a, outlets, err := accumulate(e, d)
	if err != nil {
		t.Fatal(err)
	}
	checkMassBalance(t, e, d, a, outlets)
	for _, o := range outlets {
		if o.X != 0 && o.X != 19 {
			t.Errorf("outlet at (%d,%d), want only the west and east edges", o.X, o.Y)
		}
	}
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			ox, _ := downstreamOutlet(d, x, y)
			if x < 10 && ox != 0 {
				t.Errorf("west cell (%d,%d) drains to x=%d", x, y, ox)
			}
			if x >= 10 && ox != 19 {
				t.Errorf("east cell (%d,%d) drains to x=%d", x, y, ox)
			}
		}
	}
}

func TestAccumulateSkipsInvalid(t *testing.T) {
	nan := float32(math.NaN())
	e := gridFrom(t, 3, 3, 100, []float32{
		3, 2, 1,
		nan, nan, nan,
		3, 2, 1,
	})
	d, _ := routeD8(e)
	a, outlets, err := accumulate(e, d)
	if err != nil {
		t.Fatal(err)
	}
	for x := 0; x < 3; x++ {
		if a.Value(x, 1) != 0 {
			t.Errorf("invalid cell (%d,1) has accumulation %d", x, a.Value(x, 1))
		}
	}
	checkMassBalance(t, e, d, a, outlets)
}

func TestAccumulateCycleDetection(t *testing.T) {
	// Two cells pointing at each other cannot happen after conditioning;
	// hand-built corrupt directions must be caught rather than looping.
	e := gridFrom(t, 2, 1, 100, []float32{5, 5})
	d := NewByteGrid(2, 1, 100)
	d.SetValue(0, 0, East)
	d.SetValue(1, 0, West)
	_, _, err := accumulate(e, d)
	if Kind(err) != ErrRoutingCycle {
		t.Errorf("err = %v, want RoutingCycleDetected", err)
	}
}
