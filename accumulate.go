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

import "sort"

// accumulate computes the number of cells draining through each valid cell
// (itself inclusive) by processing the D8 graph in topological order: cells
// with no inflowing neighbors seed a FIFO, and each cell forwards its count
// to its downslope receiver exactly once. No recursion, so the stack stays
// bounded on arbitrarily large catchments. Valid cells with no D8 receiver
// (on a conditioned surface, the cells that drain off the raster or into
// nodata) are returned as outlets in ascending cell index order.
//
// The conditioned D8 graph is acyclic by construction; if the queue drains
// before every valid cell was processed the input data is corrupt and a
// RoutingCycleDetected error is returned.
func accumulate(e *Grid, d *ByteGrid) (*IntGrid, []Outlet, error) {
	w, h := e.Width, e.Height
	a := NewIntGrid(w, h, e.CellSize)
	inDegree := make([]int32, w*h)

	nValid := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if !validElevation(e.Value(x, y)) {
				continue
			}
			nValid++
			a.SetValue(x, y, 1)
			if tx, ty, ok := d8Target(d, x, y); ok {
				inDegree[ty*w+tx]++
			}
		}
	}

	queue := make([]int, 0, nValid)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if validElevation(e.Data[i]) && inDegree[i] == 0 {
				queue = append(queue, i)
			}
		}
	}

	var outlets []Outlet
	processed := 0
	for head := 0; head < len(queue); head++ {
		i := queue[head]
		processed++
		x, y := i%w, i/w
		tx, ty, ok := d8Target(d, x, y)
		if !ok {
			outlets = append(outlets, Outlet{X: x, Y: y, Accumulation: a.Data[i]})
			continue
		}
		t := ty*w + tx
		a.Data[t] += a.Data[i]
		inDegree[t]--
		if inDegree[t] == 0 {
			queue = append(queue, t)
		}
	}
	if processed != nValid {
		return nil, nil, newError(ErrRoutingCycle, "accumulate",
			"%d of %d valid cells unreachable in topological order", nValid-processed, nValid)
	}
	sort.Slice(outlets, func(i, j int) bool {
		return outlets[i].Y*w+outlets[i].X < outlets[j].Y*w+outlets[j].X
	})
	return a, outlets, nil
}
