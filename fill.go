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
	"container/heap"
	"math"
)

// floodCell is an entry in the priority-flood queue. seq is the insertion
// sequence number, used as a secondary sort key so that elevation ties pop
// in insertion order and the fill is deterministic.
type floodCell struct {
	index int
	elev  float32
	seq   int64
}

type floodQueue []floodCell

func (q floodQueue) Len() int { return len(q) }

func (q floodQueue) Less(i, j int) bool {
	if q[i].elev != q[j].elev {
		return q[i].elev < q[j].elev
	}
	return q[i].seq < q[j].seq
}

func (q floodQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *floodQueue) Push(x interface{}) { *q = append(*q, x.(floodCell)) }

func (q *floodQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

// fillSinks removes depressions from e in place using the priority-flood
// method: an ascending priority queue is seeded with every valid cell on
// the effective raster boundary and flooded inward, raising each newly
// reached cell to at least epsilon above the cell it was reached from.
// After completion every valid non-boundary cell has a strictly lower
// neighbor, so D8 routing is defined everywhere.
//
// A cell is on the effective boundary if any of its eight neighbors is
// outside the raster or nodata; a nodata rim therefore shifts the boundary
// to the next valid ring inward. Nodata cells are never pushed, raised, or
// used as drainage targets.
func fillSinks(e *Grid, epsilon float64) error {
	w, h := e.Width, e.Height
	closed := make([]bool, w*h)
	pq := make(floodQueue, 0, 2*(w+h))
	var seq int64

	nValid := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			z := e.Value(x, y)
			if !validElevation(z) {
				continue
			}
			nValid++
			edge := false
			for n := 0; n < 8; n++ {
				nx, ny := x+neighborDX[n], y+neighborDY[n]
				if !e.InBounds(nx, ny) || !validElevation(e.Value(nx, ny)) {
					edge = true
					break
				}
			}
			if edge {
				i := e.Index(x, y)
				closed[i] = true
				pq = append(pq, floodCell{index: i, elev: z, seq: seq})
				seq++
			}
		}
	}
	if nValid == 0 {
		return nil
	}
	if len(pq) == 0 {
		return newError(ErrNoDrainageOutlet, "condition",
			"no valid cell on the raster boundary to drain through")
	}
	heap.Init(&pq)

	for pq.Len() > 0 {
		c := heap.Pop(&pq).(floodCell)
		cx, cy := c.index%w, c.index/w
		zc := e.Data[c.index]
		for n := 0; n < 8; n++ {
			nx, ny := cx+neighborDX[n], cy+neighborDY[n]
			if !e.InBounds(nx, ny) {
				continue
			}
			i := e.Index(nx, ny)
			if closed[i] || !validElevation(e.Data[i]) {
				continue
			}
			raised := float64(zc) + epsilon
			if float64(e.Data[i]) < raised {
				zn := float32(raised)
				if zn <= zc {
					// epsilon was absorbed by float32 rounding; take the
					// next representable value up instead.
					zn = math.Nextafter32(zc, float32(math.Inf(1)))
				}
				e.Data[i] = zn
			}
			closed[i] = true
			heap.Push(&pq, floodCell{index: i, elev: e.Data[i], seq: seq})
			seq++
		}
	}
	return nil
}
