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
	"sort"

	"github.com/ctessum/geom"
)

// Polyline is an ordered sequence of grid coordinates moving monotonically
// downstream, from a channel head to an outlet, a confluence with an
// already-traced stem, or the edge of the stream mask.
type Polyline []geom.Point

// LineString converts p to a geom.LineString for the encoding packages.
func (p Polyline) LineString() geom.LineString { return geom.LineString(p) }

// StreamNetwork is the stream channel extraction at a single accumulation
// threshold.
type StreamNetwork struct {
	// Percentile is the p the network was extracted at. Lower values admit
	// more cells: roughly a fraction 1−p of the valid cells are stream cells.
	Percentile float64
	// Threshold is the accumulation value at rank ⌈(1−p)·N⌉ of the
	// accumulation values sorted in descending order; cells at or above it
	// are stream cells.
	Threshold uint32
	// Mask marks the stream cells, indexed by cell index.
	Mask []bool
	// Polylines are the traced channels, longest first; ties order by the
	// grid index of the head cell.
	Polylines []Polyline
}

// FlatPoints returns the network's polylines as a flat [x1,y1,x2,y2,…]
// buffer, with a NaN pair separating consecutive polylines.
func (n *StreamNetwork) FlatPoints() []float64 {
	var out []float64
	for i, line := range n.Polylines {
		if i > 0 {
			out = append(out, math.NaN(), math.NaN())
		}
		for _, pt := range line {
			out = append(out, pt.X, pt.Y)
		}
	}
	return out
}

// streamThreshold returns the accumulation value at rank ⌈(1−p)·N⌉ of the
// descending accumulation distribution over valid cells, together with N.
// Lower percentiles therefore admit more cells, so the detailed mask is a
// superset of the medium mask, which is a superset of the major mask.
func streamThreshold(e *Grid, a *IntGrid, p float64) (uint32, int) {
	vals := make([]uint32, 0, len(a.Data))
	for i, z := range e.Data {
		if validElevation(z) {
			vals = append(vals, a.Data[i])
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}
	sort.Slice(vals, func(i, j int) bool { return vals[i] > vals[j] })
	rank := int(math.Ceil((1 - p) * float64(len(vals))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(vals) {
		rank = len(vals)
	}
	return vals[rank-1], len(vals)
}

// buildStreamNetwork extracts the stream cells at percentile p and traces
// them into polylines. A polyline starts at every channel head (a stream
// cell no upstream stream cell points at) and follows the D8 directions
// downstream, claiming each cell as it goes, so every stream cell belongs
// to at most one polyline: the first trace through a confluence claims the
// cells below it and later tributaries terminate there. Heads are visited
// in ascending cell index order and polylines shorter than two cells are
// discarded, which together with the length ordering makes the output
// deterministic.
func buildStreamNetwork(e *Grid, d *ByteGrid, a *IntGrid, p float64) *StreamNetwork {
	w, h := e.Width, e.Height
	threshold, _ := streamThreshold(e, a, p)
	n := &StreamNetwork{
		Percentile: p,
		Threshold:  threshold,
		Mask:       make([]bool, w*h),
	}

	nStream := 0
	for i, z := range e.Data {
		if validElevation(z) && a.Data[i] >= threshold {
			n.Mask[i] = true
			nStream++
		}
	}
	// Degenerate threshold: nothing to trace, but the call succeeds.
	if nStream < 2 {
		return n
	}

	// Count, for every stream cell, the upstream stream cells pointing at
	// it. Cells with none are channel heads.
	inMask := make([]int32, w*h)
	for i := range n.Mask {
		if !n.Mask[i] {
			continue
		}
		x, y := i%w, i/w
		if tx, ty, ok := d8Target(d, x, y); ok && n.Mask[ty*w+tx] {
			inMask[ty*w+tx]++
		}
	}

	claimed := make([]bool, w*h)
	for i := range n.Mask {
		if !n.Mask[i] || inMask[i] != 0 {
			continue
		}
		line := tracePolyline(d, n.Mask, claimed, i)
		if len(line) >= 2 {
			n.Polylines = append(n.Polylines, line)
		}
	}

	sort.SliceStable(n.Polylines, func(i, j int) bool {
		a, b := n.Polylines[i], n.Polylines[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		ai := int(a[0].Y)*w + int(a[0].X)
		bi := int(b[0].Y)*w + int(b[0].X)
		return ai < bi
	})
	return n
}

// tracePolyline follows the flow directions downstream from head, claiming
// every visited cell, and stops when the next cell is outside the mask,
// already claimed by an earlier trace, or off the grid.
func tracePolyline(d *ByteGrid, mask, claimed []bool, head int) Polyline {
	w := d.Width
	line := Polyline{}
	i := head
	for {
		claimed[i] = true
		x, y := i%w, i/w
		line = append(line, geom.Point{X: float64(x), Y: float64(y)})
		tx, ty, ok := d8Target(d, x, y)
		if !ok {
			break
		}
		t := ty*w + tx
		if !mask[t] || claimed[t] {
			break
		}
		i = t
	}
	return line
}
