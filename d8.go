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
)

// routeD8 computes the steepest-descent flow direction and the slope to the
// chosen neighbor for every valid cell of the conditioned surface e. Cells
// with no strictly positive downslope neighbor keep direction zero; after
// conditioning those are exactly the cells that drain off the raster
// (outlets). Slope ties resolve to the first neighbor in canonical order.
func routeD8(e *Grid) (*ByteGrid, *Grid) {
	w, h := e.Width, e.Height
	dir := NewByteGrid(w, h, e.CellSize)
	slope := NewGrid(w, h, e.CellSize)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			z := e.Value(x, y)
			if !validElevation(z) {
				continue
			}
			maxSlope := math.Inf(-1)
			best := -1
			for n := 0; n < 8; n++ {
				nx, ny := x+neighborDX[n], y+neighborDY[n]
				if !e.InBounds(nx, ny) {
					continue
				}
				zn := e.Value(nx, ny)
				if !validElevation(zn) {
					continue
				}
				s := float64(z-zn) / neighborDistance(n, e.CellSize)
				if s > maxSlope {
					maxSlope = s
					best = n
				}
			}
			if best >= 0 && maxSlope > 0 {
				dir.SetValue(x, y, d8Codes[best])
				slope.SetValue(x, y, float32(maxSlope))
			}
		}
	}
	return dir, slope
}

// d8Target returns the cell that the D8 code at (x, y) points at, and
// whether there is one.
func d8Target(d *ByteGrid, x, y int) (int, int, bool) {
	code := d.Value(x, y)
	if code == 0 {
		return 0, 0, false
	}
	n := bits.TrailingZeros8(code)
	nx, ny := x+neighborDX[n], y+neighborDY[n]
	if nx < 0 || nx >= d.Width || ny < 0 || ny >= d.Height {
		return 0, 0, false
	}
	return nx, ny, true
}
