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
)

// D8 flow direction codes. Each valid cell drains to at most one of its
// eight neighbors; a code of zero means the cell is a pit, an outlet, or
// invalid.
const (
	East      uint8 = 1
	SouthEast uint8 = 2
	South     uint8 = 4
	SouthWest uint8 = 8
	West      uint8 = 16
	NorthWest uint8 = 32
	North     uint8 = 64
	NorthEast uint8 = 128
)

// Neighbor offsets in the canonical D8 order (E, SE, S, SW, W, NW, N, NE).
// All tie-breaking in the model uses this order: first encountered wins.
var (
	neighborDX = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	neighborDY = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
	d8Codes    = [8]uint8{East, SouthEast, South, SouthWest, West, NorthWest, North, NorthEast}
)

// neighborDistance returns the center-to-center distance to neighbor n of
// the canonical order. Odd positions are diagonals.
func neighborDistance(n int, cellSize float64) float64 {
	if n%2 == 1 {
		return cellSize * math.Sqrt2
	}
	return cellSize
}

// validElevation reports whether z represents a real land-surface elevation.
// NaN and negative values are the nodata sentinel and are excluded from
// conditioning, routing and accumulation.
func validElevation(z float32) bool {
	return !math.IsNaN(float64(z)) && z >= 0
}

// Grid is a dense row-major raster of float32 values. The canonical index
// for (x, y) is y*Width+x.
type Grid struct {
	Width, Height int
	CellSize      float64 // meters; isotropic
	Data          []float32
}

// NewGrid returns a Grid of the given dimensions with all cells zero.
func NewGrid(width, height int, cellSize float64) *Grid {
	return &Grid{
		Width:    width,
		Height:   height,
		CellSize: cellSize,
		Data:     make([]float32, width*height),
	}
}

// Index returns the linear index of cell (x, y).
func (g *Grid) Index(x, y int) int { return y*g.Width + x }

// InBounds reports whether (x, y) lies within the grid.
func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.Width && y >= 0 && y < g.Height
}

// Value returns the value of cell (x, y).
func (g *Grid) Value(x, y int) float32 { return g.Data[y*g.Width+x] }

// SetValue sets the value of cell (x, y).
func (g *Grid) SetValue(x, y int, v float32) { g.Data[y*g.Width+x] = v }

// Copy returns a deep copy of g.
func (g *Grid) Copy() *Grid {
	o := NewGrid(g.Width, g.Height, g.CellSize)
	copy(o.Data, g.Data)
	return o
}

// MinMax returns the minimum and maximum elevation over valid cells.
// ok is false if the grid contains no valid cells.
func (g *Grid) MinMax() (min, max float32, ok bool) {
	min, max = float32(math.Inf(1)), float32(math.Inf(-1))
	for _, z := range g.Data {
		if !validElevation(z) {
			continue
		}
		ok = true
		if z < min {
			min = z
		}
		if z > max {
			max = z
		}
	}
	return min, max, ok
}

// ByteGrid is a dense row-major raster of uint8 values, used for D8 flow
// direction codes.
type ByteGrid struct {
	Width, Height int
	CellSize      float64
	Data          []uint8
}

// NewByteGrid returns a ByteGrid of the given dimensions with all cells zero.
func NewByteGrid(width, height int, cellSize float64) *ByteGrid {
	return &ByteGrid{
		Width:    width,
		Height:   height,
		CellSize: cellSize,
		Data:     make([]uint8, width*height),
	}
}

// Value returns the value of cell (x, y).
func (g *ByteGrid) Value(x, y int) uint8 { return g.Data[y*g.Width+x] }

// SetValue sets the value of cell (x, y).
func (g *ByteGrid) SetValue(x, y int, v uint8) { g.Data[y*g.Width+x] = v }

// IntGrid is a dense row-major raster of uint32 values, used for flow
// accumulation counts.
type IntGrid struct {
	Width, Height int
	CellSize      float64
	Data          []uint32
}

// NewIntGrid returns an IntGrid of the given dimensions with all cells zero.
func NewIntGrid(width, height int, cellSize float64) *IntGrid {
	return &IntGrid{
		Width:    width,
		Height:   height,
		CellSize: cellSize,
		Data:     make([]uint32, width*height),
	}
}

// Value returns the value of cell (x, y).
func (g *IntGrid) Value(x, y int) uint32 { return g.Data[y*g.Width+x] }

// SetValue sets the value of cell (x, y).
func (g *IntGrid) SetValue(x, y int, v uint32) { g.Data[y*g.Width+x] = v }

// Downsample reduces src by block mean, so that an N×N raster becomes
// ⌈N/factor⌉×⌈N/factor⌉. Each output cell is the mean of the valid cells in
// its factor×factor block; a block with no valid cells becomes nodata. The
// raster origin is preserved. A factor of one (or less) is the identity.
func Downsample(src *Grid, factor int) *Grid {
	if factor <= 1 {
		return src.Copy()
	}
	outW := (src.Width + factor - 1) / factor
	outH := (src.Height + factor - 1) / factor
	out := NewGrid(outW, outH, src.CellSize*float64(factor))
	for oy := 0; oy < outH; oy++ {
		for ox := 0; ox < outW; ox++ {
			var sum float64
			var n int
			for y := oy * factor; y < (oy+1)*factor && y < src.Height; y++ {
				for x := ox * factor; x < (ox+1)*factor && x < src.Width; x++ {
					z := src.Value(x, y)
					if validElevation(z) {
						sum += float64(z)
						n++
					}
				}
			}
			if n == 0 {
				out.SetValue(ox, oy, float32(math.NaN()))
			} else {
				out.SetValue(ox, oy, float32(sum/float64(n)))
			}
		}
	}
	return out
}
