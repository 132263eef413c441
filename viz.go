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
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WaterViz is the data the viewer needs to animate water over the terrain:
// the accumulation and slope grids, a per-cell 2D velocity field, and the
// particle spawn points.
type WaterViz struct {
	FlowAccumulation []uint32
	Slopes           []float32
	// Velocities is interleaved [vx0, vy0, vx1, vy1, …], one pair per cell.
	Velocities []float32
	// SpawnPoints are [x, y] grid coordinates, deduplicated and in
	// ascending cell index order.
	SpawnPoints [][2]int32
}

// TerrainMesh is a decimated sampling of the elevation grid with vertex
// colors, ready for tessellation by the viewer.
type TerrainMesh struct {
	ElevationData []float32
	// Colors holds an RGB triple in [0, 1] per vertex.
	Colors                []float32
	MeshWidth, MeshHeight int
	SkipFactor            int
}

// WaterVisualizationData derives the velocity field and spawn points from
// the routed and accumulated grids. The velocity magnitudes follow a
// Manning-inspired proxy, k·√slope·(1+accumulation)^0.4, normalized so the
// 99th-percentile magnitude is one. It is a visualization aid only, not a
// calibrated flow velocity, and must not be used for hydraulic analysis.
func (e *Engine) WaterVisualizationData() (*WaterViz, error) {
	if err := e.require(Accumulated, "viz"); err != nil {
		return nil, err
	}
	networks, err := e.canonicalNetworks()
	if err != nil {
		return nil, err
	}
	e.report("viz", "computing")
	v := &WaterViz{
		FlowAccumulation: append([]uint32(nil), e.accum.Data...),
		Slopes:           append([]float32(nil), e.slope.Data...),
		Velocities:       velocityField(e.elev, e.flowDir, e.slope, e.accum),
		SpawnPoints: spawnPoints(networks["major"], networks["detailed"],
			e.flowDir, e.Config.SpawnInterval),
	}
	e.report("viz", "writing")
	return v, nil
}

// velocityField computes a 2D velocity vector per cell, oriented along the
// unit vector toward the cell's D8 target. Invalid cells and pits get the
// zero vector.
func velocityField(e *Grid, d *ByteGrid, s *Grid, a *IntGrid) []float32 {
	raw := make([]float64, len(e.Data))
	mags := make([]float64, 0, len(e.Data))
	for i, z := range e.Data {
		if !validElevation(z) || d.Data[i] == 0 {
			continue
		}
		m := math.Sqrt(float64(s.Data[i])) * math.Pow(1+float64(a.Data[i]), 0.4)
		raw[i] = m
		if m > 0 {
			mags = append(mags, m)
		}
	}
	k := 1.0
	if len(mags) > 0 {
		sort.Float64s(mags)
		if q := stat.Quantile(0.99, stat.Empirical, mags, nil); q > 0 {
			k = 1 / q
		}
	}
	v := make([]float32, 2*len(e.Data))
	for i, m := range raw {
		if m == 0 {
			continue
		}
		n := bits.TrailingZeros8(d.Data[i])
		norm := 1.0
		if n%2 == 1 {
			norm = math.Sqrt2
		}
		v[2*i] = float32(k * m * float64(neighborDX[n]) / norm)
		v[2*i+1] = float32(k * m * float64(neighborDY[n]) / norm)
	}
	return v
}

// spawnPoints picks particle origins: every confluence of the major
// network (a stream cell with two or more upstream stream cells) plus
// evenly spaced samples along each detailed polyline. Points are
// deduplicated by cell index.
func spawnPoints(major, detailed *StreamNetwork, d *ByteGrid, interval int) [][2]int32 {
	if interval < 1 {
		interval = 20
	}
	w := d.Width
	seen := make(map[int]struct{})

	inMask := make([]int32, len(major.Mask))
	for i, in := range major.Mask {
		if !in {
			continue
		}
		if tx, ty, ok := d8Target(d, i%w, i/w); ok && major.Mask[ty*w+tx] {
			inMask[ty*w+tx]++
		}
	}
	for i, in := range major.Mask {
		if in && inMask[i] >= 2 {
			seen[i] = struct{}{}
		}
	}

	for _, line := range detailed.Polylines {
		for j := 0; j < len(line); j += interval {
			i := int(line[j].Y)*w + int(line[j].X)
			seen[i] = struct{}{}
		}
	}

	idx := make([]int, 0, len(seen))
	for i := range seen {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	pts := make([][2]int32, len(idx))
	for j, i := range idx {
		pts[j] = [2]int32{int32(i % w), int32(i / w)}
	}
	return pts
}

// TerrainMesh samples the elevation grid at a stride skip = ⌈max(W,H) /
// Config.MeshMaxDimension⌉ (one if the grid already fits), and colors each
// vertex from a seven-band elevation gradient. The mesh has ⌊W/skip⌋+1 by
// ⌊H/skip⌋+1 vertices, so its larger dimension can exceed
// Config.MeshMaxDimension by one; samples past the grid edge clamp to the
// last row or column. The stride is recorded as SkipFactor so the viewer
// can reconstruct vertex positions.
func (e *Engine) TerrainMesh() (*TerrainMesh, error) {
	if err := e.require(Loaded, "viz"); err != nil {
		return nil, err
	}
	g := e.elev
	maxDim := e.Config.MeshMaxDimension
	if maxDim < 2 {
		maxDim = 2048
	}
	skip := 1
	if m := max(g.Width, g.Height); m > maxDim {
		skip = (m + maxDim - 1) / maxDim
	}
	meshW := g.Width/skip + 1
	meshH := g.Height/skip + 1

	min, maxElev, ok := g.MinMax()
	elevRange := float64(maxElev - min)
	if !ok || elevRange <= 0 {
		elevRange = 1
	}

	mesh := &TerrainMesh{
		ElevationData: make([]float32, meshW*meshH),
		Colors:        make([]float32, 3*meshW*meshH),
		MeshWidth:     meshW,
		MeshHeight:    meshH,
		SkipFactor:    skip,
	}
	for my := 0; my < meshH; my++ {
		y := my * skip
		if y >= g.Height {
			y = g.Height - 1
		}
		for mx := 0; mx < meshW; mx++ {
			x := mx * skip
			if x >= g.Width {
				x = g.Width - 1
			}
			z := g.Value(x, y)
			i := my*meshW + mx
			var c [3]float32
			if !validElevation(z) || z <= 0 {
				mesh.ElevationData[i] = 0
				c = neutralGrey
			} else {
				mesh.ElevationData[i] = z
				c = elevationColor(float64(z-min) / elevRange)
			}
			copy(mesh.Colors[3*i:3*i+3], c[:])
		}
	}
	return mesh, nil
}

var neutralGrey = [3]float32{0.5, 0.5, 0.5}

// The seven-band elevation gradient, ascending: deep green, forest green,
// olive, yellow ochre, orange, red, purple.
var elevationBands = [7][3]float32{
	{0.00, 0.35, 0.00},
	{0.13, 0.55, 0.13},
	{0.50, 0.50, 0.00},
	{0.80, 0.67, 0.00},
	{1.00, 0.65, 0.00},
	{0.86, 0.08, 0.24},
	{0.50, 0.00, 0.50},
}

// elevationColor maps a normalized elevation t in [0, 1] to an RGB triple,
// interpolating linearly between successive band anchors.
func elevationColor(t float64) [3]float32 {
	if t <= 0 {
		return elevationBands[0]
	}
	if t >= 1 {
		return elevationBands[len(elevationBands)-1]
	}
	pos := t * float64(len(elevationBands)-1)
	i := int(pos)
	f := float32(pos - float64(i))
	lo, hi := elevationBands[i], elevationBands[i+1]
	return [3]float32{
		lo[0] + (hi[0]-lo[0])*f,
		lo[1] + (hi[1]-lo[1])*f,
		lo[2] + (hi[2]-lo[2])*f,
	}
}
