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
	"time"

	"github.com/ctessum/geom"
)

// Bundle is the per-catchment record consumed by the external viewer. It
// holds copies of the engine's output grids, so the engine's internal
// buffers can be released independently of it. The concrete on-disk
// encoding is an adapter choice; the field types fix the integer and float
// widths.
type Bundle struct {
	ID       string         `json:"id"`
	Metadata BundleMetadata `json:"metadata"`
	Terrain  BundleTerrain  `json:"terrain"`
	Flow     BundleFlow     `json:"flow"`
	Streams  BundleStreams  `json:"streams"`
	WaterViz BundleWaterViz `json:"water_viz"`
}

// BundleMetadata describes the processing grid. Bounds is populated by the
// raster adapter from the source geospatial metadata; the engine neither
// requires nor validates it.
type BundleMetadata struct {
	Width               int          `json:"width"`
	Height              int          `json:"height"`
	Resolution          float64      `json:"resolution"`
	Bounds              *geom.Bounds `json:"bounds,omitempty"`
	ElevationRange      [2]float32   `json:"elevation_range"`
	ProcessingTimestamp string       `json:"processing_timestamp"`
	DownsampleFactor    int          `json:"downsample_factor"`
}

// BundleTerrain is the decimated, colored elevation mesh.
type BundleTerrain struct {
	ElevationData []float32 `json:"elevation_data"`
	ColorData     []float32 `json:"color_data"`
	MeshWidth     int       `json:"mesh_width"`
	MeshHeight    int       `json:"mesh_height"`
	SkipFactor    int       `json:"skip_factor"`
}

// BundleFlow is the routed flow model. Outlets are [x, y, accumulation]
// triples.
type BundleFlow struct {
	FlowDirections   []uint8     `json:"flow_directions"`
	FlowAccumulation []uint32    `json:"flow_accumulation"`
	Slopes           []float32   `json:"slopes"`
	Outlets          [][3]uint32 `json:"outlets"`
}

// BundleStreams holds the three stream network hierarchy levels; each
// polyline is a sequence of [x, y] grid coordinates.
type BundleStreams struct {
	Detailed [][][2]int32 `json:"detailed"`
	Medium   [][][2]int32 `json:"medium"`
	Major    [][][2]int32 `json:"major"`
}

// BundleWaterViz is the water animation data.
type BundleWaterViz struct {
	FlowAccumulation []uint32   `json:"flow_accumulation"`
	Slopes           []float32  `json:"slopes"`
	Velocities       []float32  `json:"velocities"`
	SpawnPoints      [][2]int32 `json:"spawn_points"`
}

// IndexEntry is one record of the companion index file mapping catchment
// ids to their grid dimensions.
type IndexEntry struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Resolution float64 `json:"resolution"`
}

// Bundle assembles the exported record for this catchment. bounds may be
// nil when the source raster carried no usable geospatial metadata. The
// engine advances to the Exported state on success.
func (e *Engine) Bundle(id string, bounds *geom.Bounds, timestamp time.Time) (*Bundle, error) {
	if err := e.require(Accumulated, "export"); err != nil {
		return nil, err
	}
	networks, err := e.canonicalNetworks()
	if err != nil {
		return nil, err
	}
	mesh, err := e.TerrainMesh()
	if err != nil {
		return nil, err
	}
	viz, err := e.WaterVisualizationData()
	if err != nil {
		return nil, err
	}
	e.report("export", "writing")

	min, max, ok := e.elev.MinMax()
	if !ok {
		min, max = 0, 0
	}
	outlets := make([][3]uint32, len(e.outlets))
	for i, o := range e.outlets {
		outlets[i] = [3]uint32{uint32(o.X), uint32(o.Y), o.Accumulation}
	}

	b := &Bundle{
		ID: id,
		Metadata: BundleMetadata{
			Width:               e.elev.Width,
			Height:              e.elev.Height,
			Resolution:          e.elev.CellSize,
			Bounds:              bounds,
			ElevationRange:      [2]float32{min, max},
			ProcessingTimestamp: timestamp.UTC().Format(time.RFC3339),
			DownsampleFactor:    e.downsampleFactor,
		},
		Terrain: BundleTerrain{
			ElevationData: mesh.ElevationData,
			ColorData:     mesh.Colors,
			MeshWidth:     mesh.MeshWidth,
			MeshHeight:    mesh.MeshHeight,
			SkipFactor:    mesh.SkipFactor,
		},
		Flow: BundleFlow{
			FlowDirections:   append([]uint8(nil), e.flowDir.Data...),
			FlowAccumulation: append([]uint32(nil), e.accum.Data...),
			Slopes:           append([]float32(nil), e.slope.Data...),
			Outlets:          outlets,
		},
		Streams: BundleStreams{
			Detailed: polylinesToCoords(networks["detailed"].Polylines),
			Medium:   polylinesToCoords(networks["medium"].Polylines),
			Major:    polylinesToCoords(networks["major"].Polylines),
		},
		WaterViz: BundleWaterViz{
			FlowAccumulation: viz.FlowAccumulation,
			Slopes:           viz.Slopes,
			Velocities:       viz.Velocities,
			SpawnPoints:      viz.SpawnPoints,
		},
	}
	e.state = Exported
	return b, nil
}

// IndexEntry returns the index record for this catchment's bundle.
func (b *Bundle) IndexEntry() IndexEntry {
	return IndexEntry{
		Width:      b.Metadata.Width,
		Height:     b.Metadata.Height,
		Resolution: b.Metadata.Resolution,
	}
}

func polylinesToCoords(lines []Polyline) [][][2]int32 {
	out := make([][][2]int32, len(lines))
	for i, line := range lines {
		coords := make([][2]int32, len(line))
		for j, pt := range line {
			coords[j] = [2]int32{int32(pt.X), int32(pt.Y)}
		}
		out[i] = coords
	}
	return out
}
