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

// Package watermodel converts a raster digital elevation model of a
// catchment into a derived hydrological model suitable for interactive
// visualization: a conditioned surface, D8 flow directions, flow
// accumulation, slopes, a hierarchical stream polyline network, and
// auxiliary visualization data (velocity field, spawn points, colored
// terrain mesh).
//
// The pipeline per catchment is strictly sequential and deterministic:
// running it twice on the same input and configuration yields identical
// output. Two catchments may be processed concurrently in independent
// Engine instances; there is no shared state.
package watermodel

import (
	"math"

	"github.com/ctessum/sparse"
)

// Version is the version of this version of WaterModel.
const Version = "0.1.0"

// State tracks the pipeline progress of an Engine. States advance linearly;
// each API method checks the state it requires and fails with an
// InvalidState error otherwise.
type State int

// The pipeline states, in order.
const (
	Empty State = iota
	Loaded
	Conditioned
	Routed
	Accumulated
	StreamsBuilt
	Exported
)

func (s State) String() string {
	switch s {
	case Empty:
		return "Empty"
	case Loaded:
		return "Loaded"
	case Conditioned:
		return "Conditioned"
	case Routed:
		return "Routed"
	case Accumulated:
		return "Accumulated"
	case StreamsBuilt:
		return "Streams"
	case Exported:
		return "Exported"
	default:
		return "Unknown"
	}
}

// Method selects a hydrological conditioning algorithm.
type Method string

// Available conditioning methods. Only MethodFill is implemented; breach
// and combined are reserved and rejected until their semantics are
// specified.
const (
	MethodFill     Method = "fill"
	MethodBreach   Method = "breach"
	MethodCombined Method = "combined"
)

// Config holds the tunable parameters of the engine. DefaultConfig returns
// the standard settings. In the zero value downsampling is disabled and the
// mesh bound and spawn interval fall back to 2048 and 20.
type Config struct {
	// TargetCellSize is the desired effective spacing of the internal
	// processing grid in meters. Input rasters with finer spacing are
	// downsampled by block mean. Zero disables downsampling.
	TargetCellSize float64

	// Epsilon is the elevation increment used by priority-flood to force a
	// strictly monotonic drainage path across filled flats. If zero or
	// negative it is derived as 1e-6 of the elevation range, so that it is
	// not absorbed by float32 rounding on high-relief terrain.
	Epsilon float64

	// MeshMaxDimension limits the larger dimension of the exported terrain
	// mesh; rasters larger than this are sampled at a stride recorded in
	// the bundle. The mesh includes a clamped final row and column, so its
	// larger dimension is at most MeshMaxDimension+1.
	MeshMaxDimension int

	// SpawnInterval is the approximate spacing, in cells, of particle spawn
	// points sampled along detailed stream polylines.
	SpawnInterval int
}

// DefaultConfig returns the standard engine configuration.
func DefaultConfig() Config {
	return Config{
		TargetCellSize:   100,
		Epsilon:          0,
		MeshMaxDimension: 2048,
		SpawnInterval:    20,
	}
}

// Status is a coarse progress beacon. The engine emits one at every stage
// boundary and phase change; delivery is best-effort and never blocks the
// pipeline.
type Status struct {
	Stage string // load, condition, route, accumulate, streams, viz, export
	Phase string // reading, computing, writing
}

func (s Status) String() string { return s.Stage + ": " + s.Phase }

// Outlet is a cell where flow leaves the grid, together with the number of
// cells draining through it.
type Outlet struct {
	X, Y         int
	Accumulation uint32
}

// StreamLevel labels one of the canonical stream network hierarchies.
type StreamLevel struct {
	Label      string
	Percentile float64
}

// StreamLevels are the canonical thresholds at which stream networks are
// extracted for the exported bundle.
var StreamLevels = []StreamLevel{
	{Label: "detailed", Percentile: 0.01},
	{Label: "medium", Percentile: 0.05},
	{Label: "major", Percentile: 0.10},
}

// Engine holds the state of the hydrology pipeline for a single catchment.
// It is not safe for concurrent use; process concurrent catchments in
// separate instances.
type Engine struct {
	Config Config

	// Progress, if non-nil, receives coarse status beacons. Sends are
	// non-blocking: a slow receiver drops beacons rather than stalling the
	// pipeline.
	Progress chan<- Status

	state            State
	elev             *Grid
	flowDir          *ByteGrid
	slope            *Grid
	accum            *IntGrid
	outlets          []Outlet
	downsampleFactor int
	networks         map[string]*StreamNetwork
}

// New returns an Engine with the given configuration and no loaded data.
func New(cfg Config) *Engine {
	return &Engine{Config: cfg, state: Empty}
}

func (e *Engine) report(stage, phase string) {
	if e.Progress == nil {
		return
	}
	select {
	case e.Progress <- Status{Stage: stage, Phase: phase}:
	default:
	}
}

// require fails with an InvalidState error unless the engine has reached
// min.
func (e *Engine) require(min State, stage string) error {
	if e.state < min {
		return newError(ErrInvalidState, stage,
			"requires state %v or later, but engine is %v", min, e.state)
	}
	return nil
}

// reset releases all grids and derived data and returns the engine to
// Empty.
func (e *Engine) reset() {
	e.elev = nil
	e.flowDir = nil
	e.slope = nil
	e.accum = nil
	e.outlets = nil
	e.networks = nil
	e.downsampleFactor = 0
	e.state = Empty
}

// State returns the engine's current pipeline state.
func (e *Engine) State() State { return e.state }

// LoadDEM ingests a raw elevation buffer of the given dimensions and pixel
// spacing (meters), downsampling it by block mean to approximately
// Config.TargetCellSize. Cells that are NaN or negative are treated as
// nodata throughout the pipeline. Loading into a non-empty engine resets it
// first, releasing all derived grids.
func (e *Engine) LoadDEM(width, height int, cellSize float64, elevations []float32) error {
	if e.state != Empty {
		e.reset()
	}
	e.report("load", "reading")
	if len(elevations) != width*height {
		return newError(ErrDimensionMismatch, "load",
			"%d elevations for a %d×%d raster", len(elevations), width, height)
	}
	g := NewGrid(width, height, cellSize)
	copy(g.Data, elevations)

	factor := 1
	if e.Config.TargetCellSize > 0 && cellSize > 0 {
		factor = int(math.Round(e.Config.TargetCellSize / cellSize))
		if factor < 1 {
			factor = 1
		}
	}
	e.report("load", "computing")
	if factor > 1 {
		g = Downsample(g, factor)
	}
	e.elev = g
	e.downsampleFactor = factor
	e.state = Loaded
	e.report("load", "writing")
	return nil
}

// LoadDenseArray ingests elevations from a two-dimensional sparse.DenseArray
// of shape [height][width], as produced by the raster reader adapters.
func (e *Engine) LoadDenseArray(a *sparse.DenseArray, cellSize float64) error {
	shape := a.GetShape()
	if len(shape) != 2 {
		return newError(ErrDimensionMismatch, "load",
			"elevation array must be 2-dimensional, got shape %v", shape)
	}
	height, width := shape[0], shape[1]
	elevations := make([]float32, len(a.Elements))
	for i, v := range a.Elements {
		elevations[i] = float32(v)
	}
	return e.LoadDEM(width, height, cellSize, elevations)
}

// Condition hydrologically conditions the loaded surface in place so that
// every valid cell has a monotonically descending path to the raster
// boundary. Only MethodFill (priority-flood) is implemented; breach and
// combined are reserved, and maxBreachDepth is accepted but unused until
// they are. epsilon <= 0 selects an increment derived from the elevation
// range.
func (e *Engine) Condition(method Method, epsilon float64, maxBreachDepth int) error {
	_ = maxBreachDepth
	if e.state != Loaded {
		return newError(ErrInvalidState, "condition",
			"requires state Loaded, but engine is %v", e.state)
	}
	if method != MethodFill {
		return newError(ErrInvalidState, "condition",
			"conditioning method %q is reserved and not yet implemented", method)
	}
	e.report("condition", "computing")
	if epsilon <= 0 {
		min, max, ok := e.elev.MinMax()
		if !ok {
			// A fully-invalid grid conditions to itself.
			e.state = Conditioned
			return nil
		}
		epsilon = 1e-6 * float64(max-min)
		if epsilon <= 0 {
			epsilon = 1e-6
		}
	}
	if err := fillSinks(e.elev, epsilon); err != nil {
		return err
	}
	e.state = Conditioned
	e.report("condition", "writing")
	return nil
}

// ComputeFlow derives the D8 flow direction and slope grids from the
// conditioned surface and then accumulates upstream area in topological
// order. On success the engine holds the flow, slope and accumulation
// grids and the outlet list.
func (e *Engine) ComputeFlow() error {
	if e.state != Conditioned {
		return newError(ErrInvalidState, "route",
			"requires state Conditioned, but engine is %v", e.state)
	}
	e.report("route", "computing")
	e.flowDir, e.slope = routeD8(e.elev)
	e.state = Routed

	e.report("accumulate", "computing")
	accum, outlets, err := accumulate(e.elev, e.flowDir)
	if err != nil {
		return err
	}
	e.accum = accum
	e.outlets = outlets
	e.state = Accumulated
	e.report("accumulate", "writing")
	return nil
}

// StreamPolylines extracts the stream network at percentile p of the
// accumulation distribution and returns its polylines ordered by
// decreasing length (ties by head cell index). A threshold yielding fewer
// than two stream cells produces an empty result and no error.
func (e *Engine) StreamPolylines(p float64) ([]Polyline, error) {
	n, err := e.network(p)
	if err != nil {
		return nil, err
	}
	return n.Polylines, nil
}

// StreamNetwork extracts the stream network at percentile p and returns its
// polylines as a flat [x1,y1,x2,y2,…] buffer with polylines separated by a
// NaN pair.
func (e *Engine) StreamNetwork(p float64) ([]float64, error) {
	n, err := e.network(p)
	if err != nil {
		return nil, err
	}
	return n.FlatPoints(), nil
}

// network computes (and, for the canonical levels, caches) the stream
// network at percentile p.
func (e *Engine) network(p float64) (*StreamNetwork, error) {
	if err := e.require(Accumulated, "streams"); err != nil {
		return nil, err
	}
	label := ""
	for _, l := range StreamLevels {
		if l.Percentile == p {
			label = l.Label
		}
	}
	if label != "" {
		if n, ok := e.networks[label]; ok {
			return n, nil
		}
	}
	e.report("streams", "computing")
	n := buildStreamNetwork(e.elev, e.flowDir, e.accum, p)
	if label != "" {
		if e.networks == nil {
			e.networks = make(map[string]*StreamNetwork)
		}
		e.networks[label] = n
		if len(e.networks) == len(StreamLevels) && e.state < StreamsBuilt {
			e.state = StreamsBuilt
		}
	}
	return n, nil
}

// canonicalNetworks builds all three hierarchy levels.
func (e *Engine) canonicalNetworks() (map[string]*StreamNetwork, error) {
	for _, l := range StreamLevels {
		if _, err := e.network(l.Percentile); err != nil {
			return nil, err
		}
	}
	return e.networks, nil
}

// Dimensions returns the width, height and cell size (meters) of the
// internal processing grid.
func (e *Engine) Dimensions() (width, height int, cellSize float64) {
	if e.elev == nil {
		return 0, 0, 0
	}
	return e.elev.Width, e.elev.Height, e.elev.CellSize
}

// DownsampleFactor returns the block-mean factor applied when the DEM was
// loaded.
func (e *Engine) DownsampleFactor() int { return e.downsampleFactor }

// Elevations returns the engine's elevation grid. It is conditioned in
// place by Condition and must be treated as read-only afterwards.
func (e *Engine) Elevations() *Grid { return e.elev }

// FlowDirections returns the D8 flow direction grid, or nil before
// ComputeFlow.
func (e *Engine) FlowDirections() *ByteGrid { return e.flowDir }

// Slopes returns the slope grid, or nil before ComputeFlow.
func (e *Engine) Slopes() *Grid { return e.slope }

// Accumulation returns the flow accumulation grid, or nil before
// ComputeFlow.
func (e *Engine) Accumulation() *IntGrid { return e.accum }

// Outlets returns the cells where flow leaves the grid, in ascending cell
// index order.
func (e *Engine) Outlets() []Outlet { return e.outlets }
