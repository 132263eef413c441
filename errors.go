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
	"errors"
	"fmt"
)

// ErrKind classifies the failures the engine can report, so that the batch
// runner can log a per-catchment failure and keep going.
type ErrKind int

const (
	// ErrDimensionMismatch means an input buffer size disagrees with the
	// declared raster dimensions.
	ErrDimensionMismatch ErrKind = iota + 1
	// ErrNoDrainageOutlet means conditioning found no valid boundary cell
	// to drain through.
	ErrNoDrainageOutlet
	// ErrRoutingCycle means flow accumulation observed a cycle in the D8
	// graph, which indicates corrupted input data.
	ErrRoutingCycle
	// ErrInvalidState means an API method was called out of order.
	ErrInvalidState
	// ErrIO is raised only at adapter boundaries, never by the engine
	// itself.
	ErrIO
)

func (k ErrKind) String() string {
	switch k {
	case ErrDimensionMismatch:
		return "DimensionMismatch"
	case ErrNoDrainageOutlet:
		return "NoDrainageOutlet"
	case ErrRoutingCycle:
		return "RoutingCycleDetected"
	case ErrInvalidState:
		return "InvalidState"
	case ErrIO:
		return "IoFailure"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// Error is the error type returned by the engine. Stage names the pipeline
// stage that failed.
type Error struct {
	Kind  ErrKind
	Stage string
	msg   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("watermodel: %s: %s: %s", e.Stage, e.Kind, e.msg)
}

func newError(kind ErrKind, stage, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Stage: stage, msg: fmt.Sprintf(format, args...)}
}

// Kind returns the ErrKind of err, or zero if err was not produced by the
// engine.
func Kind(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
