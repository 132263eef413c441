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

package hydroutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jesperfjellin/watermodel"
)

// testBundle runs the pipeline over a small synthetic catchment.
func testBundle(t *testing.T) *watermodel.Bundle {
	t.Helper()
	elev := make([]float32, 100)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			elev[y*10+x] = float32(20 - x)
		}
	}
	e := watermodel.New(watermodel.DefaultConfig())
	if err := e.LoadDEM(10, 10, 100, elev); err != nil {
		t.Fatal(err)
	}
	if err := e.Condition(watermodel.MethodFill, 0, 0); err != nil {
		t.Fatal(err)
	}
	if err := e.ComputeFlow(); err != nil {
		t.Fatal(err)
	}
	b, err := e.Bundle("synthetic", nil, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestWriteBundle(t *testing.T) {
	dir := t.TempDir()
	b := testBundle(t)
	if err := writeBundle(dir, b, false); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "synthetic.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded watermodel.Bundle
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != "synthetic" {
		t.Errorf("decoded id = %q", decoded.ID)
	}
	if decoded.Metadata.Width != 10 || decoded.Metadata.Height != 10 {
		t.Errorf("decoded dimensions %d×%d, want 10×10",
			decoded.Metadata.Width, decoded.Metadata.Height)
	}
	if len(decoded.Flow.FlowAccumulation) != 100 {
		t.Errorf("decoded accumulation has %d cells, want 100",
			len(decoded.Flow.FlowAccumulation))
	}

	raw, err = os.ReadFile(filepath.Join(dir, "synthetic_streams.geojson"))
	if err != nil {
		t.Fatal(err)
	}
	var fc jsonFeatureCollection
	if err := json.Unmarshal(raw, &fc); err != nil {
		t.Fatal(err)
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("geojson type = %q", fc.Type)
	}
	nLines := len(b.Streams.Detailed) + len(b.Streams.Medium) + len(b.Streams.Major)
	if len(fc.Features) != nLines {
		t.Errorf("geojson has %d features, want %d", len(fc.Features), nLines)
	}
}

func TestWriteIndex(t *testing.T) {
	dir := t.TempDir()
	index := map[string]watermodel.IndexEntry{
		"a": {Width: 10, Height: 20, Resolution: 100},
		"b": {Width: 5, Height: 5, Resolution: 50},
	}
	if err := writeIndex(dir, index); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]watermodel.IndexEntry
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 || decoded["a"].Height != 20 || decoded["b"].Resolution != 50 {
		t.Errorf("decoded index = %v", decoded)
	}
}

func TestFailureStage(t *testing.T) {
	e := watermodel.New(watermodel.DefaultConfig())
	err := e.ComputeFlow()
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := failureStage(err); got != "route" {
		t.Errorf("failureStage = %q, want route", got)
	}
	if got := failureStage(os.ErrNotExist); got != "read" {
		t.Errorf("failureStage of a foreign error = %q, want read", got)
	}
}
