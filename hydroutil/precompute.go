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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/sirupsen/logrus"

	"github.com/jesperfjellin/watermodel"
)

// Precompute walks inputDir for GeoTIFF elevation models, runs the full
// hydrology pipeline on each, and writes one bundle per catchment plus an
// index file to outputDir. Catchment ids derive from the input file names,
// and files are processed in sorted name order so runs are reproducible.
// Failures are logged with the catchment id and failed stage and do not
// stop the batch; if any catchment failed, an error is returned after the
// remaining files have been processed.
func Precompute(inputDir, outputDir string, cfg watermodel.Config,
	method watermodel.Method, writeShapefiles bool) error {

	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return fmt.Errorf("hydroutil: reading input directory: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".tif", ".tiff":
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("hydroutil: creating output directory: %w", err)
	}

	index := make(map[string]watermodel.IndexEntry)
	failed := 0
	for _, name := range files {
		id := strings.TrimSuffix(name, filepath.Ext(name))
		log := logrus.WithField("catchment", id)

		b, err := processCatchment(filepath.Join(inputDir, name), id, cfg, method, log)
		if err != nil {
			failed++
			log.WithField("stage", failureStage(err)).WithError(err).Error("catchment failed")
			continue
		}
		if err := writeBundle(outputDir, b, writeShapefiles); err != nil {
			failed++
			log.WithField("stage", "write").WithError(err).Error("catchment failed")
			continue
		}
		index[id] = b.IndexEntry()
		log.WithFields(logrus.Fields{
			"width":   b.Metadata.Width,
			"height":  b.Metadata.Height,
			"outlets": len(b.Flow.Outlets),
		}).Info("catchment complete")
	}

	if err := writeIndex(outputDir, index); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("hydroutil: %d of %d catchments failed", failed, len(files))
	}
	return nil
}

// processCatchment runs the pipeline for a single input raster.
func processCatchment(path, id string, cfg watermodel.Config,
	method watermodel.Method, log *logrus.Entry) (*watermodel.Bundle, error) {

	rd, err := ReadGeoTIFF(path)
	if err != nil {
		return nil, err
	}

	engine := watermodel.New(cfg)
	status := make(chan watermodel.Status, 16)
	engine.Progress = status
	done := make(chan struct{})
	go func() {
		for s := range status {
			log.WithField("stage", s.Stage).Debug(s.Phase)
		}
		close(done)
	}()
	defer func() {
		close(status)
		<-done
	}()

	if err := engine.LoadDenseArray(rd.Elevations, rd.CellSize); err != nil {
		return nil, err
	}
	if err := engine.Condition(method, cfg.Epsilon, 0); err != nil {
		return nil, err
	}
	if err := engine.ComputeFlow(); err != nil {
		return nil, err
	}
	return engine.Bundle(id, rd.Bounds, time.Now())
}

// failureStage names the pipeline stage a catchment failed in, for the
// batch log.
func failureStage(err error) string {
	var e *watermodel.Error
	if errors.As(err, &e) {
		return e.Stage
	}
	return "read"
}

// writeBundle writes the catchment bundle and its stream network sidecars.
func writeBundle(outputDir string, b *watermodel.Bundle, writeShapefiles bool) error {
	f, err := os.Create(filepath.Join(outputDir, b.ID+".json"))
	if err != nil {
		return fmt.Errorf("hydroutil: creating bundle file: %w", err)
	}
	if err := json.NewEncoder(f).Encode(b); err != nil {
		f.Close()
		return fmt.Errorf("hydroutil: encoding bundle %s: %w", b.ID, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := writeStreamsGeoJSON(filepath.Join(outputDir, b.ID+"_streams.geojson"), b); err != nil {
		return err
	}
	if writeShapefiles {
		return writeStreamsShapefile(filepath.Join(outputDir, b.ID+"_streams.shp"), b)
	}
	return nil
}

type jsonFeature struct {
	Type       string                 `json:"type"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type jsonFeatureCollection struct {
	Type     string         `json:"type"`
	Features []*jsonFeature `json:"features"`
}

// writeStreamsGeoJSON writes the three stream hierarchy levels as a single
// GeoJSON feature collection in grid coordinates.
func writeStreamsGeoJSON(path string, b *watermodel.Bundle) error {
	fc := &jsonFeatureCollection{Type: "FeatureCollection"}
	for _, level := range []struct {
		label string
		lines [][][2]int32
	}{
		{"detailed", b.Streams.Detailed},
		{"medium", b.Streams.Medium},
		{"major", b.Streams.Major},
	} {
		for _, coords := range level.lines {
			g, err := geojson.ToGeoJSON(coordsToLineString(coords))
			if err != nil {
				return fmt.Errorf("hydroutil: encoding stream geometry: %w", err)
			}
			fc.Features = append(fc.Features, &jsonFeature{
				Type:     "Feature",
				Geometry: g,
				Properties: map[string]interface{}{
					"level":  level.label,
					"length": len(coords),
				},
			})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("hydroutil: creating stream file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(fc)
}

// streamShape is the shapefile record archetype for stream polylines.
type streamShape struct {
	LineString geom.LineString
	Level      string
	Length     int
}

// writeStreamsShapefile writes the stream networks as a polyline shapefile
// with level and length attributes.
func writeStreamsShapefile(path string, b *watermodel.Bundle) error {
	e, err := shp.NewEncoder(path, streamShape{})
	if err != nil {
		return fmt.Errorf("hydroutil: creating stream shapefile: %w", err)
	}
	defer e.Close()
	for _, level := range []struct {
		label string
		lines [][][2]int32
	}{
		{"detailed", b.Streams.Detailed},
		{"medium", b.Streams.Medium},
		{"major", b.Streams.Major},
	} {
		for _, coords := range level.lines {
			err := e.Encode(streamShape{
				LineString: coordsToLineString(coords),
				Level:      level.label,
				Length:     len(coords),
			})
			if err != nil {
				return fmt.Errorf("hydroutil: encoding stream shapefile record: %w", err)
			}
		}
	}
	return nil
}

func coordsToLineString(coords [][2]int32) geom.LineString {
	ls := make(geom.LineString, len(coords))
	for i, c := range coords {
		ls[i] = geom.Point{X: float64(c[0]), Y: float64(c[1])}
	}
	return ls
}

// writeIndex writes the companion index file mapping catchment ids to grid
// dimensions.
func writeIndex(outputDir string, index map[string]watermodel.IndexEntry) error {
	f, err := os.Create(filepath.Join(outputDir, "index.json"))
	if err != nil {
		return fmt.Errorf("hydroutil: creating index file: %w", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(index); err != nil {
		return fmt.Errorf("hydroutil: encoding index file: %w", err)
	}
	return nil
}
