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
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// RasterData is a decoded elevation raster, ready for the engine: a dense
// array of elevations (shape [height][width], nodata as NaN), the pixel
// spacing, and the geographic bounds from the source metadata.
type RasterData struct {
	Elevations *sparse.DenseArray
	CellSize   float64
	Bounds     *geom.Bounds
}

var registerDrivers sync.Once

// ReadGeoTIFF decodes band 1 of the GeoTIFF at path. Cells equal to the
// band's declared nodata value are replaced with NaN, the sentinel the
// engine treats as invalid. If the file carries no usable geotransform the
// cell size defaults to one meter and the bounds are nil.
func ReadGeoTIFF(path string) (*RasterData, error) {
	registerDrivers.Do(func() { godal.RegisterAll() })

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hydroutil: opening raster %s: %w", path, err)
	}
	defer ds.Close()

	structure := ds.Structure()
	width, height := structure.SizeX, structure.SizeY
	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("hydroutil: raster %s has no bands", path)
	}
	band := bands[0]

	buf := make([]float64, width*height)
	if err := band.Read(0, 0, buf, width, height); err != nil {
		return nil, fmt.Errorf("hydroutil: reading raster %s: %w", path, err)
	}
	if nodata, ok := band.NoData(); ok {
		for i, v := range buf {
			if v == nodata {
				buf[i] = math.NaN()
			}
		}
	}
	arr := sparse.ZerosDense(height, width)
	copy(arr.Elements, buf)

	rd := &RasterData{Elevations: arr, CellSize: 1}
	if gt, err := ds.GeoTransform(); err == nil && gt[1] != 0 {
		rd.CellSize = math.Abs(gt[1])
		west, north := gt[0], gt[3]
		rd.Bounds = &geom.Bounds{
			Min: geom.Point{X: west, Y: north - float64(height)*rd.CellSize},
			Max: geom.Point{X: west + float64(width)*rd.CellSize, Y: north},
		}
	}
	return rd, nil
}
