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

	"github.com/lnashier/viper"

	"github.com/jesperfjellin/watermodel"
)

// EngineConfig extracts and validates the engine configuration from a viper
// configuration.
func EngineConfig(cfg *viper.Viper) (*watermodel.Config, error) {
	c := watermodel.DefaultConfig()

	c.TargetCellSize = cfg.GetFloat64("TargetCellSize")
	if c.TargetCellSize < 0 {
		return nil, fmt.Errorf("hydroutil: TargetCellSize must be zero or positive, got %g", c.TargetCellSize)
	}
	c.Epsilon = cfg.GetFloat64("Epsilon")
	if c.Epsilon < 0 {
		return nil, fmt.Errorf("hydroutil: Epsilon must be zero or positive, got %g", c.Epsilon)
	}
	c.MeshMaxDimension = cfg.GetInt("MeshMaxDimension")
	if c.MeshMaxDimension < 2 {
		return nil, fmt.Errorf("hydroutil: MeshMaxDimension must be at least 2, got %d", c.MeshMaxDimension)
	}
	c.SpawnInterval = cfg.GetInt("SpawnInterval")
	if c.SpawnInterval < 1 {
		return nil, fmt.Errorf("hydroutil: SpawnInterval must be at least 1, got %d", c.SpawnInterval)
	}
	return &c, nil
}

// checkConditioningMethod ensures that an acceptable conditioning method
// was specified. The engine itself rejects the reserved methods until they
// are implemented.
func checkConditioningMethod(m string) (watermodel.Method, error) {
	switch method := watermodel.Method(m); method {
	case watermodel.MethodFill, watermodel.MethodBreach, watermodel.MethodCombined:
		return method, nil
	default:
		return "", fmt.Errorf("hydroutil: the ConditioningMethod configuration variable "+
			"needs to be set to fill, breach, or combined, but is currently set to `%s`", m)
	}
}
