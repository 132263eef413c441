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
	"reflect"
	"testing"

	"github.com/jesperfjellin/watermodel"
)

func TestEngineConfigDefaults(t *testing.T) {
	cfg := InitializeConfig()
	got, err := EngineConfig(cfg.Viper)
	if err != nil {
		t.Fatal(err)
	}
	want := watermodel.DefaultConfig()
	if !reflect.DeepEqual(*got, want) {
		t.Errorf("default engine config = %+v, want %+v", *got, want)
	}
}

func TestEngineConfigValidation(t *testing.T) {
	cases := []struct {
		key string
		val interface{}
	}{
		{"TargetCellSize", -1.0},
		{"Epsilon", -0.5},
		{"MeshMaxDimension", 1},
		{"SpawnInterval", 0},
	}
	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			cfg := InitializeConfig()
			cfg.Set(c.key, c.val)
			if _, err := EngineConfig(cfg.Viper); err == nil {
				t.Errorf("%s = %v should be rejected", c.key, c.val)
			}
		})
	}
}

func TestCheckConditioningMethod(t *testing.T) {
	for _, m := range []string{"fill", "breach", "combined"} {
		if _, err := checkConditioningMethod(m); err != nil {
			t.Errorf("method %q should be accepted by configuration: %v", m, err)
		}
	}
	if _, err := checkConditioningMethod("carve"); err == nil {
		t.Error("unknown method should be rejected")
	}
}
