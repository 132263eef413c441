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

// Package hydroutil holds the configuration and batch-running glue around
// the watermodel engine.
package hydroutil

import (
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jesperfjellin/watermodel"
)

// Cfg holds configuration information.
type Cfg struct {
	*viper.Viper

	Root, versionCmd, precomputeCmd *cobra.Command

	configFile string
}

// InitializeConfig builds the command tree and binds flags, environment
// variables and the optional configuration file to viper keys.
func InitializeConfig() *Cfg {

	cfg := &Cfg{
		Viper: viper.New(),
	}

	// Root is the main command.
	cfg.Root = &cobra.Command{
		Use:   "watermodel",
		Short: "A raster hydrology engine for catchment visualization.",
		Long: `WaterModel converts digital elevation models into hydrological data for
interactive 3D visualization: conditioned surfaces, D8 flow directions, flow
accumulation, stream networks, and water animation data.

Configuration can be changed with a configuration file (via the --config
flag), with command-line arguments, or by setting environment variables in
the format 'WATERMODEL_var' where 'var' is the name of the variable to be
set.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}
	cfg.Root.PersistentFlags().StringVar(&cfg.configFile, "config", "",
		"configuration file location")

	cfg.versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Long:  "version prints the version number of this version of WaterModel.",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("WaterModel v%s\n", watermodel.Version)
		},
		DisableAutoGenTag: true,
	}

	cfg.precomputeCmd = &cobra.Command{
		Use:   "precompute [input_dir] [output_dir]",
		Short: "Precompute hydrology bundles for a directory of GeoTIFFs.",
		Long: `precompute walks input_dir for .tif/.tiff digital elevation models, runs
the full hydrology pipeline on each, and writes one bundle per catchment
plus an index file to output_dir. A failing catchment is logged and skipped;
the command exits non-zero if any catchment failed.`,
		Args:              cobra.ExactArgs(2),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			engineCfg, err := EngineConfig(cfg.Viper)
			if err != nil {
				return err
			}
			method, err := checkConditioningMethod(cfg.GetString("ConditioningMethod"))
			if err != nil {
				return err
			}
			return Precompute(args[0], args[1], *engineCfg, method,
				cfg.GetBool("WriteShapefiles"))
		},
	}

	options := []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name:       "TargetCellSize",
			usage:      "Approximate effective spacing of the processing grid in meters. Finer input rasters are downsampled by block mean. Zero disables downsampling.",
			defaultVal: 100.0,
			flagsets:   []*pflag.FlagSet{cfg.precomputeCmd.Flags()},
		},
		{
			name:       "Epsilon",
			usage:      "Elevation increment used when filling sinks. Zero derives the increment from the elevation range.",
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{cfg.precomputeCmd.Flags()},
		},
		{
			name:       "ConditioningMethod",
			usage:      "Hydrological conditioning method: fill, breach, or combined. Only fill is currently implemented.",
			defaultVal: "fill",
			flagsets:   []*pflag.FlagSet{cfg.precomputeCmd.Flags()},
		},
		{
			name:       "MeshMaxDimension",
			usage:      "Limit on the larger dimension of the exported terrain mesh; larger rasters are sampled at a stride, and the mesh may exceed the limit by one vertex.",
			defaultVal: 2048,
			flagsets:   []*pflag.FlagSet{cfg.precomputeCmd.Flags()},
		},
		{
			name:       "SpawnInterval",
			usage:      "Approximate spacing, in cells, of particle spawn points along detailed stream polylines.",
			defaultVal: 20,
			flagsets:   []*pflag.FlagSet{cfg.precomputeCmd.Flags()},
		},
		{
			name:       "WriteShapefiles",
			usage:      "Also write each catchment's stream network as a shapefile.",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{cfg.precomputeCmd.Flags()},
		},
		{
			name:       "LogLevel",
			usage:      "Logging verbosity: debug, info, warn, or error.",
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{cfg.Root.PersistentFlags()},
		},
	}

	for _, option := range options {
		for _, set := range option.flagsets {
			switch v := option.defaultVal.(type) {
			case float64:
				set.Float64P(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			default:
				panic(fmt.Sprintf("invalid argument type: %T", option.defaultVal))
			}
			if err := cfg.BindPFlag(option.name, set.Lookup(option.name)); err != nil {
				panic(err)
			}
		}
		cfg.SetDefault(option.name, option.defaultVal)
	}

	cfg.Root.AddCommand(cfg.versionCmd, cfg.precomputeCmd)
	return cfg
}

// setConfig reads the configuration file (if given) and wires environment
// variable overrides and the log level.
func setConfig(cfg *Cfg) error {
	if cfg.configFile != "" {
		cfg.SetConfigFile(os.ExpandEnv(cfg.configFile))
		if err := cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("hydroutil: problem reading configuration file: %v", err)
		}
	}
	cfg.SetEnvPrefix("WATERMODEL")
	cfg.AutomaticEnv()

	level, err := logrus.ParseLevel(cfg.GetString("LogLevel"))
	if err != nil {
		return fmt.Errorf("hydroutil: invalid LogLevel: %v", err)
	}
	logrus.SetLevel(level)
	return nil
}
