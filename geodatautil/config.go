/*
Copyright © 2014 the GeoData authors.
This file is part of GeoData.

GeoData is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GeoData is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GeoData.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package geodatautil holds the configuration and command-line
// interface of the geodata tool.
package geodatautil

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/spatialclim/geodata/station"
)

// Config is the TOML configuration of the geodata command.
type Config struct {
	// GridDir is where inferred grid definitions are stored.
	GridDir string
	// OutputDir is where processed NetCDF datasets are written.
	OutputDir string
	// Jobs is the number of concurrent regrid jobs; zero or negative
	// means one job per CPU.
	Jobs int

	Stations StationConfig
	WRF      WRFConfig
}

// StationConfig describes a station data source.
type StationConfig struct {
	// Folder holds the station roster and the per-station record
	// subdirectories.
	Folder string
	// File is the roster file name; default "stations.txt".
	File string
	// DataType selects the variable set: "temp" or "precip".
	DataType string
	// Constraints restricts the stations to load, e.g.
	// prov = ["BC", "AB"].
	Constraints map[string][]string
}

// WRFConfig describes a set of nested WRF domains.
type WRFConfig struct {
	// Folder holds the per-domain constants files.
	Folder string
	// Name is the grid name; nested domains get a _dNN suffix.
	Name string
	// Pattern is the constants file name pattern with a %02d verb for
	// the domain number; default "wrfconst_d%02d.nc".
	Pattern string
	// Domains lists the 1-based domain numbers to infer grids for, in
	// ascending order.
	Domains []int
}

// ReadConfig reads and validates a TOML configuration file.
func ReadConfig(path string) (*Config, error) {
	cfg := &Config{
		Jobs:     -1,
		Stations: StationConfig{File: "stations.txt"},
		WRF:      WRFConfig{Pattern: "wrfconst_d%02d.nc"},
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("geodata: reading configuration file %s: %v", path, err)
	}
	return cfg, nil
}

// Variables returns the variable definitions for the configured
// station data type.
func (c *StationConfig) Variables() (map[string]*station.VarDef, error) {
	switch c.DataType {
	case "temp":
		return map[string]*station.VarDef{
			"T2":   station.TempDef("mean temperature", "dm"),
			"Tmin": station.TempDef("minimum temperature", "dn"),
			"Tmax": station.TempDef("maximum temperature", "dx"),
		}, nil
	case "precip":
		return map[string]*station.VarDef{
			"precip":  station.PrecipDef("precipitation", "dt"),
			"liqprec": station.PrecipDef("rainfall", "dr"),
			"solprec": station.PrecipDef("snowfall", "ds"),
		}, nil
	}
	return nil, fmt.Errorf("geodata: unknown station data type %q", c.DataType)
}
