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

package geodatautil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/spf13/cobra"

	"github.com/spatialclim/geodata"
	"github.com/spatialclim/geodata/station"
)

var configFile string

// Root is the main command.
var Root = &cobra.Command{
	Use:   "geodata",
	Short: "A toolkit for gridded and station climate data.",
	Long: `geodata converts climate station records and model output into
NetCDF datasets on common grids. Use the subcommands specified below to
access the functionality; all subcommands read their settings from a
TOML configuration file given with --config.`,
	DisableAutoGenTag: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("geodata v%s\n", geodata.Version)
	},
	DisableAutoGenTag: true,
}

// gridsCmd infers the grids of a set of nested WRF domains and stores
// their definitions for later use.
var gridsCmd = &cobra.Command{
	Use:   "grids",
	Short: "Infer WRF domain grids",
	Long: `grids reads the constants files of the configured WRF domains,
infers a grid definition for each requested domain and stores the
definitions in the grid directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ReadConfig(configFile)
		if err != nil {
			return err
		}
		grids, err := InferWRFGrids(&cfg.WRF)
		if err != nil {
			return err
		}
		for _, g := range grids {
			if err := geodata.SaveGridDefinition(g, cfg.GridDir); err != nil {
				return err
			}
			fmt.Printf("saved grid %s (%d x %d)\n", g.Name, g.NX, g.NY)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// stationsCmd converts station records into a NetCDF dataset.
var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Convert station records to a NetCDF dataset",
	Long: `stations parses the configured station roster and record files,
assembles the daily series of every variable into a dataset and writes
it to the output directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ReadConfig(configFile)
		if err != nil {
			return err
		}
		path, err := ProcessStations(&cfg.Stations, cfg.OutputDir)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
	DisableAutoGenTag: true,
}

var (
	regridFrom string
	regridTo   string
	regridClim bool
)

// regridCmd regrids dataset files onto a stored grid.
var regridCmd = &cobra.Command{
	Use:   "regrid [dataset files]",
	Short: "Regrid datasets onto a stored grid",
	Long: `regrid interpolates the variables of the given NetCDF datasets
from the source grid onto the target grid (both previously stored by
the grids command) and writes one output dataset per input into the
output directory. Outputs that are newer than their input are not
recomputed. With --clim, a monthly climatology is computed after
regridding.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := ReadConfig(configFile)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return fmt.Errorf("geodata: no dataset files given")
		}
		return RegridFiles(cfg, regridFrom, regridTo, regridClim, args)
	},
	DisableAutoGenTag: true,
}

func init() {
	Root.PersistentFlags().StringVar(&configFile, "config", "geodata.toml",
		"path to the TOML configuration file")
	regridCmd.Flags().StringVar(&regridFrom, "from", "", "name of the source grid")
	regridCmd.Flags().StringVar(&regridTo, "to", "", "name of the target grid")
	regridCmd.Flags().BoolVar(&regridClim, "clim", false,
		"compute a monthly climatology after regridding")
	Root.AddCommand(versionCmd, gridsCmd, stationsCmd, regridCmd)
}

// InferWRFGrids reads the constants file of every domain up to the
// largest requested one and infers the requested grid definitions.
func InferWRFGrids(cfg *WRFConfig) ([]*geodata.GridDefinition, error) {
	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("geodata: no WRF domains configured")
	}
	maxdom := cfg.Domains[len(cfg.Domains)-1]
	metas := make([]geodata.DomainMeta, 0, maxdom)
	for n := 1; n <= maxdom; n++ {
		path := filepath.Join(cfg.Folder, fmt.Sprintf(cfg.Pattern, n))
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("geodata: domain %d: %v", n, err)
		}
		cf, err := cdf.Open(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("geodata: reading %s: %v", path, err)
		}
		m, err := geodata.ReadDomainMeta(cf)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("geodata: reading %s: %v", path, err)
		}
		metas = append(metas, m)
	}
	return geodata.InferGrids(cfg.Name, metas, cfg.Domains)
}

// ProcessStations parses the configured station records and writes
// the assembled daily dataset to outputDir, returning the file path.
func ProcessStations(cfg *StationConfig, outputDir string) (string, error) {
	vars, err := cfg.Variables()
	if err != nil {
		return "", err
	}
	recs, err := station.NewRecords(cfg.Folder, cfg.File, vars, cfg.Constraints)
	if err != nil {
		return "", err
	}
	ds, err := recs.PrepareDataset()
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := recs.LoadDaily(ds, name); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("ec%s_daily.nc", cfg.DataType))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := geodata.WriteDataset(f, ds); err != nil {
		return "", err
	}
	return path, nil
}

// RegridFiles regrids each input dataset from one stored grid onto
// another on a worker pool, skipping outputs that are already up to
// date.
func RegridFiles(cfg *Config, fromName, toName string, clim bool, files []string) error {
	from, err := geodata.LoadGridDefinition(cfg.GridDir, fromName)
	if err != nil {
		return err
	}
	to, err := geodata.LoadGridDefinition(cfg.GridDir, toName)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return err
	}
	jobs := make([]*Job, 0, len(files))
	for _, file := range files {
		file := file
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		sink := filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.nc", base, to.Name))
		jobs = append(jobs, &Job{
			Name:    fmt.Sprintf("regrid %s onto %s", base, to.Name),
			Sink:    sink,
			Sources: []string{file},
			Run: func() error {
				return regridFile(file, sink, from, to, clim)
			},
		})
	}
	return RunJobs(jobs, cfg.Jobs)
}

func regridFile(file, sink string, from, to *geodata.GridDefinition, clim bool) error {
	in, err := os.Open(file)
	if err != nil {
		return err
	}
	defer in.Close()
	ds, err := geodata.ReadDataset(in, "")
	if err != nil {
		return err
	}

	out, err := geodata.NewDataset(ds.Name, nil, ds.Atts)
	if err != nil {
		return err
	}
	// All output variables share the same target and climatology axes.
	xAxis, yAxis := to.XYAxes()
	climAxis := geodata.NewSpanAxis("time", "month", 1, 12, 12)
	names := ds.VariableNames()
	sort.Strings(names)
	for _, name := range names {
		v := ds.Variable(name)
		if v.NDim() < 2 {
			continue // metadata variable, not a gridded field
		}
		rv, err := geodata.RegridVariableOnto(v, from, to, yAxis, xAxis)
		if err != nil {
			return err
		}
		// Constant fields (elevation, land mask) have no time axis to
		// average over.
		if clim && rv.NDim() > 2 {
			if rv, err = geodata.ClimatologyOnto(rv, climAxis); err != nil {
				return err
			}
		}
		if err := out.AddVariable(rv); err != nil {
			return err
		}
	}
	if out.Len() == 0 {
		return fmt.Errorf("geodata: %s holds no gridded variables", file)
	}
	f, err := os.Create(sink)
	if err != nil {
		return err
	}
	defer f.Close()
	return geodata.WriteDataset(f, out)
}
