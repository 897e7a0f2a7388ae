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

package geodata

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ctessum/geom/proj"
)

// A GridDefinition describes a regular model grid in a Lambert
// Conformal Conic projection: the projection parameters, the affine
// geotransform of the grid, and its size.
//
// The geotransform follows the GDAL convention
// (x0, dx, 0, y0, 0, dy): x0 and y0 are the coordinates of the outer
// corner of the first cell, and dx and dy are the cell sizes, so the
// center of cell (i, j) lies at (x0+(i+0.5)*dx, y0+(j+0.5)*dy).
type GridDefinition struct {
	Name string

	// Lambert Conformal Conic parameters, in degrees.
	TrueLat1 float64
	TrueLat2 float64
	CenLat   float64
	StandLon float64

	GeoTransform [6]float64
	NX, NY       int

	sr *proj.SR
}

// Proj4 returns the PROJ.4 specification of the grid projection.
func (g *GridDefinition) Proj4() string {
	return fmt.Sprintf("+proj=lcc +lat_1=%f +lat_2=%f +lat_0=%f +lon_0=%f "+
		"+x_0=0 +y_0=0 +a=6370997.000000 +b=6370997.000000 +to_meter=1",
		g.TrueLat1, g.TrueLat2, g.CenLat, g.StandLon)
}

// SR returns the spatial reference of the grid. It is built on first
// use and cached.
func (g *GridDefinition) SR() (*proj.SR, error) {
	if g.sr == nil {
		sr, err := proj.Parse(g.Proj4())
		if err != nil {
			return nil, fmt.Errorf("geodata: grid %s: %v", g.Name, err)
		}
		g.sr = sr
	}
	return g.sr, nil
}

// Dx and Dy return the cell sizes.
func (g *GridDefinition) Dx() float64 { return g.GeoTransform[1] }
func (g *GridDefinition) Dy() float64 { return g.GeoTransform[5] }

// CellCenters returns the projected coordinates of the cell centers
// along the x and y axes.
func (g *GridDefinition) CellCenters() (x, y []float64) {
	x = make([]float64, g.NX)
	for i := range x {
		x[i] = g.GeoTransform[0] + (float64(i)+0.5)*g.GeoTransform[1]
	}
	y = make([]float64, g.NY)
	for j := range y {
		y[j] = g.GeoTransform[3] + (float64(j)+0.5)*g.GeoTransform[5]
	}
	return x, y
}

// XYAxes returns a pair of coordinate axes ("x", "y") for the cell
// centers of the grid, in projected meters.
func (g *GridDefinition) XYAxes() (*Axis, *Axis) {
	x, y := g.CellCenters()
	return NewCoordAxis("x", "m", x), NewCoordAxis("y", "m", y)
}

// CellIndex returns the grid cell containing the projected point
// (px, py) and whether the point lies inside the grid.
func (g *GridDefinition) CellIndex(px, py float64) (i, j int, ok bool) {
	i = int((px - g.GeoTransform[0]) / g.GeoTransform[1])
	j = int((py - g.GeoTransform[3]) / g.GeoTransform[5])
	if px < g.GeoTransform[0] || py < g.GeoTransform[3] || i >= g.NX || j >= g.NY {
		return i, j, false
	}
	return i, j, true
}

// Write stores the grid definition in binary form.
func (g *GridDefinition) Write(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(g); err != nil {
		return fmt.Errorf("geodata: writing grid %s: %v", g.Name, err)
	}
	return nil
}

// ReadGridDefinition reads a grid definition written by Write.
func ReadGridDefinition(r io.Reader) (*GridDefinition, error) {
	g := new(GridDefinition)
	if err := gob.NewDecoder(r).Decode(g); err != nil {
		return nil, fmt.Errorf("geodata: reading grid definition: %v", err)
	}
	return g, nil
}

// SaveGridDefinition stores g in dir under a file named after the
// grid, creating the directory if needed.
func SaveGridDefinition(g *GridDefinition, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("geodata: saving grid %s: %v", g.Name, err)
	}
	f, err := os.Create(gridDefPath(dir, g.Name))
	if err != nil {
		return fmt.Errorf("geodata: saving grid %s: %v", g.Name, err)
	}
	defer f.Close()
	return g.Write(f)
}

// LoadGridDefinition loads a previously saved grid definition by name.
func LoadGridDefinition(dir, name string) (*GridDefinition, error) {
	f, err := os.Open(gridDefPath(dir, name))
	if err != nil {
		return nil, fmt.Errorf("geodata: loading grid %s: %v", name, err)
	}
	defer f.Close()
	return ReadGridDefinition(f)
}

func gridDefPath(dir, name string) string {
	return filepath.Join(dir, name+"_griddef.bin")
}
