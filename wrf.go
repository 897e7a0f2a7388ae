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
	"fmt"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/proj"
)

// DomainMeta holds the grid metadata of one WRF model domain, read
// from the global attributes of a WRF output or constants file.
type DomainMeta struct {
	GridID   int
	ParentID int
	MapProj  int

	TrueLat1 float64
	TrueLat2 float64
	CenLat   float64
	CenLon   float64
	StandLon float64

	DX, DY float64
	NX, NY int

	IParentStart float64
	JParentStart float64
}

// ReadDomainMeta reads the domain metadata from the header of a WRF
// NetCDF file. The horizontal grid size is taken from the unstaggered
// dimensions ("west_east"/"south_north", or "x"/"y").
func ReadDomainMeta(f *cdf.File) (DomainMeta, error) {
	var m DomainMeta
	var err error
	h := f.Header
	if m.GridID, err = attrInt(h, "GRID_ID"); err != nil {
		return m, err
	}
	if m.ParentID, err = attrInt(h, "PARENT_ID"); err != nil {
		return m, err
	}
	if m.MapProj, err = attrInt(h, "MAP_PROJ"); err != nil {
		return m, err
	}
	floatAttrs := []struct {
		name string
		dst  *float64
	}{
		{"TRUELAT1", &m.TrueLat1},
		{"TRUELAT2", &m.TrueLat2},
		{"CEN_LAT", &m.CenLat},
		{"CEN_LON", &m.CenLon},
		{"STAND_LON", &m.StandLon},
		{"DX", &m.DX},
		{"DY", &m.DY},
		{"I_PARENT_START", &m.IParentStart},
		{"J_PARENT_START", &m.JParentStart},
	}
	for _, a := range floatAttrs {
		if *a.dst, err = attrFloat(h, a.name); err != nil {
			return m, err
		}
	}
	if m.NX, m.NY, err = horizontalSize(h); err != nil {
		return m, err
	}
	return m, nil
}

// horizontalSize infers the unstaggered horizontal grid size from a
// file with unknown dimension naming conventions.
func horizontalSize(h *cdf.Header) (nx, ny int, err error) {
	dims := h.Dimensions("")
	lens := h.Lengths("")
	get := func(name string) (int, bool) {
		for i, d := range dims {
			if d == name {
				return lens[i], true
			}
		}
		return 0, false
	}
	if nx, ok := get("west_east"); ok {
		if ny, ok := get("south_north"); ok {
			return nx, ny, nil
		}
	}
	if nx, ok := get("x"); ok {
		if ny, ok := get("y"); ok {
			return nx, ny, nil
		}
	}
	return 0, 0, axisErrorf("west_east",
		"no horizontal dimensions found, necessary to infer the grid configuration")
}

func attrFloat(h *cdf.Header, name string) (float64, error) {
	switch a := h.GetAttribute("", name).(type) {
	case []float32:
		if len(a) > 0 {
			return float64(a[0]), nil
		}
	case []float64:
		if len(a) > 0 {
			return a[0], nil
		}
	case []int32:
		if len(a) > 0 {
			return float64(a[0]), nil
		}
	}
	return 0, fmt.Errorf("geodata: missing or non-numeric global attribute %s", name)
}

func attrInt(h *cdf.Header, name string) (int, error) {
	f, err := attrFloat(h, name)
	return int(f), err
}

// InferGrids derives grid definitions for the requested nested WRF
// domains. metas must hold the metadata of every domain from the root
// domain (grid ID 1) up to the largest requested one, ordered by grid
// ID; domains lists the 1-based IDs of the domains to return, in
// ascending order.
//
// All domains share the projection of the root domain. The root
// geotransform is anchored on the projected CEN_LON/CEN_LAT of the
// root domain; each nested domain is placed relative to its parent
// through I_PARENT_START/J_PARENT_START.
func InferGrids(name string, metas []DomainMeta, domains []int) ([]*GridDefinition, error) {
	if len(metas) == 0 || len(domains) == 0 {
		return nil, fmt.Errorf("geodata: no WRF domains given")
	}
	maxdom := domains[len(domains)-1]
	for i, d := range domains {
		if i > 0 && d <= domains[i-1] {
			return nil, fmt.Errorf("geodata: domains have to be sorted in ascending order")
		}
	}
	if len(metas) < maxdom {
		return nil, fmt.Errorf("geodata: metadata for %d domains given, need %d", len(metas), maxdom)
	}
	root := metas[0]
	if root.MapProj != 1 {
		return nil, fmt.Errorf(
			"geodata: can only infer projection parameters for Lambert Conformal Conic projection (map_proj=1), got %d",
			root.MapProj)
	}
	// Projected coordinates of the root domain center.
	lccSR, err := proj.Parse(fmt.Sprintf("+proj=lcc +lat_1=%f +lat_2=%f +lat_0=%f +lon_0=%f "+
		"+x_0=0 +y_0=0 +a=6370997.000000 +b=6370997.000000 +to_meter=1",
		root.TrueLat1, root.TrueLat2, root.CenLat, root.StandLon))
	if err != nil {
		return nil, fmt.Errorf("geodata: %v", err)
	}
	longlatSR, err := proj.Parse("+proj=longlat")
	if err != nil {
		return nil, fmt.Errorf("geodata: %v", err)
	}
	ct, err := longlatSR.NewTransform(lccSR)
	if err != nil {
		return nil, fmt.Errorf("geodata: %v", err)
	}
	cx, cy, err := ct(root.CenLon, root.CenLat)
	if err != nil {
		return nil, fmt.Errorf("geodata: projecting domain center: %v", err)
	}

	newGrid := func(m DomainMeta, gt [6]float64, n int) *GridDefinition {
		gname := name
		if n > 1 {
			gname = fmt.Sprintf("%s_d%02d", name, n)
		}
		return &GridDefinition{
			Name:         gname,
			TrueLat1:     root.TrueLat1,
			TrueLat2:     root.TrueLat2,
			CenLat:       root.CenLat,
			StandLon:     root.StandLon,
			GeoTransform: gt,
			NX:           m.NX,
			NY:           m.NY,
		}
	}

	// The root domain grid is centered on (cx, cy).
	gt := [6]float64{
		cx - float64(root.NX+1)*root.DX/2, root.DX, 0,
		cy - float64(root.NY+1)*root.DY/2, 0, root.DY,
	}
	geotransforms := [][6]float64{gt}
	var out []*GridDefinition
	if domains[0] == 1 {
		out = append(out, newGrid(root, gt, 1))
	}
	for n := 2; n <= maxdom; n++ {
		m := metas[n-1]
		if m.GridID != n {
			return nil, fmt.Errorf("geodata: domain %d metadata carries grid ID %d", n, m.GridID)
		}
		pid := m.ParentID - 1
		if pid < 0 || pid >= len(geotransforms) {
			return nil, fmt.Errorf("geodata: domain %d references unknown parent %d", n, m.ParentID)
		}
		p := geotransforms[pid]
		gt = [6]float64{
			p[0] + (m.IParentStart-0.5)*p[1] - 0.5*m.DX, m.DX, 0,
			p[3] + (m.JParentStart-0.5)*p[5] - 0.5*m.DY, 0, m.DY,
		}
		geotransforms = append(geotransforms, gt)
		for _, d := range domains {
			if d == n {
				out = append(out, newGrid(m, gt, n))
			}
		}
	}
	return out, nil
}
