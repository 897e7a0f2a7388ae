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
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

func TestRegridIdentity(t *testing.T) {
	g := testGrid()
	data := sparse.ZerosDense(g.NY, g.NX)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	out, err := Regrid(data, g, g)
	if err != nil {
		t.Fatal(err)
	}
	// Interior cell centers coincide, so interior values are
	// reproduced; the outer ring may lack a complete interpolation
	// stencil and is not checked.
	for j := 1; j < g.NY-1; j++ {
		for i := 1; i < g.NX-1; i++ {
			got := out.Get(j, i)
			if math.IsNaN(got) || different(got, data.Get(j, i)) {
				t.Errorf("cell (%d, %d): want %g, got %g", j, i, data.Get(j, i), got)
			}
		}
	}
}

func TestRegridHalfResolution(t *testing.T) {
	from := testGrid()
	// Same extent and projection at half resolution: every target
	// center falls midway between four source centers.
	to := &GridDefinition{
		Name:     "coarse",
		TrueLat1: from.TrueLat1, TrueLat2: from.TrueLat2,
		CenLat: from.CenLat, StandLon: from.StandLon,
		GeoTransform: [6]float64{-15000, 6000, 0, -15000, 0, 6000},
		NX:           5, NY: 5,
	}
	data := sparse.ZerosDense(from.NY, from.NX)
	for j := 0; j < from.NY; j++ {
		for i := 0; i < from.NX; i++ {
			data.Set(float64(i), j, i) // linear in x
		}
	}
	out, err := Regrid(data, from, to)
	if err != nil {
		t.Fatal(err)
	}
	// Target center (1, 1) lies at x = -6000, between source columns
	// 2 and 3, so the bilinear value is 2.5.
	if different(out.Get(1, 1), 2.5) {
		t.Errorf("interpolated value: want 2.5, got %g", out.Get(1, 1))
	}
}

func TestRegridShapeMismatch(t *testing.T) {
	g := testGrid()
	if _, err := Regrid(sparse.ZerosDense(3, 3), g, g); err == nil {
		t.Error("wrong data shape accepted")
	}
}

func TestRegridVariable(t *testing.T) {
	from := testGrid()
	// A coarser grid that extends beyond the source on all sides, so
	// the outermost target cells cannot be interpolated.
	to := &GridDefinition{
		Name:     "coarse",
		TrueLat1: from.TrueLat1, TrueLat2: from.TrueLat2,
		CenLat: from.CenLat, StandLon: from.StandLon,
		GeoTransform: [6]float64{-21000, 6000, 0, -21000, 0, 6000},
		NX:           7, NY: 7,
	}
	tAx := NewSpanAxis("time", "month", 1, 2, 2)
	fx, fy := from.CellCenters()
	yAx := NewCoordAxis("y", "m", fy)
	xAx := NewCoordAxis("x", "m", fx)
	data := sparse.ZerosDense(2, from.NY, from.NX)
	for i := range data.Elements {
		data.Elements[i] = 1
	}
	v, err := NewVariable("T2", "K", []*Axis{tAx, yAx, xAx}, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := RegridVariable(v, from, to)
	if err != nil {
		t.Fatal(err)
	}
	if out.NDim() != 3 {
		t.Fatalf("dimensions: got %d", out.NDim())
	}
	shape := out.Shape()
	if shape[0] != 2 || shape[1] != to.NY || shape[2] != to.NX {
		t.Fatalf("shape: got %v", shape)
	}
	// The time axis is carried over unchanged.
	if out.Axes()[0] != tAx {
		t.Error("leading axis not shared with the input")
	}
	if !out.Masked() {
		t.Fatal("cells outside the source grid not masked")
	}
	arr, err := out.GetArray(&ArrayOptions{KeepMask: true})
	if err != nil {
		t.Fatal(err)
	}
	m := out.GetMask()
	for i := range arr.Elements {
		if m[i] {
			continue
		}
		if different(arr.Elements[i], 1) {
			t.Errorf("element %d: want 1, got %g", i, arr.Elements[i])
		}
	}
}

func TestClimatology(t *testing.T) {
	tAx := NewSpanAxis("time", "month", 1, 24, 24)
	xAx := NewAxis("x", "m", 0)
	data := sparse.ZerosDense(24, 2)
	for ti := 0; ti < 24; ti++ {
		m := ti % 12
		// Year 1 holds m, year 2 holds m+2: the mean is m+1.
		data.Set(float64(m+2*(ti/12)), ti, 0)
		data.Set(42, ti, 1)
	}
	v, err := NewVariable("T2", "K", []*Axis{tAx, xAx}, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	// Mask one January record: the average must then use year 2 only.
	mask := make([]bool, len(data.Elements))
	mask[0] = true
	if err := v.LoadMasked(data, mask, math.NaN()); err != nil {
		t.Fatal(err)
	}

	clim, err := Climatology(v)
	if err != nil {
		t.Fatal(err)
	}
	if clim.Shape()[0] != 12 {
		t.Fatalf("climatology length: got %d", clim.Shape()[0])
	}
	arr, err := clim.GetArray(&ArrayOptions{KeepMask: true})
	if err != nil {
		t.Fatal(err)
	}
	// January: only the year-2 record (value 2) survives.
	if different(arr.Get(0, 0), 2) {
		t.Errorf("January mean: want 2, got %g", arr.Get(0, 0))
	}
	for m := 1; m < 12; m++ {
		if different(arr.Get(m, 0), float64(m+1)) {
			t.Errorf("month %d mean: want %d, got %g", m, m+1, arr.Get(m, 0))
		}
		if different(arr.Get(m, 1), 42) {
			t.Errorf("month %d constant column: got %g", m, arr.Get(m, 1))
		}
	}
}
