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
	"math"

	"github.com/ctessum/sparse"
)

// Regrid interpolates a 2-D field bilinearly from one grid to
// another. data must have shape (from.NY, from.NX); the result has
// shape (to.NY, to.NX). Target cells whose centers fall outside the
// source grid are set to NaN.
//
// The grids may use different projections: each target cell center is
// transformed into the source projection before interpolation.
func Regrid(data *sparse.DenseArray, from, to *GridDefinition) (*sparse.DenseArray, error) {
	if len(data.Shape) != 2 || data.Shape[0] != from.NY || data.Shape[1] != from.NX {
		return nil, fmt.Errorf("geodata: data shape %v does not match grid %s (%d, %d)",
			data.Shape, from.Name, from.NY, from.NX)
	}
	fromSR, err := from.SR()
	if err != nil {
		return nil, err
	}
	toSR, err := to.SR()
	if err != nil {
		return nil, err
	}
	ct, err := toSR.NewTransform(fromSR)
	if err != nil {
		return nil, err
	}
	tx, ty := to.CellCenters()
	out := sparse.ZerosDense(to.NY, to.NX)
	for j := 0; j < to.NY; j++ {
		for i := 0; i < to.NX; i++ {
			sx, sy, err := ct(tx[i], ty[j])
			if err != nil {
				return nil, err
			}
			out.Set(bilinear(data, from, sx, sy), j, i)
		}
	}
	return out, nil
}

// bilinear interpolates the source field at projected point (sx, sy),
// expressed in the source grid's projection. Points beyond the outer
// ring of cell centers yield NaN.
func bilinear(data *sparse.DenseArray, g *GridDefinition, sx, sy float64) float64 {
	// Fractional cell-center index.
	fi := (sx-g.GeoTransform[0])/g.GeoTransform[1] - 0.5
	fj := (sy-g.GeoTransform[3])/g.GeoTransform[5] - 0.5
	i0, j0 := int(math.Floor(fi)), int(math.Floor(fj))
	if i0 < 0 || j0 < 0 || i0+1 >= g.NX || j0+1 >= g.NY {
		return math.NaN()
	}
	wx, wy := fi-float64(i0), fj-float64(j0)
	v00 := data.Get(j0, i0)
	v01 := data.Get(j0, i0+1)
	v10 := data.Get(j0+1, i0)
	v11 := data.Get(j0+1, i0+1)
	return v00*(1-wx)*(1-wy) + v01*wx*(1-wy) + v10*(1-wx)*wy + v11*wx*wy
}

// RegridVariable interpolates a variable from one grid to another.
// The trailing two axes of v must be ("y", "x") matching the source
// grid; leading axes (time, level) are carried over unchanged and
// each trailing 2-D slab is regridded separately. Masked cells of the
// source are treated as NaN; NaN results become masked in the output.
func RegridVariable(v *Variable, from, to *GridDefinition) (*Variable, error) {
	xAxis, yAxis := to.XYAxes()
	return RegridVariableOnto(v, from, to, yAxis, xAxis)
}

// RegridVariableOnto is RegridVariable with explicit target axes, so
// that several regridded variables can share the same axis objects
// within one dataset.
func RegridVariableOnto(v *Variable, from, to *GridDefinition, yAxis, xAxis *Axis) (*Variable, error) {
	nd := v.NDim()
	if nd < 2 {
		return nil, variableErrorf(v.Name, "regridding requires at least two dimensions")
	}
	nan := math.NaN()
	src, err := v.GetArray(&ArrayOptions{FillValue: &nan})
	if err != nil {
		return nil, err
	}
	if src.Shape[nd-2] != from.NY || src.Shape[nd-1] != from.NX {
		return nil, variableErrorf(v.Name,
			"trailing shape %v does not match source grid (%d, %d)",
			src.Shape[nd-2:], from.NY, from.NX)
	}

	outShape := append(append([]int{}, src.Shape[:nd-2]...), to.NY, to.NX)
	out := sparse.ZerosDense(outShape...)
	nslab := 1
	for _, s := range src.Shape[:nd-2] {
		nslab *= s
	}
	srcSlab := from.NY * from.NX
	outSlab := to.NY * to.NX
	for s := 0; s < nslab; s++ {
		slab := sparse.ZerosDense(from.NY, from.NX)
		copy(slab.Elements, src.Elements[s*srcSlab:(s+1)*srcSlab])
		r, err := Regrid(slab, from, to)
		if err != nil {
			return nil, err
		}
		copy(out.Elements[s*outSlab:(s+1)*outSlab], r.Elements)
	}

	axes := append(append([]*Axis{}, v.Axes()[:nd-2]...), yAxis, xAxis)
	atts := make(map[string]string, len(v.Atts))
	for k, a := range v.Atts {
		atts[k] = a
	}
	nv, err := NewVariable(v.Name, v.Units, axes, nil, atts)
	if err != nil {
		return nil, err
	}
	mask := make([]bool, len(out.Elements))
	masked := false
	for i, e := range out.Elements {
		if math.IsNaN(e) {
			mask[i] = true
			masked = true
		}
	}
	if masked {
		fill := DefaultFillValue
		if f, ok := v.FillValue(); ok {
			fill = f
		}
		if err := nv.LoadMasked(out, mask, fill); err != nil {
			return nil, err
		}
	} else if err := nv.Load(out); err != nil {
		return nil, err
	}
	return nv, nil
}

// Climatology collapses a monthly time series into a 12-month
// climatology by averaging each calendar month over all years. The
// leading axis of v must be the time axis, with the first record
// being a January; masked or NaN records are left out of the average.
// Months with no valid records are masked in the result.
func Climatology(v *Variable) (*Variable, error) {
	return ClimatologyOnto(v, NewSpanAxis("time", "month", 1, 12, 12))
}

// ClimatologyOnto is Climatology with an explicit 12-month output
// axis, shared between the variables of a dataset.
func ClimatologyOnto(v *Variable, timeAxis *Axis) (*Variable, error) {
	if err := v.EnsureLoaded(); err != nil {
		return nil, err
	}
	nan := math.NaN()
	src, err := v.GetArray(&ArrayOptions{FillValue: &nan})
	if err != nil {
		return nil, err
	}
	nt := src.Shape[0]
	slab := 1
	for _, s := range src.Shape[1:] {
		slab *= s
	}
	outShape := append([]int{12}, src.Shape[1:]...)
	out := sparse.ZerosDense(outShape...)
	count := make([]int, len(out.Elements))
	for t := 0; t < nt; t++ {
		m := t % 12
		for i := 0; i < slab; i++ {
			e := src.Elements[t*slab+i]
			if math.IsNaN(e) {
				continue
			}
			out.Elements[m*slab+i] += e
			count[m*slab+i]++
		}
	}
	mask := make([]bool, len(out.Elements))
	masked := false
	for i := range out.Elements {
		if count[i] == 0 {
			mask[i] = true
			masked = true
			continue
		}
		out.Elements[i] /= float64(count[i])
	}

	if timeAxis.Len() != 12 {
		return nil, axisErrorf(timeAxis.Name, "climatology axis needs 12 months, has %d", timeAxis.Len())
	}
	axes := append([]*Axis{timeAxis}, v.Axes()[1:]...)
	nv, err := NewVariable(v.Name, v.Units, axes, nil, copyAtts(v.Atts))
	if err != nil {
		return nil, err
	}
	if masked {
		fill := DefaultFillValue
		if f, ok := v.FillValue(); ok {
			fill = f
		}
		if err := nv.LoadMasked(out, mask, fill); err != nil {
			return nil, err
		}
	} else if err := nv.Load(out); err != nil {
		return nil, err
	}
	return nv, nil
}

func copyAtts(atts map[string]string) map[string]string {
	out := make(map[string]string, len(atts))
	for k, v := range atts {
		out[k] = v
	}
	return out
}
