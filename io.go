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
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// WriteDataset writes a dataset to a NetCDF (classic format) file.
// Each axis becomes a dimension; axes with coordinate vectors also
// become coordinate variables of the same name. Masked variables are
// written with their masked cells filled and a _FillValue attribute,
// so a round trip through ReadDataset restores the mask. Data is
// stored as float32.
func WriteDataset(w *os.File, ds *Dataset) error {
	axisNames := ds.AxisNames()
	sort.Strings(axisNames)
	lengths := make([]int, len(axisNames))
	for i, n := range axisNames {
		ax := ds.Axis(n)
		if ax.Len() <= 0 {
			return axisErrorf(n, "axis needs a defined length to be written")
		}
		lengths[i] = ax.Len()
	}
	h := cdf.NewHeader(axisNames, lengths)
	h.AddAttribute("", "name", ds.Name)
	for _, k := range sortedKeys(ds.Atts) {
		h.AddAttribute("", k, ds.Atts[k])
	}

	for _, n := range axisNames {
		ax := ds.Axis(n)
		if !ax.HasCoord() {
			continue
		}
		h.AddVariable(n, []string{n}, []float32{0})
		h.AddAttribute(n, "units", ax.Units)
	}

	varNames := ds.VariableNames()
	sort.Strings(varNames)
	for _, n := range varNames {
		v := ds.Variable(n)
		if err := v.EnsureLoaded(); err != nil {
			return err
		}
		dims := make([]string, len(v.Axes()))
		for i, ax := range v.Axes() {
			dims[i] = ax.Name
		}
		h.AddVariable(n, dims, []float32{0})
		h.AddAttribute(n, "units", v.Units)
		for _, k := range sortedKeys(v.Atts) {
			if k == "units" || k == "_FillValue" {
				continue
			}
			h.AddAttribute(n, k, v.Atts[k])
		}
		if v.Masked() {
			fill, _ := v.FillValue()
			h.AddAttribute(n, "_FillValue", []float32{float32(fill)})
		}
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("geodata: writing dataset %s: %v", ds.Name, err)
	}
	for _, n := range axisNames {
		ax := ds.Axis(n)
		if !ax.HasCoord() {
			continue
		}
		coord := sparse.ZerosDense(ax.Len())
		copy(coord.Elements, ax.Coord())
		if err := writeNCFVar(f, n, coord); err != nil {
			return fmt.Errorf("geodata: writing axis %s: %v", n, err)
		}
	}
	for _, n := range varNames {
		arr, err := ds.Variable(n).GetArray(nil)
		if err != nil {
			return err
		}
		if err := writeNCFVar(f, n, arr); err != nil {
			return fmt.Errorf("geodata: writing variable %s: %v", n, err)
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return fmt.Errorf("geodata: writing dataset %s: %v", ds.Name, err)
	}
	return nil
}

func writeNCFVar(f *cdf.File, name string, data *sparse.DenseArray) error {
	n := 1
	for _, s := range data.Shape {
		n *= s
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	if _, err := w.Write(data32); err != nil {
		return err
	}
	return nil
}

// ReadDataset reads a dataset written by WriteDataset. Dimensions
// become axes, coordinate variables attach coordinate vectors to
// their axes, and a _FillValue attribute restores the variable mask.
func ReadDataset(rw cdf.ReaderWriterAt, name string) (*Dataset, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("geodata: reading dataset %s: %v", name, err)
	}
	h := f.Header
	if n, ok := h.GetAttribute("", "name").(string); ok && n != "" {
		name = n
	}

	atts := make(map[string]string)
	for _, a := range h.Attributes("") {
		if a == "name" {
			continue
		}
		if s, ok := h.GetAttribute("", a).(string); ok {
			atts[a] = s
		}
	}
	ds, err := NewDataset(name, nil, atts)
	if err != nil {
		return nil, err
	}

	dims := h.Dimensions("")
	lens := h.Lengths("")
	axes := make(map[string]*Axis, len(dims))
	isCoordVar := func(v string) bool {
		d := h.Dimensions(v)
		return len(d) == 1 && d[0] == v
	}
	for i, d := range dims {
		axes[d] = NewAxis(d, "", lens[i])
	}
	for _, v := range h.Variables() {
		if !isCoordVar(v) {
			continue
		}
		ax := axes[v]
		if u, ok := h.GetAttribute(v, "units").(string); ok {
			ax.Units = u
		}
		coord, err := readNCFVar(f, v)
		if err != nil {
			return nil, fmt.Errorf("geodata: reading axis %s: %v", v, err)
		}
		ax.UpdateCoord(coord.Elements)
	}

	for _, vn := range h.Variables() {
		if isCoordVar(vn) {
			continue
		}
		vdims := h.Dimensions(vn)
		vaxes := make([]*Axis, len(vdims))
		for i, d := range vdims {
			vaxes[i] = axes[d]
		}
		data, err := readNCFVar(f, vn)
		if err != nil {
			return nil, fmt.Errorf("geodata: reading variable %s: %v", vn, err)
		}
		units := ""
		vatts := make(map[string]string)
		for _, a := range h.Attributes(vn) {
			if av, ok := h.GetAttribute(vn, a).(string); ok {
				if a == "units" {
					units = av
				} else {
					vatts[a] = av
				}
			}
		}
		v, err := NewVariable(vn, units, vaxes, nil, vatts)
		if err != nil {
			return nil, err
		}
		if fa, ok := h.GetAttribute(vn, "_FillValue").([]float32); ok && len(fa) > 0 {
			fill := float64(fa[0])
			mask := make([]bool, len(data.Elements))
			// The file holds float32, so compare at that precision.
			for i, e := range data.Elements {
				mask[i] = float32(e) == fa[0]
			}
			if err := v.LoadMasked(data, mask, fill); err != nil {
				return nil, err
			}
		} else if err := v.Load(data); err != nil {
			return nil, err
		}
		if err := ds.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func readNCFVar(f *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	data := sparse.ZerosDense(dims...)
	tmp := make([]float32, len(data.Elements))
	r := f.Reader(name, nil, nil)
	if _, err := r.Read(tmp); err != nil {
		return nil, err
	}
	for i, e := range tmp {
		data.Elements[i] = float64(e)
	}
	return data, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
