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

// A Dataset is a container for variables that share axes. It keeps two
// registries, one for variables and one for axes; adding a variable
// automatically registers its axes. Membership is by object identity:
// two same-named objects that are not the same object are a conflict,
// never silently merged.
type Dataset struct {
	Name string
	Atts map[string]string

	variables map[string]*Variable
	axes      map[string]*Axis
}

// NewDataset creates a dataset and adds the given variables (which may
// be nil). atts may be nil.
func NewDataset(name string, variables []*Variable, atts map[string]string) (*Dataset, error) {
	if atts == nil {
		atts = make(map[string]string)
	}
	ds := &Dataset{
		Name:      name,
		Atts:      atts,
		variables: make(map[string]*Variable),
		axes:      make(map[string]*Axis),
	}
	for _, v := range variables {
		if err := ds.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Len returns the number of variables in the dataset.
func (ds *Dataset) Len() int { return len(ds.variables) }

// Variable returns the named variable, or nil.
func (ds *Dataset) Variable(name string) *Variable { return ds.variables[name] }

// Axis returns the named axis, or nil.
func (ds *Dataset) Axis(name string) *Axis { return ds.axes[name] }

// VariableNames returns the names of all variables, in map order.
func (ds *Dataset) VariableNames() []string {
	names := make([]string, 0, len(ds.variables))
	for n := range ds.variables {
		names = append(names, n)
	}
	return names
}

// AxisNames returns the names of all axes, in map order.
func (ds *Dataset) AxisNames() []string {
	names := make([]string, 0, len(ds.axes))
	for n := range ds.axes {
		names = append(names, n)
	}
	return names
}

// HasVariable reports whether a variable of that name is registered.
func (ds *Dataset) HasVariable(name string) bool {
	_, ok := ds.variables[name]
	return ok
}

// HasAxis reports whether an axis of that name is registered.
func (ds *Dataset) HasAxis(name string) bool {
	_, ok := ds.axes[name]
	return ok
}

// ContainsVariable reports whether v itself is part of the dataset. A
// different variable registered under the same name is an error, not
// mere absence.
func (ds *Dataset) ContainsVariable(v *Variable) (bool, error) {
	got, ok := ds.variables[v.Name]
	if !ok {
		return false, nil
	}
	if got != v {
		return false, datasetErrorf(ds.Name,
			"variable %q does not match the one registered under that name", v.Name)
	}
	return true, nil
}

// ContainsAxis reports whether ax itself is part of the dataset, with
// the same identity rule as ContainsVariable.
func (ds *Dataset) ContainsAxis(ax *Axis) (bool, error) {
	got, ok := ds.axes[ax.Name]
	if !ok {
		return false, nil
	}
	if got != ax {
		return false, datasetErrorf(ds.Name,
			"axis %q does not match the one registered under that name", ax.Name)
	}
	return true, nil
}

// AddAxis registers an axis. Registering a different axis under an
// existing name, or an axis whose name collides with a variable, is an
// error; re-adding the same object is a no-op.
func (ds *Dataset) AddAxis(ax *Axis) error {
	if got, ok := ds.axes[ax.Name]; ok {
		if got == ax {
			return nil
		}
		return datasetErrorf(ds.Name, "axis %q already present", ax.Name)
	}
	if ds.HasVariable(ax.Name) {
		return datasetErrorf(ds.Name, "axis name %q collides with a variable", ax.Name)
	}
	ds.axes[ax.Name] = ax
	return nil
}

// AddVariable registers a variable and all of its axes. A same-named
// variable already present, or a name collision with an axis, is an
// error.
func (ds *Dataset) AddVariable(v *Variable) error {
	if got, ok := ds.variables[v.Name]; ok {
		if got == v {
			return nil
		}
		return datasetErrorf(ds.Name, "variable %q already present", v.Name)
	}
	if ds.HasAxis(v.Name) {
		return datasetErrorf(ds.Name, "variable name %q collides with an axis", v.Name)
	}
	for _, ax := range v.Axes() {
		if err := ds.AddAxis(ax); err != nil {
			return err
		}
	}
	ds.variables[v.Name] = v
	return nil
}

// RemoveVariable removes the named variable. Its axes stay registered,
// since other variables may reference them.
func (ds *Dataset) RemoveVariable(name string) error {
	if !ds.HasVariable(name) {
		return datasetErrorf(ds.Name, "variable %q not found", name)
	}
	delete(ds.variables, name)
	return nil
}

// RemoveAxis removes the named axis. Removal is refused while any
// variable still references the axis.
func (ds *Dataset) RemoveAxis(name string) error {
	if !ds.HasAxis(name) {
		return datasetErrorf(ds.Name, "axis %q not found", name)
	}
	for _, v := range ds.variables {
		if v.HasAxis(name) {
			return datasetErrorf(ds.Name,
				"axis %q is still referenced by variable %q", name, v.Name)
		}
	}
	delete(ds.axes, name)
	return nil
}

// LoadAll checks that every variable has its data attached. Variables
// hold no external data source, so an unloaded variable cannot be
// reloaded here and is reported as an error instead.
func (ds *Dataset) LoadAll() error {
	for _, v := range ds.variables {
		if err := v.EnsureLoaded(); err != nil {
			return err
		}
	}
	return nil
}

// UnloadAll detaches the data arrays of all variables and the
// coordinate vectors of all axes.
func (ds *Dataset) UnloadAll() {
	for _, v := range ds.variables {
		v.Unload()
	}
	for _, ax := range ds.axes {
		ax.Unload()
	}
}

// MaskAll applies MaskVariable(mv) to every loaded variable that spans
// all of the mask variable's axes. Variables the mask cannot be
// aligned to are skipped.
func (ds *Dataset) MaskAll(mv *Variable, fillValue *float64, merge bool) error {
	for _, v := range ds.variables {
		if v == mv || !v.HasData() {
			continue
		}
		ok := true
		for _, max := range mv.Axes() {
			if v.axisIndexOf(max) < 0 {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if err := v.MaskVariable(mv, fillValue, merge); err != nil {
			return err
		}
	}
	return nil
}

// UnmaskAll removes the masks of all variables, filling masked cells
// with fillValue (or each variable's own fill value if nil).
func (ds *Dataset) UnmaskAll(fillValue *float64) {
	for _, v := range ds.variables {
		v.Unmask(fillValue)
	}
}
