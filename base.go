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

// Package geodata implements an in-memory data model for gridded and
// point climate data: coordinate axes, labeled N-dimensional variables
// with masked-array semantics, and datasets that group both, together
// with map-projected grid definitions, NetCDF persistence and
// regridding between grids.
package geodata

import (
	"fmt"
	"math"
	"strconv"

	"github.com/ctessum/sparse"
	"github.com/gonum/floats"
)

// DefaultFillValue is the fill value used for masked cells when no
// explicit fill value has been specified.
const DefaultFillValue = 1.0e20

// PlotAtts holds display hints for a variable. They have no influence
// on computations.
type PlotAtts struct {
	Name  string
	Units string
	Title string
}

// An Axis is a named 1-D coordinate dimension. Axes are shared between
// the Variables of a Dataset: two variables that span the same
// dimension must reference the same Axis object.
//
// An Axis may carry an explicit coordinate vector, or only a length
// (set before the coordinate data is available). If a coordinate
// vector is present, the length always equals its number of elements.
type Axis struct {
	Name  string
	Units string
	Atts  map[string]string

	coord  []float64
	length int
}

// NewAxis creates an axis with the given length and no coordinate
// vector. A length of zero means "not yet known".
func NewAxis(name, units string, length int) *Axis {
	return &Axis{Name: name, Units: units, Atts: make(map[string]string), length: length}
}

// NewCoordAxis creates an axis from an explicit coordinate vector.
func NewCoordAxis(name, units string, coord []float64) *Axis {
	a := NewAxis(name, units, 0)
	a.UpdateCoord(coord)
	return a
}

// NewSpanAxis creates an axis whose coordinate vector is n points
// linearly spaced from start to stop, inclusive.
func NewSpanAxis(name, units string, start, stop float64, n int) *Axis {
	a := NewAxis(name, units, 0)
	a.UpdateCoordSpan(start, stop, n)
	return a
}

// Len returns the length of the dimension.
func (a *Axis) Len() int { return a.length }

// HasCoord reports whether a coordinate vector is attached.
func (a *Axis) HasCoord() bool { return a.coord != nil }

// Coord returns the coordinate vector, or nil if none is attached.
// The returned slice is owned by the axis.
func (a *Axis) Coord() []float64 { return a.coord }

// Axes returns the dimensions of the axis: an axis is its own sole
// dimension.
func (a *Axis) Axes() []*Axis { return []*Axis{a} }

// UpdateCoord attaches a coordinate vector and updates the axis length
// to match. A nil coord unloads the axis.
func (a *Axis) UpdateCoord(coord []float64) {
	if coord == nil {
		a.Unload()
		return
	}
	a.coord = coord
	a.length = len(coord)
}

// UpdateCoordSpan attaches a linearly spaced coordinate vector with n
// points between start and stop, inclusive.
func (a *Axis) UpdateCoordSpan(start, stop float64, n int) {
	a.UpdateCoord(floats.Span(make([]float64, n), start, stop))
}

// UpdateLength sets the axis length. If a coordinate vector is
// present, a conflicting length is an error.
func (a *Axis) UpdateLength(length int) error {
	if a.HasCoord() {
		if length != len(a.coord) {
			return axisErrorf(a.Name,
				"coordinate vector is incompatible with given length: %d != %d",
				len(a.coord), length)
		}
		return nil
	}
	a.length = length
	return nil
}

// Unload removes the coordinate vector but keeps the axis length.
func (a *Axis) Unload() {
	a.coord = nil
}

// coordsEqual reports whether two axes have interchangeable
// coordinates: equal coordinate vectors, or, when neither axis carries
// one, equal lengths.
func coordsEqual(a, b *Axis) bool {
	if a.HasCoord() != b.HasCoord() {
		return false
	}
	if !a.HasCoord() {
		return a.length == b.length
	}
	return floats.Equal(a.coord, b.coord)
}

// A Variable is a named N-dimensional labeled array. It references one
// Axis per dimension; the axes are shared, not owned, since they may
// be reused across the variables of a Dataset.
//
// A variable may exist without a backing data array ("unloaded"); its
// shape is then derived from the axis lengths. Loading attaches a
// data array and back-propagates the array shape to the axes.
type Variable struct {
	Name  string
	Units string
	Atts  map[string]string
	Plot  PlotAtts

	axes []*Axis
	data *sparse.DenseArray

	mask      []bool
	masked    bool
	fillValue float64
	hasFill   bool
}

// NewVariable creates a variable over the given axes. data may be nil
// to create the variable unloaded. atts may be nil.
func NewVariable(name, units string, axes []*Axis, data *sparse.DenseArray, atts map[string]string) (*Variable, error) {
	if len(axes) == 0 {
		return nil, variableErrorf(name, "cannot initialize variable: no axes declared")
	}
	if atts == nil {
		atts = make(map[string]string)
	}
	v := &Variable{
		Name:  name,
		Units: units,
		Atts:  atts,
		Plot:  PlotAtts{Name: name, Units: units, Title: name},
		axes:  axes,
	}
	if s, ok := atts["_FillValue"]; ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			v.fillValue = f
			v.hasFill = true
		}
	}
	if data != nil {
		if err := v.Load(data); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Axes returns the axes of the variable, one per dimension, in order.
// The returned slice is owned by the variable.
func (v *Variable) Axes() []*Axis { return v.axes }

// NDim returns the number of dimensions.
func (v *Variable) NDim() int { return len(v.axes) }

// HasData reports whether a data array is currently attached.
func (v *Variable) HasData() bool { return v.data != nil }

// Masked reports whether the variable carries a mask.
func (v *Variable) Masked() bool { return v.masked }

// FillValue returns the current fill value for masked cells and
// whether one has been set.
func (v *Variable) FillValue() (float64, bool) { return v.fillValue, v.hasFill }

// Shape returns the length of each dimension, taken from the data
// array if loaded and from the axis lengths otherwise.
func (v *Variable) Shape() []int {
	if v.data != nil {
		return v.data.Shape
	}
	s := make([]int, len(v.axes))
	for i, ax := range v.axes {
		s[i] = ax.Len()
	}
	return s
}

// HasAxis reports whether the variable spans the named dimension.
func (v *Variable) HasAxis(name string) bool { return v.AxisIndex(name) >= 0 }

// AxisIndex returns the position of the named axis, or -1.
func (v *Variable) AxisIndex(name string) int {
	for i, ax := range v.axes {
		if ax.Name == name {
			return i
		}
	}
	return -1
}

// axisIndexOf matches by object identity first and falls back to the
// axis name.
func (v *Variable) axisIndexOf(ax *Axis) int {
	for i, a := range v.axes {
		if a == ax {
			return i
		}
	}
	return v.AxisIndex(ax.Name)
}

// Load attaches a data array to the variable. The array dimensionality
// must match the variable axes; the axis lengths are checked against,
// or updated from, the array shape. Loading clears any existing mask.
func (v *Variable) Load(data *sparse.DenseArray) error {
	if data == nil {
		return variableErrorf(v.Name, "a basic variable requires external data to load")
	}
	if len(data.Shape) != len(v.axes) {
		return variableErrorf(v.Name,
			"dimensions of data array (%d) and variable (%d) must be identical",
			len(data.Shape), len(v.axes))
	}
	for i, ax := range v.axes {
		if err := ax.UpdateLength(data.Shape[i]); err != nil {
			return err
		}
	}
	v.data = data
	v.mask = nil
	v.masked = false
	return nil
}

// LoadMasked attaches a data array together with a mask. mask must
// have one element per array element (true = masked). Pass NaN as
// fillValue to use the default.
func (v *Variable) LoadMasked(data *sparse.DenseArray, mask []bool, fillValue float64) error {
	if err := v.Load(data); err != nil {
		return err
	}
	if mask == nil {
		return nil
	}
	if len(mask) != len(data.Elements) {
		return variableErrorf(v.Name,
			"mask length %d does not match data length %d", len(mask), len(data.Elements))
	}
	v.mask = append([]bool(nil), mask...)
	v.masked = true
	if math.IsNaN(fillValue) {
		if !v.hasFill {
			v.fillValue = DefaultFillValue
			v.hasFill = true
		}
	} else {
		v.fillValue = fillValue
		v.hasFill = true
	}
	return nil
}

// Unload detaches the data array and mask. The shape and axis metadata
// are retained for later use.
func (v *Variable) Unload() {
	v.data = nil
	v.mask = nil
	v.masked = false
	v.hasFill = false
}

// EnsureLoaded fails unless a data array is attached. It is called at
// the entry of every operation that touches data, making the
// load/unload state part of the public contract.
func (v *Variable) EnsureLoaded() error {
	if v.data == nil {
		return variableErrorf(v.Name, "no associated data array; call Load first")
	}
	return nil
}

// ArrayOptions control Variable.GetArray. The zero value requests a
// plain unmasked copy of the whole array.
type ArrayOptions struct {
	// Start and End select a subset of the array with inclusive start
	// and exclusive end indices, as in sparse.DenseArray.Subset. Both
	// must be given, one index per dimension. Cannot be combined with
	// TargetAxes.
	Start, End []int
	// TargetAxes transposes and reshapes the result so that its
	// dimension order matches the given axes, inserting singleton
	// dimensions for target axes the variable does not span. Every
	// axis of the variable must appear in TargetAxes.
	TargetAxes []*Axis
	// Broadcast tiles singleton dimensions out to the full length of
	// each target axis. Requires TargetAxes, and every target axis
	// must have a defined length.
	Broadcast bool
	// KeepMask leaves masked cells untouched instead of filling them.
	KeepMask bool
	// FillValue overrides the variable fill value when unmasking.
	FillValue *float64
	// NoCopy returns a view of the backing array when no other
	// transformation applies.
	NoCopy bool
}

// GetArray returns the data array, optionally subset, unmasked,
// reordered to target axes, and broadcast.
func (v *Variable) GetArray(o *ArrayOptions) (*sparse.DenseArray, error) {
	if err := v.EnsureLoaded(); err != nil {
		return nil, err
	}
	if o == nil {
		o = &ArrayOptions{}
	}
	if o.NoCopy && o.Start == nil && o.TargetAxes == nil && (o.KeepMask || !v.masked) {
		return v.data, nil
	}
	out := v.data.Copy()
	if v.masked && !o.KeepMask {
		fill := v.fillValue
		if o.FillValue != nil {
			fill = *o.FillValue
		}
		for i, m := range v.mask {
			if m {
				out.Elements[i] = fill
			}
		}
	}
	if o.Start != nil || o.End != nil {
		if o.TargetAxes != nil {
			return nil, variableErrorf(v.Name, "subsetting cannot be combined with axis alignment")
		}
		if len(o.Start) != len(out.Shape) || len(o.End) != len(out.Shape) {
			return nil, variableErrorf(v.Name,
				"subsetting needs one start and one end index per dimension")
		}
		return out.Subset(o.Start, o.End), nil
	}
	if o.TargetAxes != nil {
		var err error
		out, err = v.alignTo(out, o.TargetAxes)
		if err != nil {
			return nil, err
		}
		if o.Broadcast {
			out, err = broadcastTo(out, o.TargetAxes)
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// alignTo reorders the dimensions of data to match the order of the
// target axes and inserts singleton dimensions for target axes the
// variable does not span.
func (v *Variable) alignTo(data *sparse.DenseArray, targets []*Axis) (*sparse.DenseArray, error) {
	for _, ax := range v.axes {
		if !axisIn(ax, targets) {
			return nil, axisErrorf(ax.Name,
				"cannot broadcast variable %q to target axes: dimension missing", v.Name)
		}
	}
	// Dimension order of the variable axes within the target list.
	order := make([]int, 0, len(v.axes))
	for _, tax := range targets {
		if i := v.axisIndexOf(tax); i >= 0 {
			order = append(order, i)
		}
	}
	data = transposeDense(data, order)
	// Expand with singleton dimensions for missing target axes.
	shape := make([]int, len(targets))
	z := 0
	for i, tax := range targets {
		if v.axisIndexOf(tax) >= 0 {
			shape[i] = data.Shape[z]
			z++
		} else {
			shape[i] = 1
		}
	}
	return reshapeDense(data, shape), nil
}

// broadcastTo tiles singleton dimensions of data out to the full
// length of each target axis.
func broadcastTo(data *sparse.DenseArray, targets []*Axis) (*sparse.DenseArray, error) {
	full := make([]int, len(targets))
	for i, tax := range targets {
		if tax.Len() <= 0 {
			return nil, axisErrorf(tax.Name, "all axes need a defined length to broadcast")
		}
		full[i] = tax.Len()
		if data.Shape[i] != 1 && data.Shape[i] != full[i] {
			return nil, axisErrorf(tax.Name,
				"dimension length %d does not match axis length %d", data.Shape[i], full[i])
		}
	}
	out := sparse.ZerosDense(full...)
	for i := range out.Elements {
		idx := out.IndexNd(i)
		src := make([]int, len(idx))
		for j := range idx {
			if data.Shape[j] == 1 {
				src[j] = 0
			} else {
				src[j] = idx[j]
			}
		}
		out.Elements[i] = data.Get(src...)
	}
	return out, nil
}

// transposeDense permutes the dimensions of d according to order,
// where order[i] gives the source dimension of output dimension i.
func transposeDense(d *sparse.DenseArray, order []int) *sparse.DenseArray {
	if isIdentityOrder(order) {
		return d
	}
	shape := make([]int, len(order))
	for i, o := range order {
		shape[i] = d.Shape[o]
	}
	out := sparse.ZerosDense(shape...)
	src := make([]int, len(order))
	for i := range out.Elements {
		idx := out.IndexNd(i)
		for j, o := range order {
			src[o] = idx[j]
		}
		out.Elements[i] = d.Get(src...)
	}
	return out
}

// reshapeDense returns an array with the same elements and a new
// shape. The total number of elements must be unchanged.
func reshapeDense(d *sparse.DenseArray, shape []int) *sparse.DenseArray {
	out := sparse.ZerosDense(shape...)
	copy(out.Elements, d.Elements)
	return out
}

func isIdentityOrder(order []int) bool {
	for i, o := range order {
		if i != o {
			return false
		}
	}
	return true
}

func axisIn(ax *Axis, axes []*Axis) bool {
	for _, a := range axes {
		if a == ax || a.Name == ax.Name {
			return true
		}
	}
	return false
}

// Mask masks the cells of the variable where the corresponding element
// of mask is nonzero. The trailing dimensions of the variable must
// exactly match the shape of mask; the mask is broadcast leftward over
// the leading dimensions. If merge is true and the variable is
// already masked, the new mask is OR-ed with the existing one.
// fillValue may be nil to keep (or default) the current fill value.
func (v *Variable) Mask(mask *sparse.DenseArray, fillValue *float64, merge bool) error {
	if mask == nil {
		return nil
	}
	if err := v.EnsureLoaded(); err != nil {
		return err
	}
	nd, md := len(v.data.Shape), len(mask.Shape)
	if md > nd {
		return variableErrorf(v.Name,
			"data array needs at least as many dimensions as the mask (%d < %d)", nd, md)
	}
	if !shapeEqual(v.data.Shape[nd-md:], mask.Shape) {
		return variableErrorf(v.Name,
			"trailing data shape %v and mask shape %v have to be identical",
			v.data.Shape[nd-md:], mask.Shape)
	}
	bm := make([]bool, len(v.data.Elements))
	msize := len(mask.Elements)
	for i := range bm {
		bm[i] = mask.Elements[i%msize] != 0
	}
	if merge && v.masked {
		for i := range bm {
			bm[i] = bm[i] || v.mask[i]
		}
	}
	v.mask = bm
	v.masked = true
	if fillValue != nil {
		v.fillValue = *fillValue
		v.hasFill = true
	} else if !v.hasFill {
		v.fillValue = DefaultFillValue
		v.hasFill = true
	}
	return nil
}

// MaskVariable masks this variable using another variable as the mask:
// cells where the mask variable is greater than zero become masked.
// The mask variable is aligned to this variable's axes and broadcast
// to its full shape first.
func (v *Variable) MaskVariable(mv *Variable, fillValue *float64, merge bool) error {
	arr, err := mv.GetArray(&ArrayOptions{TargetAxes: v.axes, Broadcast: true})
	if err != nil {
		return err
	}
	bin := sparse.ZerosDense(arr.Shape...)
	for i, e := range arr.Elements {
		if e > 0 {
			bin.Elements[i] = 1
		}
	}
	return v.Mask(bin, fillValue, merge)
}

// Unmask removes an existing mask, filling the masked cells with
// fillValue (or the variable fill value if nil).
func (v *Variable) Unmask(fillValue *float64) {
	if !v.masked {
		return
	}
	fill := v.fillValue
	if fillValue != nil {
		fill = *fillValue
	}
	for i, m := range v.mask {
		if m {
			v.data.Elements[i] = fill
		}
	}
	v.mask = nil
	v.masked = false
	v.hasFill = false
}

// GetMask returns a copy of the mask, or an all-false mask if the
// variable is unmasked.
func (v *Variable) GetMask() []bool {
	if v.masked {
		return append([]bool(nil), v.mask...)
	}
	if v.data == nil {
		return nil
	}
	return make([]bool, len(v.data.Elements))
}

// In-place arithmetic. The array operand must match the variable shape
// exactly; all operations require the data to be loaded and mutate it
// in place.

// AddScalar adds s to every element.
func (v *Variable) AddScalar(s float64) error { return v.applyScalar(s, opAdd) }

// SubScalar subtracts s from every element.
func (v *Variable) SubScalar(s float64) error { return v.applyScalar(s, opSub) }

// MulScalar multiplies every element by s.
func (v *Variable) MulScalar(s float64) error { return v.applyScalar(s, opMul) }

// DivScalar divides every element by s.
func (v *Variable) DivScalar(s float64) error { return v.applyScalar(s, opDiv) }

// AddArray adds a, element by element.
func (v *Variable) AddArray(a *sparse.DenseArray) error { return v.applyArray(a, opAdd) }

// SubArray subtracts a, element by element.
func (v *Variable) SubArray(a *sparse.DenseArray) error { return v.applyArray(a, opSub) }

// MulArray multiplies by a, element by element.
func (v *Variable) MulArray(a *sparse.DenseArray) error { return v.applyArray(a, opMul) }

// DivArray divides by a, element by element.
func (v *Variable) DivArray(a *sparse.DenseArray) error { return v.applyArray(a, opDiv) }

type arithOp int

const (
	opAdd arithOp = iota
	opSub
	opMul
	opDiv
)

func apply(a, b float64, op arithOp) float64 {
	switch op {
	case opAdd:
		return a + b
	case opSub:
		return a - b
	case opMul:
		return a * b
	default:
		return a / b
	}
}

func (v *Variable) applyScalar(s float64, op arithOp) error {
	if err := v.EnsureLoaded(); err != nil {
		return err
	}
	for i := range v.data.Elements {
		v.data.Elements[i] = apply(v.data.Elements[i], s, op)
	}
	return nil
}

func (v *Variable) applyArray(a *sparse.DenseArray, op arithOp) error {
	if err := v.EnsureLoaded(); err != nil {
		return err
	}
	if a == nil || !shapeEqual(a.Shape, v.data.Shape) {
		return variableErrorf(v.Name, "arrays need to have the same shape")
	}
	for i := range v.data.Elements {
		v.data.Elements[i] = apply(v.data.Elements[i], a.Elements[i], op)
	}
	return nil
}

// Binary arithmetic. Both operands must be loaded variables of
// identical shape with pairwise identical axis coordinates; Add and
// Sub additionally require identical units. The result is a new
// variable that reuses the left operand's axes; its attributes are
// the attributes on which both operands agree.

// Add returns the element-wise sum of v and other.
func (v *Variable) Add(other *Variable) (*Variable, error) {
	if err := checkBinary(v, other, true); err != nil {
		return nil, err
	}
	return binaryResult(v, other, opAdd,
		fmt.Sprintf("%s + %s", v.Name, other.Name), v.Units)
}

// Sub returns the element-wise difference of v and other.
func (v *Variable) Sub(other *Variable) (*Variable, error) {
	if err := checkBinary(v, other, true); err != nil {
		return nil, err
	}
	return binaryResult(v, other, opSub,
		fmt.Sprintf("%s - %s", v.Name, other.Name), v.Units)
}

// Mul returns the element-wise product of v and other.
func (v *Variable) Mul(other *Variable) (*Variable, error) {
	if err := checkBinary(v, other, false); err != nil {
		return nil, err
	}
	return binaryResult(v, other, opMul,
		fmt.Sprintf("%s x %s", v.Name, other.Name),
		fmt.Sprintf("%s %s", v.Units, other.Units))
}

// Div returns the element-wise quotient of v and other.
func (v *Variable) Div(other *Variable) (*Variable, error) {
	if err := checkBinary(v, other, false); err != nil {
		return nil, err
	}
	return binaryResult(v, other, opDiv,
		fmt.Sprintf("%s / %s", v.Name, other.Name),
		fmt.Sprintf("%s / (%s)", v.Units, other.Units))
}

func checkBinary(a, b *Variable, sameUnits bool) error {
	if b == nil {
		return variableErrorf(a.Name, "can only operate on two variable instances")
	}
	if sameUnits && a.Units != b.Units {
		return variableErrorf(a.Name,
			"variable units have to be identical: %q != %q", a.Units, b.Units)
	}
	if err := a.EnsureLoaded(); err != nil {
		return err
	}
	if err := b.EnsureLoaded(); err != nil {
		return err
	}
	if !shapeEqual(a.data.Shape, b.data.Shape) {
		return variableErrorf(a.Name,
			"variables need to have the same shape: %v != %v", a.data.Shape, b.data.Shape)
	}
	for i := range a.axes {
		if !coordsEqual(a.axes[i], b.axes[i]) {
			return axisErrorf(a.axes[i].Name,
				"variables need to have identical coordinate arrays")
		}
	}
	return nil
}

func binaryResult(a, b *Variable, op arithOp, name, units string) (*Variable, error) {
	data := sparse.ZerosDense(a.data.Shape...)
	for i := range data.Elements {
		data.Elements[i] = apply(a.data.Elements[i], b.data.Elements[i], op)
	}
	// Keep only the attributes both operands agree on.
	atts := make(map[string]string)
	for k, av := range a.Atts {
		if bv, ok := b.Atts[k]; ok && av == bv {
			atts[k] = av
		}
	}
	atts["name"] = name
	atts["units"] = units
	out, err := NewVariable(name, units, a.axes, data, atts)
	if err != nil {
		return nil, err
	}
	if a.masked || b.masked {
		am, bm := a.GetMask(), b.GetMask()
		mask := make([]bool, len(am))
		for i := range mask {
			mask[i] = am[i] || bm[i]
		}
		out.mask = mask
		out.masked = true
		out.fillValue = a.fillValue
		out.hasFill = a.hasFill
		if !out.hasFill {
			out.fillValue = DefaultFillValue
			out.hasFill = true
		}
	}
	return out, nil
}

func shapeEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
