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
	"reflect"
	"testing"

	"github.com/ctessum/sparse"
)

const testTolerance = 1.e-6

func different(a, b float64) bool {
	if a == 0 && b == 0 {
		return false
	}
	return math.Abs(a-b)/math.Abs(a+b)*2 > testTolerance
}

func TestAxisSpan(t *testing.T) {
	ax := NewSpanAxis("time", "month", 1, 12, 12)
	if ax.Len() != 12 {
		t.Fatalf("length: want 12, got %d", ax.Len())
	}
	c := ax.Coord()
	if different(c[0], 1) || different(c[11], 12) || different(c[1]-c[0], 1) {
		t.Errorf("coordinate vector: got %v", c)
	}
}

func TestAxisLengthConflict(t *testing.T) {
	ax := NewCoordAxis("x", "m", []float64{0, 1, 2})
	if err := ax.UpdateLength(3); err != nil {
		t.Errorf("compatible length rejected: %v", err)
	}
	if err := ax.UpdateLength(4); err == nil {
		t.Error("conflicting length accepted")
	} else if _, ok := err.(*AxisError); !ok {
		t.Errorf("want *AxisError, got %T", err)
	}
	ax.Unload()
	if ax.HasCoord() {
		t.Error("coordinate vector still attached after Unload")
	}
	if ax.Len() != 3 {
		t.Errorf("length lost on Unload: got %d", ax.Len())
	}
}

func TestVariableLoad(t *testing.T) {
	tAx := NewAxis("time", "month", 0)
	xAx := NewAxis("x", "m", 0)
	v, err := NewVariable("T2", "K", []*Axis{tAx, xAx}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.HasData() {
		t.Error("unloaded variable reports data")
	}
	if err := v.EnsureLoaded(); err == nil {
		t.Error("EnsureLoaded passed without data")
	}
	data := sparse.ZerosDense(2, 3)
	if err := v.Load(data); err != nil {
		t.Fatal(err)
	}
	// Loading back-propagates the shape to the axes.
	if tAx.Len() != 2 || xAx.Len() != 3 {
		t.Errorf("axis lengths: got (%d, %d)", tAx.Len(), xAx.Len())
	}
	if err := v.Load(sparse.ZerosDense(6)); err == nil {
		t.Error("dimension mismatch accepted")
	}
	// A coordinate-less axis follows the data: reloading with a new
	// length just updates it.
	if err := v.Load(sparse.ZerosDense(2, 4)); err != nil {
		t.Errorf("reload with new length: %v", err)
	}
	if xAx.Len() != 4 {
		t.Errorf("axis length not updated: got %d", xAx.Len())
	}
	// A coordinate vector pins the axis length.
	cAx := NewCoordAxis("y", "m", []float64{0, 1, 2})
	vc, err := NewVariable("T3", "K", []*Axis{tAx, cAx}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := vc.Load(sparse.ZerosDense(2, 4)); err == nil {
		t.Error("conflicting coordinate length accepted")
	}
}

func TestGetArraySubset(t *testing.T) {
	ax := NewAxis("x", "m", 0)
	data := sparse.ZerosDense(5)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	v, err := NewVariable("v", "", []*Axis{ax}, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	// The end index is exclusive.
	sub, err := v.GetArray(&ArrayOptions{Start: []int{1}, End: []int{3}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sub.Elements, []float64{1, 2}) {
		t.Errorf("subset: got %v", sub.Elements)
	}
	// The subset is detached from the variable data.
	sub.Elements[0] = 99
	if data.Elements[1] != 1 {
		t.Error("subset aliases the variable data")
	}
	// Both bounds are required, one index per dimension.
	if _, err := v.GetArray(&ArrayOptions{Start: []int{1}}); err == nil {
		t.Error("subset without end bound accepted")
	}
	if _, err := v.GetArray(&ArrayOptions{Start: []int{1, 0}, End: []int{3, 1}}); err == nil {
		t.Error("subset bounds with wrong rank accepted")
	}
}

func TestGetArrayAlign(t *testing.T) {
	tAx := NewSpanAxis("time", "month", 1, 2, 2)
	yAx := NewSpanAxis("y", "m", 0, 2, 3)
	xAx := NewSpanAxis("x", "m", 0, 3, 4)

	data := sparse.ZerosDense(4, 2)
	for i := range data.Elements {
		data.Elements[i] = float64(i)
	}
	v, err := NewVariable("v", "", []*Axis{xAx, tAx}, data, nil)
	if err != nil {
		t.Fatal(err)
	}

	// Transpose (x, time) -> (time, y, x) with a singleton y.
	aligned, err := v.GetArray(&ArrayOptions{TargetAxes: []*Axis{tAx, yAx, xAx}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(aligned.Shape, []int{2, 1, 4}) {
		t.Fatalf("aligned shape: got %v", aligned.Shape)
	}
	if aligned.Get(1, 0, 2) != data.Get(2, 1) {
		t.Errorf("transposed element mismatch: %g != %g",
			aligned.Get(1, 0, 2), data.Get(2, 1))
	}

	// Broadcasting tiles the singleton y out to its full length.
	full, err := v.GetArray(&ArrayOptions{TargetAxes: []*Axis{tAx, yAx, xAx}, Broadcast: true})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(full.Shape, []int{2, 3, 4}) {
		t.Fatalf("broadcast shape: got %v", full.Shape)
	}
	for j := 0; j < 3; j++ {
		if full.Get(1, j, 2) != data.Get(2, 1) {
			t.Errorf("tile (y=%d): %g != %g", j, full.Get(1, j, 2), data.Get(2, 1))
		}
	}

	// A variable axis missing from the targets cannot be aligned.
	if _, err := v.GetArray(&ArrayOptions{TargetAxes: []*Axis{tAx, yAx}}); err == nil {
		t.Error("alignment with missing axis accepted")
	}
}

func TestMaskBroadcast(t *testing.T) {
	tAx := NewAxis("time", "month", 0)
	xAx := NewAxis("x", "m", 0)
	data := sparse.ZerosDense(2, 3)
	for i := range data.Elements {
		data.Elements[i] = float64(i + 1)
	}
	v, err := NewVariable("v", "", []*Axis{tAx, xAx}, data, nil)
	if err != nil {
		t.Fatal(err)
	}

	// A 1-D mask over x applies to every time step.
	mask := sparse.ZerosDense(3)
	mask.Set(1, 1)
	if err := v.Mask(mask, nil, false); err != nil {
		t.Fatal(err)
	}
	if !v.Masked() {
		t.Fatal("variable not masked")
	}
	got := v.GetMask()
	want := []bool{false, true, false, false, true, false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mask: want %v, got %v", want, got)
	}

	// Merging ORs a second mask into the first.
	mask2 := sparse.ZerosDense(2, 3)
	mask2.Set(1, 0, 0)
	if err := v.Mask(mask2, nil, true); err != nil {
		t.Fatal(err)
	}
	want[0] = true
	if !reflect.DeepEqual(v.GetMask(), want) {
		t.Errorf("merged mask: want %v, got %v", want, v.GetMask())
	}

	// Unmasking fills the masked cells.
	fill := -1.0
	v.Unmask(&fill)
	if v.Masked() {
		t.Error("still masked after Unmask")
	}
	arr, err := v.GetArray(nil)
	if err != nil {
		t.Fatal(err)
	}
	wantEl := []float64{-1, -1, 3, 4, -1, 6}
	if !reflect.DeepEqual(arr.Elements, wantEl) {
		t.Errorf("filled elements: want %v, got %v", wantEl, arr.Elements)
	}
}

func TestMaskShapeErrors(t *testing.T) {
	ax := NewAxis("x", "m", 0)
	v, err := NewVariable("v", "", []*Axis{ax}, sparse.ZerosDense(3), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.Mask(sparse.ZerosDense(2, 3), nil, false); err == nil {
		t.Error("higher-dimensional mask accepted")
	}
	if err := v.Mask(sparse.ZerosDense(4), nil, false); err == nil {
		t.Error("mask with wrong trailing shape accepted")
	}
}

func TestScalarAndArrayOps(t *testing.T) {
	ax := NewAxis("x", "m", 0)
	data := sparse.ZerosDense(3)
	copy(data.Elements, []float64{1, 2, 3})
	v, err := NewVariable("v", "", []*Axis{ax}, data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := v.MulScalar(2); err != nil {
		t.Fatal(err)
	}
	if err := v.AddScalar(1); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(data.Elements, []float64{3, 5, 7}) {
		t.Errorf("scalar ops: got %v", data.Elements)
	}
	other := sparse.ZerosDense(3)
	copy(other.Elements, []float64{1, 1, 2})
	if err := v.SubArray(other); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(data.Elements, []float64{2, 4, 5}) {
		t.Errorf("array op: got %v", data.Elements)
	}
	if err := v.AddArray(sparse.ZerosDense(4)); err == nil {
		t.Error("shape mismatch accepted")
	}
}

func TestBinaryOps(t *testing.T) {
	ax := NewCoordAxis("x", "m", []float64{0, 1, 2})
	a1 := sparse.ZerosDense(3)
	copy(a1.Elements, []float64{1, 2, 3})
	a2 := sparse.ZerosDense(3)
	copy(a2.Elements, []float64{2, 2, 2})

	v1, err := NewVariable("A", "K", []*Axis{ax},
		a1, map[string]string{"source": "obs", "kind": "daily"})
	if err != nil {
		t.Fatal(err)
	}
	v2, err := NewVariable("B", "K", []*Axis{ax},
		a2, map[string]string{"source": "obs", "kind": "monthly"})
	if err != nil {
		t.Fatal(err)
	}

	sum, err := v1.Add(v2)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Name != "A + B" || sum.Units != "K" {
		t.Errorf("sum metadata: %q, %q", sum.Name, sum.Units)
	}
	arr, _ := sum.GetArray(nil)
	if !reflect.DeepEqual(arr.Elements, []float64{3, 4, 5}) {
		t.Errorf("sum: got %v", arr.Elements)
	}
	// Only attributes both operands agree on survive.
	if sum.Atts["source"] != "obs" {
		t.Errorf("agreeing attribute lost: %v", sum.Atts)
	}
	if _, ok := sum.Atts["kind"]; ok {
		t.Errorf("disagreeing attribute kept: %v", sum.Atts)
	}
	// The result reuses the left operand's axes.
	if sum.Axes()[0] != ax {
		t.Error("result does not share the operand axis")
	}

	quot, err := v1.Div(v2)
	if err != nil {
		t.Fatal(err)
	}
	if quot.Name != "A / B" || quot.Units != "K / (K)" {
		t.Errorf("quotient metadata: %q, %q", quot.Name, quot.Units)
	}
	prod, err := v1.Mul(v2)
	if err != nil {
		t.Fatal(err)
	}
	if prod.Name != "A x B" || prod.Units != "K K" {
		t.Errorf("product metadata: %q, %q", prod.Name, prod.Units)
	}

	v3, err := NewVariable("C", "mm", []*Axis{ax}, a2.Copy(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v1.Add(v3); err == nil {
		t.Error("unit mismatch accepted for addition")
	}
	if _, err := v1.Mul(v3); err != nil {
		t.Errorf("unit mismatch rejected for multiplication: %v", err)
	}

	// Different coordinates on a same-length axis are rejected.
	ax2 := NewCoordAxis("x", "m", []float64{0, 1, 3})
	v4, err := NewVariable("D", "K", []*Axis{ax2}, a2.Copy(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v1.Add(v4); err == nil {
		t.Error("coordinate mismatch accepted")
	}
}

func TestBinaryMaskUnion(t *testing.T) {
	ax := NewAxis("x", "m", 0)
	a1 := sparse.ZerosDense(3)
	a2 := sparse.ZerosDense(3)
	v1, err := NewVariable("A", "K", []*Axis{ax}, a1, nil)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := NewVariable("B", "K", []*Axis{ax}, a2, nil)
	if err != nil {
		t.Fatal(err)
	}
	m1 := sparse.ZerosDense(3)
	m1.Set(1, 0)
	if err := v1.Mask(m1, nil, false); err != nil {
		t.Fatal(err)
	}
	m2 := sparse.ZerosDense(3)
	m2.Set(1, 2)
	if err := v2.Mask(m2, nil, false); err != nil {
		t.Fatal(err)
	}
	sum, err := v1.Add(v2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sum.GetMask(), []bool{true, false, true}) {
		t.Errorf("mask union: got %v", sum.GetMask())
	}
}
