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

package station

import (
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spatialclim/geodata"
)

func testVariables() map[string]*VarDef {
	return map[string]*VarDef{
		"T2": TempDef("mean temperature", "dt"),
	}
}

func TestNewRecords(t *testing.T) {
	r, err := NewRecords("testdata", "", testVariables(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 3 {
		t.Fatalf("stations: want 3, got %d", r.Len())
	}
	if r.DataType != "temp" {
		t.Errorf("data type: got %q", r.DataType)
	}
	ids := r.IDs()
	want := []string{"1001", "1002", "2001"}
	for i, id := range want {
		if ids[i] != id {
			t.Errorf("station %d: want %s, got %s", i, id, ids[i])
		}
	}
	names := r.Names()
	if names[0] != "TESTVILLE STATION" {
		t.Errorf("multi-word name: got %q", names[0])
	}
	st := r.Stations["T2"][1]
	if !st.Joined || st.Prov != "BC" || st.Alt != 512 {
		t.Errorf("station metadata: %+v", st)
	}
	// Record files name the variable descriptively, not by dataset key.
	if st.Variable != "mean temperature" {
		t.Errorf("record variable name: got %q", st.Variable)
	}
}

func TestRecordsConstraints(t *testing.T) {
	r, err := NewRecords("testdata", "",
		testVariables(), map[string][]string{"prov": {"ON"}})
	if err != nil {
		t.Fatal(err)
	}
	if r.Len() != 1 {
		t.Fatalf("constrained stations: want 1, got %d", r.Len())
	}
	if r.IDs()[0] != "2001" {
		t.Errorf("constrained station: got %s", r.IDs()[0])
	}
}

func TestRecordsMixedTypes(t *testing.T) {
	vars := testVariables()
	vars["precip"] = PrecipDef("total precipitation", "dr")
	if _, err := NewRecords("testdata", "", vars, nil); err == nil {
		t.Error("mixed data types accepted")
	}
}

func TestPrepareDataset(t *testing.T) {
	r, err := NewRecords("testdata", "", testVariables(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := r.PrepareDataset()
	if err != nil {
		t.Fatal(err)
	}
	st := ds.Axis("station")
	if st == nil || st.Len() != 3 {
		t.Fatal("station axis missing or wrong length")
	}
	if st.Coord()[0] != 1 || st.Coord()[2] != 3 {
		t.Errorf("station ordinals: got %v", st.Coord())
	}
	lat, err := ds.Variable("lat").GetArray(nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lat.Get(0)-49.25) > testTolerance {
		t.Errorf("lat[0]: want 49.25, got %g", lat.Get(0))
	}
	lon, err := ds.Variable("lon").GetArray(nil)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(lon.Get(2)-(-79.40)) > testTolerance {
		t.Errorf("lon[2]: want -79.40, got %g", lon.Get(2))
	}
	// Station 3 begins 1979-02: one month after the reference date.
	begin, err := ds.Variable("begin_date").GetArray(nil)
	if err != nil {
		t.Fatal(err)
	}
	if begin.Get(0) != 0 || begin.Get(2) != 1 {
		t.Errorf("begin dates: got %v", begin.Elements)
	}
	joined, err := ds.Variable("joined").GetArray(nil)
	if err != nil {
		t.Fatal(err)
	}
	if joined.Get(0) != 0 || joined.Get(1) != 1 {
		t.Errorf("joined flags: got %v", joined.Elements)
	}
	// Station names are carried as a fixed-width character array.
	nv := ds.Variable("station_name")
	if nv == nil {
		t.Fatal("station_name variable missing")
	}
	chars, err := nv.GetArray(nil)
	if err != nil {
		t.Fatal(err)
	}
	b := make([]byte, 0, chars.Shape[1])
	for j := 0; j < chars.Shape[1]; j++ {
		if c := chars.Get(0, j); c != 0 {
			b = append(b, byte(c))
		}
	}
	if string(b) != "TESTVILLE STATION" {
		t.Errorf("station name: got %q", string(b))
	}
}

func rosterHeader() []string {
	return []string{
		"EC Daily Temperature Stations",
		"(traduction)",
		"No StnId Prov From To Lat(deg) Long(deg) Elev(m) Joined Station name",
		"(traduction)",
	}
}

func writeRoster(t *testing.T, lines []string) string {
	t.Helper()
	dir, err := ioutil.TempDir("", "geodata_roster")
	if err != nil {
		t.Fatal(err)
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := ioutil.WriteFile(filepath.Join(dir, "stations.txt"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRosterRowCount(t *testing.T) {
	// The leading column numbers the rows; a break in the sequence is
	// a parse error.
	dir := writeRoster(t, append(rosterHeader(),
		"2 1001 BC 1979 1 1979 2 49.25 -123.10 330.0 N TESTVILLE"))
	defer os.RemoveAll(dir)
	_, err := NewRecords(dir, "", testVariables(), nil)
	if err == nil {
		t.Fatal("misnumbered roster row accepted")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("want *ParseError, got %T", err)
	}
}

func TestRosterColumnHeaders(t *testing.T) {
	lines := rosterHeader()
	lines[2] = "No StnId Region From To Lat(deg) Long(deg) Elev(m) Joined Station name"
	dir := writeRoster(t, lines)
	defer os.RemoveAll(dir)
	_, err := NewRecords(dir, "", testVariables(), nil)
	if err == nil {
		t.Fatal("wrong column headers accepted")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("want *ParseError, got %T", err)
	}
}

func TestLoadDaily(t *testing.T) {
	r, err := NewRecords("testdata", "", testVariables(), nil)
	if err != nil {
		t.Fatal(err)
	}
	ds, err := r.PrepareDataset()
	if err != nil {
		t.Fatal(err)
	}
	v, err := r.LoadDaily(ds, "T2")
	if err != nil {
		t.Fatal(err)
	}
	if !v.Masked() {
		t.Fatal("daily variable not masked")
	}
	if v.Units != "K" {
		t.Errorf("units: got %q", v.Units)
	}
	shape := v.Shape()
	// Union window 1979-01 through 1979-03: three months of 31 slots.
	if shape[0] != 3 || shape[1] != 93 {
		t.Fatalf("shape: got %v", shape)
	}
	arr, err := v.GetArray(&geodata.ArrayOptions{KeepMask: true})
	if err != nil {
		t.Fatal(err)
	}
	m := v.GetMask()
	// Station 1, 1979-01 day 2: flagged value 1.0, converted to K.
	idx := arr.Index1d(0, 1)
	if m[idx] || math.Abs(arr.Elements[idx]-(1.0+273.15)) > testTolerance {
		t.Errorf("station 1 day 2: masked=%v value=%g", m[idx], arr.Elements[idx])
	}
	// Station 1, 1979-01 day 1 is the missing sentinel.
	if !m[arr.Index1d(0, 0)] {
		t.Error("missing sentinel not masked")
	}
	// Station 2 records January only; February must be masked.
	if !m[arr.Index1d(1, 40)] {
		t.Error("station 2 outside record window not masked")
	}
	// Station 3 starts in February: January masked, February present.
	if !m[arr.Index1d(2, 0)] {
		t.Error("station 3 January not masked")
	}
	idx = arr.Index1d(2, 31)
	if m[idx] || math.Abs(arr.Elements[idx]-(0.5+273.15)) > testTolerance {
		t.Errorf("station 3 February day 1: masked=%v value=%g", m[idx], arr.Elements[idx])
	}
	// The variable was registered on the dataset with the shared axis.
	if ds.Variable("T2") != v {
		t.Error("daily variable not added to dataset")
	}
	if v.Axes()[0] != ds.Axis("station") {
		t.Error("station axis not shared")
	}
}
