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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/spatialclim/geodata"
	"golang.org/x/text/transform"
)

// rosterColumns is the expected column header of the station roster.
var rosterColumns = []string{
	"No", "StnId", "Prov", "From", "To",
	"Lat(deg)", "Long(deg)", "Elev(m)", "Joined", "Station", "name",
}

// refYear is the reference for dates in prepared datasets: months are
// counted relative to January of this year.
const refYear = 1979

// Records holds the validated station records of one data type, one
// ordered list per variable. All lists have the same length and order;
// index i refers to the same station everywhere.
type Records struct {
	Folder      string
	StationFile string
	DataType    string
	Variables   map[string]*VarDef
	Constraints map[string][]string

	// Stations maps each variable name to its station records.
	Stations map[string][]*DailyStationRecord
}

// NewRecords parses the station roster in folder and initializes one
// DailyStationRecord per retained station and variable, eagerly
// validating every record file header.
//
// The roster has a four-line header: a title naming the data type, a
// discarded translation line, the column definitions (which must match
// the expected template), and another discarded translation line. Each
// following line defines one station; the first column is a 1-based
// row count and must be sequential. constraints restricts the stations
// to those whose field value (one of "id", "prov", "name") is in the
// allowed set; it may be nil.
func NewRecords(folder, stationFile string, variables map[string]*VarDef, constraints map[string][]string) (*Records, error) {
	if len(variables) == 0 {
		return nil, fmt.Errorf("station: no variable definitions given")
	}
	if stationFile == "" {
		stationFile = "stations.txt"
	}
	var datatype string
	var anyDef *VarDef
	for _, d := range variables {
		if anyDef == nil {
			datatype, anyDef = d.DataType, d
		} else if d.DataType != datatype {
			return nil, fmt.Errorf("station: mixed data types %q and %q", datatype, d.DataType)
		}
	}

	r := &Records{
		Folder:      folder,
		StationFile: stationFile,
		DataType:    datatype,
		Variables:   variables,
		Constraints: constraints,
		Stations:    make(map[string][]*DailyStationRecord),
	}
	for name := range variables {
		r.Stations[name] = nil
	}

	path := filepath.Join(folder, stationFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(transform.NewReader(f, anyDef.Encoding.NewDecoder()))

	// Four header lines; the second and fourth are translations and
	// are discarded.
	if !sc.Scan() {
		return nil, parseErrorf(path, 1, "empty station file")
	}
	if !strings.Contains(strings.ToLower(sc.Text()), strings.ToLower(datatype)) {
		return nil, parseErrorf(path, 1, "title does not mention data type %q", datatype)
	}
	if !sc.Scan() {
		return nil, parseErrorf(path, 2, "truncated header")
	}
	if !sc.Scan() {
		return nil, parseErrorf(path, 3, "truncated header")
	}
	cols := strings.Fields(sc.Text())
	if len(cols) < len(rosterColumns) {
		return nil, parseErrorf(path, 3, "column headers missing: %q", sc.Text())
	}
	for i, want := range rosterColumns {
		if !strings.EqualFold(cols[i], want) {
			return nil, parseErrorf(path, 3,
				"column headers do not match format specification: %s != %s", want, cols[i])
		}
	}
	if !sc.Scan() {
		return nil, parseErrorf(path, 4, "truncated header")
	}

	z := 0 // row counter
	lineno := 4
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		z++
		st, err := parseRosterLine(path, lineno, z, line)
		if err != nil {
			return nil, err
		}
		if !r.admit(st) {
			continue
		}
		for varname, def := range variables {
			rec := &DailyStationRecord{
				ID:        st.id,
				Name:      st.name,
				Variable:  def.Name,
				Units:     def.Units,
				Missing:   def.Missing,
				Flags:     def.Flags,
				VarMin:    def.VarMin,
				VarMax:    def.VarMax,
				Filename:  filepath.Join(folder, def.FilePath(st.id)),
				Encoding:  def.Encoding,
				Prov:      st.prov,
				Joined:    st.joined,
				BeginYear: st.beginYear,
				BeginMon:  st.beginMon,
				EndYear:   st.endYear,
				EndMon:    st.endMon,
				Lat:       st.lat,
				Lon:       st.lon,
				Alt:       st.alt,
			}
			if err := rec.CheckHeader(); err != nil {
				return nil, err
			}
			r.Stations[varname] = append(r.Stations[varname], rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	n := -1
	for varname, list := range r.Stations {
		if n < 0 {
			n = len(list)
		} else if len(list) != n {
			return nil, fmt.Errorf("station: %d records for %s, expected %d", len(list), varname, n)
		}
	}
	return r, nil
}

// rosterEntry holds one parsed roster line.
type rosterEntry struct {
	id, prov, name       string
	beginYear, beginMon  int
	endYear, endMon      int
	lat, lon, alt        float64
	joined               bool
}

func parseRosterLine(path string, lineno, row int, line string) (*rosterEntry, error) {
	cols := strings.Fields(line)
	if len(cols) < len(rosterColumns)+1 {
		return nil, parseErrorf(path, lineno, "short station line: %q", line)
	}
	no, err := strconv.Atoi(cols[0])
	if err != nil || no != row {
		return nil, parseErrorf(path, lineno, "station number is not consistent with line count")
	}
	st := &rosterEntry{id: cols[1], prov: cols[2]}
	ints := []struct {
		col int
		dst *int
	}{{3, &st.beginYear}, {4, &st.beginMon}, {5, &st.endYear}, {6, &st.endMon}}
	for _, c := range ints {
		if *c.dst, err = strconv.Atoi(cols[c.col]); err != nil {
			return nil, parseErrorf(path, lineno, "bad integer in column %d: %q", c.col+1, cols[c.col])
		}
	}
	floats := []struct {
		col int
		dst *float64
	}{{7, &st.lat}, {8, &st.lon}, {9, &st.alt}}
	for _, c := range floats {
		if *c.dst, err = strconv.ParseFloat(cols[c.col], 64); err != nil {
			return nil, parseErrorf(path, lineno, "bad number in column %d: %q", c.col+1, cols[c.col])
		}
	}
	st.joined = strings.EqualFold(cols[10], "Y")
	st.name = strings.Join(cols[11:], " ")
	return st, nil
}

// admit applies the station constraints.
func (r *Records) admit(st *rosterEntry) bool {
	for field, allowed := range r.Constraints {
		var val string
		switch field {
		case "id":
			val = st.id
		case "prov":
			val = st.prov
		case "name":
			val = st.name
		default:
			return false
		}
		ok := false
		for _, a := range allowed {
			if val == a {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Len returns the number of retained stations.
func (r *Records) Len() int {
	for _, list := range r.Stations {
		return len(list)
	}
	return 0
}

// anyList returns one of the per-variable station lists; the metadata
// is the same in all of them.
func (r *Records) anyList() []*DailyStationRecord {
	for _, list := range r.Stations {
		return list
	}
	return nil
}

// IDs returns the station IDs in roster order.
func (r *Records) IDs() []string {
	list := r.anyList()
	out := make([]string, len(list))
	for i, st := range list {
		out[i] = st.ID
	}
	return out
}

// Names returns the station names in roster order.
func (r *Records) Names() []string {
	list := r.anyList()
	out := make([]string, len(list))
	for i, st := range list {
		out[i] = st.Name
	}
	return out
}

// Provinces returns the station provinces in roster order.
func (r *Records) Provinces() []string {
	list := r.anyList()
	out := make([]string, len(list))
	for i, st := range list {
		out[i] = st.Prov
	}
	return out
}

// monthsSinceRef converts a year/month pair to months relative to
// January of the reference year.
func monthsSinceRef(year, mon int) float64 {
	return float64((year-refYear)*12 + mon - 1)
}

// PrepareDataset assembles the station metadata into a dataset: a
// 1-based station ordinal axis and variables for latitude, longitude,
// elevation, join status (0/1) and the begin and end dates of each
// record in months relative to 1979-01. The station names are stored
// as a fixed-width character array of byte codes, zero padded; the
// names and provinces are additionally attached as newline-joined
// dataset attributes.
func (r *Records) PrepareDataset() (*geodata.Dataset, error) {
	list := r.anyList()
	n := len(list)
	stAxis := geodata.NewSpanAxis("station", "#", 1, float64(n), n)

	ds, err := geodata.NewDataset("EC"+r.DataType, nil, map[string]string{
		"title":         "Station Records: " + r.DataType,
		"station_names": strings.Join(r.Names(), "\n"),
		"station_provs": strings.Join(r.Provinces(), "\n"),
	})
	if err != nil {
		return nil, err
	}

	add := func(name, units, longName string, get func(*DailyStationRecord) float64) error {
		data := sparse.ZerosDense(n)
		for i, st := range list {
			data.Elements[i] = get(st)
		}
		v, err := geodata.NewVariable(name, units, []*geodata.Axis{stAxis}, data,
			map[string]string{"long_name": longName})
		if err != nil {
			return err
		}
		return ds.AddVariable(v)
	}
	type metaVar struct {
		name, units, longName string
		get                   func(*DailyStationRecord) float64
	}
	for _, m := range []metaVar{
		{"lat", "deg N", "Latitude", func(st *DailyStationRecord) float64 { return st.Lat }},
		{"lon", "deg E", "Longitude", func(st *DailyStationRecord) float64 { return st.Lon }},
		{"zs", "m", "Station Elevation", func(st *DailyStationRecord) float64 { return st.Alt }},
		{"joined", "", "Joined Station Flag", func(st *DailyStationRecord) float64 {
			if st.Joined {
				return 1
			}
			return 0
		}},
		{"begin_date", "month", "Begin of Station Record (relative to 1979-01)",
			func(st *DailyStationRecord) float64 { return monthsSinceRef(st.BeginYear, st.BeginMon) }},
		{"end_date", "month", "End of Station Record (relative to 1979-01)",
			func(st *DailyStationRecord) float64 { return monthsSinceRef(st.EndYear, st.EndMon) }},
	} {
		if err := add(m.name, m.units, m.longName, m.get); err != nil {
			return nil, err
		}
	}

	names := r.Names()
	width := 1
	for _, s := range names {
		if len(s) > width {
			width = len(s)
		}
	}
	chAxis := geodata.NewSpanAxis("name_chars", "#", 1, float64(width), width)
	chars := sparse.ZerosDense(n, width)
	for i, s := range names {
		for j := 0; j < len(s); j++ {
			chars.Elements[chars.Index1d(i, j)] = float64(s[j])
		}
	}
	sv, err := geodata.NewVariable("station_name", "",
		[]*geodata.Axis{stAxis, chAxis}, chars,
		map[string]string{"long_name": "Station Name"})
	if err != nil {
		return nil, err
	}
	if err := ds.AddVariable(sv); err != nil {
		return nil, err
	}
	return ds, nil
}

// LoadDaily parses the record files of one variable and assembles the
// daily series into a masked (station, day) variable on the dataset.
// Records are aligned on a common day axis spanning the union of all
// station record windows, relative to 1979-01; days outside a station
// record, missing values and surplus month slots are masked. Values
// are converted to dataset units via the VarDef.
func (r *Records) LoadDaily(ds *geodata.Dataset, varname string) (*geodata.Variable, error) {
	def, ok := r.Variables[varname]
	if !ok {
		return nil, fmt.Errorf("station: unknown variable %q", varname)
	}
	list := r.Stations[varname]
	if len(list) == 0 {
		return nil, fmt.Errorf("station: no records for variable %q", varname)
	}

	// Common day axis over the union of record windows.
	minBegin, maxEnd := 0, 0
	for i, st := range list {
		b := (st.BeginYear-refYear)*12 + st.BeginMon - 1
		e := (st.EndYear-refYear)*12 + st.EndMon
		if i == 0 || b < minBegin {
			minBegin = b
		}
		if i == 0 || e > maxEnd {
			maxEnd = e
		}
	}
	ndays := (maxEnd - minBegin) * DaysPerMonth
	n := len(list)
	data := sparse.ZerosDense(n, ndays)
	mask := make([]bool, len(data.Elements))
	for i := range mask {
		mask[i] = true
	}
	for i, st := range list {
		daily, err := st.ParseRecord()
		if err != nil {
			return nil, err
		}
		off := ((st.BeginYear-refYear)*12 + st.BeginMon - 1 - minBegin) * DaysPerMonth
		for d, v := range daily {
			idx := data.Index1d(i, off+d)
			if v != v { // NaN
				continue
			}
			data.Elements[idx] = def.Convert(v)
			mask[idx] = false
		}
	}

	var stAxis *geodata.Axis
	if ds != nil {
		stAxis = ds.Axis("station")
	}
	if stAxis == nil {
		stAxis = geodata.NewSpanAxis("station", "#", 1, float64(n), n)
	}
	dayAxis := geodata.NewSpanAxis("day", "day",
		float64(minBegin*DaysPerMonth), float64(maxEnd*DaysPerMonth-1), ndays)
	v, err := geodata.NewVariable(varname, def.DatasetUnits(),
		[]*geodata.Axis{stAxis, dayAxis}, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := v.LoadMasked(data, mask, geodata.DefaultFillValue); err != nil {
		return nil, err
	}
	if ds != nil {
		if err := ds.AddVariable(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}
