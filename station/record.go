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
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// DaysPerMonth is the number of day slots reserved per month in a
// daily record: every month occupies 31 slots and the surplus days
// stay NaN.
const DaysPerMonth = 31

// A DailyStationRecord gives access to the daily record of one
// variable at one station. The metadata is taken from the station
// roster and the variable definition; the parser validates the record
// file against it.
type DailyStationRecord struct {
	ID       string // station ID
	Name     string // station name
	Variable string // variable name, as used in the file header
	Units    string // data units used in the record
	Missing  string // string indicating a missing value
	Flags    string // legal data flag characters (case sensitive)
	VarMin   float64
	VarMax   float64
	Filename string
	Encoding encoding.Encoding

	Prov   string
	Joined bool // whether the record was merged with a nearby station

	BeginYear, BeginMon int // first month of the record
	EndYear, EndMon     int // last month of the record

	Lat, Lon, Alt float64
}

// Months returns the number of months between the begin and end dates,
// inclusive.
func (r *DailyStationRecord) Months() int {
	return (r.EndYear-r.BeginYear)*12 + r.EndMon - r.BeginMon + 1
}

// ValidateHeader checks the first line of a record file against the
// record metadata. The header is a comma-separated line carrying the
// station ID, name and province, the join status, the measurement
// description and the units; all comparisons are case insensitive.
func (r *DailyStationRecord) ValidateHeader(headerline string) error {
	fields := strings.Split(headerline, ",")
	if len(fields) < 6 {
		return parseErrorf(r.Filename, 1, "malformed header: %q", headerline)
	}
	for i, f := range fields {
		fields[i] = strings.ToLower(strings.TrimSpace(f))
	}
	if strings.ToLower(r.ID) != fields[0] {
		return parseErrorf(r.Filename, 1, "station ID mismatch: %q", headerline)
	}
	if strings.ToLower(r.Name) != fields[1] {
		return parseErrorf(r.Filename, 1, "station name mismatch: %q", headerline)
	}
	if strings.ToLower(r.Prov) != fields[2] {
		return parseErrorf(r.Filename, 1, "province mismatch: %q", headerline)
	}
	if !strings.Contains(fields[3], "joined") {
		return parseErrorf(r.Filename, 1, "missing join status: %q", headerline)
	}
	if r.Joined == strings.Contains(fields[3], "not") {
		return parseErrorf(r.Filename, 1, "join status mismatch: %q", headerline)
	}
	if !strings.Contains(fields[4], "daily") {
		return parseErrorf(r.Filename, 1, "not a daily record: %q", headerline)
	}
	if !strings.Contains(fields[4], strings.ToLower(r.Variable)) {
		return parseErrorf(r.Filename, 1, "variable mismatch: %q", headerline)
	}
	if !strings.Contains(fields[5], strings.ToLower(r.Units)) {
		return parseErrorf(r.Filename, 1, "units mismatch: %q", headerline)
	}
	return nil
}

// CheckHeader opens the record file, validates the header line and
// closes it again.
func (r *DailyStationRecord) CheckHeader() error {
	f, err := os.Open(r.Filename)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(transform.NewReader(f, r.Encoding.NewDecoder()))
	if !sc.Scan() {
		return parseErrorf(r.Filename, 1, "empty file")
	}
	return r.ValidateHeader(sc.Text())
}

// ParseRecord reads the record file and returns the daily time series
// between the begin and end dates: 31 slots per month, with missing
// values and surplus days set to NaN.
//
// The file must hold the months in an unbroken sequence starting at
// the begin date; a break in the sequence is a DateError. A month line
// carries the year, the month and 31 daily values, each possibly
// suffixed by a single flag character; values outside [VarMin, VarMax]
// and lines that cannot be interpreted are ParseErrors.
func (r *DailyStationRecord) ParseRecord() ([]float64, error) {
	f, err := os.Open(r.Filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(transform.NewReader(f, r.Encoding.NewDecoder()))
	if !sc.Scan() {
		return nil, parseErrorf(r.Filename, 1, "empty file")
	}
	if err := r.ValidateHeader(sc.Text()); err != nil {
		return nil, err
	}

	tlen := r.Months() * DaysPerMonth
	data := make([]float64, tlen)
	for i := range data {
		data[i] = math.NaN()
	}

	oldYear, oldMon := r.BeginYear, r.BeginMon-1
	z := 0
	lineno := 1
	for sc.Scan() {
		lineno++
		// Large negative values may run into the preceding column.
		line := strings.Replace(sc.Text(), "-9999.9", " -9999.9", -1)
		ll := strings.Fields(line)
		if len(ll) < 2 {
			return nil, parseErrorf(r.Filename, lineno, "short line: %q", sc.Text())
		}
		if !isDigits(ll[0]) || !isDigits(ll[1]) {
			// The only legal non-data line repeats the column titles.
			if ll[0] != "Year" || ll[1] != "Mo" {
				return nil, parseErrorf(r.Filename, lineno,
					"no valid title or data found: %q", sc.Text())
			}
			continue
		}
		year, _ := strconv.Atoi(ll[0])
		mon, _ := strconv.Atoi(ll[1])
		switch {
		case year == oldYear && mon == oldMon+1:
		case year == oldYear+1 && oldMon == 12 && mon == 1:
		default:
			return nil, dateErrorf(r.Filename, lineno,
				"month %04d-%02d does not follow %04d-%02d", year, mon, oldYear, oldMon)
		}
		oldYear, oldMon = year, mon
		if z+DaysPerMonth > tlen {
			return nil, parseErrorf(r.Filename, lineno,
				"data beyond the specified end date (%04d-%02d)", r.EndYear, r.EndMon)
		}
		// A month needs more than 5 values to count; sparser lines
		// leave the month as missing.
		if vals := ll[2:]; len(vals) > 5 {
			zz := z
			for _, num := range vals {
				if strings.HasPrefix(num, r.Missing) {
					zz++
					continue
				}
				n, err := r.parseValue(num)
				if err != nil {
					return nil, parseErrorf(r.Filename, lineno,
						"unable to process value %q: %v", num, err)
				}
				if n < r.VarMin {
					return nil, parseErrorf(r.Filename, lineno,
						"value %q below minimum %g", num, r.VarMin)
				}
				if n > r.VarMax {
					return nil, parseErrorf(r.Filename, lineno,
						"value %q above maximum %g", num, r.VarMax)
				}
				data[zz] = n
				zz++
			}
			if zz != z+DaysPerMonth {
				return nil, parseErrorf(r.Filename, lineno,
					"line has %d values instead of %d", zz-z, DaysPerMonth)
			}
		}
		z += DaysPerMonth
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if z < tlen {
		return nil, parseErrorf(r.Filename, lineno,
			"reached end of file before specified end date (%04d-%02d)", r.EndYear, r.EndMon)
	}
	return data, nil
}

// parseValue interprets one daily value, stripping a single trailing
// flag character if present.
func (r *DailyStationRecord) parseValue(num string) (float64, error) {
	if len(num) < 2 || !strings.Contains(num, ".") {
		return 0, fmt.Errorf("not a decimal number")
	}
	last := num[len(num)-1]
	if last >= '0' && last <= '9' {
		return strconv.ParseFloat(num, 64)
	}
	prev := num[len(num)-2]
	if prev >= '0' && prev <= '9' && strings.IndexByte(r.Flags, last) >= 0 {
		return strconv.ParseFloat(num[:len(num)-1], 64)
	}
	return 0, fmt.Errorf("illegal data flag %q", string(last))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
