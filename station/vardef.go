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
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// A VarDef describes one variable of a station data type: how it is
// named in the record files, the file layout particulars (missing
// value sentinel, legal flag characters, text encoding) and the
// plausible value range. Convert turns raw file values into the
// units used in datasets.
type VarDef struct {
	Name     string // variable name, as used in record file headers
	Prefix   string // record file prefix (e.g. "dt" for daily mean temperature)
	DataType string // variable class: "temp" or "precip"
	Units    string // units used in the record files
	Encoding encoding.Encoding
	Missing  string // string indicating a missing value
	Flags    string // legal data flag characters (case sensitive)
	VarMin   float64
	VarMax   float64

	// Convert transforms a raw daily value into dataset units.
	Convert func(float64) float64
}

// FilePath returns the record file path for a station, relative to
// the data type folder.
func (d *VarDef) FilePath(stationID string) string {
	return fmt.Sprintf("%s/%s%s.txt", d.Prefix, d.Prefix, stationID)
}

// PrecipDef returns the definition of a precipitation variable. The
// files store daily totals in mm; values are converted to an average
// flux in kg/m^2/s.
func PrecipDef(name, prefix string) *VarDef {
	return &VarDef{
		Name:     name,
		Prefix:   prefix,
		DataType: "precip",
		Units:    "mm",
		Encoding: unicode.UTF8,
		Missing:  "-9999.99",
		Flags:    "TEFACLXYZ",
		VarMin:   0,
		VarMax:   1.e3,
		Convert:  func(v float64) float64 { return v / 86400. },
	}
}

// TempDef returns the definition of a temperature variable. The files
// store daily values in degrees Celsius (in ISO-8859-15, unlike the
// precipitation files); values are converted to Kelvin.
func TempDef(name, prefix string) *VarDef {
	return &VarDef{
		Name:     name,
		Prefix:   prefix,
		DataType: "temp",
		Units:    "°C",
		Encoding: charmap.ISO8859_15,
		Missing:  "-9999.9",
		Flags:    "Ea",
		VarMin:   -100,
		VarMax:   100,
		Convert:  func(v float64) float64 { return v + 273.15 },
	}
}

// DatasetUnits returns the units of the variable after Convert has
// been applied.
func (d *VarDef) DatasetUnits() string {
	switch d.DataType {
	case "temp":
		return "K"
	case "precip":
		return "kg/m^2/s"
	}
	return d.Units
}
