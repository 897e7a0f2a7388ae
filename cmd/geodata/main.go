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

// Command geodata is a command-line interface for converting climate
// station records and model output into NetCDF datasets on common
// grids.
package main

import (
	"fmt"
	"os"

	"github.com/spatialclim/geodata/geodatautil"
)

func main() {
	if err := geodatautil.Root.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(-1)
	}
}
