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

// Package station reads daily climate station records from the ASCII
// files distributed by Environment Canada and assembles them into
// geodata datasets. The files are strict fixed-layout text: a station
// roster with a four-line header, and per-station record files with
// one month of daily values per line.
package station

import "fmt"

// ParseError reports malformed content in a station file.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("station: %s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("station: %s: %s", e.File, e.Message)
}

func parseErrorf(file string, line int, format string, args ...interface{}) *ParseError {
	return &ParseError{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// DateError reports a break in the month sequence of a station record.
type DateError struct {
	File    string
	Line    int
	Message string
}

func (e *DateError) Error() string {
	return fmt.Sprintf("station: %s:%d: %s", e.File, e.Line, e.Message)
}

func dateErrorf(file string, line int, format string, args ...interface{}) *DateError {
	return &DateError{File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}
