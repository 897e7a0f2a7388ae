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

import "fmt"

// AxisError reports a violation of an Axis invariant, such as a
// coordinate vector that conflicts with the declared axis length.
type AxisError struct {
	Axis    string
	Message string
}

func (e *AxisError) Error() string {
	return fmt.Sprintf("geodata: axis %q: %s", e.Axis, e.Message)
}

func axisErrorf(axis, format string, args ...interface{}) *AxisError {
	return &AxisError{Axis: axis, Message: fmt.Sprintf(format, args...)}
}

// VariableError reports misuse of a Variable, such as loading data
// whose shape does not match the variable axes, or operating on a
// variable that has no data loaded.
type VariableError struct {
	Variable string
	Message  string
}

func (e *VariableError) Error() string {
	return fmt.Sprintf("geodata: variable %q: %s", e.Variable, e.Message)
}

func variableErrorf(v, format string, args ...interface{}) *VariableError {
	return &VariableError{Variable: v, Message: fmt.Sprintf(format, args...)}
}

// DatasetError reports a violation of a Dataset invariant, such as a
// name collision or an identity mismatch between same-named axes.
type DatasetError struct {
	Dataset string
	Message string
}

func (e *DatasetError) Error() string {
	return fmt.Sprintf("geodata: dataset %q: %s", e.Dataset, e.Message)
}

func datasetErrorf(d, format string, args ...interface{}) *DatasetError {
	return &DatasetError{Dataset: d, Message: fmt.Sprintf(format, args...)}
}
