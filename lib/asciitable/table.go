/*
Copyright 2024 Golava, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package asciitable implements a simple ASCII table formatter for
// printing tabular values into a text terminal.
package asciitable

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
)

// Table holds tabular values in a rows and columns format.
type Table struct {
	headers []string
	widths  []int
	rows    [][]string
}

// MakeTable creates a table with the given column names, optionally
// pre-filled with rows.
func MakeTable(headers []string, rows ...[]string) Table {
	t := Table{
		headers: headers,
		widths:  make([]int, len(headers)),
	}
	for i, h := range headers {
		t.widths[i] = len(h)
	}
	for _, row := range rows {
		t.AddRow(row)
	}
	return t
}

// AddRow appends a row, extra cells beyond the column count are
// dropped.
func (t *Table) AddRow(row []string) {
	limit := min(len(row), len(t.headers))
	for i := 0; i < limit; i++ {
		t.widths[i] = max(t.widths[i], len(row[i]))
	}
	t.rows = append(t.rows, row[:limit])
}

// SortRowsBy sorts the rows by the given column index.
func (t *Table) SortRowsBy(col int) {
	slices.SortStableFunc(t.rows, func(a, b []string) int {
		if col >= len(a) || col >= len(b) {
			return 0
		}
		return strings.Compare(a[col], b[col])
	})
}

// AsBuffer returns the rendered table.
func (t *Table) AsBuffer() *bytes.Buffer {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 5, 0, 1, ' ', 0)
	template := strings.Repeat("%v\t", len(t.headers))

	var titles []any
	var rules []any
	for i, h := range t.headers {
		titles = append(titles, h)
		rules = append(rules, strings.Repeat("-", t.widths[i]))
	}
	fmt.Fprintf(w, template+"\n", titles...)
	fmt.Fprintf(w, template+"\n", rules...)

	for _, row := range t.rows {
		cells := make([]any, len(row))
		for i := range row {
			cells[i] = row[i]
		}
		fmt.Fprintf(w, strings.Repeat("%v\t", len(row))+"\n", cells...)
	}
	w.Flush()
	return &buf
}

// String renders the table, it implements fmt.Stringer.
func (t *Table) String() string {
	return t.AsBuffer().String()
}
