package pose

import (
	"fmt"
	"slices"
)

// Column level names of a structured table header.
const (
	LevelScorer    = "scorer"
	LevelBodyparts = "bodyparts"
	LevelCoords    = "coords"
)

// Column is one (labeler, bodypart, axis) column key.
type Column struct {
	Scorer   string `json:"scorer"`
	Bodypart string `json:"bodypart"`
	Coord    string `json:"coord"`
}

func (c Column) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Scorer, c.Bodypart, c.Coord)
}

// StructuredTable is a per-subject table with a three-level column header
// and a relative-path row index. Values holds one slice per row, aligned
// with Columns; the empty string is the empty marker.
type StructuredTable struct {
	Columns []Column   `json:"columns"`
	Index   []string   `json:"index"`
	Values  [][]string `json:"values"`
}

// NewStructuredTable builds the column header for scorer over bodyparts in
// the given order, x before y for each bodypart.
func NewStructuredTable(scorer string, bodyparts []string) *StructuredTable {
	cols := make([]Column, 0, len(bodyparts)*2)
	for _, bp := range bodyparts {
		cols = append(cols,
			Column{Scorer: scorer, Bodypart: bp, Coord: AxisX},
			Column{Scorer: scorer, Bodypart: bp, Coord: AxisY},
		)
	}
	return &StructuredTable{Columns: cols}
}

// AppendRow adds a row. The row must match the column count.
func (t *StructuredTable) AppendRow(index string, values []string) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row %q has %d values, table has %d columns", index, len(values), len(t.Columns))
	}
	t.Index = append(t.Index, index)
	t.Values = append(t.Values, values)
	return nil
}

// Bodyparts returns the distinct bodyparts in column order.
func (t *StructuredTable) Bodyparts() []string {
	var out []string
	for _, c := range t.Columns {
		if !slices.Contains(out, c.Bodypart) {
			out = append(out, c.Bodypart)
		}
	}
	return out
}

// Scorer returns the labeler of the first column, or "" for an empty header.
func (t *StructuredTable) Scorer() string {
	if len(t.Columns) == 0 {
		return ""
	}
	return t.Columns[0].Scorer
}

// Select returns a new table holding only the columns keep accepts. Column
// order, row order and values are carried over untouched.
func (t *StructuredTable) Select(keep func(Column) bool) *StructuredTable {
	var idx []int
	out := &StructuredTable{}
	for i, c := range t.Columns {
		if keep(c) {
			idx = append(idx, i)
			out.Columns = append(out.Columns, c)
		}
	}
	out.Index = slices.Clone(t.Index)
	out.Values = make([][]string, len(t.Values))
	for r, row := range t.Values {
		vals := make([]string, len(idx))
		for j, i := range idx {
			vals[j] = row[i]
		}
		out.Values[r] = vals
	}
	return out
}

// SameShape reports whether both tables have identical headers and row
// indexes.
func (t *StructuredTable) SameShape(other *StructuredTable) bool {
	return slices.Equal(t.Columns, other.Columns) && slices.Equal(t.Index, other.Index)
}

// Equal reports whether both tables hold identical headers, indexes and
// values.
func (t *StructuredTable) Equal(other *StructuredTable) bool {
	if !t.SameShape(other) || len(t.Values) != len(other.Values) {
		return false
	}
	for i := range t.Values {
		if !slices.Equal(t.Values[i], other.Values[i]) {
			return false
		}
	}
	return true
}
