package models

import (
	"github.com/paulmach/orb"
)

// Boundary is one record of the input boundary dataset.
type Boundary struct {
	// position in the input file, after skipped records are removed.
	Index      int
	Id         string
	Attributes map[string]string
	Geometry   orb.Geometry
}

// KeepValues returns the values of 'columns' in order. Missing
// columns come back as empty strings.
func (b *Boundary) KeepValues(columns []string) []string {
	values := make([]string, len(columns))
	for idx, col := range columns {
		values[idx] = b.Attributes[col]
	}
	return values
}

// MissingColumns returns the entries in 'columns' that this boundary has
// no attribute for.
func (b *Boundary) MissingColumns(columns []string) []string {
	var missing []string
	for _, col := range columns {
		if _, ok := b.Attributes[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}
