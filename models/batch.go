package models

import "fmt"

// Partition splits boundaries into consecutive batches of 'size'. The
// last batch may be smaller. Order is preserved and the batches share the
// backing array of 'boundaries'.
func Partition(boundaries []*Boundary, size int) ([][]*Boundary, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", size)
	}

	l := len(boundaries)
	if l == 0 {
		return nil, nil
	}

	batches := make([][]*Boundary, 0, (l+size-1)/size)
	for start := 0; start < l; start += size {
		end := start + size
		if end > l {
			end = l
		}
		batches = append(batches, boundaries[start:end:end])
	}
	return batches, nil
}
