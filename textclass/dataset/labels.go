package dataset

import "sort"

// Values returns the sorted list of distinct values observed in the named
// column. The ordering fixes the position of each indicator column produced
// by Expand, so it must be computed once on the full table before splitting
// to keep train and test label matrices aligned.
func Values(t *Table, column string) ([]string, error) {
	col, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(col))
	for _, v := range col {
		seen[v] = struct{}{}
	}
	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values, nil
}

// Expand converts the categorical column into a one-hot matrix with one
// indicator column per vocabulary entry, in vocabulary order. The table is
// not modified; rows whose value is absent from the vocabulary expand to an
// all-zero vector.
func Expand(t *Table, column string, vocab []string) ([][]int32, error) {
	col, err := t.Column(column)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int, len(vocab))
	for i, v := range vocab {
		index[v] = i
	}
	out := make([][]int32, len(col))
	for i, v := range col {
		row := make([]int32, len(vocab))
		if j, ok := index[v]; ok {
			row[j] = 1
		}
		out[i] = row
	}
	return out, nil
}
