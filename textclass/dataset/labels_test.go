package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelTable(values []string) *Table {
	rows := make([][]string, len(values))
	for i, v := range values {
		rows[i] = []string{"id", v}
	}
	return NewTable([]string{"id", "labels"}, rows)
}

func TestValuesSortedDistinct(t *testing.T) {
	table := labelTable([]string{"c", "a", "b", "a", "c"})
	vocab, err := Values(table, "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, vocab)
}

func TestValuesUnknownColumn(t *testing.T) {
	table := labelTable([]string{"a"})
	_, err := Values(table, "category")
	assert.ErrorIs(t, err, ErrInvalidColumn)
}

func TestExpandOneHot(t *testing.T) {
	table := labelTable([]string{"a", "b", "a", "c"})
	vocab, err := Values(table, "labels")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, vocab)

	matrix, err := Expand(table, "labels", vocab)
	require.NoError(t, err)
	assert.Equal(t, [][]int32{
		{1, 0, 0},
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 1},
	}, matrix)
}

func TestExpandSharedVocabulary(t *testing.T) {
	// A split that lacks some labels must still expand against the full
	// vocabulary, keeping column count and order consistent across splits.
	full := labelTable([]string{"a", "b", "c", "b"})
	vocab, err := Values(full, "labels")
	require.NoError(t, err)

	train, test := full.Split(0.5)
	trainMatrix, err := Expand(train, "labels", vocab)
	require.NoError(t, err)
	testMatrix, err := Expand(test, "labels", vocab)
	require.NoError(t, err)

	require.Len(t, trainMatrix, 2)
	require.Len(t, testMatrix, 2)
	for _, row := range append(trainMatrix, testMatrix...) {
		assert.Len(t, row, 3)
	}
	assert.Equal(t, []int32{0, 0, 1}, testMatrix[0]) // "c"
}

func TestExpandValueOutsideVocabulary(t *testing.T) {
	table := labelTable([]string{"a", "z"})
	matrix, err := Expand(table, "labels", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 0}, matrix[0])
	assert.Equal(t, []int32{0, 0}, matrix[1])
}

func TestExpandDoesNotMutateTable(t *testing.T) {
	table := labelTable([]string{"a", "b"})
	before := table.Columns()
	_, err := Expand(table, "labels", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, before, table.Columns())
	assert.Equal(t, 2, table.Len())
}
