package model

import (
	"testing"

	"github.com/ctrellis/textclass/textclass/config"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/gomlx/gomlx/backends/default"
)

func TestParsePooling(t *testing.T) {
	p, err := ParsePooling("first")
	require.NoError(t, err)
	assert.Equal(t, PoolingFirst, p)
	assert.Equal(t, "first", p.String())

	p, err = ParsePooling("mean")
	require.NoError(t, err)
	assert.Equal(t, PoolingMean, p)
	assert.Equal(t, "mean", p.String())

	_, err = ParsePooling("max")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = ParsePooling("")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestMaskedMeanPool(t *testing.T) {
	backend := backends.MustNew()

	// One example, three tokens of width two; the third token is masked out.
	seq := tensors.FromFlatDataAndDimensions(
		[]float32{2, 2, 4, 4, 99, 99}, 1, 3, 2)
	mask := tensors.FromFlatDataAndDimensions(
		[]int64{1, 1, 0}, 1, 3)

	got := graph.MustExecOnce(backend, func(seq, mask *graph.Node) *graph.Node {
		return MaskedMeanPool(seq, mask)
	}, seq, mask)

	flat := tensors.MustCopyFlatData[float32](got)
	require.Len(t, flat, 2)
	assert.InDelta(t, 3.0, flat[0], 1e-5)
	assert.InDelta(t, 3.0, flat[1], 1e-5)
}

func TestMaskedMeanPoolAllMasked(t *testing.T) {
	backend := backends.MustNew()

	seq := tensors.FromFlatDataAndDimensions([]float32{5, 7}, 1, 1, 2)
	mask := tensors.FromFlatDataAndDimensions([]int64{0}, 1, 1)

	got := graph.MustExecOnce(backend, func(seq, mask *graph.Node) *graph.Node {
		return MaskedMeanPool(seq, mask)
	}, seq, mask)

	// Epsilon keeps the division defined; an all-padding row pools to ~0.
	flat := tensors.MustCopyFlatData[float32](got)
	require.Len(t, flat, 2)
	assert.InDelta(t, 0.0, flat[0], 1e-3)
	assert.InDelta(t, 0.0, flat[1], 1e-3)
}

func TestFirstTokenPool(t *testing.T) {
	backend := backends.MustNew()

	seq := tensors.FromFlatDataAndDimensions(
		[]float32{2, 2, 4, 4, 99, 99}, 1, 3, 2)

	got := graph.MustExecOnce(backend, func(seq *graph.Node) *graph.Node {
		return FirstTokenPool(seq)
	}, seq)

	flat := tensors.MustCopyFlatData[float32](got)
	assert.Equal(t, []float32{2, 2}, flat)
}
