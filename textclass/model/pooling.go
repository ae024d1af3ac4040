package model

import (
	"fmt"

	"github.com/ctrellis/textclass/textclass/config"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
)

// Pooling selects how the encoder's per-token outputs are reduced to one
// fixed-size vector per example.
type Pooling int

const (
	// PoolingFirst uses the encoder's designated pooled output (or the start
	// marker's vector when the graph exports none).
	PoolingFirst Pooling = iota
	// PoolingMean averages the per-token vectors weighted by attention mask.
	PoolingMean
)

// ParsePooling maps the configuration string onto the tagged variant.
func ParsePooling(s string) (Pooling, error) {
	switch s {
	case "first":
		return PoolingFirst, nil
	case "mean":
		return PoolingMean, nil
	default:
		return 0, fmt.Errorf("%w: pooling must be either first or mean, but is %q", config.ErrInvalidConfig, s)
	}
}

func (p Pooling) String() string {
	switch p {
	case PoolingFirst:
		return "first"
	case PoolingMean:
		return "mean"
	}
	return fmt.Sprintf("Pooling(%d)", int(p))
}

// meanPoolEpsilon keeps the mask-count division defined for all-zero masks.
const meanPoolEpsilon = 1e-10

// MaskedMeanPool averages sequence outputs [batch, seq, dim] over the
// positions where mask [batch, seq] is 1.
func MaskedMeanPool(seqOutput, mask *Node) *Node {
	m := ConvertDType(mask, dtypes.Float32)
	weighted := Mul(seqOutput, InsertAxes(m, -1))
	summed := ReduceSum(weighted, 1)
	counts := InsertAxes(ReduceSum(m, 1), -1)
	return Div(summed, AddScalar(counts, meanPoolEpsilon))
}

// FirstTokenPool slices out the start marker's vector from sequence outputs
// [batch, seq, dim].
func FirstTokenPool(seqOutput *Node) *Node {
	return Squeeze(Slice(seqOutput, AxisRange(), AxisElem(0)), 1)
}

// apply reduces the encoder outputs according to the pooling mode.
// pooledOutput may be nil when the encoder graph exports no pooled tensor.
func (p Pooling) apply(seqOutput, pooledOutput, mask *Node) *Node {
	switch p {
	case PoolingFirst:
		if pooledOutput != nil {
			return pooledOutput
		}
		return FirstTokenPool(seqOutput)
	case PoolingMean:
		return MaskedMeanPool(seqOutput, mask)
	}
	panic(fmt.Sprintf("unhandled pooling mode %v", p))
}
