package features

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTokenizer maps every whitespace word to a deterministic id. It stands
// in for the WordPiece tokenizer so featurizer behavior is tested in
// isolation.
type stubTokenizer struct{}

func (stubTokenizer) Encode(text string) ([]int64, error) {
	words := strings.Fields(text)
	ids := make([]int64, len(words))
	for i, w := range words {
		var sum int64
		for _, b := range []byte(w) {
			sum += int64(b)
		}
		ids[i] = 1000 + sum
	}
	return ids, nil
}

func (stubTokenizer) ClassID() int64     { return 101 }
func (stubTokenizer) SeparatorID() int64 { return 102 }
func (stubTokenizer) PadID() int64       { return 0 }

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func TestConvertFixedLengthInvariant(t *testing.T) {
	const maxSeqLen = 16
	f := NewFeaturizer(stubTokenizer{}, maxSeqLen, 3)
	rng := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		n := rng.Intn(10 * maxSeqLen)
		rec, err := f.Convert(context.Background(), Example{TextA: words(n), Label: []int32{1, 0, 0}})
		require.NoError(t, err)
		assert.Len(t, rec.InputIDs, maxSeqLen)
		assert.Len(t, rec.InputMask, maxSeqLen)
		assert.Len(t, rec.SegmentIDs, maxSeqLen)
	}
}

func TestConvertTruncation(t *testing.T) {
	const maxSeqLen = 10
	tok := stubTokenizer{}
	f := NewFeaturizer(tok, maxSeqLen, 2)

	text := words(12)
	allIDs, err := tok.Encode(text)
	require.NoError(t, err)
	require.Len(t, allIDs, 12)

	rec, err := f.Convert(context.Background(), Example{TextA: text, Label: []int32{1, 0}})
	require.NoError(t, err)

	// Exactly the first 8 content tokens survive, bracketed by the markers.
	assert.Equal(t, tok.ClassID(), rec.InputIDs[0])
	assert.Equal(t, allIDs[:8], rec.InputIDs[1:9])
	assert.Equal(t, tok.SeparatorID(), rec.InputIDs[9])
	for _, m := range rec.InputMask {
		assert.Equal(t, int64(1), m)
	}
}

func TestConvertShortTextPadding(t *testing.T) {
	const maxSeqLen = 10
	tok := stubTokenizer{}
	f := NewFeaturizer(tok, maxSeqLen, 2)

	rec, err := f.Convert(context.Background(), Example{TextA: "hi there", Label: []int32{0, 1}})
	require.NoError(t, err)

	assert.Equal(t, tok.ClassID(), rec.InputIDs[0])
	assert.Equal(t, tok.SeparatorID(), rec.InputIDs[3])
	assert.Equal(t, []int64{1, 1, 1, 1, 0, 0, 0, 0, 0, 0}, rec.InputMask)
	for i := 4; i < maxSeqLen; i++ {
		assert.Zero(t, rec.InputIDs[i])
	}
	assert.Equal(t, make([]int64, maxSeqLen), rec.SegmentIDs)
	assert.Equal(t, []int32{0, 1}, rec.Label)
}

func TestConvertEmptyText(t *testing.T) {
	f := NewFeaturizer(stubTokenizer{}, 8, 1)
	rec, err := f.Convert(context.Background(), Example{TextA: "", Label: []int32{1}})
	require.NoError(t, err)
	assert.Equal(t, int64(101), rec.InputIDs[0])
	assert.Equal(t, int64(102), rec.InputIDs[1])
	assert.Equal(t, []int64{1, 1, 0, 0, 0, 0, 0, 0}, rec.InputMask)
}

func TestConvertPaddingExample(t *testing.T) {
	const maxSeqLen, numClasses = 12, 4
	f := NewFeaturizer(stubTokenizer{}, maxSeqLen, numClasses)

	rec, err := f.Convert(context.Background(), Example{Padding: true})
	require.NoError(t, err)
	assert.Equal(t, make([]int64, maxSeqLen), rec.InputIDs)
	assert.Equal(t, make([]int64, maxSeqLen), rec.InputMask)
	assert.Equal(t, make([]int64, maxSeqLen), rec.SegmentIDs)
	assert.Equal(t, make([]int32, numClasses), rec.Label)
}

func TestConvertAllPreservesOrderAndIsDeterministic(t *testing.T) {
	f := NewFeaturizer(stubTokenizer{}, 10, 2)
	examples := []Example{
		{TextA: "alpha beta", Label: []int32{1, 0}},
		{TextA: "gamma", Label: []int32{0, 1}},
		{TextA: words(30), Label: []int32{1, 1}},
	}

	first, err := f.ConvertAll(context.Background(), examples)
	require.NoError(t, err)
	second, err := f.ConvertAll(context.Background(), examples)
	require.NoError(t, err)

	assert.Equal(t, 3, first.Len())
	assert.Equal(t, first, second)
	assert.Equal(t, []int32{0, 1}, first.Labels[1])
}

func TestPadToMultiple(t *testing.T) {
	examples := []Example{{TextA: "a"}, {TextA: "b"}, {TextA: "c"}}

	padded := PadToMultiple(examples, 4)
	require.Len(t, padded, 4)
	assert.True(t, padded[3].Padding)
	// The original slice is left alone.
	assert.Len(t, examples, 3)

	assert.Len(t, PadToMultiple(examples, 3), 3)
	assert.Len(t, PadToMultiple(examples, 1), 3)
	assert.Len(t, PadToMultiple(examples, 2), 4)
}

func TestNewExamples(t *testing.T) {
	examples := NewExamples([]string{"x", "y"}, [][]int32{{1, 0}, {0, 1}})
	require.Len(t, examples, 2)
	assert.Equal(t, "x", examples[0].TextA)
	assert.Empty(t, examples[0].TextB)
	assert.Equal(t, []int32{0, 1}, examples[1].Label)
	assert.False(t, examples[1].Padding)
}
