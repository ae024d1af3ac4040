package features

import (
	"context"
	"errors"
	"fmt"

	"github.com/ctrellis/textclass/textclass/tokenizer"

	"github.com/ZanzyTHEbar/assert-lib"
	"github.com/schollz/progressbar/v3"
)

// ErrShapeInvariant indicates a featurized record whose sequences do not
// match the configured length. Unreachable if Convert is correct; treated as
// a fatal internal-consistency failure.
var ErrShapeInvariant = errors.New("featurized record violates fixed-length invariant")

// Record is one featurized example. All three sequences have exactly
// maxSeqLen elements: the start marker, the truncated content tokens, the
// separator marker, then zero padding.
type Record struct {
	InputIDs   []int64
	InputMask  []int64
	SegmentIDs []int64
	Label      []int32
}

// Batch holds parallel feature arrays for a whole split, in input order.
type Batch struct {
	InputIDs   [][]int64
	InputMask  [][]int64
	SegmentIDs [][]int64
	Labels     [][]int32
}

// Featurizer converts Examples into fixed-shape Records.
type Featurizer struct {
	tok           tokenizer.Tokenizer
	maxSeqLen     int
	numClasses    int
	assertHandler *assert.AssertHandler

	// ShowProgress renders a progress bar during ConvertAll.
	ShowProgress bool
}

// NewFeaturizer creates a featurizer producing sequences of exactly maxSeqLen
// elements and label vectors of numClasses elements.
func NewFeaturizer(tok tokenizer.Tokenizer, maxSeqLen, numClasses int) *Featurizer {
	return &Featurizer{
		tok:           tok,
		maxSeqLen:     maxSeqLen,
		numClasses:    numClasses,
		assertHandler: assert.NewAssertHandler(),
	}
}

// MaxSeqLen returns the fixed sequence length of produced records.
func (f *Featurizer) MaxSeqLen() int { return f.maxSeqLen }

// Convert featurizes a single example: tokenize, keep at most maxSeqLen-2
// content tokens (prefix keep, tail silently dropped), wrap in start and
// separator markers, then right-pad ids, mask and segment ids with zeros.
func (f *Featurizer) Convert(ctx context.Context, ex Example) (Record, error) {
	if ex.Padding {
		return Record{
			InputIDs:   make([]int64, f.maxSeqLen),
			InputMask:  make([]int64, f.maxSeqLen),
			SegmentIDs: make([]int64, f.maxSeqLen),
			Label:      make([]int32, f.numClasses),
		}, nil
	}

	tokens, err := f.tok.Encode(ex.TextA)
	if err != nil {
		return Record{}, fmt.Errorf("tokenize example %q: %w", ex.GUID, err)
	}
	if len(tokens) > f.maxSeqLen-2 {
		tokens = tokens[:f.maxSeqLen-2]
	}

	ids := make([]int64, 0, f.maxSeqLen)
	mask := make([]int64, 0, f.maxSeqLen)
	ids = append(ids, f.tok.ClassID())
	ids = append(ids, tokens...)
	ids = append(ids, f.tok.SeparatorID())
	for range ids {
		mask = append(mask, 1)
	}
	for len(ids) < f.maxSeqLen {
		ids = append(ids, 0)
		mask = append(mask, 0)
	}
	segments := make([]int64, f.maxSeqLen) // single-sequence use, all zero

	rec := Record{InputIDs: ids, InputMask: mask, SegmentIDs: segments, Label: ex.Label}
	if err := f.checkShape(ctx, rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// checkShape enforces the fixed-length postcondition on every call.
func (f *Featurizer) checkShape(ctx context.Context, rec Record) error {
	ok := len(rec.InputIDs) == f.maxSeqLen &&
		len(rec.InputMask) == f.maxSeqLen &&
		len(rec.SegmentIDs) == f.maxSeqLen
	f.assertHandler.Assert(ctx, ok, "featurized record must have fixed-length sequences")
	if !ok {
		return fmt.Errorf("%w: ids=%d mask=%d segments=%d want=%d",
			ErrShapeInvariant, len(rec.InputIDs), len(rec.InputMask), len(rec.SegmentIDs), f.maxSeqLen)
	}
	return nil
}

// ConvertAll featurizes every example in order, producing parallel arrays.
// Deterministic: identical input yields identical output.
func (f *Featurizer) ConvertAll(ctx context.Context, examples []Example) (*Batch, error) {
	batch := &Batch{
		InputIDs:   make([][]int64, 0, len(examples)),
		InputMask:  make([][]int64, 0, len(examples)),
		SegmentIDs: make([][]int64, 0, len(examples)),
		Labels:     make([][]int32, 0, len(examples)),
	}

	var bar *progressbar.ProgressBar
	if f.ShowProgress {
		bar = progressbar.NewOptions(len(examples),
			progressbar.OptionSetDescription("Converting examples to features"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
		)
	}

	for _, ex := range examples {
		rec, err := f.Convert(ctx, ex)
		if err != nil {
			return nil, err
		}
		batch.InputIDs = append(batch.InputIDs, rec.InputIDs)
		batch.InputMask = append(batch.InputMask, rec.InputMask)
		batch.SegmentIDs = append(batch.SegmentIDs, rec.SegmentIDs)
		batch.Labels = append(batch.Labels, rec.Label)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return batch, nil
}

// Len returns the number of records in the batch.
func (b *Batch) Len() int { return len(b.InputIDs) }
