// Package features converts raw (text, label-vector) pairs into the
// fixed-length numeric arrays the encoder consumes.
package features

// Example is a single training/test example for sequence classification.
// TextB is accepted for sequence-pair tasks but never populated by the
// pipeline; it is kept as an extension point. Padding marks a placeholder
// example used solely to round a batch up to a fixed size; it featurizes to
// an all-zero record.
type Example struct {
	GUID    string
	TextA   string
	TextB   string
	Label   []int32
	Padding bool
}

// PadToMultiple appends padding placeholder examples until the slice length
// is a multiple of batchSize, so every batch has the same fixed size.
// Dropping the trailing partial batch instead would silently lose examples.
func PadToMultiple(examples []Example, batchSize int) []Example {
	if batchSize <= 1 {
		return examples
	}
	rem := len(examples) % batchSize
	if rem == 0 {
		return examples
	}
	out := append([]Example(nil), examples...)
	for i := 0; i < batchSize-rem; i++ {
		out = append(out, Example{Padding: true})
	}
	return out
}

// NewExamples zips texts and label vectors into examples, preserving order.
func NewExamples(texts []string, labels [][]int32) []Example {
	examples := make([]Example, len(texts))
	for i, text := range texts {
		var label []int32
		if i < len(labels) {
			label = labels[i]
		}
		examples[i] = Example{TextA: text, Label: label}
	}
	return examples
}
