// Package tokenizer wraps the pretrained model's subword tokenizer. The
// vocabulary always comes from the model hub so token ids line up with the
// encoder's embedding table.
package tokenizer

import "errors"

// Tokenizer converts raw text to the encoder's subword token ids. Encode
// returns content ids only; start/separator markers are the featurizer's
// responsibility.
type Tokenizer interface {
	Encode(text string) ([]int64, error)
	ClassID() int64
	SeparatorID() int64
	PadID() int64
}

// ErrModelFetch indicates the pretrained model id could not be resolved
// against the hub or its files could not be downloaded.
var ErrModelFetch = errors.New("failed to fetch pretrained model")
