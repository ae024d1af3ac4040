package tokenizer

import (
	"fmt"
	"os"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// WordPiece wraps a sugarme/tokenizer BERT WordPiece tokenizer built from the
// hub-fetched vocabulary.
type WordPiece struct {
	t     *tk.Tokenizer
	clsID int64
	sepID int64
	padID int64
}

// NewWordPiece builds a tokenizer from the fetched model files. A
// tokenizer.json is preferred since it carries the full normalizer and
// special-token setup; otherwise the tokenizer is assembled from vocab.txt
// with BERT defaults and the model's casing flag.
func NewWordPiece(files *ModelFiles) (*WordPiece, error) {
	var t *tk.Tokenizer
	switch {
	case files.TokenizerJSON != "":
		loaded, err := pretrained.FromFile(files.TokenizerJSON)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer.json: %w", err)
		}
		t = loaded
	case files.VocabPath != "":
		built, err := fromVocabFile(files.VocabPath, files.DoLowerCase)
		if err != nil {
			return nil, err
		}
		t = built
	default:
		return nil, fmt.Errorf("%w: no tokenizer files for %s", ErrModelFetch, files.ModelID)
	}

	w := &WordPiece{t: t}
	w.clsID = idOrDefault(t, "[CLS]", 101)
	w.sepID = idOrDefault(t, "[SEP]", 102)
	w.padID = idOrDefault(t, "[PAD]", 0)
	return w, nil
}

func fromVocabFile(vocabPath string, lowercase bool) (*tk.Tokenizer, error) {
	if fi, err := os.Stat(vocabPath); err != nil || fi.IsDir() {
		return nil, fmt.Errorf("vocab file %s not readable: %v", vocabPath, err)
	}
	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, "[UNK]")
	if err != nil {
		return nil, fmt.Errorf("build wordpiece from %s: %w", vocabPath, err)
	}
	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, lowercase, true, lowercase))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())
	// No post-processor, truncation or padding: the featurizer places the
	// special markers and enforces the fixed length itself.
	return t, nil
}

func idOrDefault(t *tk.Tokenizer, token string, def int64) int64 {
	id, ok := t.TokenToId(token)
	if !ok {
		return def
	}
	return int64(id)
}

// Encode returns the subword ids of text without any special tokens.
func (w *WordPiece) Encode(text string) ([]int64, error) {
	enc, err := w.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(text)), false)
	if err != nil {
		return nil, err
	}
	raw := enc.GetIds()
	ids := make([]int64, len(raw))
	for i, id := range raw {
		ids[i] = int64(id)
	}
	return ids, nil
}

func (w *WordPiece) ClassID() int64     { return w.clsID }
func (w *WordPiece) SeparatorID() int64 { return w.sepID }
func (w *WordPiece) PadID() int64       { return w.padID }
