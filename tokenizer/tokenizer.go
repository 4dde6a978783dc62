package tokenizer

import (
	"fmt"

	"github.com/daulet/tokenizers"
)

// DefaultMaxLength caps the number of tokens kept per caption
const DefaultMaxLength = 64

// Tokenizer wraps a HuggingFace tokenizer.json and produces the padded
// token and position rows the sentence encoder consumes.
type Tokenizer struct {
	tokenizer  *tokenizers.Tokenizer
	maxLength  int
	addSpecial bool
}

// New creates a new tokenizer from a tokenizer.json file
func New(tokenizerPath string, maxLength int, addSpecialTokens bool) (*Tokenizer, error) {
	tk, err := tokenizers.FromFile(tokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	return &Tokenizer{
		tokenizer:  tk,
		maxLength:  maxLength,
		addSpecial: addSpecialTokens,
	}, nil
}

// Encode encodes a single text into at most maxLength token ids
func (t *Tokenizer) Encode(text string) []int64 {
	encoding := t.tokenizer.EncodeWithOptions(text, t.addSpecial)
	return Truncate(encoding.IDs, t.maxLength)
}

// EncodeBatch encodes texts into right-padded token rows and their
// 1-based positions (0 on padding)
func (t *Tokenizer) EncodeBatch(texts []string) ([][]int64, [][]int64, error) {
	seqs := make([][]int64, len(texts))
	for i, text := range texts {
		seqs[i] = t.Encode(text)
		if len(seqs[i]) == 0 {
			return nil, nil, fmt.Errorf("failed to encode text %d: no tokens", i)
		}
	}
	tokens, positions := PadBatch(seqs)
	return tokens, positions, nil
}

// VocabularySize returns the vocabulary size
func (t *Tokenizer) VocabularySize() int {
	return int(t.tokenizer.VocabSize())
}

// Close releases tokenizer resources
func (t *Tokenizer) Close() error {
	if t.tokenizer != nil {
		err := t.tokenizer.Close()
		t.tokenizer = nil
		return err
	}
	return nil
}

// Truncate converts ids to int64, keeping at most maxLength of them
func Truncate(ids []uint32, maxLength int) []int64 {
	if maxLength > 0 && len(ids) > maxLength {
		ids = ids[:maxLength]
	}
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// PadBatch right-pads sequences with 0 to the longest one and builds the
// matching position rows: 1..len for real tokens, 0 for padding.
func PadBatch(seqs [][]int64) ([][]int64, [][]int64) {
	width := 0
	for _, s := range seqs {
		if len(s) > width {
			width = len(s)
		}
	}

	tokens := make([][]int64, len(seqs))
	positions := make([][]int64, len(seqs))
	for i, s := range seqs {
		tokens[i] = make([]int64, width)
		positions[i] = make([]int64, width)
		copy(tokens[i], s)
		for p := range s {
			positions[i][p] = int64(p + 1)
		}
	}
	return tokens, positions
}
