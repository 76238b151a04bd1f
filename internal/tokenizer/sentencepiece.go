package tokenizer

import (
	"fmt"
	"strings"

	"github.com/eliben/go-sentencepiece"
)

// SentencePiece wraps a pretrained sentencepiece model. The model must be
// the one whose .vocab companion file was used to build the vocabulary, or
// segmentation and vector ids will disagree.
type SentencePiece struct {
	proc *sentencepiece.Processor
}

// NewSentencePiece loads a serialized sentencepiece model from disk.
func NewSentencePiece(modelPath string) (*SentencePiece, error) {
	proc, err := sentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load sentencepiece model %s: %w", modelPath, err)
	}
	return &SentencePiece{proc: proc}, nil
}

// Tokenize lowercases text and segments it into subword pieces.
func (t *SentencePiece) Tokenize(text string) []string {
	tokens := t.proc.Encode(strings.ToLower(text))
	pieces := make([]string, len(tokens))
	for i, tok := range tokens {
		pieces[i] = tok.Text
	}
	return pieces
}

var _ Tokenizer = (*SentencePiece)(nil)
